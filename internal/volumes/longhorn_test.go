package volumes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/imamik/nodecycle/internal/testing"
)

func TestReader_List(t *testing.T) {
	t.Parallel()
	dyn := testutil.NewDynamicClient(
		testutil.LonghornVolume("pvc-b", StateAttached, "node-1"),
		testutil.LonghornVolume("pvc-a", StateDetached, ""),
		testutil.LonghornReplica("pvc-b", "node-1", true),
		testutil.LonghornReplica("pvc-b", "node-2", false),
		testutil.LonghornReplica("pvc-a", "node-2", true),
	)
	r := NewReader(dyn, testutil.LonghornNamespace, time.Second)

	vols, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, vols, 2)

	assert.Equal(t, "pvc-a", vols[0].Name)
	assert.Equal(t, StateDetached, vols[0].State)
	assert.Len(t, vols[0].Replicas, 1)

	assert.Equal(t, "pvc-b", vols[1].Name)
	assert.Equal(t, "node-1", vols[1].Node)
	assert.Equal(t, RobustnessHealthy, vols[1].Robustness)
	assert.Len(t, vols[1].Replicas, 2)
}

func TestReader_AttachedTo(t *testing.T) {
	t.Parallel()
	dyn := testutil.NewDynamicClient(
		testutil.LonghornVolume("pvc-1", StateAttached, "node-1"),
		testutil.LonghornVolume("pvc-2", StateDetaching, "node-1"),
		testutil.LonghornVolume("pvc-3", StateAttached, "node-2"),
		testutil.LonghornVolume("pvc-4", StateDetached, ""),
	)
	r := NewReader(dyn, testutil.LonghornNamespace, time.Second)

	vols, err := r.AttachedTo(context.Background(), "node-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pvc-1", "pvc-2"}, names(vols))
}

func TestReader_Settings(t *testing.T) {
	t.Parallel()
	dyn := testutil.NewDynamicClient(
		testutil.LonghornSetting("node-drain-policy", "block-if-contains-last-replica"),
		testutil.LonghornSetting("default-replica-count", "2"),
		testutil.LonghornSetting("backup-target", "s3://bucket"),
	)
	r := NewReader(dyn, testutil.LonghornNamespace, time.Second)

	settings, err := r.Settings(context.Background(), LoggedSettings...)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"node-drain-policy":     "block-if-contains-last-replica",
		"default-replica-count": "2",
	}, settings)
}

func TestVolume_Expected(t *testing.T) {
	t.Parallel()
	assert.True(t, Volume{State: StateDetached}.Expected())
	assert.True(t, Volume{State: StateAttached, Robustness: RobustnessHealthy}.Expected())
	assert.False(t, Volume{State: StateAttached, Robustness: RobustnessDegraded}.Expected())
	assert.False(t, Volume{State: StateAttaching}.Expected())
}

func TestVolume_HealthyReplicaOn(t *testing.T) {
	t.Parallel()
	v := Volume{Replicas: []Replica{
		{Node: "node-1", Healthy: true},
		{Node: "node-2", Healthy: false},
	}}
	assert.True(t, v.HealthyReplicaOn(map[string]bool{"node-1": true}))
	assert.False(t, v.HealthyReplicaOn(map[string]bool{"node-2": true}))
	assert.False(t, v.HealthyReplicaOn(nil))
}
