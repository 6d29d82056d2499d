package session

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/confirm"
	"github.com/imamik/nodecycle/internal/k8s"
	"github.com/imamik/nodecycle/internal/metrics"
	"github.com/imamik/nodecycle/internal/preflight"
	"github.com/imamik/nodecycle/internal/service"
	"github.com/imamik/nodecycle/internal/state"
	testutil "github.com/imamik/nodecycle/internal/testing"
	"github.com/imamik/nodecycle/internal/util/prerequisites"
	"github.com/imamik/nodecycle/internal/util/retry"
)

const (
	targetNode = "worker-1"
	peerNode   = "server-1"
)

// harness wires an orchestrator to fake clients.
type harness struct {
	cs       *fake.Clientset
	dynObjs  []runtime.Object
	cfg      *config.Config
	markers  *state.MarkerStore
	prompter *testutil.MockPrompter
	units    *testutil.MockUnitManager
	power    *testutil.MockPowerManager
	metrics  *metrics.Session
	session  *Session
	logs     *gbytes.Buffer

	// exitOnly makes Exit record the code without cancelling the caller's
	// context, as a real process exit would not run any further Go code.
	exitOnly bool

	ctx      context.Context
	cancel   context.CancelFunc
	exitCode atomic.Int32
	signals  atomic.Pointer[chan<- os.Signal]
}

func newHarness(objs ...runtime.Object) *harness {
	base := []runtime.Object{
		testutil.Node(targetNode),
		testutil.Node(peerNode, testutil.ControlPlane()),
	}
	h := &harness{
		cs:       fake.NewSimpleClientset(append(base, objs...)...),
		prompter: new(testutil.MockPrompter),
		units:    new(testutil.MockUnitManager),
		power:    new(testutil.MockPowerManager),
		metrics:  metrics.New(targetNode),
		logs:     gbytes.NewBuffer(),
	}
	h.cfg = testutil.NewConfigBuilder().
		WithNode(targetNode).
		WithRole("").
		WithAction(config.ActionReboot).
		WithStorageWait(100 * time.Millisecond).
		WithStateDir(GinkgoT().TempDir()).
		Build()
	h.markers = state.NewMarkerStore(h.cfg.StateDir)
	h.exitCode.Store(-1)

	h.units.On("StopUnit", mock.Anything, "k3s-agent.service").Return("done", nil)
	h.units.On("ActiveState", mock.Anything, "k3s-agent.service").Return("inactive", nil)
	h.units.On("Close").Return()
	h.power.On("Sync").Return()
	h.power.On("Reboot").Return(nil)
	return h
}

func (h *harness) withStorage(objs ...runtime.Object) *harness {
	_, err := h.cs.CoreV1().Namespaces().Create(context.Background(), testutil.Namespace(testutil.LonghornNamespace), metav1.CreateOptions{})
	Expect(err).NotTo(HaveOccurred())
	h.dynObjs = append(h.dynObjs, objs...)
	return h
}

func (h *harness) answers(answers ...string) {
	for _, a := range answers {
		h.prompter.On("Ask", mock.Anything, mock.Anything, mock.Anything).Return(a, nil).Once()
	}
}

// interruptOnFirstDelete delivers SIGINT the first time a pod delete is
// issued, while the drain is in flight. Deletes are swallowed so the pod
// never leaves.
func (h *harness) interruptOnFirstDelete() {
	var sent atomic.Bool
	h.cs.PrependReactor("delete", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		if sent.CompareAndSwap(false, true) {
			if ch := h.signals.Load(); ch != nil {
				*ch <- os.Interrupt
			}
		}
		return true, nil, nil
	})
}

// interruptWhileDraining delivers SIGINT from the drain's pod listing and
// holds the listing until the handler has exited.
func (h *harness) interruptWhileDraining() {
	var sent atomic.Bool
	h.cs.PrependReactor("list", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		if h.session == nil || h.session.Phase() != PhaseDraining || !sent.CompareAndSwap(false, true) {
			return false, nil, nil
		}
		if ch := h.signals.Load(); ch != nil {
			*ch <- os.Interrupt
		}
		select {
		case <-h.ctx.Done():
		case <-time.After(10 * time.Second):
		}
		return false, nil, nil
	})
}

// failStorageLookup makes every GET of the storage namespace fail with a
// transient server error.
func (h *harness) failStorageLookup() {
	h.cs.PrependReactor("get", "namespaces", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if action.(k8stesting.GetAction).GetName() != testutil.LonghornNamespace {
			return false, nil, nil
		}
		return true, nil, apierrors.NewServiceUnavailable("etcd leader changed")
	})
}

func (h *harness) run() error {
	h.ctx, h.cancel = context.WithTimeout(context.Background(), time.Minute)
	DeferCleanup(h.cancel)

	client := k8s.NewFromClients(h.cs, testutil.NewDynamicClient(h.dynObjs...),
		k8s.WithAPITimeout(time.Second),
		k8s.WithRetry(retry.WithMaxRetries(1), retry.WithInitialDelay(time.Millisecond)),
	)
	log := zerolog.New(io.MultiWriter(GinkgoWriter, h.logs)).With().Timestamp().Logger()
	s := New("", h.cfg, log)

	o := NewOrchestrator(s, Dependencies{
		Client:   client,
		Markers:  h.markers,
		Prompter: h.prompter,
		Out:      GinkgoWriter,
		Metrics:  h.metrics,
		ConnectUnits: func(context.Context) (service.UnitManager, error) {
			return h.units, nil
		},
		Power:      h.power,
		Geteuid:    func() int { return 0 },
		CheckTools: func() *prerequisites.CheckResults { return &prerequisites.CheckResults{} },
		Exit: func(code int) {
			h.exitCode.Store(int32(code))
			if !h.exitOnly {
				h.cancel()
			}
		},
	})
	h.session = s
	return o.Run(h.ctx)
}

func (h *harness) unschedulable() bool {
	n, err := h.cs.CoreV1().Nodes().Get(context.Background(), targetNode, metav1.GetOptions{})
	Expect(err).NotTo(HaveOccurred())
	return n.Spec.Unschedulable
}

func (h *harness) markerExists() bool {
	exists, err := h.markers.Exists(targetNode)
	Expect(err).NotTo(HaveOccurred())
	return exists
}

func (h *harness) lastRecord() state.Record {
	j, err := state.OpenJournalReadOnly(h.cfg.StateDir, targetNode, time.Second)
	Expect(err).NotTo(HaveOccurred())
	defer j.Close()
	records, err := j.Sessions()
	Expect(err).NotTo(HaveOccurred())
	Expect(records).NotTo(BeEmpty())
	return records[len(records)-1]
}

func (h *harness) mutations() []k8stesting.Action {
	var out []k8stesting.Action
	for _, a := range h.cs.Actions() {
		switch a.GetVerb() {
		case "create", "update", "patch", "delete", "deletecollection":
			out = append(out, a)
		}
	}
	return out
}

func (h *harness) deletes() int {
	n := 0
	for _, a := range h.cs.Actions() {
		if a.GetVerb() == "delete" && a.GetResource().Resource == "pods" {
			n++
		}
	}
	return n
}

var _ = Describe("Maintenance session", func() {
	var origNotify func(chan<- os.Signal, ...os.Signal)
	var origStop func(chan<- os.Signal)
	var h *harness

	BeforeEach(func() {
		origNotify, origStop = signalNotify, signalStop
		DeferCleanup(func() {
			signalNotify, signalStop = origNotify, origStop
		})
	})

	captureSignals := func(h *harness) {
		signalNotify = func(c chan<- os.Signal, _ ...os.Signal) { h.signals.Store(&c) }
		signalStop = func(chan<- os.Signal) {}
	}

	Context("when every pod leaves within the grace period", func() {
		BeforeEach(func() {
			h = newHarness(
				testutil.Pod("default", "web-1", targetNode, testutil.OwnedByReplicaSet("web")),
				testutil.Pod("default", "web-2", targetNode, testutil.OwnedByReplicaSet("web")),
				testutil.Pod("default", "api-1", peerNode, testutil.OwnedByReplicaSet("api")),
			)
			captureSignals(h)
			h.answers("yes")
		})

		It("runs every phase and powers the node down", func() {
			start := time.Now()
			err := h.run()
			Expect(err).NotTo(HaveOccurred())
			Expect(ExitCode(err)).To(Equal(ExitOK))

			Expect(h.session.Phase()).To(Equal(PhasePoweredOff))
			Expect(time.Since(start)).To(BeNumerically("<", h.cfg.GracePeriod))
			Expect(h.deletes()).To(Equal(2))

			By("keeping the node cordoned with its marker for restore")
			Expect(h.unschedulable()).To(BeTrue())
			Expect(h.markerExists()).To(BeTrue())

			By("syncing before rebooting")
			h.power.AssertCalled(GinkgoT(), "Sync")
			h.power.AssertCalled(GinkgoT(), "Reboot")
			h.units.AssertCalled(GinkgoT(), "StopUnit", mock.Anything, "k3s-agent.service")

			By("logging each phase field once per line")
			lines := strings.Split(strings.TrimSpace(string(h.logs.Contents())), "\n")
			Expect(lines).NotTo(BeEmpty())
			for _, line := range lines {
				Expect(strings.Count(line, `"phase":`)).To(BeNumerically("<=", 1), line)
			}
			Expect(h.logs).To(gbytes.Say(`"event":"phase.started"`))

			rec := h.lastRecord()
			Expect(rec.Outcome).To(Equal(OutcomeCompleted))
			Expect(rec.Role).To(Equal(string(config.RoleWorker)))
			Expect(rec.Transitions).To(HaveLen(int(PhasePoweredOff)))
		})
	})

	Context("when a pod ignores graceful deletion", Label("slow"), func() {
		BeforeEach(func() {
			h = newHarness(
				testutil.Pod("default", "web-1", targetNode, testutil.OwnedByReplicaSet("web")),
				testutil.Pod("default", "stubborn", targetNode, testutil.OwnedByReplicaSet("db")),
			)
			captureSignals(h)
			h.answers("yes")
			h.cfg.GracePeriod = config.MinGracePeriod
			h.cfg.ForceTimeout = config.MinForceTimeout
			h.cs.PrependReactor("delete", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
				del := action.(k8stesting.DeleteAction)
				grace := del.GetDeleteOptions().GracePeriodSeconds
				if del.GetName() == "stubborn" && grace != nil && *grace > 0 {
					return true, nil, nil
				}
				return false, nil, nil
			})
		})

		It("escalates to forced deletion and continues", func() {
			start := time.Now()
			Expect(h.run()).To(Succeed())
			elapsed := time.Since(start)

			Expect(h.session.Phase()).To(Equal(PhasePoweredOff))
			Expect(elapsed).To(BeNumerically(">=", h.cfg.GracePeriod))
			Expect(elapsed).To(BeNumerically("<", h.cfg.DrainBound()+5*time.Second))

			_, err := h.cs.CoreV1().Pods("default").Get(context.Background(), "stubborn", metav1.GetOptions{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("when volumes stay attached past the storage deadline", func() {
		BeforeEach(func() {
			h = newHarness(
				testutil.Pod("default", "db-0", targetNode, testutil.OwnedByReplicaSet("db")),
			).withStorage(
				testutil.LonghornVolume("pvc-data", "attached", targetNode),
				testutil.LonghornReplica("pvc-data", peerNode, true),
			)
			captureSignals(h)
			h.answers("yes", "no")
		})

		It("rolls back when the operator declines the override", func() {
			err := h.run()
			Expect(err).To(MatchError(confirm.ErrDeclined))
			Expect(ExitCode(err)).To(Equal(ExitDeclined))

			Expect(h.session.Phase()).To(Equal(PhaseRolledBack))
			Expect(h.unschedulable()).To(BeFalse())
			Expect(h.markerExists()).To(BeFalse())

			h.units.AssertNotCalled(GinkgoT(), "StopUnit", mock.Anything, mock.Anything)
			h.power.AssertNotCalled(GinkgoT(), "Sync")
			h.prompter.AssertNumberOfCalls(GinkgoT(), "Ask", 2)
			Expect(h.lastRecord().Outcome).To(Equal(OutcomeDeclined))
		})
	})

	Context("when SIGINT arrives during the drain", func() {
		BeforeEach(func() {
			h = newHarness(
				testutil.Pod("default", "stubborn", targetNode, testutil.OwnedByReplicaSet("db")),
			)
			captureSignals(h)
			h.answers("yes")
			h.interruptOnFirstDelete()
		})

		It("uncordons the node, removes the marker and exits 130", func() {
			err := h.run()
			Expect(err).To(MatchError(ErrInterrupted))
			Expect(ExitCode(err)).To(Equal(ExitInterrupted))
			Eventually(h.exitCode.Load).Should(BeEquivalentTo(ExitInterrupted))

			Expect(h.session.Phase()).To(Equal(PhaseRolledBack))
			Expect(h.unschedulable()).To(BeFalse())
			Expect(h.markerExists()).To(BeFalse())

			h.units.AssertNotCalled(GinkgoT(), "StopUnit", mock.Anything, mock.Anything)
			h.power.AssertNotCalled(GinkgoT(), "Reboot")
			Expect(h.lastRecord().Outcome).To(Equal(OutcomeInterrupted))
		})
	})

	Context("when SIGINT arrives and the process does not exit", func() {
		BeforeEach(func() {
			h = newHarness(
				testutil.Pod("default", "stubborn", targetNode, testutil.OwnedByReplicaSet("db")),
			)
			h.exitOnly = true
			captureSignals(h)
			h.answers("yes")
			h.interruptOnFirstDelete()
		})

		It("cancels the session before the agent or the host are touched", func() {
			err := h.run()
			Expect(err).To(MatchError(ErrInterrupted))
			Eventually(h.exitCode.Load).Should(BeEquivalentTo(ExitInterrupted))
			Expect(h.ctx.Err()).NotTo(HaveOccurred(), "only the session context is cancelled")

			Expect(h.session.Phase()).To(Equal(PhaseRolledBack))
			Expect(h.unschedulable()).To(BeFalse())

			h.units.AssertNotCalled(GinkgoT(), "StopUnit", mock.Anything, mock.Anything)
			h.power.AssertNotCalled(GinkgoT(), "Sync")
			h.power.AssertNotCalled(GinkgoT(), "Reboot")
			Expect(h.lastRecord().Outcome).To(Equal(OutcomeInterrupted))
		})
	})

	Context("when a dry run is interrupted on a node cordoned by another session", func() {
		BeforeEach(func() {
			h = newHarness(testutil.Pod("default", "web-1", targetNode, testutil.OwnedByReplicaSet("web")))
			_, err := h.cs.CoreV1().Nodes().Update(context.Background(),
				testutil.Node(targetNode, testutil.Unschedulable()), metav1.UpdateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(h.markers.Write(state.Marker{Node: targetNode, SessionID: "other"})).To(Succeed())
			h.cs.ClearActions()
			h.cfg.DryRun = true
			captureSignals(h)
			h.interruptWhileDraining()
		})

		It("leaves the cordon and the foreign marker in place", func() {
			err := h.run()
			Expect(err).To(MatchError(ErrInterrupted))
			Expect(h.exitCode.Load()).To(BeEquivalentTo(ExitInterrupted))

			Expect(h.mutations()).To(BeEmpty())
			Expect(h.unschedulable()).To(BeTrue())

			m, found, err := h.markers.Read(targetNode)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(m.SessionID).To(Equal("other"))
			h.power.AssertNotCalled(GinkgoT(), "Reboot")
		})
	})

	Context("when the storage namespace lookup fails transiently", func() {
		BeforeEach(func() {
			h = newHarness(
				testutil.Pod("default", "db-0", targetNode, testutil.OwnedByReplicaSet("db")),
			).withStorage(
				testutil.LonghornVolume("pvc-data", "attached", targetNode),
				testutil.LonghornReplica("pvc-data", peerNode, true),
			)
			h.failStorageLookup()
			captureSignals(h)
			h.answers("yes", "no")
		})

		It("still waits for volumes and asks before stopping the agent", func() {
			err := h.run()
			Expect(err).To(MatchError(confirm.ErrDeclined))
			Expect(ExitCode(err)).To(Equal(ExitDeclined))

			h.prompter.AssertNumberOfCalls(GinkgoT(), "Ask", 2)
			h.prompter.AssertCalled(GinkgoT(), "Ask", mock.Anything, "1 volume(s) still attached to "+targetNode+". Continue anyway?", mock.Anything)
			Expect(h.session.Phase()).To(Equal(PhaseRolledBack))
			Expect(h.unschedulable()).To(BeFalse())

			h.units.AssertNotCalled(GinkgoT(), "StopUnit", mock.Anything, mock.Anything)
			h.power.AssertNotCalled(GinkgoT(), "Reboot")
		})
	})

	Context("in dry-run mode", func() {
		BeforeEach(func() {
			h = newHarness(
				testutil.Pod("default", "web-1", targetNode, testutil.OwnedByReplicaSet("web")),
			).withStorage(testutil.LonghornVolume("pvc-data", "attached", targetNode))
			captureSignals(h)
			h.cfg.DryRun = true
		})

		It("issues no mutating call and never powers off", func() {
			before := len(h.mutations())
			err := h.run()
			Expect(err).NotTo(HaveOccurred())
			Expect(ExitCode(err)).To(Equal(ExitOK))

			Expect(h.mutations()).To(HaveLen(before))
			Expect(h.session.Phase()).To(Equal(PhaseServiceStopped))
			Expect(h.unschedulable()).To(BeFalse())
			Expect(h.markerExists()).To(BeFalse())

			h.prompter.AssertNotCalled(GinkgoT(), "Ask", mock.Anything, mock.Anything, mock.Anything)
			h.units.AssertNotCalled(GinkgoT(), "StopUnit", mock.Anything, mock.Anything)
			h.power.AssertNotCalled(GinkgoT(), "Sync")
			h.power.AssertNotCalled(GinkgoT(), "Reboot")

			_, err = os.Stat(state.JournalPath(h.cfg.StateDir, targetNode))
			Expect(os.IsNotExist(err)).To(BeTrue(), "dry-run takes no lock")
		})
	})

	Context("when the operator declines at the gate", func() {
		BeforeEach(func() {
			h = newHarness(testutil.Pod("default", "web-1", targetNode))
			captureSignals(h)
			h.answers("y")
		})

		It("exits 2 without touching the node", func() {
			err := h.run()
			Expect(ExitCode(err)).To(Equal(ExitDeclined))
			Expect(h.session.Phase()).To(Equal(PhaseAudited))
			Expect(h.mutations()).To(BeEmpty())
			Expect(h.lastRecord().Outcome).To(Equal(OutcomeDeclined))
		})
	})

	Context("when cordoning fails", func() {
		BeforeEach(func() {
			h = newHarness(testutil.Pod("default", "web-1", targetNode))
			captureSignals(h)
			h.answers("yes")
			h.cs.PrependReactor("patch", "nodes", func(k8stesting.Action) (bool, runtime.Object, error) {
				return true, nil, apierrors.NewForbidden(schema.GroupResource{Resource: "nodes"}, targetNode, errors.New("rbac"))
			})
		})

		It("never drains and writes no marker", func() {
			err := h.run()
			Expect(ExitCode(err)).To(Equal(ExitFailure))
			Expect(h.session.Phase()).To(Equal(PhaseConfirmed))
			Expect(h.deletes()).To(BeZero())
			Expect(h.markerExists()).To(BeFalse())
			Expect(h.lastRecord().Outcome).To(Equal(OutcomeFailed))
		})
	})

	Context("when another session holds the node lock", func() {
		BeforeEach(func() {
			h = newHarness()
			captureSignals(h)
			j, err := state.OpenJournal(h.cfg.StateDir, targetNode, time.Second)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(j.Close)
		})

		It("fails fast at preflight", func() {
			err := h.run()
			Expect(preflight.IsFailure(err)).To(BeTrue())
			Expect(errors.Is(err, state.ErrLocked)).To(BeTrue())
			Expect(ExitCode(err)).To(Equal(ExitFailure))
			Expect(h.session.Phase()).To(Equal(PhaseUninitialized))
			Expect(h.mutations()).To(BeEmpty())
		})
	})

	Context("when the node was cordoned by someone else", func() {
		BeforeEach(func() {
			h = newHarness()
			_, err := h.cs.CoreV1().Nodes().Update(context.Background(),
				testutil.Node(targetNode, testutil.Unschedulable()), metav1.UpdateOptions{})
			Expect(err).NotTo(HaveOccurred())
			h.cs.ClearActions()
			captureSignals(h)
			h.answers("yes", "no")
		})

		It("leaves it cordoned when the session rolls back", func() {
			h.withStorage(testutil.LonghornVolume("pvc-data", "attached", targetNode))

			err := h.run()
			Expect(ExitCode(err)).To(Equal(ExitDeclined))
			Expect(h.unschedulable()).To(BeTrue())
			Expect(h.markerExists()).To(BeFalse())
		})
	})
})
