package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Marker is the durable record that a node was cordoned by this tool.
type Marker struct {
	Node       string    `json:"node"`
	SessionID  string    `json:"session_id"`
	Role       string    `json:"role,omitempty"`
	CordonedAt time.Time `json:"cordoned_at"`
	PID        int       `json:"pid"`
}

// MarkerStore reads and writes markers below a state directory.
type MarkerStore struct {
	dir string
}

// NewMarkerStore returns a store rooted at <stateDir>/markers.
func NewMarkerStore(stateDir string) *MarkerStore {
	return &MarkerStore{dir: filepath.Join(stateDir, "markers")}
}

// Path returns the marker file for node.
func (s *MarkerStore) Path(node string) string {
	return filepath.Join(s.dir, node+".json")
}

// Write atomically persists m. The marker is durable once Write returns.
func (s *MarkerStore) Write(m Marker) error {
	if m.Node == "" {
		return errors.New("marker has no node")
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create marker directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode marker: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+m.Node+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary marker: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write marker: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close marker: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(m.Node)); err != nil {
		return fmt.Errorf("failed to install marker: %w", err)
	}
	committed = true

	return syncDir(s.dir)
}

// Read returns the marker for node. found is false when none exists.
func (s *MarkerStore) Read(node string) (m *Marker, found bool, err error) {
	// #nosec G304 -- path is built from the state directory and node name
	data, err := os.ReadFile(s.Path(node))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read marker: %w", err)
	}

	m = &Marker{}
	if err := json.Unmarshal(data, m); err != nil {
		// A present but unreadable marker still means the node was cordoned by us.
		return &Marker{Node: node}, true, fmt.Errorf("marker %s is corrupt: %w", s.Path(node), err)
	}
	return m, true, nil
}

// Exists reports whether a marker for node is present.
func (s *MarkerStore) Exists(node string) (bool, error) {
	_, err := os.Stat(s.Path(node))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat marker: %w", err)
	}
	return true, nil
}

// Remove deletes the marker for node. Removing an absent marker succeeds.
func (s *MarkerStore) Remove(node string) error {
	err := os.Remove(s.Path(node))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove marker: %w", err)
	}
	if err == nil {
		return syncDir(s.dir)
	}
	return nil
}

func syncDir(dir string) error {
	// #nosec G304 -- dir is the marker directory
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open marker directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync marker directory: %w", err)
	}
	return nil
}
