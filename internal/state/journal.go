package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrLocked is returned when another process holds the node lock.
var ErrLocked = errors.New("another nodecycle session holds the node lock")

var bucketSessions = []byte("sessions")

const defaultLockTimeout = time.Second

// Transition is one phase change within a session.
type Transition struct {
	Phase string    `json:"phase"`
	At    time.Time `json:"at"`
}

// Record describes one session.
type Record struct {
	ID          string       `json:"id"`
	Node        string       `json:"node"`
	Role        string       `json:"role"`
	DryRun      bool         `json:"dry_run"`
	Started     time.Time    `json:"started"`
	Finished    time.Time    `json:"finished,omitempty"`
	Phase       string       `json:"phase"`
	Outcome     string       `json:"outcome,omitempty"`
	Transitions []Transition `json:"transitions,omitempty"`
}

// Journal is the per-node session database.
type Journal struct {
	db   *bolt.DB
	Path string
}

// JournalPath returns the database file for node.
func JournalPath(stateDir, node string) string {
	return filepath.Join(stateDir, node+".db")
}

// OpenJournal opens the node database and takes its exclusive lock. It fails
// with ErrLocked if the lock is not available within timeout.
func OpenJournal(stateDir, node string, timeout time.Duration) (*Journal, error) {
	return openJournal(stateDir, node, timeout, false)
}

// OpenJournalReadOnly opens the node database for reading history.
func OpenJournalReadOnly(stateDir, node string, timeout time.Duration) (*Journal, error) {
	return openJournal(stateDir, node, timeout, true)
}

func openJournal(stateDir, node string, timeout time.Duration, readOnly bool) (*Journal, error) {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	path := JournalPath(stateDir, node)

	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("no journal for node %s: %w", node, err)
		}
	} else if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout, ReadOnly: readOnly})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if !readOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketSessions)
			return err
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucketSessions, err)
		}
	}

	return &Journal{db: db, Path: path}, nil
}

// Close releases the lock.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin stores a new session record.
func (j *Journal) Begin(rec Record) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketSessions), &rec)
	})
}

// Transition appends a phase change to the session.
func (j *Journal) Transition(id, phase string, at time.Time) error {
	return j.update(id, func(rec *Record) {
		rec.Phase = phase
		rec.Transitions = append(rec.Transitions, Transition{Phase: phase, At: at})
	})
}

// Finish records the final phase and outcome of the session.
func (j *Journal) Finish(id, phase, outcome string, at time.Time) error {
	return j.update(id, func(rec *Record) {
		rec.Phase = phase
		rec.Outcome = outcome
		rec.Finished = at
	})
}

// Sessions returns every recorded session, oldest first.
func (j *Journal) Sessions() ([]Record, error) {
	var records []Record
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].Started.Before(records[b].Started)
	})
	return records, nil
}

func (j *Journal) update(id string, fn func(*Record)) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("session not found: %s", id)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		fn(&rec)
		return put(b, &rec)
	})
}

func put(b *bolt.Bucket, rec *Record) error {
	if rec.ID == "" {
		return errors.New("session record has no id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.Put([]byte(rec.ID), data)
}
