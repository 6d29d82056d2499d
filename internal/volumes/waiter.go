package volumes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imamik/nodecycle/internal/logging"
	"github.com/imamik/nodecycle/internal/util/poll"
)

// AttachedLister returns the volumes still bound to a node.
type AttachedLister interface {
	AttachedTo(ctx context.Context, node string) ([]Volume, error)
}

// QuiesceTimeoutError is returned when volumes remain attached at the deadline.
// Unverified is set when no listing succeeded, so Attached is not known.
type QuiesceTimeoutError struct {
	Node       string
	Deadline   time.Duration
	Attached   []string
	Unverified bool
	LastErr    error
}

func (e *QuiesceTimeoutError) Error() string {
	if e.Unverified {
		return fmt.Sprintf("could not read volume state of %s within %s: %v", e.Node, e.Deadline, e.LastErr)
	}
	return fmt.Sprintf("%d volume(s) still attached to %s after %s: %s",
		len(e.Attached), e.Node, e.Deadline, strings.Join(e.Attached, ", "))
}

// Result summarizes a completed wait.
type Result struct {
	Polls   int
	Elapsed time.Duration
}

// Waiter polls the storage layer until a node holds no volumes.
type Waiter struct {
	Lister   AttachedLister
	Interval time.Duration
	Deadline time.Duration
	Log      zerolog.Logger
}

// Wait blocks until no volume is bound to node or the deadline passes. List
// failures are logged and polled through; only the deadline ends the wait
// unsuccessfully.
func (w *Waiter) Wait(ctx context.Context, node string) (Result, error) {
	start := time.Now()
	var res Result
	var (
		lastAttached []string
		lastErr      error
		listed       bool
	)

	err := poll.Until(ctx, w.Interval, w.Deadline, func(ctx context.Context) (bool, error) {
		res.Polls++
		vols, err := w.Lister.AttachedTo(ctx, node)
		if err != nil {
			lastErr = err
			w.Log.Warn().Err(err).Int("poll", res.Polls).Msg("volume listing failed; retrying at next interval")
			return false, nil
		}
		listed = true
		lastAttached = names(vols)
		if len(vols) == 0 {
			return true, nil
		}
		logging.Event(w.Log, zerolog.InfoLevel, logging.EventProgress).
			Int("poll", res.Polls).
			Strs("attached", lastAttached).
			Msg("waiting for volumes to detach")
		return false, nil
	})
	res.Elapsed = time.Since(start)

	if errors.Is(err, poll.ErrDeadline) {
		return res, &QuiesceTimeoutError{
			Node:       node,
			Deadline:   w.Deadline,
			Attached:   lastAttached,
			Unverified: !listed,
			LastErr:    lastErr,
		}
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

func names(vols []Volume) []string {
	out := make([]string, 0, len(vols))
	for _, v := range vols {
		out = append(out, v.Name)
	}
	return out
}
