package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Digest summarizes the episodes a run put into the pending deletion queue.
type Digest struct {
	// Kind is a short label for the run, e.g. "Grace Sweep".
	Kind   string
	RunID  string
	DryRun bool
	Time   time.Time
	Series []DigestSeries
}

// DigestSeries is the per series part of a digest.
type DigestSeries struct {
	Title    string
	Reason   string
	Seasons  []int32
	Episodes int
	Size     int64
}

// TotalEpisodes returns the number of episodes in the digest.
func (d Digest) TotalEpisodes() int {
	var n int
	for _, s := range d.Series {
		n += s.Episodes
	}
	return n
}

// TotalSize returns the combined file size of the digest.
func (d Digest) TotalSize() int64 {
	var n int64
	for _, s := range d.Series {
		n += s.Size
	}
	return n
}

// Notifier delivers digests to a single channel.
type Notifier interface {
	Name() string
	SendDigest(ctx context.Context, digest Digest) error
}

// Dispatcher fans a digest out to all configured notifiers.
type Dispatcher struct {
	notifiers []Notifier
}

// NewDispatcher creates a dispatcher for the given notifiers.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers}
}

// Enabled reports whether at least one notifier is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.notifiers) > 0
}

// Send delivers the digest to every notifier concurrently.
// Empty digests are not sent. A failing notifier does not stop the others.
func (d *Dispatcher) Send(ctx context.Context, digest Digest) error {
	if !d.Enabled() || digest.TotalEpisodes() == 0 {
		return nil
	}
	if digest.Time.IsZero() {
		digest.Time = time.Now()
	}

	errs := make([]error, len(d.notifiers))
	var g errgroup.Group
	for i, n := range d.notifiers {
		g.Go(func() error {
			if err := n.SendDigest(ctx, digest); err != nil {
				log.Error("Failed to send digest", "notifier", n.Name(), "run", digest.RunID, "error", err)
				errs[i] = fmt.Errorf("%s: %w", n.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
