// Package history maintains a live, newest-first view of one user's
// submitted issues: a point-in-time fetch reconciled with the realtime
// change feed.
package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/realtime"
	"github.com/civitas-labs/issue-relay/internal/report"
)

// Fetcher loads the authoritative snapshot, newest first.
// *submit.Submitter satisfies it.
type Fetcher interface {
	FetchIssues(ctx context.Context) ([]report.Record, error)
}

// ChangeStream is a standing subscription to row-level events.
// *realtime.Subscription satisfies it.
type ChangeStream interface {
	Changes() <-chan realtime.Change
	Err() error
	Close() error
}

// SubscribeFunc opens a change stream for the user.
type SubscribeFunc func(ctx context.Context) (ChangeStream, error)

// ErrNoUser means the feed was started without a user identity; a feed
// must never be established for an empty or unknown user.
var ErrNoUser = errors.New("history: no user ID")

// ReconnectDelay is how long the feed waits before redialing a dropped
// subscription.
const ReconnectDelay = 5 * time.Second

// Feed is the reconciled read-model.
type Feed struct {
	userID    string
	fetcher   Fetcher
	subscribe SubscribeFunc
	logger    *logger.Logger

	mu      sync.Mutex
	records []report.Record

	updates chan realtime.Change
	cancel  context.CancelFunc
	stopped chan struct{}
}

func NewFeed(userID string, fetcher Fetcher, subscribe SubscribeFunc, logger *logger.Logger) *Feed {
	return &Feed{
		userID:    userID,
		fetcher:   fetcher,
		subscribe: subscribe,
		logger:    logger,
		updates:   make(chan realtime.Change, 16),
	}
}

// Start loads the initial snapshot and opens the subscription. It
// returns once the first fetch completed; live reconciliation continues
// in the background until Stop or context cancellation.
func (f *Feed) Start(ctx context.Context) error {
	if f.userID == "" {
		return ErrNoUser
	}

	records, err := f.fetcher.FetchIssues(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.records = records
	f.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.stopped = make(chan struct{})
	go f.run(runCtx)

	return nil
}

// Stop tears the subscription down and stops reconciliation.
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
		<-f.stopped
	}
}

// Snapshot returns a copy of the current view, newest first.
func (f *Feed) Snapshot() []report.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]report.Record, len(f.records))
	copy(out, f.records)
	return out
}

// Updates delivers each change after it has been applied to the view.
// Slow consumers lose notifications, not state; Snapshot always has the
// reconciled list.
func (f *Feed) Updates() <-chan realtime.Change {
	return f.updates
}

func (f *Feed) run(ctx context.Context) {
	defer close(f.stopped)
	log := f.logger.WithComponent("history-feed")

	for {
		stream, err := f.subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("subscribe failed, retrying", slog.String("error", err.Error()))
			if !sleep(ctx, ReconnectDelay) {
				return
			}
			continue
		}

		// The subscription may have been re-established after a drop;
		// no backlog is replayed, so close the gap with a fresh fetch.
		if records, err := f.fetcher.FetchIssues(ctx); err == nil {
			f.mu.Lock()
			f.records = records
			f.mu.Unlock()
		} else if ctx.Err() == nil {
			log.Warn("gap-closing fetch failed", slog.String("error", err.Error()))
		}

		f.consume(ctx, stream)
		stream.Close()

		if ctx.Err() != nil {
			return
		}
		if err := stream.Err(); err != nil {
			log.Warn("subscription dropped, reconnecting", slog.String("error", err.Error()))
		}
		if !sleep(ctx, ReconnectDelay) {
			return
		}
	}
}

func (f *Feed) consume(ctx context.Context, stream ChangeStream) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-stream.Changes():
			if !ok {
				return
			}
			f.apply(change)
			select {
			case f.updates <- change:
			default:
			}
		}
	}
}

// apply reconciles one event into the view: inserts prepend unless the
// record is already present (the initial fetch may have raced the first
// live event), updates replace in place without reordering.
func (f *Feed) apply(change realtime.Change) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch change.Type {
	case realtime.ChangeInsert:
		for i := range f.records {
			if f.records[i].ID == change.Record.ID {
				f.records[i] = change.Record
				return
			}
		}
		f.records = append([]report.Record{change.Record}, f.records...)
	case realtime.ChangeUpdate:
		for i := range f.records {
			if f.records[i].ID == change.Record.ID {
				f.records[i] = change.Record
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
