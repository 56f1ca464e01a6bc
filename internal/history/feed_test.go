package history

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/realtime"
	"github.com/civitas-labs/issue-relay/internal/report"
)

type fakeFetcher struct {
	records []report.Record
	err     error
}

func (f *fakeFetcher) FetchIssues(context.Context) ([]report.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]report.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

type fakeStream struct {
	changes chan realtime.Change
	err     error
}

func newFakeStream() *fakeStream {
	return &fakeStream{changes: make(chan realtime.Change, 8)}
}

func (s *fakeStream) Changes() <-chan realtime.Change { return s.changes }
func (s *fakeStream) Err() error                      { return s.err }
func (s *fakeStream) Close() error                    { return nil }

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: slog.LevelError})
}

func startFeed(t *testing.T, fetcher *fakeFetcher) (*Feed, *fakeStream) {
	t.Helper()
	stream := newFakeStream()
	subscribe := func(context.Context) (ChangeStream, error) { return stream, nil }

	feed := NewFeed("user-1", fetcher, subscribe, testLogger())
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(feed.Stop)
	return feed, stream
}

// waitApplied pushes a change and blocks until the feed has reconciled it.
func waitApplied(t *testing.T, feed *Feed, stream *fakeStream, change realtime.Change) {
	t.Helper()
	stream.changes <- change
	select {
	case <-feed.Updates():
	case <-time.After(5 * time.Second):
		t.Fatal("change was never applied")
	}
}

func TestFeedStartRequiresUser(t *testing.T) {
	feed := NewFeed("", &fakeFetcher{}, nil, testLogger())
	if err := feed.Start(context.Background()); !errors.Is(err, ErrNoUser) {
		t.Fatalf("err = %v, want %v", err, ErrNoUser)
	}
}

func TestFeedStartPropagatesFetchError(t *testing.T) {
	fetchErr := errors.New("relay unreachable")
	feed := NewFeed("user-1", &fakeFetcher{err: fetchErr}, nil, testLogger())
	if err := feed.Start(context.Background()); !errors.Is(err, fetchErr) {
		t.Fatalf("err = %v, want %v", err, fetchErr)
	}
}

func TestFeedInsertPrepends(t *testing.T) {
	feed, stream := startFeed(t, &fakeFetcher{records: []report.Record{
		{ID: "rec-2"},
		{ID: "rec-1"},
	}})

	waitApplied(t, feed, stream, realtime.Change{
		Type:   realtime.ChangeInsert,
		Record: report.Record{ID: "rec-3", Category: report.CategoryGarbage},
	})

	snapshot := feed.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("len = %d, want 3", len(snapshot))
	}
	if snapshot[0].ID != "rec-3" || snapshot[1].ID != "rec-2" || snapshot[2].ID != "rec-1" {
		t.Errorf("order = %v", ids(snapshot))
	}
}

func TestFeedInsertDedupesAgainstFetch(t *testing.T) {
	// The initial fetch already returned rec-2; the raced insert event for
	// the same row must not duplicate it.
	feed, stream := startFeed(t, &fakeFetcher{records: []report.Record{
		{ID: "rec-2", Status: report.StatusPending},
		{ID: "rec-1"},
	}})

	waitApplied(t, feed, stream, realtime.Change{
		Type:   realtime.ChangeInsert,
		Record: report.Record{ID: "rec-2", Status: report.StatusInProgress},
	})

	snapshot := feed.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(snapshot), ids(snapshot))
	}
	if snapshot[0].ID != "rec-2" || snapshot[0].Status != report.StatusInProgress {
		t.Errorf("snapshot[0] = %+v", snapshot[0])
	}
}

func TestFeedUpdateReplacesInPlace(t *testing.T) {
	feed, stream := startFeed(t, &fakeFetcher{records: []report.Record{
		{ID: "rec-3"},
		{ID: "rec-2", Status: report.StatusPending},
		{ID: "rec-1"},
	}})

	waitApplied(t, feed, stream, realtime.Change{
		Type:   realtime.ChangeUpdate,
		Record: report.Record{ID: "rec-2", Status: report.StatusResolved},
	})

	snapshot := feed.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("len = %d, want 3", len(snapshot))
	}
	if snapshot[1].ID != "rec-2" || snapshot[1].Status != report.StatusResolved {
		t.Errorf("snapshot[1] = %+v", snapshot[1])
	}
	if snapshot[0].ID != "rec-3" || snapshot[2].ID != "rec-1" {
		t.Errorf("order changed: %v", ids(snapshot))
	}
}

func TestFeedUpdateForUnknownRowIsIgnored(t *testing.T) {
	feed, stream := startFeed(t, &fakeFetcher{records: []report.Record{{ID: "rec-1"}}})

	waitApplied(t, feed, stream, realtime.Change{
		Type:   realtime.ChangeUpdate,
		Record: report.Record{ID: "rec-99", Status: report.StatusResolved},
	})

	snapshot := feed.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != "rec-1" {
		t.Errorf("snapshot = %v", ids(snapshot))
	}
}

func TestFeedSnapshotIsACopy(t *testing.T) {
	feed, _ := startFeed(t, &fakeFetcher{records: []report.Record{{ID: "rec-1"}}})

	snapshot := feed.Snapshot()
	snapshot[0].ID = "mutated"

	if feed.Snapshot()[0].ID != "rec-1" {
		t.Error("Snapshot exposed internal state")
	}
}

func ids(records []report.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
