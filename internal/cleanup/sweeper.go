// Package cleanup reconciles the storage bucket against the records
// table. A table-insert failure after a successful upload leaves an
// orphaned object behind; the relay deliberately performs no
// compensating delete, so this sweeper closes the gap out of band.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/storage"
	"github.com/robfig/cron/v3"
)

// ReferenceSource yields every object URL the records table still points
// at. *platform.Client satisfies it.
type ReferenceSource interface {
	SelectObjectURLs(ctx context.Context) (map[string]struct{}, error)
}

// Prefixes swept for orphans.
var sweptPrefixes = []string{"images/", "audio/"}

// Sweeper deletes unreferenced evidence objects older than the grace
// window. The window keeps it from racing an in-flight submission whose
// uploads landed but whose insert has not yet.
type Sweeper struct {
	objects storage.Driver
	refs    ReferenceSource
	grace   time.Duration
	logger  *logger.Logger
}

func NewSweeper(objects storage.Driver, refs ReferenceSource, grace time.Duration, logger *logger.Logger) *Sweeper {
	return &Sweeper{objects: objects, refs: refs, grace: grace, logger: logger}
}

// SweepOnce runs one reconciliation pass and returns the number of
// objects deleted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	log := s.logger.WithComponent("cleanup")

	referenced, err := s.refs.SelectObjectURLs(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-s.grace)
	deleted := 0

	for _, prefix := range sweptPrefixes {
		objects, err := s.objects.ListWithPrefix(ctx, prefix)
		if err != nil {
			return deleted, err
		}

		for _, obj := range objects {
			if !obj.LastModified.Before(cutoff) {
				continue
			}
			if _, ok := referenced[s.objects.PublicURL(obj.Key)]; ok {
				continue
			}

			if err := s.objects.Delete(ctx, obj.Key); err != nil {
				log.Warn("failed to delete orphaned object",
					slog.String("key", obj.Key),
					slog.String("error", err.Error()))
				continue
			}
			deleted++
			log.Info("deleted orphaned object", slog.String("key", obj.Key))
		}
	}

	return deleted, nil
}

// Schedule runs the sweep on the given cron schedule until ctx is done.
// An empty schedule disables the sweeper.
func (s *Sweeper) Schedule(ctx context.Context, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()

		deleted, err := s.SweepOnce(sweepCtx)
		log := s.logger.WithComponent("cleanup")
		if err != nil {
			log.Error("sweep failed", slog.String("error", err.Error()))
			return
		}
		log.Info("sweep completed", slog.Int("deleted", deleted))
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c, nil
}
