package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/echoes/internal/repositories"
	"github.com/desertthunder/echoes/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) cacheMaintenance() (*repositories.CacheMaintenance, error) {
	if r.config.Cache.Backend != "sqlite" {
		r.logger.Warn("cache backend is not sqlite, entries only live for one process", "backend", r.config.Cache.Backend)
	}

	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewCacheMaintenance(db), nil
}

// CacheStats prints entry counts per namespace.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	m, err := r.cacheMaintenance()
	if err != nil {
		return err
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		return err
	}

	if len(stats) == 0 {
		return r.writePlain("Cache is empty\n")
	}

	for _, s := range stats {
		r.writePlain("%-12s %6d entries  oldest %s  newest %s\n",
			s.Namespace, s.Entries, s.Oldest.Format(time.DateTime), s.Newest.Format(time.DateTime))
	}
	return nil
}

// CachePurge deletes every entry, or every entry in one namespace.
func (r *Runner) CachePurge(ctx context.Context, cmd *cli.Command) error {
	namespace := cmd.String("namespace")
	switch namespace {
	case "", lyricsNamespace, embeddingsNamespace, featuresNamespace:
	default:
		return fmt.Errorf("%w: unknown cache namespace %q", shared.ErrInvalidArgument, namespace)
	}

	m, err := r.cacheMaintenance()
	if err != nil {
		return err
	}

	n, err := m.Purge(ctx, namespace)
	if err != nil {
		return err
	}

	r.logger.Info("cache purged", "namespace", namespace, "entries", n)
	return r.writePlain("✓ Removed %d entries\n", n)
}

// CachePrune deletes entries older than --older-than hours, defaulting to the cache TTL.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	age := r.config.Cache.TTL()
	if h := cmd.Int("older-than"); h > 0 {
		age = time.Duration(h) * time.Hour
	}

	m, err := r.cacheMaintenance()
	if err != nil {
		return err
	}

	n, err := m.Prune(ctx, time.Now().Add(-age))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Pruned %d entries older than %s\n", n, age)
}
