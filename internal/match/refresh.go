package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"fitvoice/internal/models"
)

// CatalogSource loads the current active exercise set from wherever the
// catalog lives. A failed load leaves the previous snapshot in place.
type CatalogSource func(ctx context.Context) ([]models.Exercise, error)

// Refresher periodically rebuilds the matcher's catalog snapshot from a
// source. Concurrent Refresh calls (the ticker plus an on-demand
// trigger after a catalog write) collapse into a single load.
type Refresher struct {
	matcher  *Matcher
	source   CatalogSource
	interval time.Duration
	logger   *slog.Logger
	group    singleflight.Group

	// Observer, when set, receives the record count and load error of
	// every refresh. Used to feed metrics without coupling this package
	// to a metrics backend.
	Observer func(records int, err error)
}

// NewRefresher wires a refresher. interval <= 0 disables the periodic
// loop; Refresh can still be invoked directly.
func NewRefresher(matcher *Matcher, source CatalogSource, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{matcher: matcher, source: source, interval: interval, logger: logger}
}

// Refresh loads the catalog and swaps the snapshot in. Duplicate
// concurrent calls share one load.
func (r *Refresher) Refresh(ctx context.Context) error {
	_, err, _ := r.group.Do("catalog", func() (any, error) {
		exercises, err := r.source(ctx)
		if err != nil {
			if r.Observer != nil {
				r.Observer(r.matcher.CatalogSize(), err)
			}
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		catalog := NewCatalog(exercises)
		r.matcher.Swap(catalog)
		if r.Observer != nil {
			r.Observer(catalog.Size(), nil)
		}
		r.logger.Debug("catalog snapshot refreshed", "records", catalog.Size())
		return nil, nil
	})
	return err
}

// Run refreshes once immediately, then on every tick until the context
// is cancelled. Load errors are logged and the previous snapshot stays
// active.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Error("initial catalog load failed", "error", err)
	}
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Error("catalog refresh failed", "error", err)
			}
		}
	}
}
