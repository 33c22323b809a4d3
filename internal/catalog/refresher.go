package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const refreshTimeout = 10 * time.Minute

// Schedule returns the cron spec for a refresh: expr when set, otherwise a fixed interval.
func Schedule(interval time.Duration, expr string) string {
	if expr = strings.TrimSpace(expr); expr != "" {
		return expr
	}
	return "@every " + interval.String()
}

// Refresher revalidates a catalog on a cron schedule.
type Refresher struct {
	catalog *Catalog
	cron    *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefresher registers the catalog refresh under spec.
func NewRefresher(c *Catalog, spec string) (*Refresher, error) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Refresher{catalog: c, cron: cron.New(), ctx: ctx, cancel: cancel}
	if _, err := r.cron.AddFunc(spec, func() { r.refresh(true) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start begins the schedule and loads the catalog once in the background (cache allowed).
func (r *Refresher) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.refresh(false)
	}()
	r.cron.Start()
}

// Stop cancels in-flight fetches and waits for them to return.
func (r *Refresher) Stop() {
	log.Info("shutting down refresher")
	r.cancel()
	<-r.cron.Stop().Done()
	r.wg.Wait()
}

func (r *Refresher) refresh(force bool) {
	ctx, cancel := context.WithTimeout(r.ctx, refreshTimeout)
	defer cancel()

	start := time.Now()
	n, err := r.catalog.Refresh(ctx, force)
	if err != nil {
		log.WithError(err).Error("catalog refresh failed")
		return
	}
	log.WithFields(log.Fields{
		"episodes": n,
		"took":     time.Since(start).Round(time.Millisecond),
	}).Info("catalog refreshed")
}
