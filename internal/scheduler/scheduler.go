// Package scheduler runs periodic housekeeping on the ledger.
package scheduler

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/iliyamo/festival-boxoffice/internal/config"
	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

// SaleStore is the part of SaleRepo the clean-up job needs.
type SaleStore interface {
	ListStaleOnline(ctx context.Context, cutoff time.Time) ([]model.Sale, error)
	Release(ctx context.Context, s model.Sale, now time.Time) (bool, error)
}

// Scheduler owns the gocron scheduler and its jobs.
type Scheduler struct {
	cron  gocron.Scheduler
	sales SaleStore
	cfg   config.SchedulerConfig
	log   logger.Logger
	now   func() time.Time
}

// New registers the jobs.  Nothing runs until Start.
func New(cfg config.SchedulerConfig, sales SaleStore, log logger.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	s := &Scheduler{cron: cron, sales: sales, cfg: cfg, log: log.With("component", "scheduler"), now: time.Now}
	_, err = cron.NewJob(
		gocron.DurationJob(cfg.StaleSaleEvery),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := s.ReleaseStaleSales(ctx); err != nil {
				s.log.Error("release stale sales failed", "error", err)
			}
		}),
		gocron.WithName("release-stale-online-sales"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error { return s.cron.Shutdown() }

// ReleaseStaleSales returns online sales left unpaid for longer than
// StaleSaleAfter to their owners' baskets.
func (s *Scheduler) ReleaseStaleSales(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.sales.ListStaleOnline(ctx, now.Add(-s.cfg.StaleSaleAfter))
	if err != nil {
		return 0, err
	}
	released := 0
	for _, sale := range stale {
		ok, err := s.sales.Release(ctx, sale, now)
		if err != nil {
			s.log.Error("release sale failed", "sale", sale.UUID, "error", err)
			continue
		}
		if ok {
			released++
		}
	}
	if released > 0 {
		s.log.Info("released stale online sales", "count", released)
	}
	return released, nil
}

// RepoSales adapts SaleRepo to SaleStore, re-checking each sale under a
// row lock so a payment confirmed meanwhile wins.
type RepoSales struct {
	Repo *repository.SaleRepo
}

// ListStaleOnline implements SaleStore.
func (r RepoSales) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]model.Sale, error) {
	return r.Repo.ListStaleOnline(ctx, cutoff)
}

// Release implements SaleStore.
func (r RepoSales) Release(ctx context.Context, s model.Sale, now time.Time) (bool, error) {
	released := false
	err := repository.WithTx(ctx, r.Repo.DB(), func(tx *sql.Tx) error {
		locked, err := r.Repo.GetByUUIDForUpdateTx(ctx, tx, s.FestivalID, s.UUID)
		if err != nil {
			return err
		}
		switch ledger.StateOf(locked) {
		case ledger.SaleComplete, ledger.SaleCancelled:
			return nil
		}
		released = true
		return r.Repo.AbandonOnlineTx(ctx, tx, &locked, now)
	})
	return released, err
}
