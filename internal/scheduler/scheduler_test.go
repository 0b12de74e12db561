package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/festival-boxoffice/internal/config"
	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

type fakeSales struct {
	stale    []model.Sale
	cutoff   time.Time
	released []string
	fail     string
}

func (f *fakeSales) ListStaleOnline(_ context.Context, cutoff time.Time) ([]model.Sale, error) {
	f.cutoff = cutoff
	return f.stale, nil
}

func (f *fakeSales) Release(_ context.Context, s model.Sale, _ time.Time) (bool, error) {
	if s.UUID == f.fail {
		return false, errors.New("deadlock")
	}
	f.released = append(f.released, s.UUID)
	return true, nil
}

func TestReleaseStaleSales(t *testing.T) {
	now := time.Date(2026, 6, 12, 12, 0, 0, 0, time.UTC)
	sales := &fakeSales{stale: []model.Sale{{UUID: "a"}, {UUID: "b"}, {UUID: "c"}}, fail: "b"}
	s, err := New(config.SchedulerConfig{StaleSaleAfter: 45 * time.Minute, StaleSaleEvery: time.Minute}, sales, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown()
	s.now = func() time.Time { return now }

	n, err := s.ReleaseStaleSales(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(sales.released) != 2 {
		t.Fatalf("released %d (%v)", n, sales.released)
	}
	if !sales.cutoff.Equal(now.Add(-45 * time.Minute)) {
		t.Errorf("cutoff = %s", sales.cutoff)
	}
}
