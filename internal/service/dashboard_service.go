package service

import (
	"context"
	"log/slog"

	"ledger-service/internal/cache"
	"ledger-service/internal/domain"
)

type DashboardService struct {
	store  domain.Store
	cache  cache.DashboardCache
	logger *slog.Logger
}

func NewDashboardService(store domain.Store, c cache.DashboardCache, logger *slog.Logger) *DashboardService {
	if c == nil {
		c = cache.Noop{}
	}
	return &DashboardService{
		store:  store,
		cache:  c,
		logger: logger,
	}
}

// Dashboard returns the cached aggregate when present, otherwise computes it
// with a single query and caches the result. The result is only cached under
// the generation read before the query ran.
func (s *DashboardService) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	d, generation, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn("Dashboard cache read failed", "error", err)
	} else if ok {
		return d, nil
	}

	d, err = s.store.Transactions().Dashboard(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}

	if err := s.cache.Set(ctx, d, generation); err != nil {
		s.logger.Warn("Dashboard cache write failed", "error", err)
	}
	return d, nil
}
