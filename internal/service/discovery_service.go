package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/orbitlabs/orbit-api/internal/model"
)

// OrderFinder is the slice of the order repository discovery needs.
type OrderFinder interface {
	FindPending(ctx context.Context, limit int) ([]model.Order, int, error)
	ResetStuck(ctx context.Context, timeout time.Duration) ([]model.Order, error)
}

// DiscoveryService locates orders that are ready for processing. Every
// search is preceded by a stuck-order sweep so orders abandoned by a dead
// workflow re-enter the queue instead of rotting in "processing".
type DiscoveryService struct {
	orders       OrderFinder
	batchSize    int
	stuckTimeout time.Duration
}

func NewDiscoveryService(orders OrderFinder, batchSize, stuckTimeoutMinutes int) *DiscoveryService {
	if batchSize <= 0 {
		batchSize = 10
	}
	if stuckTimeoutMinutes <= 0 {
		stuckTimeoutMinutes = 30
	}
	return &DiscoveryService{
		orders:       orders,
		batchSize:    batchSize,
		stuckTimeout: time.Duration(stuckTimeoutMinutes) * time.Minute,
	}
}

// FindPendingOrders sweeps stuck orders, then returns paid orders still in
// the initializing stage, oldest first, capped at the batch size.
func (s *DiscoveryService) FindPendingOrders(ctx context.Context) (*model.DiscoveryResult, error) {
	stuck, err := s.orders.ResetStuck(ctx, s.stuckTimeout)
	if err != nil {
		return nil, fmt.Errorf("stuck order sweep: %w", err)
	}
	for _, o := range stuck {
		log.Warnf("discovery reset stuck order %s", o.ID)
	}

	found, total, err := s.orders.FindPending(ctx, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("find pending orders: %w", err)
	}

	return &model.DiscoveryResult{
		FoundOrders:        found,
		TotalPendingOrders: total,
		StuckOrders:        stuck,
	}, nil
}
