package stats

import "context"

// Store is the stats half of a ledger transaction.
type Store interface {
	// GetStats returns greenscore.ErrStatsNotFound before the first write.
	GetStats(ctx context.Context) (*Stats, error)
	PutStats(ctx context.Context, s *Stats) error
}
