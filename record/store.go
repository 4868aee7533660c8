package record

import "context"

// Store is the record half of a ledger transaction.
type Store interface {
	// RecordCount returns the last assigned entity ID, 0 when none.
	RecordCount(ctx context.Context) (uint64, error)
	SetRecordCount(ctx context.Context, n uint64) error

	// GetRecord returns greenscore.ErrRecordNotFound when no record is stored under entityID.
	GetRecord(ctx context.Context, entityID uint64) (*Record, error)
	PutRecord(ctx context.Context, r *Record) error
	ListRecords(ctx context.Context, opts ListOpts) ([]*Record, error)
}

// ListOpts filters and pages ListRecords. Results are ordered by EntityID ascending.
type ListOpts struct {
	EntityType EntityType
	Verified   *bool
	Limit      int
	Offset     int
}

// Match reports whether r passes the filters in opts (paging is ignored).
func (o ListOpts) Match(r *Record) bool {
	if o.EntityType != "" && r.EntityType != o.EntityType {
		return false
	}
	if o.Verified != nil && r.VerificationStatus != *o.Verified {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already filtered, ordered slice.
func Page(records []*Record, opts ListOpts) []*Record {
	start := max(opts.Offset, 0)
	if start > len(records) {
		start = len(records)
	}
	end := start + opts.Limit
	if opts.Limit <= 0 || end > len(records) {
		end = len(records)
	}
	return records[start:end]
}
