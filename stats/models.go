package stats

import (
	"fmt"

	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/types"
)

// Stats is the platform-wide aggregate over all records. It is maintained
// incrementally by the ledger and must always equal Recompute over the
// full record set.
type Stats struct {
	TotalRecords          uint64         `json:"total_records"`
	VerifiedRecords       uint64         `json:"verified_records"`
	TotalEmissionsTracked types.Emission `json:"total_emissions_tracked"`
	CompanyCount          uint64         `json:"company_count"`
	ProductCount          uint64         `json:"product_count"`
}

// Zero returns all-zero stats, the value used before anything is stored.
func Zero() *Stats { return &Stats{} }

// Clone returns a copy of s.
func (s *Stats) Clone() *Stats {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Equal reports whether two stats hold identical counters.
func (s *Stats) Equal(o *Stats) bool {
	return s.TotalRecords == o.TotalRecords &&
		s.VerifiedRecords == o.VerifiedRecords &&
		s.TotalEmissionsTracked.Equal(o.TotalEmissionsTracked) &&
		s.CompanyCount == o.CompanyCount &&
		s.ProductCount == o.ProductCount
}

// Recompute derives stats from scratch over records.
func Recompute(records []*record.Record) (*Stats, error) {
	s := Zero()
	for _, r := range records {
		s.TotalRecords++
		if r.VerificationStatus {
			s.VerifiedRecords++
		}
		switch r.EntityType {
		case record.EntityCompany:
			s.CompanyCount++
		case record.EntityProduct:
			s.ProductCount++
		}
		total, err := s.TotalEmissionsTracked.Add(r.CarbonEmission)
		if err != nil {
			return nil, fmt.Errorf("stats: recompute record %d: %w", r.EntityID, err)
		}
		s.TotalEmissionsTracked = total
	}
	return s, nil
}
