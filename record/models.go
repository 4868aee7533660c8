package record

import "github.com/xraph/greenscore/types"

// EntityType classifies the entity an emission claim is about.
type EntityType string

const (
	EntityCompany EntityType = "Company"
	EntityProduct EntityType = "Product"
)

// NotFoundLabel is the name and type carried by the sentinel record.
const NotFoundLabel = "Not_Found"

// Valid reports whether t is one of the two accepted literals. The
// comparison is exact: "company" or " Product" are rejected.
func (t EntityType) Valid() bool {
	return t == EntityCompany || t == EntityProduct
}

// Record is the stored emission claim for one entity.
type Record struct {
	EntityID           uint64         `json:"entity_id"`
	EntityName         string         `json:"entity_name"`
	EntityType         EntityType     `json:"entity_type"`
	CarbonEmission     types.Emission `json:"carbon_emission"`
	VerificationStatus bool           `json:"verification_status"`
	Timestamp          uint64         `json:"timestamp"`
}

// NotFound returns the sentinel record handed out when a lookup misses.
// Its EntityID is 0, which is never assigned to a stored record.
func NotFound() *Record {
	return &Record{
		EntityID:   0,
		EntityName: NotFoundLabel,
		EntityType: NotFoundLabel,
	}
}

// IsNotFound reports whether r is the sentinel record.
func (r *Record) IsNotFound() bool { return r == nil || r.EntityID == 0 }

// Clone returns a copy of r. Emission is an immutable value type, so a
// shallow copy is a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
