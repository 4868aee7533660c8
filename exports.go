package greenscore

import (
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/types"
)

// Re-export common types for convenience so users don't have to import
// the types, record and stats packages.

// Emission is re-exported from types package.
type Emission = types.Emission

// Address is re-exported from types package.
type Address = types.Address

// CarbonRecord is re-exported from record package.
type CarbonRecord = record.Record

// PlatformStats is re-exported from stats package.
type PlatformStats = stats.Stats

// Entity types accepted by RegisterCarbonRecord.
const (
	Company = record.EntityCompany
	Product = record.EntityProduct
)

// Re-export Emission constructors
var (
	KgCO2             = types.KgCO2
	ParseEmission     = types.ParseEmission
	MustParseEmission = types.MustParseEmission
)
