package postgres

import (
	"github.com/xraph/grove"

	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
)

// metaModel holds REC_CNT and LIVE_UNTIL.
type metaModel struct {
	grove.BaseModel `grove:"table:greenscore_meta"`

	Key   string `grove:"key,pk"`
	Value int64  `grove:"value"`
}

// recordModel is the row shape of greenscore_records. BIGINT columns are
// signed in PostgreSQL; IDs and timestamps stay far below 2^63. Emissions
// travel as decimal text into NUMERIC(39, 0).
type recordModel struct {
	grove.BaseModel `grove:"table:greenscore_records"`

	EntityID           int64  `grove:"entity_id,pk"`
	EntityName         string `grove:"entity_name"`
	EntityType         string `grove:"entity_type"`
	CarbonEmission     string `grove:"carbon_emission"`
	VerificationStatus bool   `grove:"verification_status"`
	Timestamp          int64  `grove:"timestamp"`
}

func toRecordModel(r *record.Record) *recordModel {
	return &recordModel{
		EntityID:           int64(r.EntityID),
		EntityName:         r.EntityName,
		EntityType:         string(r.EntityType),
		CarbonEmission:     r.CarbonEmission.String(),
		VerificationStatus: r.VerificationStatus,
		Timestamp:          int64(r.Timestamp),
	}
}

func fromRecordModel(m *recordModel) (*record.Record, error) {
	e, err := parseEmission("carbon_emission", m.CarbonEmission)
	if err != nil {
		return nil, err
	}
	return &record.Record{
		EntityID:           uint64(m.EntityID),
		EntityName:         m.EntityName,
		EntityType:         record.EntityType(m.EntityType),
		CarbonEmission:     e,
		VerificationStatus: m.VerificationStatus,
		Timestamp:          uint64(m.Timestamp),
	}, nil
}

// statsModel is the single row (id = 1) of greenscore_stats.
type statsModel struct {
	grove.BaseModel `grove:"table:greenscore_stats"`

	ID                    int16  `grove:"id,pk"`
	TotalRecords          int64  `grove:"total_records"`
	VerifiedRecords       int64  `grove:"verified_records"`
	TotalEmissionsTracked string `grove:"total_emissions_tracked"`
	CompanyCount          int64  `grove:"company_count"`
	ProductCount          int64  `grove:"product_count"`
}

func toStatsModel(s *stats.Stats) *statsModel {
	return &statsModel{
		ID:                    1,
		TotalRecords:          int64(s.TotalRecords),
		VerifiedRecords:       int64(s.VerifiedRecords),
		TotalEmissionsTracked: s.TotalEmissionsTracked.String(),
		CompanyCount:          int64(s.CompanyCount),
		ProductCount:          int64(s.ProductCount),
	}
}

func fromStatsModel(m *statsModel) (*stats.Stats, error) {
	total, err := parseEmission("total_emissions_tracked", m.TotalEmissionsTracked)
	if err != nil {
		return nil, err
	}
	return &stats.Stats{
		TotalRecords:          uint64(m.TotalRecords),
		VerifiedRecords:       uint64(m.VerifiedRecords),
		TotalEmissionsTracked: total,
		CompanyCount:          uint64(m.CompanyCount),
		ProductCount:          uint64(m.ProductCount),
	}, nil
}
