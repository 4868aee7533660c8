package mongo

import (
	"fmt"

	"github.com/xraph/grove"

	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/types"
)

// Document IDs in the meta collection.
const (
	docRecordCount = "REC_CNT"
	docStats       = "STATS"
	docLiveUntil   = "LIVE_UNTIL"
	docLock        = "LOCK"
)

// Emission amounts are stored as decimal strings; BSON has no 128-bit
// integer type.
type recordModel struct {
	grove.BaseModel `grove:"table:greenscore_records"`

	EntityID           int64  `grove:"entity_id,pk"        bson:"_id"`
	EntityName         string `grove:"entity_name"         bson:"entity_name"`
	EntityType         string `grove:"entity_type"         bson:"entity_type"`
	CarbonEmission     string `grove:"carbon_emission"     bson:"carbon_emission"`
	VerificationStatus bool   `grove:"verification_status" bson:"verification_status"`
	Timestamp          int64  `grove:"timestamp"           bson:"timestamp"`
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
	e, err := types.ParseEmission(m.CarbonEmission)
	if err != nil {
		return nil, fmt.Errorf("greenscore/mongo: record %d: %w", m.EntityID, err)
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

// counterModel holds REC_CNT and LIVE_UNTIL.
type counterModel struct {
	grove.BaseModel `grove:"table:greenscore_meta"`

	ID    string `grove:"id,pk" bson:"_id"`
	Value int64  `grove:"value" bson:"value"`
}

// lockModel is bumped at the start of every update transaction.
type lockModel struct {
	grove.BaseModel `grove:"table:greenscore_meta"`

	ID  string `grove:"id,pk" bson:"_id"`
	Seq int64  `grove:"seq"   bson:"seq"`
}

type statsModel struct {
	grove.BaseModel `grove:"table:greenscore_meta"`

	ID                    string `grove:"id,pk"                   bson:"_id"`
	TotalRecords          int64  `grove:"total_records"           bson:"total_records"`
	VerifiedRecords       int64  `grove:"verified_records"        bson:"verified_records"`
	TotalEmissionsTracked string `grove:"total_emissions_tracked" bson:"total_emissions_tracked"`
	CompanyCount          int64  `grove:"company_count"           bson:"company_count"`
	ProductCount          int64  `grove:"product_count"           bson:"product_count"`
}

func toStatsModel(s *stats.Stats) *statsModel {
	return &statsModel{
		ID:                    docStats,
		TotalRecords:          int64(s.TotalRecords),
		VerifiedRecords:       int64(s.VerifiedRecords),
		TotalEmissionsTracked: s.TotalEmissionsTracked.String(),
		CompanyCount:          int64(s.CompanyCount),
		ProductCount:          int64(s.ProductCount),
	}
}

func fromStatsModel(m *statsModel) (*stats.Stats, error) {
	total, err := types.ParseEmission(m.TotalEmissionsTracked)
	if err != nil {
		return nil, fmt.Errorf("greenscore/mongo: stats: %w", err)
	}
	return &stats.Stats{
		TotalRecords:          uint64(m.TotalRecords),
		VerifiedRecords:       uint64(m.VerifiedRecords),
		TotalEmissionsTracked: total,
		CompanyCount:          uint64(m.CompanyCount),
		ProductCount:          uint64(m.ProductCount),
	}, nil
}
