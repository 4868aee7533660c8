package stats_test

import (
	"errors"
	"testing"

	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/types"
)

func TestRecompute(t *testing.T) {
	records := []*record.Record{
		{EntityID: 1, EntityType: record.EntityCompany, CarbonEmission: types.KgCO2(100), VerificationStatus: true},
		{EntityID: 2, EntityType: record.EntityProduct, CarbonEmission: types.KgCO2(50)},
		{EntityID: 3, EntityType: record.EntityProduct, CarbonEmission: types.KgCO2(0), VerificationStatus: true},
	}

	got, err := stats.Recompute(records)
	if err != nil {
		t.Fatal(err)
	}
	want := &stats.Stats{
		TotalRecords:          3,
		VerifiedRecords:       2,
		TotalEmissionsTracked: types.KgCO2(150),
		CompanyCount:          1,
		ProductCount:          2,
	}
	if !got.Equal(want) {
		t.Errorf("got %+v, want %+v", got, want)
	}

	empty, err := stats.Recompute(nil)
	if err != nil || !empty.Equal(stats.Zero()) {
		t.Errorf("empty: %+v, %v", empty, err)
	}
}

func TestRecomputeOverflow(t *testing.T) {
	records := []*record.Record{
		{EntityID: 1, EntityType: record.EntityCompany, CarbonEmission: types.MaxEmission()},
		{EntityID: 2, EntityType: record.EntityCompany, CarbonEmission: types.KgCO2(1)},
	}
	if _, err := stats.Recompute(records); !errors.Is(err, types.ErrOutOfRange) {
		t.Errorf("got %v, want ErrOutOfRange", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := &stats.Stats{TotalRecords: 1}
	c := s.Clone()
	c.TotalRecords++
	if s.TotalRecords != 1 {
		t.Error("clone shares state with original")
	}
	if (*stats.Stats)(nil).Clone() != nil {
		t.Error("nil clone should be nil")
	}
}
