// Package export serialises point-in-time ledger snapshots and ships them
// to durable sinks (local files or S3-compatible object storage).
package export

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/greenscore/id"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
)

// FormatVersion is bumped whenever the snapshot layout changes.
const FormatVersion = 1

// Snapshot is a consistent copy of every record plus the stored stats,
// read inside one transaction.
type Snapshot struct {
	Version     int              `json:"version"`
	ID          id.ID            `json:"id"`
	TakenAt     uint64           `json:"taken_at"`
	LiveUntil   uint64           `json:"live_until"`
	RecordCount uint64           `json:"record_count"`
	Stats       *stats.Stats     `json:"stats"`
	Records     []*record.Record `json:"records"`
}

// Consistent reports whether the stored stats match a recompute over the
// snapshot's records.
func (s *Snapshot) Consistent() (bool, error) {
	recomputed, err := stats.Recompute(s.Records)
	if err != nil {
		return false, err
	}
	return recomputed.Equal(s.Stats), nil
}

// Key returns the object key the snapshot is stored under.
func (s *Snapshot) Key() string {
	return fmt.Sprintf("snapshot-%d-%s.json", s.TakenAt, s.ID)
}

// Encode renders s as indented JSON.
func Encode(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("export: decode snapshot: %w", err)
	}
	if s.Version != FormatVersion {
		return nil, fmt.Errorf("export: unsupported snapshot version %d", s.Version)
	}
	if s.Stats == nil {
		s.Stats = stats.Zero()
	}
	return &s, nil
}
