package export_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/xraph/greenscore/export"
	"github.com/xraph/greenscore/id"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/types"
)

func sampleSnapshot() *export.Snapshot {
	records := []*record.Record{
		{EntityID: 1, EntityName: "Acme", EntityType: record.EntityCompany, CarbonEmission: types.KgCO2(100), VerificationStatus: true, Timestamp: 10},
		{EntityID: 2, EntityName: "Widget", EntityType: record.EntityProduct, CarbonEmission: types.MustParseEmission("170141183460469231731687303715884105000"), Timestamp: 11},
	}
	st, _ := stats.Recompute(records)
	return &export.Snapshot{
		Version:     export.FormatVersion,
		ID:          id.NewSnapshotID(),
		TakenAt:     12,
		LiveUntil:   25012,
		RecordCount: 2,
		Stats:       st,
		Records:     records,
	}
}

type staticSource struct {
	snap *export.Snapshot
	err  error
}

func (s staticSource) Snapshot(context.Context) (*export.Snapshot, error) { return s.snap, s.err }

type memorySink struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memorySink) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}

func TestEncodeDecode(t *testing.T) {
	snap := sampleSnapshot()
	data, err := export.Encode(snap)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := export.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ID.String() != snap.ID.String() {
		t.Errorf("ID: got %s, want %s", got.ID, snap.ID)
	}
	if len(got.Records) != 2 || !got.Records[1].CarbonEmission.Equal(snap.Records[1].CarbonEmission) {
		t.Errorf("records did not survive encoding: %+v", got.Records)
	}
	if !got.Stats.Equal(snap.Stats) {
		t.Errorf("stats: got %+v, want %+v", got.Stats, snap.Stats)
	}
	ok, err := got.Consistent()
	if err != nil || !ok {
		t.Errorf("Consistent: got %v, %v", ok, err)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	if _, err := export.Decode([]byte(`{"version":99}`)); err == nil {
		t.Error("expected error for unknown version")
	}
	if _, err := export.Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestConsistentDetectsDrift(t *testing.T) {
	snap := sampleSnapshot()
	snap.Stats.VerifiedRecords++
	ok, err := snap.Consistent()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected drift to be detected")
	}
}

func TestExporter(t *testing.T) {
	snap := sampleSnapshot()
	sink := &memorySink{}
	exp := export.NewExporter(staticSource{snap: snap}, sink, export.WithPrefix("prod"))

	key, err := exp.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasPrefix(key, "prod/snapshot-12-snap_") || !strings.HasSuffix(key, ".json") {
		t.Errorf("unexpected key %q", key)
	}
	if _, ok := sink.objects[key]; !ok {
		t.Errorf("sink has no object %q", key)
	}

	failing := export.NewExporter(staticSource{err: errors.New("store down")}, sink)
	if _, err := failing.Export(context.Background()); err == nil {
		t.Error("expected source error to propagate")
	}
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := export.NewFileSink(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := sink.Put(context.Background(), "nested/snap.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "nested", "snap.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("content: got %s", data)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

// s3Recorder is a fake S3 endpoint that accepts PutObject.
type s3Recorder struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func (r *s3Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.puts[strings.TrimPrefix(req.URL.Path, "/")] = body
	r.mu.Unlock()
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {"\"etag\""}}}, nil
}

func TestS3Sink(t *testing.T) {
	rt := &s3Recorder{puts: make(map[string][]byte)}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatal(err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})

	snap := sampleSnapshot()
	exp := export.NewExporter(staticSource{snap: snap}, export.NewS3SinkFromClient(client, "ledger-bucket"))
	key, err := exp.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	body, ok := rt.puts["ledger-bucket/"+key]
	if !ok {
		t.Fatalf("no PutObject for %q; got %v", key, rt.puts)
	}
	if !bytes.Contains(body, []byte(snap.ID.String())) {
		t.Error("uploaded body does not contain the snapshot id")
	}
}

func TestNewS3SinkRequiresBucket(t *testing.T) {
	if _, err := export.NewS3Sink(context.Background(), export.S3Config{}); err == nil {
		t.Error("expected error without bucket")
	}
}
