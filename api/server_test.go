package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xraph/greenscore"
	"github.com/xraph/greenscore/api"
	"github.com/xraph/greenscore/auth"
	"github.com/xraph/greenscore/clock"
	"github.com/xraph/greenscore/record"
	"github.com/xraph/greenscore/stats"
	"github.com/xraph/greenscore/store"
	"github.com/xraph/greenscore/store/memory"
	"github.com/xraph/greenscore/types"
)

func init() { gin.SetMode(gin.TestMode) }

type fixture struct {
	handler  http.Handler
	store    *memory.Store
	verifier *auth.JWTVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := memory.New()
	l := greenscore.New(s,
		greenscore.WithClock(clock.NewManual(1_700_000_000)),
		greenscore.WithLogger(logger),
	)
	v, err := auth.NewJWTVerifier([]byte("test-secret"), "greenscore")
	if err != nil {
		t.Fatal(err)
	}
	srv := api.New(l, v, api.WithLogger(logger), api.WithAllowOrigins("http://localhost:3000"))
	return &fixture{handler: srv.Handler(), store: s, verifier: v}
}

func (f *fixture) token(t *testing.T, addr types.Address) string {
	t.Helper()
	tok, err := f.verifier.Issue(addr, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestRecordLifecycle(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "GALICE")
	bob := f.token(t, "GBOB")

	w := f.do(t, http.MethodPost, "/records",
		`{"entity_name":"Acme","entity_type":"Company","carbon_emission":"1500"}`, alice)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	if got := decode[map[string]uint64](t, w)["entity_id"]; got != 1 {
		t.Fatalf("entity_id: got %d, want 1", got)
	}

	w = f.do(t, http.MethodPost, "/records/1/verify", "", bob)
	if w.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", w.Code, w.Body.String())
	}
	if r := decode[record.Record](t, w); !r.VerificationStatus {
		t.Error("record not verified")
	}

	w = f.do(t, http.MethodPut, "/records/1/emission", `{"carbon_emission":900}`, bob)
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	r := decode[record.Record](t, w)
	if r.VerificationStatus || !r.CarbonEmission.Equal(types.KgCO2(900)) {
		t.Errorf("after update: %+v", r)
	}

	w = f.do(t, http.MethodGet, "/stats", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	st := decode[stats.Stats](t, w)
	if st.TotalRecords != 1 || st.VerifiedRecords != 0 || st.CompanyCount != 1 ||
		!st.TotalEmissionsTracked.Equal(types.KgCO2(900)) {
		t.Errorf("stats: %+v", st)
	}

	w = f.do(t, http.MethodGet, "/stats/reconcile", "", "")
	if rep := decode[greenscore.ReconcileReport](t, w); !rep.Consistent {
		t.Errorf("reconcile: %+v", rep)
	}
}

func TestGetRecordMissReturnsSentinel(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/records/42", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	r := decode[record.Record](t, w)
	if r.EntityID != 0 || r.EntityName != record.NotFoundLabel {
		t.Errorf("sentinel: %+v", r)
	}
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "GALICE")

	seed := func(t *testing.T) {
		t.Helper()
		w := f.do(t, http.MethodPost, "/records",
			`{"entity_name":"Max","entity_type":"Product","carbon_emission":"`+types.MaxEmission().String()+`"}`, alice)
		if w.Code != http.StatusCreated {
			t.Fatalf("seed: %d %s", w.Code, w.Body.String())
		}
		if w := f.do(t, http.MethodPost, "/records/1/verify", "", alice); w.Code != http.StatusOK {
			t.Fatalf("seed verify: %d %s", w.Code, w.Body.String())
		}
	}
	seed(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		status int
		code   string
	}{
		{"no token", http.MethodPost, "/records", `{"entity_name":"a","entity_type":"Company","carbon_emission":1}`, "", 401, "unauthorized"},
		{"bad token", http.MethodPost, "/records", `{"entity_name":"a","entity_type":"Company","carbon_emission":1}`, "garbage", 401, "unauthorized"},
		{"negative emission", http.MethodPost, "/records", `{"entity_name":"a","entity_type":"Company","carbon_emission":-1}`, alice, 400, "validation_failed"},
		{"bad entity type", http.MethodPost, "/records", `{"entity_name":"a","entity_type":"company","carbon_emission":1}`, alice, 400, "validation_failed"},
		{"missing emission", http.MethodPost, "/records", `{"entity_name":"a","entity_type":"Company"}`, alice, 400, "invalid_request"},
		{"emission beyond 128 bits", http.MethodPost, "/records", `{"entity_name":"a","entity_type":"Company","carbon_emission":"1e40"}`, alice, 400, "invalid_request"},
		{"total overflow", http.MethodPost, "/records", `{"entity_name":"a","entity_type":"Company","carbon_emission":1}`, alice, 422, "emission_overflow"},
		{"already verified", http.MethodPost, "/records/1/verify", "", alice, 409, "already_verified"},
		{"verify missing", http.MethodPost, "/records/7/verify", "", alice, 404, "not_found"},
		{"update missing", http.MethodPut, "/records/7/emission", `{"carbon_emission":5}`, alice, 404, "not_found"},
		{"bad id", http.MethodGet, "/records/abc", "", "", 400, "invalid_request"},
		{"bad list filter", http.MethodGet, "/records?verified=maybe", "", "", 400, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body, tt.token)
			if w.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			env := decode[api.ErrorEnvelope](t, w)
			if env.Error.Code != tt.code {
				t.Errorf("code: got %q, want %q", env.Error.Code, tt.code)
			}
			if env.Error.RequestID == "" {
				t.Error("error envelope has no request id")
			}
		})
	}
}

func TestListRecords(t *testing.T) {
	f := newFixture(t)
	alice := f.token(t, "GALICE")
	for _, body := range []string{
		`{"entity_name":"A","entity_type":"Company","carbon_emission":1}`,
		`{"entity_name":"B","entity_type":"Product","carbon_emission":2}`,
		`{"entity_name":"C","entity_type":"Company","carbon_emission":3}`,
	} {
		if w := f.do(t, http.MethodPost, "/records", body, alice); w.Code != http.StatusCreated {
			t.Fatalf("register: %d %s", w.Code, w.Body.String())
		}
	}
	f.do(t, http.MethodPost, "/records/3/verify", "", alice)

	tests := []struct {
		query string
		want  []uint64
	}{
		{"", []uint64{1, 2, 3}},
		{"?entity_type=Company", []uint64{1, 3}},
		{"?verified=true", []uint64{3}},
		{"?offset=1&limit=1", []uint64{2}},
		{"?offset=10", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/records"+tt.query, "", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status %d", w.Code)
			}
			body := decode[struct {
				Records []record.Record `json:"records"`
			}](t, w)
			if len(body.Records) != len(tt.want) {
				t.Fatalf("records: got %d, want %d", len(body.Records), len(tt.want))
			}
			for i, r := range body.Records {
				if r.EntityID != tt.want[i] {
					t.Errorf("record %d: got id %d, want %d", i, r.EntityID, tt.want[i])
				}
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("generated request id missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("echoed request id: got %q", got)
	}
}

func TestHealthzStoreClosed(t *testing.T) {
	f := newFixture(t)
	_ = f.store.Close()

	w := f.do(t, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

// viewCounter counts read transactions.
type viewCounter struct {
	*memory.Store
	views atomic.Int32
}

func (v *viewCounter) View(ctx context.Context, fn func(tx store.Tx) error) error {
	v.views.Add(1)
	return v.Store.View(ctx, fn)
}

func TestMutationsRespondWithCommittedRecord(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &viewCounter{Store: memory.New()}
	l := greenscore.New(s,
		greenscore.WithClock(clock.NewManual(1_700_000_000)),
		greenscore.WithLogger(logger),
	)
	v, err := auth.NewJWTVerifier([]byte("test-secret"), "greenscore")
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{handler: api.New(l, v, api.WithLogger(logger)).Handler(), store: s.Store, verifier: v}
	alice := f.token(t, "GALICE")

	if w := f.do(t, http.MethodPost, "/records",
		`{"entity_name":"Acme","entity_type":"Company","carbon_emission":10}`, alice); w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}

	w := f.do(t, http.MethodPost, "/records/1/verify", "", alice)
	if w.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", w.Code, w.Body.String())
	}
	if r := decode[record.Record](t, w); r.EntityID != 1 || !r.VerificationStatus {
		t.Errorf("verify response: %+v", r)
	}

	w = f.do(t, http.MethodPut, "/records/1/emission", `{"carbon_emission":25}`, alice)
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	if r := decode[record.Record](t, w); r.VerificationStatus || !r.CarbonEmission.Equal(types.KgCO2(25)) {
		t.Errorf("update response: %+v", r)
	}

	if n := s.views.Load(); n != 0 {
		t.Errorf("read transactions: got %d, want 0", n)
	}
}
