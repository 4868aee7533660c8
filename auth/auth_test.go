package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/greenscore/auth"
	"github.com/xraph/greenscore/types"
)

func TestContextAuthorizer(t *testing.T) {
	authz := auth.ContextAuthorizer{}
	alice := types.Address("GALICE")

	tests := []struct {
		name    string
		ctx     context.Context
		addr    types.Address
		wantErr bool
	}{
		{"No principal", context.Background(), alice, true},
		{"Matching principal", auth.WithPrincipal(context.Background(), alice), alice, false},
		{"Other principal", auth.WithPrincipal(context.Background(), "GBOB"), alice, true},
		{"Empty claimed address", auth.WithPrincipal(context.Background(), alice), "", true},
		{"Empty principal", auth.WithPrincipal(context.Background(), ""), alice, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authz.RequireAuth(tt.ctx, tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("RequireAuth: err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}

	if err := authz.RequireAuth(context.Background(), alice); !errors.Is(err, auth.ErrNoPrincipal) {
		t.Errorf("expected ErrNoPrincipal, got %v", err)
	}
}

func TestJWTVerifierRoundTrip(t *testing.T) {
	v, err := auth.NewJWTVerifier([]byte("test-secret"), "greenscore")
	if err != nil {
		t.Fatal(err)
	}

	token, err := v.Issue("GALICE", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	addr, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if addr != "GALICE" {
		t.Errorf("subject: got %q, want GALICE", addr)
	}
}

func TestJWTVerifierRejects(t *testing.T) {
	v, _ := auth.NewJWTVerifier([]byte("test-secret"), "greenscore")
	other, _ := auth.NewJWTVerifier([]byte("other-secret"), "greenscore")
	wrongIssuer, _ := auth.NewJWTVerifier([]byte("test-secret"), "someone-else")

	forged, _ := other.Issue("GALICE", time.Minute)
	expired, _ := v.Issue("GALICE", -time.Minute)
	foreign, _ := wrongIssuer.Issue("GALICE", time.Minute)
	anonymous, _ := v.Issue("", time.Minute)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"expired":      expired,
		"wrong issuer": foreign,
		"no subject":   anonymous,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(token); err == nil {
				t.Error("expected verification to fail")
			}
		})
	}

	if _, err := auth.NewJWTVerifier(nil, ""); err == nil {
		t.Error("expected error for empty secret")
	}
}
