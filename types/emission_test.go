package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEmissionParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"Zero", "0", "0", nil},
		{"Positive", "150", "150", nil},
		{"Negative", "-42", "-42", nil},
		{"Exponent", "1e3", "1000", nil},
		{"Max", "170141183460469231731687303715884105727", "170141183460469231731687303715884105727", nil},
		{"Min", "-170141183460469231731687303715884105728", "-170141183460469231731687303715884105728", nil},
		{"Above max", "170141183460469231731687303715884105728", "", ErrOutOfRange},
		{"Below min", "-170141183460469231731687303715884105729", "", ErrOutOfRange},
		{"Fraction", "1.5", "", ErrNotInteger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEmission(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("String: got %s, want %s", got.String(), tt.want)
			}
		})
	}

	if _, err := ParseEmission("ten"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestEmissionArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() (Emission, error)
		expected Emission
	}{
		{"Add", func() (Emission, error) { return KgCO2(100).Add(KgCO2(50)) }, KgCO2(150)},
		{"Sub", func() (Emission, error) { return KgCO2(100).Sub(KgCO2(150)) }, KgCO2(-50)},
		{"Neg", func() (Emission, error) { return KgCO2(7).Neg() }, KgCO2(-7)},
		{"Add zero value", func() (Emission, error) { return Emission{}.Add(KgCO2(3)) }, KgCO2(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.op()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestEmissionOverflow(t *testing.T) {
	if _, err := MaxEmission().Add(KgCO2(1)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("max+1: expected ErrOutOfRange, got %v", err)
	}
	if _, err := MinEmission().Sub(KgCO2(1)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("min-1: expected ErrOutOfRange, got %v", err)
	}
	if _, err := MinEmission().Neg(); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("-min: expected ErrOutOfRange, got %v", err)
	}
}

func TestEmissionPredicates(t *testing.T) {
	tests := []struct {
		name       string
		e          Emission
		isZero     bool
		isNegative bool
		sign       int
	}{
		{"Zero value", Emission{}, true, false, 0},
		{"Zero", KgCO2(0), true, false, 0},
		{"Positive", KgCO2(100), false, false, 1},
		{"Negative", KgCO2(-100), false, true, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.IsZero(); got != tt.isZero {
				t.Errorf("IsZero: got %v, want %v", got, tt.isZero)
			}
			if got := tt.e.IsNegative(); got != tt.isNegative {
				t.Errorf("IsNegative: got %v, want %v", got, tt.isNegative)
			}
			if got := tt.e.Sign(); got != tt.sign {
				t.Errorf("Sign: got %v, want %v", got, tt.sign)
			}
		})
	}
}

func TestEmissionInt64(t *testing.T) {
	if v, ok := KgCO2(42).Int64(); !ok || v != 42 {
		t.Errorf("Int64: got (%d, %v), want (42, true)", v, ok)
	}
	if _, ok := MaxEmission().Int64(); ok {
		t.Error("Int64: expected max emission not to fit")
	}
}

func TestEmissionJSON(t *testing.T) {
	data, err := json.Marshal(KgCO2(4900))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `"4900"` {
		t.Errorf("JSON: got %s, want %q", data, "4900")
	}

	for _, in := range []string{`"4900"`, `4900`} {
		var e Emission
		if err := json.Unmarshal([]byte(in), &e); err != nil {
			t.Fatalf("Unmarshal %s: %v", in, err)
		}
		if !e.Equal(KgCO2(4900)) {
			t.Errorf("Unmarshal %s: got %v", in, e)
		}
	}

	var e Emission
	if err := json.Unmarshal([]byte(`"0.5"`), &e); !errors.Is(err, ErrNotInteger) {
		t.Errorf("expected ErrNotInteger, got %v", err)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Emission
		expected Emission
	}{
		{"Empty", nil, ZeroEmission()},
		{"Single", []Emission{KgCO2(100)}, KgCO2(100)},
		{"Multiple", []Emission{KgCO2(100), KgCO2(200), KgCO2(300)}, KgCO2(600)},
		{"With negatives", []Emission{KgCO2(100), KgCO2(-50), KgCO2(200)}, KgCO2(250)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Sum(tt.values...)
			if err != nil {
				t.Fatalf("Sum error: %v", err)
			}
			if !result.Equal(tt.expected) {
				t.Errorf("Sum: got %v, want %v", result, tt.expected)
			}
		})
	}

	if _, err := Sum(MaxEmission(), KgCO2(1)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Sum overflow: expected ErrOutOfRange, got %v", err)
	}
}

func TestAddress(t *testing.T) {
	if got := ParseAddress("  GABC  "); got != "GABC" {
		t.Errorf("ParseAddress: got %q", got)
	}
	if !ParseAddress("   ").IsZero() {
		t.Error("expected blank address to be zero")
	}
}

func BenchmarkEmissionAdd(b *testing.B) {
	e1 := KgCO2(100)
	e2 := KgCO2(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e1.Add(e2)
	}
}
