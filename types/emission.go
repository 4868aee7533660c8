// Package types provides common value types used across greenscore.
package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Emission is a carbon emission amount in whole kilograms of CO2.
// It carries the range of a signed 128-bit integer; all arithmetic is
// integer-only and range-checked.
//
// Examples:
//   - KgCO2(100)            = 100 kg CO2
//   - MustParseEmission("1") = 1 kg CO2
type Emission struct {
	d decimal.Decimal
}

var (
	// ErrOutOfRange is returned when a value does not fit a signed 128-bit integer.
	ErrOutOfRange = errors.New("emission: value out of 128-bit range")

	// ErrNotInteger is returned when a value has a fractional part.
	ErrNotInteger = errors.New("emission: value is not a whole number")
)

var (
	maxEmission = decimal.RequireFromString("170141183460469231731687303715884105727")
	minEmission = decimal.RequireFromString("-170141183460469231731687303715884105728")
)

// KgCO2 creates an Emission from a whole number of kilograms.
func KgCO2(kg int64) Emission { return Emission{d: decimal.NewFromInt(kg)} }

// ZeroEmission returns the zero Emission.
func ZeroEmission() Emission { return Emission{} }

// MaxEmission returns the largest representable Emission (2^127 - 1).
func MaxEmission() Emission { return Emission{d: maxEmission} }

// MinEmission returns the smallest representable Emission (-2^127).
func MinEmission() Emission { return Emission{d: minEmission} }

// ParseEmission parses a base-10 integer string.
func ParseEmission(s string) (Emission, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Emission{}, fmt.Errorf("emission: parse %q: %w", s, err)
	}
	return fromDecimal(d)
}

// MustParseEmission is like ParseEmission but panics on error. Use for hardcoded values.
func MustParseEmission(s string) Emission {
	e, err := ParseEmission(s)
	if err != nil {
		panic(err)
	}
	return e
}

func fromDecimal(d decimal.Decimal) (Emission, error) {
	if !d.IsInteger() {
		return Emission{}, ErrNotInteger
	}
	if d.Cmp(maxEmission) > 0 || d.Cmp(minEmission) < 0 {
		return Emission{}, ErrOutOfRange
	}
	// Normalise the exponent so "1e3" and "1000" are stored identically.
	return Emission{d: decimal.NewFromBigInt(d.BigInt(), 0)}, nil
}

// Arithmetic operations

// Add returns e + other, or ErrOutOfRange on overflow.
func (e Emission) Add(other Emission) (Emission, error) {
	return fromDecimal(e.d.Add(other.d))
}

// Sub returns e - other, or ErrOutOfRange on overflow.
func (e Emission) Sub(other Emission) (Emission, error) {
	return fromDecimal(e.d.Sub(other.d))
}

// Neg returns -e. Negating MinEmission overflows and returns ErrOutOfRange.
func (e Emission) Neg() (Emission, error) {
	return fromDecimal(e.d.Neg())
}

// Comparison methods

// Sign returns -1, 0 or +1.
func (e Emission) Sign() int { return e.d.Sign() }

// IsNegative returns true if e < 0.
func (e Emission) IsNegative() bool { return e.d.Sign() < 0 }

// IsZero returns true if e == 0.
func (e Emission) IsZero() bool { return e.d.Sign() == 0 }

// Cmp compares e and other: -1 if e < other, 0 if equal, +1 if e > other.
func (e Emission) Cmp(other Emission) int { return e.d.Cmp(other.d) }

// Equal reports whether e and other hold the same amount.
func (e Emission) Equal(other Emission) bool { return e.d.Equal(other.d) }

// Int64 returns the value as int64 and whether it fit.
func (e Emission) Int64() (int64, bool) {
	if !e.d.IsInteger() || e.d.Cmp(decimal.NewFromInt(-1<<63)) < 0 ||
		e.d.Cmp(decimal.NewFromInt(1<<63-1)) > 0 {
		return 0, false
	}
	return e.d.IntPart(), true
}

// Float64 returns an approximate float value, for metrics only.
func (e Emission) Float64() float64 {
	f, _ := e.d.Float64()
	return f
}

// Formatting

// String returns the base-10 integer representation.
func (e Emission) String() string { return e.d.String() }

// MarshalJSON encodes the amount as a JSON string so that values beyond
// 2^53 survive JavaScript clients.
func (e Emission) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.d.String())
}

// UnmarshalJSON accepts both quoted and bare integers.
func (e *Emission) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("emission: %w", err)
	}
	v, err := fromDecimal(d)
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (e Emission) MarshalText() ([]byte, error) {
	return []byte(e.d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Emission) UnmarshalText(text []byte) error {
	v, err := ParseEmission(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Sum adds all emissions, failing on the first overflow.
func Sum(emissions ...Emission) (Emission, error) {
	total := ZeroEmission()
	for _, e := range emissions {
		var err error
		if total, err = total.Add(e); err != nil {
			return Emission{}, err
		}
	}
	return total, nil
}
