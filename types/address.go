package types

import "strings"

// Address identifies a principal that can authorise ledger operations
// (a submitter, verifier or updater). Its format is owned by the
// authorizer; the ledger only compares addresses for equality.
type Address string

// ParseAddress trims surrounding whitespace. An empty result is the nil address.
func ParseAddress(s string) Address { return Address(strings.TrimSpace(s)) }

// String implements fmt.Stringer.
func (a Address) String() string { return string(a) }

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool { return a == "" }
