package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxPrecision is the largest number of decimal places a symbol may carry.
const MaxPrecision = 18

// maxCodeLength is the longest symbol code accepted.
const maxCodeLength = 7

// SymbolCode is the ticker part of a symbol (e.g. "TOK").
type SymbolCode string

// Valid reports whether the code is 1-7 upper-case letters.
func (c SymbolCode) Valid() bool {
	if len(c) == 0 || len(c) > maxCodeLength {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

func (c SymbolCode) String() string { return string(c) }

// Symbol identifies a token unit: code plus fixed decimal precision.
// Ledger records are keyed by the whole symbol, so "2,TOK" and "4,TOK" are
// distinct tokens.
type Symbol struct {
	Code      SymbolCode
	Precision uint8
}

// NewSymbol builds a symbol without validating it.
func NewSymbol(code string, precision uint8) Symbol {
	return Symbol{Code: SymbolCode(code), Precision: precision}
}

// Valid reports whether the symbol is well formed.
func (s Symbol) Valid() bool {
	return s.Code.Valid() && s.Precision <= MaxPrecision
}

// Less orders symbols by code, then precision.
func (s Symbol) Less(o Symbol) bool {
	if s.Code != o.Code {
		return s.Code < o.Code
	}
	return s.Precision < o.Precision
}

// String formats the symbol as "<precision>,<CODE>".
func (s Symbol) String() string {
	return strconv.Itoa(int(s.Precision)) + "," + string(s.Code)
}

// ParseSymbol parses "<precision>,<CODE>".
func ParseSymbol(text string) (Symbol, error) {
	precText, code, ok := strings.Cut(strings.TrimSpace(text), ",")
	if !ok {
		return Symbol{}, fmt.Errorf("%w: symbol %q must be <precision>,<code>", ErrInvalidArgument, text)
	}
	prec, err := strconv.ParseUint(precText, 10, 8)
	if err != nil {
		return Symbol{}, fmt.Errorf("%w: symbol precision %q", ErrInvalidArgument, precText)
	}
	sym := Symbol{Code: SymbolCode(code), Precision: uint8(prec)}
	if !sym.Valid() {
		return Symbol{}, fmt.Errorf("%w: invalid symbol name %q", ErrInvalidArgument, text)
	}
	return sym, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Symbol) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Symbol) UnmarshalText(text []byte) error {
	sym, err := ParseSymbol(string(text))
	if err != nil {
		return err
	}
	*s = sym
	return nil
}
