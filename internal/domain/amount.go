package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest magnitude an amount may hold (2^62 - 1).
// Sums of two valid amounts always fit in an int64.
const MaxAmount int64 = 1<<62 - 1

// Amount is a fixed-point quantity of a symbol.
// Value is scaled by 10^Symbol.Precision.
type Amount struct {
	Value  int64
	Symbol Symbol
}

// NewAmount builds an amount from a scaled integer.
func NewAmount(value int64, sym Symbol) Amount {
	return Amount{Value: value, Symbol: sym}
}

// IsAmountWithinRange reports whether |Value| <= MaxAmount.
func (a Amount) IsAmountWithinRange() bool {
	return -MaxAmount <= a.Value && a.Value <= MaxAmount
}

// Valid reports whether the value is in range and the symbol well formed.
func (a Amount) Valid() bool {
	return a.IsAmountWithinRange() && a.Symbol.Valid()
}

// Add returns a+b. Symbols must match exactly and the result must stay in range.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.Symbol != b.Symbol {
		return Amount{}, Fail(ErrSymbolMismatch, "attempt to add asset with different symbol")
	}
	sum := Amount{Value: a.Value + b.Value, Symbol: a.Symbol}
	if sum.Value > MaxAmount {
		return Amount{}, Fail(ErrInvalidArgument, "addition overflow")
	}
	if sum.Value < -MaxAmount {
		return Amount{}, Fail(ErrInvalidArgument, "addition underflow")
	}
	return sum, nil
}

// Sub returns a-b. Symbols must match exactly and the result must stay in range.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Symbol != b.Symbol {
		return Amount{}, Fail(ErrSymbolMismatch, "attempt to subtract asset with different symbol")
	}
	diff := Amount{Value: a.Value - b.Value, Symbol: a.Symbol}
	if diff.Value < -MaxAmount {
		return Amount{}, Fail(ErrInvalidArgument, "subtraction underflow")
	}
	if diff.Value > MaxAmount {
		return Amount{}, Fail(ErrInvalidArgument, "subtraction overflow")
	}
	return diff, nil
}

// String formats the amount as "<value> <CODE>", e.g. "100.00 TOK".
func (a Amount) String() string {
	prec := int32(a.Symbol.Precision)
	return decimal.New(a.Value, -prec).StringFixed(prec) + " " + string(a.Symbol.Code)
}

// ParseAmount parses "<decimal> <CODE>". The number of fraction digits
// determines the precision: "1.50 TOK" is 150 at precision 2.
func ParseAmount(text string) (Amount, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Amount{}, Fail(ErrInvalidArgument, "amount %q must be <value> <code>", text)
	}

	d, err := decimal.NewFromString(fields[0])
	if err != nil {
		return Amount{}, Fail(ErrInvalidArgument, "amount value %q: %v", fields[0], err)
	}

	var prec int32
	if exp := d.Exponent(); exp < 0 {
		prec = -exp
	}
	if prec > MaxPrecision {
		return Amount{}, Fail(ErrInvalidArgument, "amount %q exceeds max precision %d", text, MaxPrecision)
	}

	scaled := d.Shift(prec)
	if !scaled.IsInteger() {
		return Amount{}, Fail(ErrInvalidArgument, "amount %q is not representable", text)
	}
	coef := scaled.BigInt()
	if !coef.IsInt64() {
		return Amount{}, Fail(ErrInvalidArgument, "amount %q out of range", text)
	}

	a := Amount{
		Value:  coef.Int64(),
		Symbol: Symbol{Code: SymbolCode(fields[1]), Precision: uint8(prec)},
	}
	if !a.Symbol.Valid() {
		return Amount{}, Fail(ErrInvalidArgument, "invalid symbol name %q", fields[1])
	}
	if !a.IsAmountWithinRange() {
		return Amount{}, Fail(ErrInvalidArgument, "magnitude of amount %q must be less than 2^62", text)
	}
	return a, nil
}

// MustParseAmount is ParseAmount for constants; it panics on error.
func MustParseAmount(text string) Amount {
	a, err := ParseAmount(text)
	if err != nil {
		panic(fmt.Sprintf("parse amount %q: %v", text, err))
	}
	return a
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
