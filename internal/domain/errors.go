package domain

import (
	"errors"
	"fmt"
)

// Ledger error kinds. Every rejected action wraps exactly one of these.
var (
	// ErrInvalidArgument covers malformed symbols, non-positive amounts,
	// self-transfers and oversized memos.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthorized is returned when the action lacks the required authority.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for missing stats, balances or accounts.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a symbol that already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrSymbolMismatch is returned when an amount's symbol differs from the
	// symbol recorded for its code.
	ErrSymbolMismatch = errors.New("symbol mismatch")

	// ErrSupplyExceeded is returned when issuance would breach max supply.
	ErrSupplyExceeded = errors.New("supply exceeded")

	// ErrOverdrawn is returned when a debit exceeds the balance.
	ErrOverdrawn = errors.New("overdrawn")
)

// Kinds lists all error kinds in a stable order.
var Kinds = []error{
	ErrInvalidArgument,
	ErrUnauthorized,
	ErrNotFound,
	ErrAlreadyExists,
	ErrSymbolMismatch,
	ErrSupplyExceeded,
	ErrOverdrawn,
}

// Fail wraps kind with a message.
func Fail(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// KindOf returns the error kind wrapped by err, or nil.
func KindOf(err error) error {
	for _, kind := range Kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName returns a short label for the kind wrapped by err ("unknown" if none).
func KindName(err error) string {
	switch KindOf(err) {
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrNotFound:
		return "not_found"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrSymbolMismatch:
		return "symbol_mismatch"
	case ErrSupplyExceeded:
		return "supply_exceeded"
	case ErrOverdrawn:
		return "overdrawn"
	default:
		return "unknown"
	}
}
