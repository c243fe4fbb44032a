package token

import (
	"context"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// Env is the host environment of a single executing action.
// The host owns authorization, account resolution, notification delivery and
// the atomic tables; the contract only consumes them.
type Env interface {
	// RequireAuth fails with domain.ErrUnauthorized unless account authorized the action.
	RequireAuth(account domain.AccountID) error

	// IsAccount reports whether account exists in the host's namespace.
	IsAccount(ctx context.Context, account domain.AccountID) (bool, error)

	// RequireRecipient marks account as a party to be notified of the action.
	RequireRecipient(account domain.AccountID)

	// Tables returns the ledger tables of the enclosing atomic unit.
	Tables() storage.Tables

	// Inline returns the environment of an action sent by the current one,
	// authorized by actor and executed in the same atomic unit.
	Inline(actor domain.AccountID, name string, args any) Env
}
