package domain

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// maxAccountLength bounds account identifiers; base58 ed25519 keys are at most 44 chars.
const maxAccountLength = 64

// AccountID names an account in the host's account namespace.
// It is either a short name ([a-z0-9._-]) or a base58-encoded ed25519 public key.
type AccountID string

func (a AccountID) String() string { return string(a) }

// Valid reports whether the identifier is a well-formed name or key.
func (a AccountID) Valid() bool {
	if len(a) == 0 || len(a) > maxAccountLength {
		return false
	}
	if isAccountName(string(a)) {
		return true
	}
	_, err := ParseAccountKey(string(a))
	return err == nil
}

func isAccountName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

// ParseAccountKey decodes a base58 ed25519 public key and checks it is a
// point on the curve.
func ParseAccountKey(text string) ([]byte, error) {
	key, err := base58.Decode(text)
	if err != nil {
		return nil, Fail(ErrInvalidArgument, "account key %q is not base58", text)
	}
	if len(key) != 32 {
		return nil, Fail(ErrInvalidArgument, "account key %q must be 32 bytes, got %d", text, len(key))
	}
	if _, err := new(edwards25519.Point).SetBytes(key); err != nil {
		return nil, Fail(ErrInvalidArgument, "account key %q is not an ed25519 point", text)
	}
	return key, nil
}

// AccountFromKey encodes a 32-byte ed25519 public key as an AccountID.
func AccountFromKey(key []byte) AccountID {
	return AccountID(base58.Encode(key))
}

// Account is a registered, resolvable account.
type Account struct {
	ID        AccountID
	CreatedAt int64 // registration timestamp (ms)
}
