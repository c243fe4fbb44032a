package domain

// TokenStats is the per-symbol supply record.
// Corresponds to token_stats table in PostgreSQL.
type TokenStats struct {
	Supply    Amount    // circulating amount, symbol fixed at creation
	MaxSupply Amount    // immutable ceiling
	Issuer    AccountID // sole account allowed to issue
}

// Symbol returns the symbol the record is keyed by.
func (s *TokenStats) Symbol() Symbol { return s.Supply.Symbol }

// Available returns how much may still be issued.
func (s *TokenStats) Available() int64 { return s.MaxSupply.Value - s.Supply.Value }

// Balance is the holding of one account in one symbol.
// Corresponds to balances table in PostgreSQL. Records never hold zero.
type Balance struct {
	Owner  AccountID
	Amount Amount
}

// Symbol returns the symbol the record is keyed by.
func (b *Balance) Symbol() Symbol { return b.Amount.Symbol }
