// Package verification checks ledger invariants: per-symbol conservation of
// supply, and agreement between the live ledger and a replay of the journal.
package verification

import (
	"context"
	"fmt"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// Divergence represents a mismatch between expected and actual values.
type Divergence struct {
	Symbol   domain.Symbol    // symbol the check ran for
	Account  domain.AccountID // empty for symbol-level checks
	Field    string           // checked quantity
	Expected interface{}      // expected value
	Actual   interface{}      // observed value
}

func (d Divergence) String() string {
	if d.Account != "" {
		return fmt.Sprintf("%s/%s %s: expected %v, got %v", d.Account, d.Symbol, d.Field, d.Expected, d.Actual)
	}
	return fmt.Sprintf("%s %s: expected %v, got %v", d.Symbol, d.Field, d.Expected, d.Actual)
}

// Report contains the result of a verification run.
type Report struct {
	Symbols     int          // symbols checked
	Balances    int          // balance records checked
	Actions     int          // journal actions replayed (replay only)
	Divergences []Divergence // empty when the ledger verifies
}

// OK reports whether no divergence was found.
func (r *Report) OK() bool { return len(r.Divergences) == 0 }

// Verifier checks a ledger and reports divergences.
type Verifier interface {
	Verify(ctx context.Context) (*Report, error)
}

// ConservationVerifier checks that every symbol's balances sum to its supply.
type ConservationVerifier struct {
	ledger storage.Ledger
}

// NewConservationVerifier creates a verifier over ledger.
func NewConservationVerifier(ledger storage.Ledger) *ConservationVerifier {
	return &ConservationVerifier{ledger: ledger}
}

// Verify implements Verifier. The check reads one consistent snapshot, so
// actions committed meanwhile cannot show up as divergences.
func (v *ConservationVerifier) Verify(ctx context.Context) (report *Report, err error) {
	err = v.ledger.View(ctx, func(ctx context.Context, tables storage.Tables) error {
		report, err = CheckConservation(ctx, tables)
		return err
	})
	return report, err
}

// CheckConservation verifies per symbol that 0 <= supply <= max_supply,
// that every balance is positive and carries the token's symbol, and that
// balances sum to the supply.
func CheckConservation(ctx context.Context, tables storage.Tables) (*Report, error) {
	stats, err := tables.Stats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}

	report := &Report{Symbols: len(stats)}
	for _, st := range stats {
		sym := st.Symbol()

		if st.Supply.Value < 0 || st.Supply.Value > st.MaxSupply.Value {
			report.Divergences = append(report.Divergences, Divergence{
				Symbol:   sym,
				Field:    "supply",
				Expected: fmt.Sprintf("within [0, %s]", st.MaxSupply),
				Actual:   st.Supply.String(),
			})
		}

		balances, err := tables.Balances.GetBySymbol(ctx, sym)
		if err != nil {
			return nil, fmt.Errorf("balances of %s: %w", sym, err)
		}
		report.Balances += len(balances)

		var sum int64
		for _, b := range balances {
			if b.Amount.Symbol != st.Supply.Symbol {
				report.Divergences = append(report.Divergences, Divergence{
					Symbol:   sym,
					Account:  b.Owner,
					Field:    "symbol",
					Expected: st.Supply.Symbol.String(),
					Actual:   b.Amount.Symbol.String(),
				})
			}
			if b.Amount.Value <= 0 {
				report.Divergences = append(report.Divergences, Divergence{
					Symbol:   sym,
					Account:  b.Owner,
					Field:    "balance",
					Expected: "positive",
					Actual:   b.Amount.String(),
				})
			}
			sum += b.Amount.Value
		}

		if sum != st.Supply.Value {
			report.Divergences = append(report.Divergences, Divergence{
				Symbol:   sym,
				Field:    "sum(balances)",
				Expected: st.Supply.String(),
				Actual:   domain.NewAmount(sum, st.Supply.Symbol).String(),
			})
		}
	}

	return report, nil
}

// CompareLedgers compares stats and balances of two ledgers symbol by symbol.
func CompareLedgers(ctx context.Context, expected, actual storage.Tables) ([]Divergence, error) {
	want, err := expected.Stats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expected stats: %w", err)
	}
	got, err := actual.Stats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list actual stats: %w", err)
	}

	gotBySymbol := make(map[domain.Symbol]*domain.TokenStats, len(got))
	for _, st := range got {
		gotBySymbol[st.Symbol()] = st
	}

	var divergences []Divergence
	seen := make(map[domain.Symbol]struct{}, len(want))
	for _, w := range want {
		sym := w.Symbol()
		seen[sym] = struct{}{}

		g, ok := gotBySymbol[sym]
		if !ok {
			divergences = append(divergences, Divergence{Symbol: sym, Field: "stats", Expected: "present", Actual: "missing"})
			continue
		}
		divergences = append(divergences, compareStats(w, g)...)

		bd, err := compareBalances(ctx, sym, expected, actual)
		if err != nil {
			return nil, err
		}
		divergences = append(divergences, bd...)
	}

	for _, g := range got {
		if _, ok := seen[g.Symbol()]; !ok {
			divergences = append(divergences, Divergence{Symbol: g.Symbol(), Field: "stats", Expected: "missing", Actual: "present"})
		}
	}

	return divergences, nil
}

func compareStats(want, got *domain.TokenStats) []Divergence {
	sym := want.Symbol()
	var divergences []Divergence

	if want.Supply != got.Supply {
		divergences = append(divergences, Divergence{Symbol: sym, Field: "supply", Expected: want.Supply.String(), Actual: got.Supply.String()})
	}
	if want.MaxSupply != got.MaxSupply {
		divergences = append(divergences, Divergence{Symbol: sym, Field: "max_supply", Expected: want.MaxSupply.String(), Actual: got.MaxSupply.String()})
	}
	if want.Issuer != got.Issuer {
		divergences = append(divergences, Divergence{Symbol: sym, Field: "issuer", Expected: want.Issuer, Actual: got.Issuer})
	}
	return divergences
}

func compareBalances(ctx context.Context, sym domain.Symbol, expected, actual storage.Tables) ([]Divergence, error) {
	want, err := expected.Balances.GetBySymbol(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("expected balances of %s: %w", sym, err)
	}
	got, err := actual.Balances.GetBySymbol(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("actual balances of %s: %w", sym, err)
	}

	gotByOwner := make(map[domain.AccountID]domain.Amount, len(got))
	for _, b := range got {
		gotByOwner[b.Owner] = b.Amount
	}

	var divergences []Divergence
	for _, w := range want {
		g, ok := gotByOwner[w.Owner]
		delete(gotByOwner, w.Owner)
		if !ok {
			divergences = append(divergences, Divergence{Symbol: sym, Account: w.Owner, Field: "balance", Expected: w.Amount.String(), Actual: "none"})
			continue
		}
		if g != w.Amount {
			divergences = append(divergences, Divergence{Symbol: sym, Account: w.Owner, Field: "balance", Expected: w.Amount.String(), Actual: g.String()})
		}
	}
	for _, b := range got {
		if _, extra := gotByOwner[b.Owner]; extra {
			divergences = append(divergences, Divergence{Symbol: sym, Account: b.Owner, Field: "balance", Expected: "none", Actual: b.Amount.String()})
		}
	}
	return divergences, nil
}
