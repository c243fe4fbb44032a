package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"token-ledger/internal/domain"
	"token-ledger/internal/host"
	"token-ledger/internal/storage"
	"token-ledger/internal/storage/memory"
)

// ReplayVerifier re-applies the journal to an empty in-memory ledger and
// compares the result with the live ledger.
type ReplayVerifier struct {
	self          domain.AccountID
	tokenContract domain.AccountID
	ledger        storage.Ledger
	journal       storage.ActionJournal
	logger        zerolog.Logger
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	Self          domain.AccountID
	TokenContract domain.AccountID
	Ledger        storage.Ledger        // live ledger
	Journal       storage.ActionJournal // journal of the live ledger
	Logger        zerolog.Logger
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		self:          opts.Self,
		tokenContract: opts.TokenContract,
		ledger:        opts.Ledger,
		journal:       opts.Journal,
		logger:        opts.Logger.With().Str("component", "replay_verifier").Logger(),
	}
}

// Verify implements Verifier.
func (v *ReplayVerifier) Verify(ctx context.Context) (*Report, error) {
	return v.ReplayJournal(ctx)
}

// ReplayJournal applies every root action of the journal in sequence order.
// Inline actions are not applied directly: their root action re-sends them.
// Accounts are copied from the live ledger before replay.
func (v *ReplayVerifier) ReplayJournal(ctx context.Context) (*Report, error) {
	if v.journal == nil {
		return nil, errors.New("replay requires an action journal")
	}

	replica := memory.NewLedger()
	exec, err := host.NewExecutor(ctx, host.Options{
		Self:          v.self,
		TokenContract: v.tokenContract,
		Ledger:        replica,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		return nil, fmt.Errorf("create replay executor: %w", err)
	}

	accounts, err := v.ledger.Tables().Accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	for _, a := range accounts {
		if err := exec.RegisterAccount(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("register %s: %w", a.ID, err)
		}
	}

	records, err := v.journal.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}

	inline := inlineCounts(records)
	report := &Report{}
	for _, r := range records {
		if r.Inline {
			continue
		}
		report.Actions++

		receipt, err := exec.Apply(ctx, r.Action())
		if err != nil {
			report.Divergences = append(report.Divergences, Divergence{
				Field:    fmt.Sprintf("action %d (%s)", r.Sequence, r.Name),
				Expected: "applied",
				Actual:   err.Error(),
			})
			continue
		}
		if want, got := inline[r.TraceID], len(receipt.Actions)-1; want != got {
			report.Divergences = append(report.Divergences, Divergence{
				Field:    fmt.Sprintf("action %d (%s) inline actions", r.Sequence, r.Name),
				Expected: want,
				Actual:   got,
			})
		}
	}

	var divergences []Divergence
	err = v.ledger.View(ctx, func(ctx context.Context, live storage.Tables) error {
		divergences, err = CompareLedgers(ctx, replica.Tables(), live)
		return err
	})
	if err != nil {
		return nil, err
	}
	report.Divergences = append(report.Divergences, divergences...)

	stats, err := replica.Tables().Stats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list replayed stats: %w", err)
	}
	report.Symbols = len(stats)
	for _, st := range stats {
		balances, err := replica.Tables().Balances.GetBySymbol(ctx, st.Symbol())
		if err != nil {
			return nil, fmt.Errorf("replayed balances of %s: %w", st.Symbol(), err)
		}
		report.Balances += len(balances)
	}

	v.logger.Info().
		Int("actions", report.Actions).
		Int("divergences", len(report.Divergences)).
		Msg("journal replayed")

	return report, nil
}

// inlineCounts returns the number of inline records per trace.
func inlineCounts(records []*domain.ActionRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		if r.Inline {
			counts[r.TraceID]++
		}
	}
	return counts
}

var (
	_ Verifier = (*ConservationVerifier)(nil)
	_ Verifier = (*ReplayVerifier)(nil)
)
