// Package host plays the role of the execution environment around the token
// contract: it routes actions, enforces the atomic commit boundary, delivers
// notifications and journals committed actions.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"token-ledger/internal/domain"
	"token-ledger/internal/idhash"
	"token-ledger/internal/observability"
	"token-ledger/internal/storage"
	"token-ledger/internal/token"
)

// DefaultTokenContract is the external token contract whose transfers are
// routed to the inbound transfer hook.
const DefaultTokenContract domain.AccountID = "eosio.token"

// NotificationSink receives notifications of committed actions.
type NotificationSink interface {
	Deliver(ctx context.Context, n domain.Notification)
}

// Options configures an Executor.
type Options struct {
	Self          domain.AccountID      // account the token contract is deployed at
	TokenContract domain.AccountID      // external token contract (default DefaultTokenContract)
	Ledger        storage.Ledger        // required
	Journal       storage.ActionJournal // optional
	Sink          NotificationSink      // optional
	Logger        zerolog.Logger
	Now           func() time.Time // optional, for tests
}

// Receipt describes a committed action.
type Receipt struct {
	TraceID string                 `json:"trace_id"`
	Actions []*domain.ActionRecord `json:"actions"`
}

// Executor applies actions to the ledger one at a time.
type Executor struct {
	self          domain.AccountID
	tokenContract domain.AccountID
	ledger        storage.Ledger
	journal       storage.ActionJournal
	sink          NotificationSink
	contract      *token.Contract
	logger        zerolog.Logger
	now           func() time.Time

	mu       sync.Mutex // serializes Apply so sequences follow commit order
	sequence uint64
}

// NewExecutor creates an executor, resuming the sequence from the journal.
func NewExecutor(ctx context.Context, opts Options) (*Executor, error) {
	if !opts.Self.Valid() {
		return nil, fmt.Errorf("invalid contract account %q", opts.Self)
	}
	if opts.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if opts.TokenContract == "" {
		opts.TokenContract = DefaultTokenContract
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Executor{
		self:          opts.Self,
		tokenContract: opts.TokenContract,
		ledger:        opts.Ledger,
		journal:       opts.Journal,
		sink:          opts.Sink,
		contract:      token.New(opts.Self, opts.Logger),
		logger:        opts.Logger.With().Str("component", "executor").Logger(),
		now:           opts.Now,
	}

	if e.journal != nil {
		last, err := e.journal.LastSequence(ctx)
		if err != nil {
			return nil, fmt.Errorf("load last sequence: %w", err)
		}
		e.sequence = last
	}

	return e, nil
}

// Contract returns the token contract.
func (e *Executor) Contract() *token.Contract { return e.contract }

// Ledger returns the ledger the executor writes to.
func (e *Executor) Ledger() storage.Ledger { return e.ledger }

// Self returns the contract account.
func (e *Executor) Self() domain.AccountID { return e.self }

// Apply executes an action and its inline actions in one atomic unit.
// On success the executed actions are journaled and their recipients notified;
// a rejected action leaves no trace.
func (e *Executor) Apply(ctx context.Context, action domain.Action) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	traceID := uuid.NewString()
	logger := e.logger.With().
		Str("trace_id", traceID).
		Str("action", action.Name).
		Str("contract", string(action.Contract)).
		Logger()

	var hc *Context
	err := e.ledger.Atomic(ctx, func(ctx context.Context, tables storage.Tables) error {
		hc = newContext(e.self, tables, action)
		return e.dispatch(ctx, hc, action)
	})
	if err != nil {
		observability.RecordActionRejected(action.Name, domain.KindName(err))
		logger.Debug().Err(err).Msg("action rejected")
		return nil, err
	}

	appliedAt := e.now().UnixMilli()
	frames := hc.frames()
	records := make([]*domain.ActionRecord, len(frames))
	for i, f := range frames {
		records[i] = &domain.ActionRecord{
			TraceID:       traceID,
			Contract:      f.contract,
			Name:          f.name,
			Inline:        f.inline,
			Authorization: f.auth,
			Data:          f.data,
			Recipients:    f.recipients,
			AppliedAt:     appliedAt,
		}
	}
	e.number(records)

	if e.journal != nil {
		// The ledger is already committed; a journal failure is reported but
		// does not undo the action.
		jerr := e.appendJournal(ctx, records, logger)
		observability.RecordJournal(e.sequence, jerr)
		if jerr != nil {
			logger.Error().Err(jerr).Uint64("sequence", e.sequence).Msg("journal append failed")
		}
	}

	e.notify(ctx, records)
	e.refreshSupply(ctx, action)

	observability.RecordActionApplied(action.Name, e.now().Sub(start).Seconds(), len(records)-1)
	logger.Info().
		Uint64("sequence", records[0].Sequence).
		Int("inline", len(records)-1).
		Msg("action applied")

	return &Receipt{TraceID: traceID, Actions: records}, nil
}

// number assigns the next sequences to records and digests them.
func (e *Executor) number(records []*domain.ActionRecord) {
	for _, r := range records {
		e.sequence++
		r.Sequence = e.sequence
		r.Digest = idhash.ComputeActionDigest(r.Sequence, r.Contract, r.Name, r.Authorization, r.Data)
	}
}

// appendJournal writes records to the journal. When another writer already
// took their sequences, the executor resumes from the journal's last sequence
// and retries once with renumbered records.
func (e *Executor) appendJournal(ctx context.Context, records []*domain.ActionRecord, logger zerolog.Logger) error {
	err := e.journal.InsertBulk(ctx, records)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return err
	}

	last, lerr := e.journal.LastSequence(ctx)
	if lerr != nil {
		return fmt.Errorf("resync sequence: %w", lerr)
	}
	logger.Warn().
		Uint64("sequence", records[0].Sequence).
		Uint64("journal_last", last).
		Msg("journal sequence taken, renumbering")

	e.sequence = last
	e.number(records)
	return e.journal.InsertBulk(ctx, records)
}

// RegisterAccount adds an account to the host's namespace.
func (e *Executor) RegisterAccount(ctx context.Context, id domain.AccountID) error {
	if !id.Valid() {
		return domain.Fail(domain.ErrInvalidArgument, "invalid account name %q", id)
	}
	return e.ledger.Atomic(ctx, func(ctx context.Context, tables storage.Tables) error {
		err := tables.Accounts.Insert(ctx, &domain.Account{ID: id, CreatedAt: e.now().UnixMilli()})
		if errors.Is(err, storage.ErrDuplicateKey) {
			return domain.Fail(domain.ErrAlreadyExists, "account %s already exists", id)
		}
		return err
	})
}

// dispatch routes an action to the contract handler.
func (e *Executor) dispatch(ctx context.Context, hc *Context, action domain.Action) error {
	if action.Contract == e.tokenContract && action.Name == domain.ActionTransfer {
		var args domain.TransferArgs
		if err := decodeArgs(action.Data, &args); err != nil {
			return err
		}
		return e.contract.OnTransferNotification(ctx, hc, action.Contract, args)
	}
	if action.Name == domain.ActionOnTransfer {
		return domain.Fail(domain.ErrInvalidArgument, "%s cannot be executed by itself", domain.ActionOnTransfer)
	}
	if action.Contract != e.self {
		return domain.Fail(domain.ErrInvalidArgument, "unknown contract %s", action.Contract)
	}

	switch action.Name {
	case domain.ActionCreate:
		var args domain.CreateArgs
		if err := decodeArgs(action.Data, &args); err != nil {
			return err
		}
		return e.contract.Create(ctx, hc, args)
	case domain.ActionIssue:
		var args domain.IssueArgs
		if err := decodeArgs(action.Data, &args); err != nil {
			return err
		}
		return e.contract.Issue(ctx, hc, args)
	case domain.ActionTransfer:
		var args domain.TransferArgs
		if err := decodeArgs(action.Data, &args); err != nil {
			return err
		}
		return e.contract.Transfer(ctx, hc, args)
	case domain.ActionWithdraw:
		var args domain.TransferArgs
		if err := decodeArgs(action.Data, &args); err != nil {
			return err
		}
		return e.contract.Withdraw(ctx, hc, args)
	default:
		return domain.Fail(domain.ErrInvalidArgument, "unknown action %q", action.Name)
	}
}

// notify delivers one notification per recipient of each executed action.
func (e *Executor) notify(ctx context.Context, records []*domain.ActionRecord) {
	if e.sink == nil {
		return
	}
	for _, r := range records {
		for _, recipient := range r.Recipients {
			e.sink.Deliver(ctx, domain.Notification{
				Recipient: recipient,
				TraceID:   r.TraceID,
				Sequence:  r.Sequence,
				Contract:  r.Contract,
				Name:      r.Name,
				Data:      r.Data,
			})
		}
	}
}

// refreshSupply updates the supply gauge after create and issue.
func (e *Executor) refreshSupply(ctx context.Context, action domain.Action) {
	if action.Contract != e.self || (action.Name != domain.ActionCreate && action.Name != domain.ActionIssue) {
		return
	}
	stats, err := e.ledger.Tables().Stats.List(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("refresh supply gauge")
		return
	}
	for _, st := range stats {
		observability.UpdateSupply(st.Symbol().String(), st.Supply.Value)
	}
}

func decodeArgs(data json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if kind := domain.KindOf(err); kind != nil {
			return err
		}
		return domain.Fail(domain.ErrInvalidArgument, "decode action data: %v", err)
	}
	return nil
}
