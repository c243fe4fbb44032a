package domain

import "encoding/json"

// MaxMemoLength is the longest memo accepted, in bytes.
const MaxMemoLength = 256

// Action names handled by the token contract.
const (
	ActionCreate     = "create"
	ActionIssue      = "issue"
	ActionTransfer   = "transfer"
	ActionWithdraw   = "withdraw"
	ActionOnTransfer = "ontransfer"
)

// Action is a request addressed to a contract, authorized by a set of accounts.
type Action struct {
	Contract      AccountID       `json:"account" yaml:"account"`
	Name          string          `json:"name" yaml:"name"`
	Authorization []AccountID     `json:"authorization" yaml:"authorization"`
	Data          json.RawMessage `json:"data" yaml:"-"`
}

// CreateArgs are the arguments of create.
type CreateArgs struct {
	Issuer        AccountID `json:"issuer" yaml:"issuer"`
	MaximumSupply Amount    `json:"maximum_supply" yaml:"maximum_supply"`
}

// IssueArgs are the arguments of issue.
type IssueArgs struct {
	To       AccountID `json:"to" yaml:"to"`
	Quantity Amount    `json:"quantity" yaml:"quantity"`
	Memo     string    `json:"memo" yaml:"memo"`
}

// TransferArgs are the arguments of transfer and withdraw, and the payload of
// transfer notifications from other token contracts.
type TransferArgs struct {
	From     AccountID `json:"from" yaml:"from"`
	To       AccountID `json:"to" yaml:"to"`
	Quantity Amount    `json:"quantity" yaml:"quantity"`
	Memo     string    `json:"memo" yaml:"memo"`
}

// ActionRecord is a journal entry for one executed action.
// Inline actions (the transfer forwarded by issue) get their own record.
type ActionRecord struct {
	Sequence      uint64          `json:"sequence"`      // global apply order, starts at 1
	TraceID       string          `json:"trace_id"`      // shared by a root action and its inline actions
	Digest        string          `json:"digest"`        // deterministic hash, see idhash.ComputeActionDigest
	Contract      AccountID       `json:"account"`       // contract the action was addressed to
	Name          string          `json:"name"`          // action name
	Inline        bool            `json:"inline"`        // true for actions sent by another action
	Authorization []AccountID     `json:"authorization"` // accounts that authorized the action
	Data          json.RawMessage `json:"data"`          // action arguments
	Recipients    []AccountID     `json:"recipients"`    // accounts notified by the action
	AppliedAt     int64           `json:"applied_at"`    // commit timestamp (ms)
}

// Action returns the action the record was produced from.
func (r *ActionRecord) Action() Action {
	return Action{
		Contract:      r.Contract,
		Name:          r.Name,
		Authorization: append([]AccountID(nil), r.Authorization...),
		Data:          append(json.RawMessage(nil), r.Data...),
	}
}

// Notification informs a recipient that an action touched it.
type Notification struct {
	Recipient AccountID       `json:"recipient"`
	TraceID   string          `json:"trace_id"`
	Sequence  uint64          `json:"sequence"`
	Contract  AccountID       `json:"contract"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
}
