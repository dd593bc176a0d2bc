package domain

import "time"

// EventSource distinguishes lending-pool events from backstop events; both
// emit a "withdraw" action.
type EventSource string

const (
	SourcePool     EventSource = "pool"
	SourceBackstop EventSource = "backstop"
)

// ActionType is the protocol action recorded by an event.
type ActionType string

// Pool actions.
const (
	ActionSupply             ActionType = "supply"
	ActionWithdraw           ActionType = "withdraw"
	ActionSupplyCollateral   ActionType = "supply_collateral"
	ActionWithdrawCollateral ActionType = "withdraw_collateral"
	ActionBorrow             ActionType = "borrow"
	ActionRepay              ActionType = "repay"
	ActionClaim              ActionType = "claim"
)

// Backstop actions. ActionWithdraw and ActionClaim are shared with pools.
const (
	ActionDeposit           ActionType = "deposit"
	ActionQueueWithdrawal   ActionType = "queue_withdrawal"
	ActionDequeueWithdrawal ActionType = "dequeue_withdrawal"
	ActionDonate            ActionType = "donate"
	ActionDraw              ActionType = "draw"
)

// PositionActions are the pool actions that move a user's b/dToken balance.
var PositionActions = []ActionType{
	ActionSupply, ActionWithdraw,
	ActionSupplyCollateral, ActionWithdrawCollateral,
	ActionBorrow, ActionRepay,
}

// Q4WActions are the backstop actions that move queued shares.
var Q4WActions = []ActionType{ActionQueueWithdrawal, ActionDequeueWithdrawal, ActionWithdraw}

// ShareSupplyActions are the backstop actions that change a pool's LP/share totals.
var ShareSupplyActions = []ActionType{ActionDeposit, ActionDonate, ActionWithdraw, ActionDraw}

// Event is an immutable protocol event synced from the ledger.
// Corresponds to the events table. Rows are append-only.
type Event struct {
	ID             int64       // BIGSERIAL, ingestion order
	Source         EventSource // pool | backstop
	ActionType     ActionType
	UserAddress    string
	PoolID         string
	AssetAddress   string     // empty for backstop share events
	AmountTokens   *float64   // underlying token amount
	Units          *float64   // b/dTokens minted or burned (pool events, nullable)
	Shares         *float64   // backstop shares
	LPTokens       *float64   // backstop LP tokens
	Q4WExp         *time.Time // queue expiration (Q4W events)
	LedgerClosedAt time.Time
	TxHash         string
}

// Tokens returns the underlying amount, treating a missing value as 0.
func (e *Event) Tokens() float64 { return orZero(e.AmountTokens) }

// ShareAmount returns the backstop share amount, treating a missing value as 0.
func (e *Event) ShareAmount() float64 { return orZero(e.Shares) }

// LPAmount returns the LP token amount, treating a missing value as 0.
func (e *Event) LPAmount() float64 { return orZero(e.LPTokens) }

// HasAction reports whether e's action is one of actions.
func (e *Event) HasAction(actions ...ActionType) bool {
	for _, a := range actions {
		if e.ActionType == a {
			return true
		}
	}
	return false
}

func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Float returns a pointer to v. Handy for building events.
func Float(v float64) *float64 { return &v }
