// Package execution evaluates simulated positions and trade ideas against
// market quotes and produces close decisions.
package execution

import (
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// TriggerKind identifies which exit rule fired
type TriggerKind string

const (
	TriggerStopLoss   TriggerKind = "STOP_LOSS"
	TriggerTakeProfit TriggerKind = "TAKE_PROFIT"
)

// Close reasons recorded on the closed entity.
const (
	ReasonStopLoss   = "Stop loss triggered"
	ReasonTakeProfit = "Take profit triggered"
)

// Reason returns the fixed close reason for the trigger kind
func (k TriggerKind) Reason() string {
	if k == TriggerStopLoss {
		return ReasonStopLoss
	}
	return ReasonTakeProfit
}

// Decision is the outcome of a fired exit rule. ClosePrice is always the
// configured level, never the quote that crossed it.
type Decision struct {
	Kind       TriggerKind     `json:"kind"`
	Tier       int             `json:"tier,omitempty"`
	ClosePrice decimal.Decimal `json:"closePrice"`
	Reason     string          `json:"reason"`
}

// PositionDecision is a decision bound to a position
type PositionDecision struct {
	Decision
	PositionID string               `json:"positionId"`
	OwnerID    string               `json:"ownerId"`
	Status     types.PositionStatus `json:"status"`
	PnL        decimal.Decimal      `json:"pnl"`
	PnLPercent decimal.Decimal      `json:"pnlPercent"`
}

// Instruction converts the decision into a store close instruction
func (d PositionDecision) Instruction() CloseInstruction {
	return CloseInstruction{
		PositionID: d.PositionID,
		Price:      d.ClosePrice,
		Reason:     d.Reason,
		Status:     d.Status,
	}
}

// IdeaDecision is a decision bound to a trade idea
type IdeaDecision struct {
	Decision
	IdeaID  string          `json:"ideaId"`
	GroupID string          `json:"groupId"`
	PnL     decimal.Decimal `json:"pnl"`
}

// CloseInstruction asks the position store to close a position
type CloseInstruction struct {
	PositionID string
	Price      decimal.Decimal
	Reason     string
	Status     types.PositionStatus
}
