// Package types provides shared type definitions for the paper trading engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSide represents long or short position
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// PositionStatus represents the lifecycle state of a simulated position
type PositionStatus string

const (
	PositionStatusOpen    PositionStatus = "OPEN"
	PositionStatusClosed  PositionStatus = "CLOSED"
	PositionStatusStopped PositionStatus = "STOPPED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s PositionStatus) IsTerminal() bool {
	return s == PositionStatusClosed || s == PositionStatusStopped
}

// TradeDirection is the direction of a trade idea
type TradeDirection string

const (
	TradeDirectionLong  TradeDirection = "LONG"
	TradeDirectionShort TradeDirection = "SHORT"
)

// TradeIdeaStatus represents the lifecycle state of a trade idea
type TradeIdeaStatus string

const (
	TradeIdeaStatusActive    TradeIdeaStatus = "ACTIVE"
	TradeIdeaStatusClosed    TradeIdeaStatus = "CLOSED"
	TradeIdeaStatusCancelled TradeIdeaStatus = "CANCELLED"
	TradeIdeaStatusExpired   TradeIdeaStatus = "EXPIRED"
)

// AlertCondition is the price condition an alert watches for
type AlertCondition string

const (
	AlertConditionAbove        AlertCondition = "ABOVE"
	AlertConditionBelow        AlertCondition = "BELOW"
	AlertConditionCrossesAbove AlertCondition = "CROSSES_ABOVE"
	AlertConditionCrossesBelow AlertCondition = "CROSSES_BELOW"
)

// AlertStatus represents the state of a price alert
type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "ACTIVE"
	AlertStatusTriggered AlertStatus = "TRIGGERED"
)

// MarketQuote is a normalized price quote for one symbol in one update cycle
type MarketQuote struct {
	Symbol        string          `json:"symbol" validate:"required"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Volume        decimal.Decimal `json:"volume"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Open          decimal.Decimal `json:"open"`
	PreviousClose decimal.Decimal `json:"previousClose"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Position represents a simulated position
type Position struct {
	ID           string              `gorm:"primaryKey;size:64" json:"id"`
	OwnerID      string              `gorm:"index;not null;size:64" json:"ownerId"`
	PortfolioID  string              `gorm:"index;size:64" json:"portfolioId,omitempty"`
	Symbol       string              `gorm:"index;not null;size:32" json:"symbol"`
	Side         PositionSide        `gorm:"not null;size:8" json:"side"`
	Quantity     decimal.Decimal     `gorm:"type:numeric;not null" json:"quantity"`
	EntryPrice   decimal.Decimal     `gorm:"type:numeric;not null" json:"entryPrice"`
	CurrentPrice decimal.Decimal     `gorm:"type:numeric;not null" json:"currentPrice"`
	StopLoss     decimal.NullDecimal `gorm:"type:numeric" json:"stopLoss"`
	TakeProfit   decimal.NullDecimal `gorm:"type:numeric" json:"takeProfit"`
	PnL          decimal.Decimal     `gorm:"column:pnl;type:numeric" json:"pnl"`
	PnLPercent   decimal.Decimal     `gorm:"column:pnl_percent;type:numeric" json:"pnlPercent"`
	Status       PositionStatus      `gorm:"index;not null;size:16" json:"status"`
	OpenedAt     time.Time           `gorm:"not null" json:"openedAt"`
	ClosedAt     *time.Time          `json:"closedAt,omitempty"`
	ClosedPrice  decimal.NullDecimal `gorm:"type:numeric" json:"closedPrice"`
	CloseReason  string              `gorm:"size:128" json:"closeReason,omitempty"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// TableName overrides the gorm table name
func (Position) TableName() string {
	return "positions"
}

// TradeIdea represents a shared trade idea with up to three take-profit tiers
type TradeIdea struct {
	ID          string              `gorm:"primaryKey;size:64" json:"id"`
	OwnerID     string              `gorm:"index;not null;size:64" json:"ownerId"`
	GroupID     string              `gorm:"index;size:64" json:"groupId"`
	Symbol      string              `gorm:"index;not null;size:32" json:"symbol"`
	Direction   TradeDirection      `gorm:"not null;size:8" json:"direction"`
	EntryPrice  decimal.Decimal     `gorm:"type:numeric;not null" json:"entryPrice"`
	StopLoss    decimal.NullDecimal `gorm:"type:numeric" json:"stopLoss"`
	TakeProfit1 decimal.NullDecimal `gorm:"column:take_profit1;type:numeric" json:"takeProfit1"`
	TakeProfit2 decimal.NullDecimal `gorm:"column:take_profit2;type:numeric" json:"takeProfit2"`
	TakeProfit3 decimal.NullDecimal `gorm:"column:take_profit3;type:numeric" json:"takeProfit3"`
	Status      TradeIdeaStatus     `gorm:"index;not null;size:16" json:"status"`
	ClosedPrice decimal.NullDecimal `gorm:"type:numeric" json:"closedPrice"`
	ClosedAt    *time.Time          `json:"closedAt,omitempty"`
	PnL         decimal.NullDecimal `gorm:"column:pnl;type:numeric" json:"pnl"`
	CloseReason string              `gorm:"size:128" json:"closeReason,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// TableName overrides the gorm table name
func (TradeIdea) TableName() string {
	return "trade_ideas"
}

// TakeProfitTiers returns the configured tiers in declaration order.
// Unset tiers are skipped; the tier number is preserved.
func (t *TradeIdea) TakeProfitTiers() []TakeProfitTier {
	tiers := make([]TakeProfitTier, 0, 3)
	for i, tp := range []decimal.NullDecimal{t.TakeProfit1, t.TakeProfit2, t.TakeProfit3} {
		if tp.Valid {
			tiers = append(tiers, TakeProfitTier{Tier: i + 1, Price: tp.Decimal})
		}
	}
	return tiers
}

// TakeProfitTier is one preset favorable exit level
type TakeProfitTier struct {
	Tier  int             `json:"tier"`
	Price decimal.Decimal `json:"price"`
}

// TradeIdeaPatch is the set of fields written when a trade idea closes
type TradeIdeaPatch struct {
	Status      TradeIdeaStatus `json:"status"`
	ClosedPrice decimal.Decimal `json:"closedPrice"`
	ClosedAt    time.Time       `json:"closedAt"`
	PnL         decimal.Decimal `json:"pnl"`
	CloseReason string          `json:"closeReason"`
}

// Alert is a user price alert
type Alert struct {
	ID          string          `gorm:"primaryKey;size:64" json:"id"`
	OwnerID     string          `gorm:"index;not null;size:64" json:"ownerId"`
	Symbol      string          `gorm:"index;not null;size:32" json:"symbol"`
	Condition   AlertCondition  `gorm:"not null;size:16" json:"condition"`
	TargetPrice decimal.Decimal `gorm:"type:numeric;not null" json:"targetPrice"`
	Status      AlertStatus     `gorm:"index;not null;size:16" json:"status"`
	TriggeredAt *time.Time      `json:"triggeredAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// TableName overrides the gorm table name
func (Alert) TableName() string {
	return "alerts"
}

// Portfolio represents a paper portfolio
type Portfolio struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	OwnerID   string    `gorm:"index;not null;size:64" json:"ownerId"`
	Name      string    `gorm:"size:128" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the gorm table name
func (Portfolio) TableName() string {
	return "portfolios"
}

// Holding is one asset held in a portfolio
type Holding struct {
	ID           uint            `gorm:"primaryKey" json:"-"`
	PortfolioID  string          `gorm:"index;not null;size:64" json:"portfolioId"`
	Symbol       string          `gorm:"not null;size:32" json:"symbol"`
	Quantity     decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	AverageCost  decimal.Decimal `gorm:"type:numeric" json:"averageCost"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric;not null" json:"currentPrice"`
}

// TableName overrides the gorm table name
func (Holding) TableName() string {
	return "holdings"
}

// Value returns quantity times current price
func (h Holding) Value() decimal.Decimal {
	return h.Quantity.Mul(h.CurrentPrice)
}

// PortfolioValuePoint is one point of a portfolio's value history
type PortfolioValuePoint struct {
	ID          uint            `gorm:"primaryKey" json:"-"`
	PortfolioID string          `gorm:"index:idx_value_portfolio_time;not null;size:64" json:"portfolioId"`
	Timestamp   time.Time       `gorm:"index:idx_value_portfolio_time;not null" json:"timestamp"`
	Value       decimal.Decimal `gorm:"type:numeric;not null" json:"value"`
}

// TableName overrides the gorm table name
func (PortfolioValuePoint) TableName() string {
	return "portfolio_values"
}

// Degradation records a best-effort step that fell back to defaults
type Degradation struct {
	Component string `json:"component"`
	Reason    string `json:"reason"`
}
