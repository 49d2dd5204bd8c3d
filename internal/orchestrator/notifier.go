package orchestrator

// EventType names an execution event
type EventType string

const (
	EventPositionClosed EventType = "position_closed"
	EventIdeaClosed     EventType = "trade_idea_closed"
	EventAlertTriggered EventType = "alert_triggered"
)

// Event is published whenever a decision is applied
type Event struct {
	Type    EventType   `json:"type"`
	Channel string      `json:"channel"`
	Symbol  string      `json:"symbol"`
	Data    interface{} `json:"data"`
}

// Notifier receives execution events. Implementations must not block.
type Notifier interface {
	Notify(event Event)
}

// PositionChannel is the channel for a user's position events
func PositionChannel(ownerID string) string { return "positions:" + ownerID }

// IdeaChannel is the channel for a group's trade idea events
func IdeaChannel(groupID string) string { return "ideas:" + groupID }

// AlertChannel is the channel for a user's alert events
func AlertChannel(ownerID string) string { return "alerts:" + ownerID }

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
