package domain

import "time"

// EventType names a decision event.
type EventType string

const (
	EventSignalGenerated EventType = "signal.generated"
	EventTradeApproved   EventType = "trade.approved"
	EventTradeRejected   EventType = "trade.rejected"
	EventEmergencyExit   EventType = "position.emergencyExit"
	EventTrailingUpdate  EventType = "position.trailingUpdate"
	EventTrailingExit    EventType = "position.trailingExit"
	EventPriceAlert      EventType = "price.alert"
)

// DecisionEvent is one emitted decision. Payload holds JSON-compatible values.
type DecisionEvent struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	TokenID       string         `json:"tokenId"`
	CorrelationID string         `json:"correlationId,omitempty"` // sweep that produced it
	Seq           int            `json:"seq,omitempty"`           // position within the sweep
	OccurredAt    time.Time      `json:"occurredAt"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Clone returns a copy with a shallow-copied payload map.
func (e *DecisionEvent) Clone() *DecisionEvent {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Payload != nil {
		cp.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			cp.Payload[k] = v
		}
	}
	return &cp
}
