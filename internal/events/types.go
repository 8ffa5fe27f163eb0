package events

import (
	"solana-trade-sentinel/internal/domain"
)

// SignalGenerated builds a signal.generated event.
func SignalGenerated(tokenID, correlationID string, r domain.StrategyResult, price float64) domain.DecisionEvent {
	payload := map[string]any{
		"strategy": r.Strategy,
		"side":     r.Side(),
		"reason":   r.Reason,
		"price":    price,
	}
	if r.Score != nil {
		payload["score"] = *r.Score
	}
	return domain.DecisionEvent{
		Type:          domain.EventSignalGenerated,
		TokenID:       tokenID,
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// TradeDecision builds trade.approved or trade.rejected from a validation result.
func TradeDecision(tokenID, correlationID, strategy string, v domain.ValidationResult) domain.DecisionEvent {
	e := domain.DecisionEvent{
		TokenID:       tokenID,
		CorrelationID: correlationID,
		Payload: map[string]any{
			"strategy":       strategy,
			"passedFilters":  v.PassedFilters,
			"riskDataSource": string(v.Details.RiskDataSource),
			"liquiditySol":   v.Details.LiquiditySol,
		},
	}
	if v.Approved {
		e.Type = domain.EventTradeApproved
		return e
	}
	e.Type = domain.EventTradeRejected
	e.Payload["reasons"] = v.FailedFilters
	e.Payload["reason"] = v.Reason
	return e
}

// EmergencyExit builds position.emergencyExit.
func EmergencyExit(tokenID, correlationID, reason string, severity domain.Severity, detectors []string) domain.DecisionEvent {
	return domain.DecisionEvent{
		Type:          domain.EventEmergencyExit,
		TokenID:       tokenID,
		CorrelationID: correlationID,
		Payload: map[string]any{
			"reason":    reason,
			"severity":  string(severity),
			"detectors": detectors,
		},
	}
}

// TrailingUpdate builds position.trailingUpdate, or position.trailingExit when exit is set.
func TrailingUpdate(tokenID, correlationID string, state domain.TrailingStopState, currentPnlPct, drawdown float64, exit bool) domain.DecisionEvent {
	t := domain.EventTrailingUpdate
	if exit {
		t = domain.EventTrailingExit
	}
	return domain.DecisionEvent{
		Type:          t,
		TokenID:       tokenID,
		CorrelationID: correlationID,
		Payload: map[string]any{
			"highestPnlPct":     state.HighestPnlPct,
			"trailingActivated": state.TrailingActivated,
			"drawdownFromPeak":  drawdown,
			"currentPnlPct":     currentPnlPct,
		},
	}
}

// PriceAlert builds price.alert.
func PriceAlert(tokenID, alertID, direction string, target, price float64) domain.DecisionEvent {
	return domain.DecisionEvent{
		Type:    domain.EventPriceAlert,
		TokenID: tokenID,
		Payload: map[string]any{
			"alertId":   alertID,
			"direction": direction,
			"target":    target,
			"price":     price,
		},
	}
}
