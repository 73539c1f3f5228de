package billing

import "time"

// TriggerReason identifies why a statement was generated
type TriggerReason string

const (
	TriggerManual           TriggerReason = "MANUAL"
	TriggerBillingCycle     TriggerReason = "BILLING_CYCLE"
	TriggerBalanceThreshold TriggerReason = "BALANCE_THRESHOLD"
	TriggerOrderCount       TriggerReason = "ORDER_COUNT"
)

// String returns the string representation of TriggerReason
func (r TriggerReason) String() string {
	return string(r)
}

// EvaluateTriggers decides whether a channel is due for a statement under the
// given policy. Checks run in a fixed order (cycle, balance, order count) and
// the last matching reason is the one recorded on the statement, so a
// threshold breach overrides a plain cycle expiry in the audit trail.
// Manual generation bypasses this entirely.
func EvaluateTriggers(cfg *StatementConfig, ch *Channel, unbilledCount int64, now time.Time) (TriggerReason, bool) {
	var reason TriggerReason
	triggered := false

	if now.Sub(ch.BillingAnchor()) >= cfg.CycleDuration() {
		reason = TriggerBillingCycle
		triggered = true
	}
	if cfg.BalanceThreshold != nil && ch.PendingBalance.GreaterThanOrEqual(*cfg.BalanceThreshold) {
		reason = TriggerBalanceThreshold
		triggered = true
	}
	if cfg.OrderCountThreshold != nil && unbilledCount >= int64(*cfg.OrderCountThreshold) {
		reason = TriggerOrderCount
		triggered = true
	}

	return reason, triggered
}
