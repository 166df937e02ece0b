package commission

// Per-level commission rates in basis points, keyed by event type.
// Index i is level i+1 (distance from the buyer). These are financial
// invariants, deliberately compiled in rather than configured at runtime.
var rateTableBps = map[EventType][3]int64{
	EventTypePackagePurchase: {2500, 500, 300},
	EventTypeCreditTopup:     {2500, 500, 300},
}

// RateBps returns the basis-point rate for a level (1-based), or 0 when
// out of range.
func RateBps(eventType EventType, level int) int64 {
	rates, ok := rateTableBps[eventType]
	if !ok || level < 1 || level > len(rates) {
		return 0
	}
	return rates[level-1]
}

// CommissionCents computes floor(amount * rateBps / 10000). Amounts are
// non-negative, so integer division is the floor.
func CommissionCents(amountCents, rateBps int64) int64 {
	return amountCents * rateBps / 10000
}
