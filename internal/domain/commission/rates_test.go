package commission

import "testing"

func TestRateTable(t *testing.T) {
	cases := []struct {
		eventType EventType
		level     int
		want      int64
	}{
		{EventTypePackagePurchase, 1, 2500},
		{EventTypePackagePurchase, 2, 500},
		{EventTypePackagePurchase, 3, 300},
		{EventTypeCreditTopup, 1, 2500},
		{EventTypeCreditTopup, 2, 500},
		{EventTypeCreditTopup, 3, 300},
		{EventTypePackagePurchase, 0, 0},
		{EventTypePackagePurchase, 4, 0},
		{EventType("UNKNOWN"), 1, 0},
	}
	for _, c := range cases {
		if got := RateBps(c.eventType, c.level); got != c.want {
			t.Errorf("RateBps(%s, %d) = %d, want %d", c.eventType, c.level, got, c.want)
		}
	}
}

func TestCommissionCentsFloors(t *testing.T) {
	cases := []struct {
		amount, rate, want int64
	}{
		{10000, 2500, 2500},
		{10000, 500, 500},
		{10000, 300, 300},
		{999, 2500, 249},  // 249.75 floors
		{3, 2500, 0},      // 0.75 floors to zero
		{1, 300, 0},
		{33333, 300, 999}, // 999.99 floors
	}
	for _, c := range cases {
		if got := CommissionCents(c.amount, c.rate); got != c.want {
			t.Errorf("CommissionCents(%d, %d) = %d, want %d", c.amount, c.rate, got, c.want)
		}
	}
}

func TestActionApply(t *testing.T) {
	legal := []struct {
		action  Action
		from    LedgerStatus
		to      LedgerStatus
	}{
		{ActionApprove, StatusPending, StatusApproved},
		{ActionMarkPaid, StatusApproved, StatusPaid},
		{ActionReverse, StatusPending, StatusReversed},
		{ActionReverse, StatusApproved, StatusReversed},
		{ActionReverse, StatusPaid, StatusReversed},
	}
	for _, c := range legal {
		got, err := c.action.Apply(c.from)
		if err != nil {
			t.Errorf("%s from %s: unexpected error %v", c.action, c.from, err)
			continue
		}
		if got != c.to {
			t.Errorf("%s from %s = %s, want %s", c.action, c.from, got, c.to)
		}
	}

	illegal := []struct {
		action Action
		from   LedgerStatus
	}{
		{ActionApprove, StatusApproved},
		{ActionApprove, StatusPaid},
		{ActionApprove, StatusReversed},
		{ActionMarkPaid, StatusPending},
		{ActionMarkPaid, StatusPaid},
		{ActionMarkPaid, StatusReversed},
		{ActionReverse, StatusReversed},
	}
	for _, c := range illegal {
		if _, err := c.action.Apply(c.from); err != ErrInvalidTransition {
			t.Errorf("%s from %s: expected ErrInvalidTransition, got %v", c.action, c.from, err)
		}
	}
}
