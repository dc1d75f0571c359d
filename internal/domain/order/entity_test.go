package order

import "testing"

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusFailed},
		{StatusPending, StatusRefunded},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
		{StatusProcessing, StatusRefunded},
		{StatusProcessing, StatusAPIError},
		{StatusFailed, StatusRefunded},
		{StatusAPIError, StatusRefunded},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusCompleted, StatusRefunded},
		{StatusCompleted, StatusFailed},
		{StatusRefunded, StatusCompleted},
		{StatusRefunded, StatusPending},
		{StatusFailed, StatusCompleted},
		{StatusProcessing, StatusPending},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}

	// Same-status is always a no-op error
	for _, s := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRefunded, StatusAPIError} {
		if s.CanTransitionTo(s) {
			t.Errorf("%s -> %s must be rejected", s, s)
		}
	}
}

func TestReservationHeld(t *testing.T) {
	o := &Order{Status: StatusPending, ReservationConfirmed: false}
	if !o.ReservationHeld() {
		t.Error("pending manual order should hold its reservation")
	}

	o = &Order{Status: StatusProcessing, ReservationConfirmed: true}
	if o.ReservationHeld() {
		t.Error("confirmed reservation is no longer held")
	}

	o = &Order{Status: StatusFailed, ReservationConfirmed: false}
	if o.ReservationHeld() {
		t.Error("terminal order holds nothing")
	}
}
