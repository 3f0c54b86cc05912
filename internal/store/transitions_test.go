package store

import (
	"testing"

	"tablequeue/waitlist-service/internal/models"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action string
		from   models.EntryStatus
		valid  bool
	}{
		{ActionNotify, models.StatusWaiting, true},
		{ActionNotify, models.StatusNotified, false},
		{ActionSeat, models.StatusWaiting, true},
		{ActionSeat, models.StatusNotified, true},
		{ActionSeat, models.StatusRemoteConfirmed, true},
		{ActionSeat, models.StatusProcessing, true},
		{ActionSeat, models.StatusRemotePending, false},
		{ActionSeat, models.StatusCancelled, false},
		{ActionCancel, models.StatusWaiting, true},
		{ActionCancel, models.StatusRemotePending, true},
		{ActionCancel, models.StatusSeated, false},
		{ActionCancel, models.StatusCancelled, false},
		{ActionConfirm, models.StatusRemotePending, true},
		{ActionConfirm, models.StatusWaiting, false},
		{ActionCheckIn, models.StatusRemotePending, true},
		{ActionCheckIn, models.StatusRemoteConfirmed, true},
		{ActionCheckIn, models.StatusSeated, false},
		{ActionSelect, models.StatusWaiting, true},
		{ActionSelect, models.StatusRemoteConfirmed, true},
		{ActionSelect, models.StatusNotified, false},
		{ActionSelect, models.StatusProcessing, false},
		{ActionRelease, models.StatusProcessing, true},
		{ActionRelease, models.StatusWaiting, false},
		{ActionExpire, models.StatusRemotePending, true},
		{ActionExpire, models.StatusCancelled, false},
		{"unknown", models.StatusWaiting, false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestActionForStatus(t *testing.T) {
	cases := []struct {
		target models.EntryStatus
		action string
		ok     bool
	}{
		{models.StatusNotified, ActionNotify, true},
		{models.StatusSeated, ActionSeat, true},
		{models.StatusCancelled, ActionCancel, true},
		{models.StatusRemoteConfirmed, ActionConfirm, true},
		{models.StatusProcessing, "", false},
		{models.StatusWaiting, "", false},
		{models.StatusRemotePending, "", false},
	}
	for _, tt := range cases {
		action, ok := ActionForStatus(tt.target)
		if action != tt.action || ok != tt.ok {
			t.Fatalf("ActionForStatus(%q)=(%q,%v), want (%q,%v)", tt.target, action, ok, tt.action, tt.ok)
		}
	}
}
