package store

import "tablequeue/waitlist-service/internal/models"

const (
	ActionNotify  = "notify"
	ActionSeat    = "seat"
	ActionCancel  = "cancel"
	ActionConfirm = "confirm"
	ActionCheckIn = "check_in"
	ActionSelect  = "select"
	ActionRelease = "release"
	ActionExpire  = "expire"
)

var transitionMap = map[string][]models.EntryStatus{
	ActionNotify:  {models.StatusWaiting},
	ActionSeat:    {models.StatusWaiting, models.StatusNotified, models.StatusRemoteConfirmed, models.StatusProcessing},
	ActionCancel:  {models.StatusWaiting, models.StatusNotified, models.StatusRemotePending, models.StatusRemoteConfirmed, models.StatusProcessing},
	ActionConfirm: {models.StatusRemotePending},
	ActionCheckIn: {models.StatusRemotePending, models.StatusRemoteConfirmed},
	ActionSelect:  {models.StatusWaiting, models.StatusRemoteConfirmed},
	ActionRelease: {models.StatusProcessing},
	ActionExpire:  {models.StatusRemotePending},
}

// staffActions maps a status requested through a plain status update to the
// action it performs. Statuses missing here cannot be requested directly.
var staffActions = map[models.EntryStatus]string{
	models.StatusNotified:        ActionNotify,
	models.StatusSeated:          ActionSeat,
	models.StatusCancelled:       ActionCancel,
	models.StatusRemoteConfirmed: ActionConfirm,
}

func ValidTransition(action string, fromStatus models.EntryStatus) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// ActionForStatus returns the action a direct status update to target maps to.
func ActionForStatus(target models.EntryStatus) (string, bool) {
	action, ok := staffActions[target]
	return action, ok
}

// EventType names the outbox/audit event emitted for an action.
func EventType(action string) string {
	switch action {
	case ActionNotify:
		return "waitlist.entry.notified"
	case ActionSeat:
		return "waitlist.entry.seated"
	case ActionCancel:
		return "waitlist.entry.cancelled"
	case ActionConfirm:
		return "waitlist.entry.confirmed"
	case ActionCheckIn:
		return "waitlist.entry.checked_in"
	case ActionSelect:
		return "waitlist.entry.selected"
	case ActionRelease:
		return "waitlist.entry.released"
	case ActionExpire:
		return "waitlist.entry.expired"
	}
	return "waitlist.entry." + action
}

const (
	EventEntryCreated  = "waitlist.entry.created"
	EventEntryDeparted = "waitlist.entry.departed"
)
