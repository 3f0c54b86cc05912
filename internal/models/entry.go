package models

import "time"

type EntryStatus string

const (
	StatusWaiting         EntryStatus = "waiting"
	StatusNotified        EntryStatus = "notified"
	StatusSeated          EntryStatus = "seated"
	StatusCancelled       EntryStatus = "cancelled"
	StatusRemotePending   EntryStatus = "remote_pending"
	StatusRemoteConfirmed EntryStatus = "remote_confirmed"
	// StatusProcessing marks an entry handed out by select-next and not yet
	// seated or released. Only the engine moves entries into it.
	StatusProcessing EntryStatus = "processing"
)

// ActiveStatuses are the statuses of entries still occupying the queue.
var ActiveStatuses = []EntryStatus{
	StatusWaiting,
	StatusNotified,
	StatusRemotePending,
	StatusRemoteConfirmed,
	StatusProcessing,
}

func (s EntryStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusNotified, StatusSeated, StatusCancelled,
		StatusRemotePending, StatusRemoteConfirmed, StatusProcessing:
		return true
	}
	return false
}

func (s EntryStatus) Active() bool {
	for _, status := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type WaitlistEntry struct {
	EntryID           string      `json:"entry_id"`
	RestaurantID      string      `json:"restaurant_id"`
	RequestID         string      `json:"request_id,omitempty"`
	CustomerName      string      `json:"customer_name"`
	PartySize         int         `json:"party_size"`
	ContactPhone      string      `json:"contact_phone,omitempty"`
	ContactEmail      string      `json:"contact_email,omitempty"`
	Status            EntryStatus `json:"status"`
	QueuePosition     int64       `json:"queue_position"`
	EstimatedWait     int         `json:"estimated_wait_minutes"`
	TableTypeHint     string      `json:"table_type_hint,omitempty"`
	SeatedTableTypeID string      `json:"seated_table_type_id,omitempty"`
	IsRemote          bool        `json:"is_remote"`
	ExpectedArrival   *time.Time  `json:"expected_arrival,omitempty"`
	ConfirmationCode  string      `json:"confirmation_code,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	NotifiedAt        *time.Time  `json:"notified_at,omitempty"`
	SeatedAt          *time.Time  `json:"seated_at,omitempty"`
	ArrivedAt         *time.Time  `json:"arrived_at,omitempty"`
	SelectedAt        *time.Time  `json:"selected_at,omitempty"`
	DepartedAt        *time.Time  `json:"departed_at,omitempty"`
}

// WaitingMinutes reports how long the entry has been in the queue at now.
func (e WaitlistEntry) WaitingMinutes(now time.Time) float64 {
	if now.Before(e.CreatedAt) {
		return 0
	}
	return now.Sub(e.CreatedAt).Minutes()
}

// ApplyTransition moves the entry to status and stamps the timestamp that
// belongs to the new status. Existing timestamps are never overwritten.
func (e *WaitlistEntry) ApplyTransition(status EntryStatus, at time.Time, tableTypeID string) {
	e.Status = status
	stamp := func(field **time.Time) {
		if *field == nil {
			t := at
			*field = &t
		}
	}
	switch status {
	case StatusNotified:
		stamp(&e.NotifiedAt)
	case StatusSeated:
		stamp(&e.SeatedAt)
		if tableTypeID != "" {
			e.SeatedTableTypeID = tableTypeID
		} else if e.SeatedTableTypeID == "" {
			e.SeatedTableTypeID = e.TableTypeHint
		}
	case StatusRemoteConfirmed:
		stamp(&e.ArrivedAt)
		e.SelectedAt = nil
	case StatusProcessing:
		t := at
		e.SelectedAt = &t
	case StatusWaiting:
		e.SelectedAt = nil
	}
}

// ReleaseStatus is the status a processing entry returns to when released.
func (e WaitlistEntry) ReleaseStatus() EntryStatus {
	if e.IsRemote {
		return StatusRemoteConfirmed
	}
	return StatusWaiting
}
