package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"tablequeue/waitlist-service/internal/models"
)

type EntryEvent struct {
	EntryID   string          `json:"entry_id"`
	EntrySeq  int             `json:"entry_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type eventPayload struct {
	EntryID           string     `json:"entry_id"`
	RestaurantID      string     `json:"restaurant_id"`
	CustomerName      string     `json:"customer_name,omitempty"`
	PartySize         int        `json:"party_size,omitempty"`
	Status            string     `json:"status"`
	QueuePosition     int64      `json:"queue_position,omitempty"`
	IsRemote          bool       `json:"is_remote"`
	TableTypeHint     string     `json:"table_type_hint,omitempty"`
	SeatedTableTypeID string     `json:"seated_table_type_id,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	NotifiedAt        *time.Time `json:"notified_at,omitempty"`
	SeatedAt          *time.Time `json:"seated_at,omitempty"`
	ArrivedAt         *time.Time `json:"arrived_at,omitempty"`
	DepartedAt        *time.Time `json:"departed_at,omitempty"`
}

// EntryPayload renders the snapshot of entry carried by outbox and audit events.
func EntryPayload(entry models.WaitlistEntry) ([]byte, error) {
	createdAt := entry.CreatedAt
	return json.Marshal(eventPayload{
		EntryID:           entry.EntryID,
		RestaurantID:      entry.RestaurantID,
		CustomerName:      entry.CustomerName,
		PartySize:         entry.PartySize,
		Status:            string(entry.Status),
		QueuePosition:     entry.QueuePosition,
		IsRemote:          entry.IsRemote,
		TableTypeHint:     entry.TableTypeHint,
		SeatedTableTypeID: entry.SeatedTableTypeID,
		CreatedAt:         &createdAt,
		NotifiedAt:        entry.NotifiedAt,
		SeatedAt:          entry.SeatedAt,
		ArrivedAt:         entry.ArrivedAt,
		DepartedAt:        entry.DepartedAt,
	})
}

func ComputeEntryEventHash(prevHash, entryID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, entryID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// NextEntryEvent chains a new event after prev. A nil prev starts the chain.
func NextEntryEvent(prev *EntryEvent, entryID, eventType string, payload json.RawMessage, createdAt time.Time) EntryEvent {
	seq := 1
	prevHash := ""
	if prev != nil {
		seq = prev.EntrySeq + 1
		prevHash = prev.Hash
	}
	return EntryEvent{
		EntryID:   entryID,
		EntrySeq:  seq,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: createdAt,
		PrevHash:  prevHash,
		Hash:      ComputeEntryEventHash(prevHash, entryID, eventType, payload, createdAt, seq),
	}
}

// VerifyEntryEvents checks that events form an unbroken hash chain.
func VerifyEntryEvents(events []EntryEvent) error {
	prevHash := ""
	for i, event := range events {
		if event.EntrySeq != i+1 {
			return fmt.Errorf("event %d: unexpected sequence %d", i, event.EntrySeq)
		}
		if event.PrevHash != prevHash {
			return fmt.Errorf("event %d: previous hash mismatch", event.EntrySeq)
		}
		want := ComputeEntryEventHash(event.PrevHash, event.EntryID, event.Type, event.Payload, event.CreatedAt, event.EntrySeq)
		if event.Hash != want {
			return fmt.Errorf("event %d: hash mismatch", event.EntrySeq)
		}
		prevHash = event.Hash
	}
	return nil
}

func RehydrateEntry(events []EntryEvent) (models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload eventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.WaitlistEntry{}, err
		}
		if payload.EntryID != "" {
			entry.EntryID = payload.EntryID
		}
		if payload.RestaurantID != "" {
			entry.RestaurantID = payload.RestaurantID
		}
		if payload.CustomerName != "" {
			entry.CustomerName = payload.CustomerName
		}
		if payload.PartySize != 0 {
			entry.PartySize = payload.PartySize
		}
		if payload.Status != "" {
			entry.Status = models.EntryStatus(payload.Status)
		}
		if payload.QueuePosition != 0 {
			entry.QueuePosition = payload.QueuePosition
		}
		entry.IsRemote = payload.IsRemote
		if payload.TableTypeHint != "" {
			entry.TableTypeHint = payload.TableTypeHint
		}
		if payload.SeatedTableTypeID != "" {
			entry.SeatedTableTypeID = payload.SeatedTableTypeID
		}
		if payload.CreatedAt != nil {
			entry.CreatedAt = *payload.CreatedAt
		}
		if payload.NotifiedAt != nil {
			entry.NotifiedAt = payload.NotifiedAt
		}
		if payload.SeatedAt != nil {
			entry.SeatedAt = payload.SeatedAt
		}
		if payload.ArrivedAt != nil {
			entry.ArrivedAt = payload.ArrivedAt
		}
		if payload.DepartedAt != nil {
			entry.DepartedAt = payload.DepartedAt
		}
	}
	return entry, nil
}
