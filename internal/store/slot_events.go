package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"waitline/internal/models"
)

// SlotEvent is an append-only audit record of a slot's life cycle.
// Each event's hash covers the previous event's hash, so a tampered
// history fails verification on rehydrate.
type SlotEvent struct {
	SlotID    string          `json:"slot_id"`
	SlotSeq   int             `json:"slot_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type slotEventPayload struct {
	SlotID               string     `json:"slot_id"`
	CenterID             string     `json:"center_id"`
	CounterID            string     `json:"counter_id"`
	Status               string     `json:"status"`
	WaitingNumber        *int       `json:"waiting_number"`
	EstimatedWaitMinutes *int       `json:"estimated_wait_minutes"`
	CreatedAt            *time.Time `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at"`
}

func ComputeSlotEventHash(prevHash, slotID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, slotID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

func RehydrateSlot(events []SlotEvent) (models.Slot, error) {
	var slot models.Slot
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload slotEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Slot{}, err
		}
		if payload.SlotID != "" {
			slot.SlotID = payload.SlotID
		}
		if payload.CenterID != "" {
			slot.CenterID = payload.CenterID
		}
		if payload.CounterID != "" {
			slot.CounterID = payload.CounterID
		}
		if payload.Status != "" {
			slot.Status = payload.Status
		}
		if payload.WaitingNumber != nil {
			slot.WaitingNumber = *payload.WaitingNumber
		}
		if payload.EstimatedWaitMinutes != nil {
			slot.EstimatedWaitMinutes = *payload.EstimatedWaitMinutes
		}
		if payload.CreatedAt != nil {
			slot.CreatedAt = *payload.CreatedAt
		}
		if payload.UpdatedAt != nil {
			slot.UpdatedAt = *payload.UpdatedAt
		}
	}
	return slot, nil
}
