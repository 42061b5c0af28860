package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRehydrateSlot(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	updated := created.Add(10 * time.Minute)
	wn := 3
	est := 4
	est2 := 7

	mustPayload := func(p slotEventPayload) json.RawMessage {
		raw, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		return raw
	}

	events := []SlotEvent{
		{
			SlotID:  "slot-1",
			SlotSeq: 1,
			Type:    "booked",
			Payload: mustPayload(slotEventPayload{
				SlotID:               "slot-1",
				CenterID:             "center-1",
				CounterID:            "downtown-counter-1",
				Status:               "waiting",
				WaitingNumber:        &wn,
				EstimatedWaitMinutes: &est,
				CreatedAt:            &created,
			}),
		},
		{
			SlotID:  "slot-1",
			SlotSeq: 2,
			Type:    "estimate_updated",
			Payload: mustPayload(slotEventPayload{
				EstimatedWaitMinutes: &est2,
				UpdatedAt:            &updated,
			}),
		},
		{
			SlotID:  "slot-1",
			SlotSeq: 3,
			Type:    "completed",
			Payload: mustPayload(slotEventPayload{Status: "completed"}),
		},
	}

	slot, err := RehydrateSlot(events)
	if err != nil {
		t.Fatalf("RehydrateSlot: %v", err)
	}
	if slot.SlotID != "slot-1" || slot.CounterID != "downtown-counter-1" {
		t.Fatalf("unexpected identity: %+v", slot)
	}
	if slot.Status != "completed" {
		t.Fatalf("status=%q, want completed", slot.Status)
	}
	if slot.WaitingNumber != 3 || slot.EstimatedWaitMinutes != 7 {
		t.Fatalf("numbers=%d/%d, want 3/7", slot.WaitingNumber, slot.EstimatedWaitMinutes)
	}
	if !slot.UpdatedAt.Equal(updated) {
		t.Fatalf("updated_at=%v, want %v", slot.UpdatedAt, updated)
	}
}

func TestComputeSlotEventHashChains(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	payload := json.RawMessage(`{"slot_id":"slot-1"}`)

	first := ComputeSlotEventHash("", "slot-1", "booked", payload, at, 1)
	second := ComputeSlotEventHash(first, "slot-1", "completed", payload, at.Add(time.Minute), 2)

	if first == "" || second == "" || first == second {
		t.Fatalf("hashes not distinct: %q %q", first, second)
	}
	if got := ComputeSlotEventHash("", "slot-1", "booked", payload, at, 1); got != first {
		t.Fatalf("hash not deterministic: %q vs %q", got, first)
	}
	if got := ComputeSlotEventHash("tampered", "slot-1", "completed", payload, at.Add(time.Minute), 2); got == second {
		t.Fatal("hash ignores prev hash")
	}
}
