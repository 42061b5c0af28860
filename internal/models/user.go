package models

import "time"

type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status,omitempty"`
	Slots     []Slot    `json:"slots"`
	CreatedAt time.Time `json:"created_at"`
}

type Slot struct {
	SlotID               string    `json:"slot_id"`
	CenterID             string    `json:"center_id"`
	CounterID            string    `json:"counter_id"`
	WaitingNumber        int       `json:"waiting_number"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

const (
	StatusWaiting   = "waiting"
	StatusServing   = "serving"
	StatusCompleted = "completed"
)
