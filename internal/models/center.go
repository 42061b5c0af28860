package models

import "time"

type Center struct {
	CenterID         string    `json:"center_id"`
	Name             string    `json:"name"`
	NumberOfCounters int       `json:"number_of_counters"`
	Counters         []Counter `json:"counters"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Counter ids are derived from the center name, e.g. "downtown-counter-1",
// and stay unique within their center. Queue holds user ids in FIFO order;
// the head is the visitor currently being served.
type Counter struct {
	CounterID string   `json:"counter_id"`
	CenterID  string   `json:"center_id"`
	Position  int      `json:"position"`
	Queue     []string `json:"queue"`
}
