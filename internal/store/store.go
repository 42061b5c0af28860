package store

import (
	"context"
	"time"

	"waitline/internal/models"
)

type CreateCenterInput struct {
	Name             string
	NumberOfCounters int
	CreatedAt        time.Time
}

type CreateUserInput struct {
	Name      string
	Phone     string
	CreatedAt time.Time
}

type EnqueueInput struct {
	UserID    string
	CenterID  string
	CounterID string
	Now       time.Time
}

// EnqueueResult carries the queue snapshot taken while the counter row
// was locked, so the caller can feed the estimator without re-reading.
type EnqueueResult struct {
	WaitingNumber int
	StaffCount    int
}

type RecordSlotInput struct {
	UserID               string
	CenterID             string
	CounterID            string
	WaitingNumber        int
	EstimatedWaitMinutes int
	Now                  time.Time
}

type CompleteServiceInput struct {
	CenterID  string
	CounterID string
	Now       time.Time
}

type Store interface {
	CreateCenter(ctx context.Context, input CreateCenterInput) (models.Center, error)
	GetCenter(ctx context.Context, centerID string) (models.Center, error)
	ListCenters(ctx context.Context) ([]models.Center, error)
	AddCounter(ctx context.Context, centerID string, now time.Time) (models.Center, error)

	CreateUser(ctx context.Context, input CreateUserInput) (models.User, bool, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	FindUserByPhone(ctx context.Context, phone string) (models.User, error)
	FindUsersByName(ctx context.Context, name string) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListSlots(ctx context.Context, userID string) ([]models.Slot, error)

	EnqueueUser(ctx context.Context, input EnqueueInput) (EnqueueResult, error)
	RecordSlot(ctx context.Context, input RecordSlotInput) (models.User, error)
	LatestWaitingSlot(ctx context.Context, userID, counterID string) (models.Slot, error)
	UpdateSlotEstimate(ctx context.Context, slotID string, minutes int, now time.Time) (models.User, error)
	ListWaitingSlots(ctx context.Context, limit int) ([]SlotRef, error)

	CompleteService(ctx context.Context, input CompleteServiceInput) (models.User, bool, error)
}

// SlotRef identifies a waiting slot for background estimate refresh.
type SlotRef struct {
	SlotID    string `json:"slot_id"`
	UserID    string `json:"user_id"`
	CounterID string `json:"counter_id"`
}
