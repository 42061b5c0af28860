package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"waitline/internal/models"
	"waitline/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so load
// helpers work inside and outside transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) CreateCenter(ctx context.Context, input store.CreateCenterInput) (models.Center, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Center{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	centerID := uuid.NewString()
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO centers (center_id, name, number_of_counters, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, centerID, input.Name, input.NumberOfCounters, createdAt)
	if err != nil {
		return models.Center{}, err
	}

	slug := slugify(input.Name)
	for i := 1; i <= input.NumberOfCounters; i++ {
		_, err = tx.Exec(ctx, `
			INSERT INTO counters (center_id, counter_id, position, next_seq)
			VALUES ($1, $2, $3, 0)
		`, centerID, fmt.Sprintf("%s-counter-%d", slug, i), i)
		if err != nil {
			return models.Center{}, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Center{}, err
	}

	return loadCenter(ctx, s.pool, centerID)
}

func (s *Store) GetCenter(ctx context.Context, centerID string) (models.Center, error) {
	return loadCenter(ctx, s.pool, centerID)
}

func (s *Store) ListCenters(ctx context.Context) ([]models.Center, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT center_id
		FROM centers
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	centers := make([]models.Center, 0, len(ids))
	for _, id := range ids {
		center, err := loadCenter(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		centers = append(centers, center)
	}
	return centers, nil
}

func (s *Store) AddCounter(ctx context.Context, centerID string, now time.Time) (models.Center, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Center{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var name string
	var count int
	row := tx.QueryRow(ctx, `
		SELECT name, number_of_counters
		FROM centers
		WHERE center_id = $1
		FOR UPDATE
	`, centerID)
	if err = row.Scan(&name, &count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrCenterNotFound
		}
		return models.Center{}, err
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	position := count + 1

	_, err = tx.Exec(ctx, `
		INSERT INTO counters (center_id, counter_id, position, next_seq)
		VALUES ($1, $2, $3, 0)
	`, centerID, fmt.Sprintf("%s-counter-%d", slugify(name), position), position)
	if err != nil {
		return models.Center{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE centers
		SET number_of_counters = $1,
			updated_at = $2
		WHERE center_id = $3
	`, position, now, centerID)
	if err != nil {
		return models.Center{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Center{}, err
	}

	return loadCenter(ctx, s.pool, centerID)
}

func (s *Store) CreateUser(ctx context.Context, input store.CreateUserInput) (models.User, bool, error) {
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var userID string
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (user_id, name, phone, status, created_at)
		VALUES ($1, $2, $3, '', $4)
		ON CONFLICT (phone) DO NOTHING
		RETURNING user_id
	`, uuid.NewString(), input.Name, input.Phone, createdAt)
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, lookupErr := s.FindUserByPhone(ctx, input.Phone)
			if lookupErr != nil {
				return models.User{}, false, lookupErr
			}
			return existing, false, nil
		}
		return models.User{}, false, err
	}

	user, err := loadUser(ctx, s.pool, userID)
	if err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	return loadUser(ctx, s.pool, userID)
}

func (s *Store) FindUserByPhone(ctx context.Context, phone string) (models.User, error) {
	var userID string
	row := s.pool.QueryRow(ctx, `
		SELECT user_id
		FROM users
		WHERE phone = $1
	`, phone)
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrUserNotFound
		}
		return models.User{}, err
	}
	return loadUser(ctx, s.pool, userID)
}

func (s *Store) FindUsersByName(ctx context.Context, name string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id
		FROM users
		WHERE LOWER(name) = LOWER($1)
		ORDER BY created_at ASC
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		user, err := loadUser(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id
		FROM users
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		user, err := loadUser(ctx, s.pool, id)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) ListSlots(ctx context.Context, userID string) ([]models.Slot, error) {
	user, err := loadUser(ctx, s.pool, userID)
	if err != nil {
		return nil, err
	}
	return user.Slots, nil
}

// EnqueueUser appends the user to the counter's queue. The counter row
// is locked FOR UPDATE for the whole transaction, so the queue count
// and the appended seq are consistent under concurrent bookings.
func (s *Store) EnqueueUser(ctx context.Context, input store.EnqueueInput) (store.EnqueueResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.EnqueueResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	row := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, input.UserID)
	if err = row.Scan(&exists); err != nil {
		return store.EnqueueResult{}, err
	}
	if !exists {
		err = store.ErrUserNotFound
		return store.EnqueueResult{}, err
	}

	var staffCount int
	row = tx.QueryRow(ctx, `
		SELECT number_of_counters
		FROM centers
		WHERE center_id = $1
	`, input.CenterID)
	if err = row.Scan(&staffCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrCenterNotFound
		}
		return store.EnqueueResult{}, err
	}

	var seq int64
	row = tx.QueryRow(ctx, `
		SELECT next_seq
		FROM counters
		WHERE center_id = $1 AND counter_id = $2
		FOR UPDATE
	`, input.CenterID, input.CounterID)
	if err = row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrCounterNotFound
		}
		return store.EnqueueResult{}, err
	}

	var queued bool
	row = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM queue_entries
			WHERE center_id = $1 AND counter_id = $2 AND user_id = $3
		)
	`, input.CenterID, input.CounterID, input.UserID)
	if err = row.Scan(&queued); err != nil {
		return store.EnqueueResult{}, err
	}
	if queued {
		err = store.ErrAlreadyQueued
		return store.EnqueueResult{}, err
	}

	var length int
	row = tx.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM queue_entries
		WHERE center_id = $1 AND counter_id = $2
	`, input.CenterID, input.CounterID)
	if err = row.Scan(&length); err != nil {
		return store.EnqueueResult{}, err
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err = tx.Exec(ctx, `
		UPDATE counters
		SET next_seq = next_seq + 1
		WHERE center_id = $1 AND counter_id = $2
	`, input.CenterID, input.CounterID)
	if err != nil {
		return store.EnqueueResult{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO queue_entries (center_id, counter_id, seq, user_id, enqueued_at)
		VALUES ($1, $2, $3, $4, $5)
	`, input.CenterID, input.CounterID, seq+1, input.UserID, now)
	if err != nil {
		return store.EnqueueResult{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE centers
		SET updated_at = $1
		WHERE center_id = $2
	`, now, input.CenterID)
	if err != nil {
		return store.EnqueueResult{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return store.EnqueueResult{}, err
	}

	return store.EnqueueResult{WaitingNumber: length + 1, StaffCount: staffCount}, nil
}

func (s *Store) RecordSlot(ctx context.Context, input store.RecordSlotInput) (models.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.User{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	slotID := uuid.NewString()

	_, err = tx.Exec(ctx, `
		INSERT INTO slots (slot_id, user_id, center_id, counter_id, waiting_number, estimated_wait_minutes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, slotID, input.UserID, input.CenterID, input.CounterID, input.WaitingNumber, input.EstimatedWaitMinutes, models.StatusWaiting, now)
	if err != nil {
		return models.User{}, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET status = $1
		WHERE user_id = $2
	`, models.StatusWaiting, input.UserID)
	if err != nil {
		return models.User{}, err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrUserNotFound
		return models.User{}, err
	}

	payload := map[string]interface{}{
		"slot_id":                slotID,
		"center_id":              input.CenterID,
		"counter_id":             input.CounterID,
		"status":                 models.StatusWaiting,
		"waiting_number":         input.WaitingNumber,
		"estimated_wait_minutes": input.EstimatedWaitMinutes,
		"created_at":             now,
	}
	if err = insertSlotEvent(ctx, tx, slotID, "slot.booked", payload); err != nil {
		return models.User{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.User{}, err
	}

	return loadUser(ctx, s.pool, input.UserID)
}

func (s *Store) LatestWaitingSlot(ctx context.Context, userID, counterID string) (models.Slot, error) {
	var slot models.Slot
	row := s.pool.QueryRow(ctx, `
		SELECT slot_id, center_id, counter_id, waiting_number, estimated_wait_minutes, status, created_at, updated_at
		FROM slots
		WHERE user_id = $1 AND counter_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, counterID, models.StatusWaiting)
	if err := row.Scan(&slot.SlotID, &slot.CenterID, &slot.CounterID, &slot.WaitingNumber, &slot.EstimatedWaitMinutes, &slot.Status, &slot.CreatedAt, &slot.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Slot{}, store.ErrSlotNotFound
		}
		return models.Slot{}, err
	}
	return slot, nil
}

func (s *Store) UpdateSlotEstimate(ctx context.Context, slotID string, minutes int, now time.Time) (models.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.User{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if now.IsZero() {
		now = time.Now().UTC()
	}

	var userID string
	row := tx.QueryRow(ctx, `
		UPDATE slots
		SET estimated_wait_minutes = $1,
			updated_at = $2
		WHERE slot_id = $3
		RETURNING user_id
	`, minutes, now, slotID)
	if err = row.Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrSlotNotFound
		}
		return models.User{}, err
	}

	payload := map[string]interface{}{
		"estimated_wait_minutes": minutes,
		"updated_at":             now,
	}
	if err = insertSlotEvent(ctx, tx, slotID, "slot.estimate_updated", payload); err != nil {
		return models.User{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.User{}, err
	}

	return loadUser(ctx, s.pool, userID)
}

func (s *Store) ListWaitingSlots(ctx context.Context, limit int) ([]store.SlotRef, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT slot_id, user_id, counter_id
		FROM slots
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, models.StatusWaiting, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []store.SlotRef
	for rows.Next() {
		var ref store.SlotRef
		if err := rows.Scan(&ref.SlotID, &ref.UserID, &ref.CounterID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

// CompleteService pops the head of the counter's queue, completes that
// visitor, and promotes the next head to serving. The whole mutation is
// one transaction under the counter lock.
func (s *Store) CompleteService(ctx context.Context, input store.CompleteServiceInput) (models.User, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.User{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	row := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM centers WHERE center_id = $1)`, input.CenterID)
	if err = row.Scan(&exists); err != nil {
		return models.User{}, false, err
	}
	if !exists {
		err = store.ErrCenterNotFound
		return models.User{}, false, err
	}

	var seq int64
	row = tx.QueryRow(ctx, `
		SELECT next_seq
		FROM counters
		WHERE center_id = $1 AND counter_id = $2
		FOR UPDATE
	`, input.CenterID, input.CounterID)
	if err = row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrCounterNotFound
		}
		return models.User{}, false, err
	}

	var headUser string
	var headSeq int64
	row = tx.QueryRow(ctx, `
		SELECT user_id, seq
		FROM queue_entries
		WHERE center_id = $1 AND counter_id = $2
		ORDER BY seq ASC
		LIMIT 1
	`, input.CenterID, input.CounterID)
	if err = row.Scan(&headUser, &headSeq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrEmptyQueue
		}
		return models.User{}, false, err
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM queue_entries
		WHERE center_id = $1 AND counter_id = $2 AND seq = $3
	`, input.CenterID, input.CounterID, headSeq)
	if err != nil {
		return models.User{}, false, err
	}

	userFound := true
	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET status = $1
		WHERE user_id = $2
	`, models.StatusCompleted, headUser)
	if err != nil {
		return models.User{}, false, err
	}
	if tag.RowsAffected() == 0 {
		userFound = false
	}

	if err = transitionLatestSlot(ctx, tx, headUser, input.CenterID, input.CounterID, "complete", models.StatusCompleted, now); err != nil {
		return models.User{}, false, err
	}

	var nextUser string
	row = tx.QueryRow(ctx, `
		SELECT user_id
		FROM queue_entries
		WHERE center_id = $1 AND counter_id = $2
		ORDER BY seq ASC
		LIMIT 1
	`, input.CenterID, input.CounterID)
	if err = row.Scan(&nextUser); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, false, err
		}
		err = nil
	} else {
		if err = transitionLatestSlot(ctx, tx, nextUser, input.CenterID, input.CounterID, "serve", models.StatusServing, now); err != nil {
			return models.User{}, false, err
		}
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET status = $1
			WHERE user_id = $2
		`, models.StatusServing, nextUser)
		if err != nil {
			return models.User{}, false, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE centers
		SET updated_at = $1
		WHERE center_id = $2
	`, now, input.CenterID)
	if err != nil {
		return models.User{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.User{}, false, err
	}

	if !userFound {
		return models.User{}, false, nil
	}
	user, err := loadUser(ctx, s.pool, headUser)
	if err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

// transitionLatestSlot moves the user's most recent open slot on the
// counter to toStatus, guarded by the transition table. A missing open
// slot is not an error: queue entries can outlive their slot rows.
func transitionLatestSlot(ctx context.Context, tx pgx.Tx, userID, centerID, counterID, action, toStatus string, now time.Time) error {
	var slotID, status string
	row := tx.QueryRow(ctx, `
		SELECT slot_id, status
		FROM slots
		WHERE user_id = $1 AND center_id = $2 AND counter_id = $3 AND status IN ($4, $5)
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, centerID, counterID, models.StatusWaiting, models.StatusServing)
	if err := row.Scan(&slotID, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if !store.ValidTransition(action, status) {
		return nil
	}

	_, err := tx.Exec(ctx, `
		UPDATE slots
		SET status = $1,
			updated_at = $2
		WHERE slot_id = $3
	`, toStatus, now, slotID)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"status":     toStatus,
		"updated_at": now,
	}
	return insertSlotEvent(ctx, tx, slotID, "slot."+toStatus, payload)
}

func loadCenter(ctx context.Context, q querier, centerID string) (models.Center, error) {
	var center models.Center
	row := q.QueryRow(ctx, `
		SELECT center_id, name, number_of_counters, created_at, updated_at
		FROM centers
		WHERE center_id = $1
	`, centerID)
	if err := row.Scan(&center.CenterID, &center.Name, &center.NumberOfCounters, &center.CreatedAt, &center.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Center{}, store.ErrCenterNotFound
		}
		return models.Center{}, err
	}

	rows, err := q.Query(ctx, `
		SELECT counter_id, position
		FROM counters
		WHERE center_id = $1
		ORDER BY position ASC
	`, centerID)
	if err != nil {
		return models.Center{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var counter models.Counter
		if err := rows.Scan(&counter.CounterID, &counter.Position); err != nil {
			return models.Center{}, err
		}
		counter.CenterID = centerID
		counter.Queue = []string{}
		center.Counters = append(center.Counters, counter)
	}
	if err := rows.Err(); err != nil {
		return models.Center{}, err
	}

	queueRows, err := q.Query(ctx, `
		SELECT counter_id, user_id
		FROM queue_entries
		WHERE center_id = $1
		ORDER BY counter_id ASC, seq ASC
	`, centerID)
	if err != nil {
		return models.Center{}, err
	}
	defer queueRows.Close()

	queues := make(map[string][]string)
	for queueRows.Next() {
		var counterID, userID string
		if err := queueRows.Scan(&counterID, &userID); err != nil {
			return models.Center{}, err
		}
		queues[counterID] = append(queues[counterID], userID)
	}
	if err := queueRows.Err(); err != nil {
		return models.Center{}, err
	}
	for i := range center.Counters {
		if queue, ok := queues[center.Counters[i].CounterID]; ok {
			center.Counters[i].Queue = queue
		}
	}

	return center, nil
}

func loadUser(ctx context.Context, q querier, userID string) (models.User, error) {
	var user models.User
	var statusNull sql.NullString
	row := q.QueryRow(ctx, `
		SELECT user_id, name, phone, status, created_at
		FROM users
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&user.UserID, &user.Name, &user.Phone, &statusNull, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrUserNotFound
		}
		return models.User{}, err
	}
	if statusNull.Valid {
		user.Status = statusNull.String
	}

	rows, err := q.Query(ctx, `
		SELECT slot_id, center_id, counter_id, waiting_number, estimated_wait_minutes, status, created_at, updated_at
		FROM slots
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return models.User{}, err
	}
	defer rows.Close()

	user.Slots = []models.Slot{}
	for rows.Next() {
		var slot models.Slot
		if err := rows.Scan(&slot.SlotID, &slot.CenterID, &slot.CounterID, &slot.WaitingNumber, &slot.EstimatedWaitMinutes, &slot.Status, &slot.CreatedAt, &slot.UpdatedAt); err != nil {
			return models.User{}, err
		}
		user.Slots = append(user.Slots, slot)
	}
	if err := rows.Err(); err != nil {
		return models.User{}, err
	}

	return user, nil
}

func insertSlotEvent(ctx context.Context, tx pgx.Tx, slotID, eventType string, payload map[string]interface{}) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotID); err != nil {
		return err
	}

	payloadJSON, err := jsonBytes(payload)
	if err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT slot_seq, hash
		FROM slot_events
		WHERE slot_id = $1
		ORDER BY slot_seq DESC
		LIMIT 1
		FOR UPDATE
	`, slotID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	// timestamptz keeps microseconds; truncate so the stored row
	// re-hashes to the same value.
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	hash := store.ComputeSlotEventHash(prev, slotID, eventType, payloadJSON, createdAt, nextSeq)

	_, err = tx.Exec(ctx, `
		INSERT INTO slot_events (slot_id, slot_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, slotID, nextSeq, eventType, string(payloadJSON), createdAt, prev, hash)
	return err
}

func (s *Store) ListSlotEvents(ctx context.Context, slotID string) ([]store.SlotEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT slot_id, slot_seq, type, payload, created_at, prev_hash, hash
		FROM slot_events
		WHERE slot_id = $1
		ORDER BY slot_seq ASC
	`, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.SlotEvent
	for rows.Next() {
		var event store.SlotEvent
		if err := rows.Scan(&event.SlotID, &event.SlotSeq, &event.Type, &event.Payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func jsonBytes(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}
