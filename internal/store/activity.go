package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/999joaquin/CoreTrack/internal/activity"
)

// ActivityStore is append-only: there is no update path and deletion is
// limited to the retention sweep.
type ActivityStore struct {
	db *sqlx.DB
}

func NewActivityStore(db *sqlx.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

type activityRow struct {
	ID            int64          `db:"id"`
	ActorID       int64          `db:"actor_id"`
	Action        string         `db:"action"`
	EntityType    string         `db:"entity_type"`
	EntityID      string         `db:"entity_id"`
	Details       string         `db:"details"`
	CreatedAt     time.Time      `db:"created_at"`
	ActorFullName sql.NullString `db:"actor_full_name"`
	ActorEmail    sql.NullString `db:"actor_email"`
}

func (r activityRow) record() activity.Record {
	action, ok := activity.NormalizeAction(r.Action)
	if !ok {
		action = activity.Action(r.Action)
	}
	entity, ok := activity.ParseEntity(r.EntityType)
	if !ok {
		entity = activity.EntityType(r.EntityType)
	}
	return activity.Record{
		ID:            r.ID,
		ActorID:       r.ActorID,
		Action:        action,
		Entity:        entity,
		EntityID:      r.EntityID,
		Details:       activity.DecodeDetails(entity, action, []byte(r.Details)),
		CreatedAt:     r.CreatedAt,
		ActorFullName: r.ActorFullName.String,
		ActorEmail:    r.ActorEmail.String,
	}
}

const activitySelect = `SELECT a.id, a.actor_id, a.action, a.entity_type, a.entity_id, a.details, a.created_at,
	u.full_name AS actor_full_name, u.email AS actor_email
	FROM activities a LEFT JOIN users u ON u.id = a.actor_id`

// Insert implements activity.Writer.
func (s *ActivityStore) Insert(ctx context.Context, e activity.Event) (*activity.Record, error) {
	details, err := activity.EncodeDetails(e.Details)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (actor_id, action, entity_type, entity_id, details) VALUES (?, ?, ?, ?, ?)`,
		e.ActorID, string(e.Action), string(e.Entity), e.EntityID, string(details),
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ActivityStore) GetByID(ctx context.Context, id int64) (*activity.Record, error) {
	var row activityRow
	err := s.db.GetContext(ctx, &row, activitySelect+` WHERE a.id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	rec := row.record()
	return &rec, nil
}

// List returns the newest activities matching f. Actor, action and entity
// are applied in SQL; a search term is matched against the formatted
// sentence, so a wider window is scanned before the limit applies.
func (s *ActivityStore) List(ctx context.Context, f activity.Filter) ([]activity.Record, error) {
	query := activitySelect + ` WHERE 1 = 1`
	var args []any
	if f.ActorID != 0 {
		query += ` AND a.actor_id = ?`
		args = append(args, f.ActorID)
	}
	if f.Action != "" {
		query += ` AND a.action IN (?)`
		args = append(args, actionSpellings(f.Action))
	}
	if f.Entity != "" {
		query += ` AND a.entity_type IN (?)`
		args = append(args, []string{string(f.Entity), string(f.Entity) + "s"})
	}

	limit := f.EffectiveLimit()
	window := limit
	if f.Search != "" {
		window = activity.MaxLimit * 4
	}
	query += ` ORDER BY a.created_at DESC, a.id DESC LIMIT ?`
	args = append(args, window)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build activity query: %w", err)
	}

	var rows []activityRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	records := make([]activity.Record, 0, len(rows))
	for _, row := range rows {
		rec := row.record()
		if !f.Matches(rec) {
			continue
		}
		records = append(records, rec)
		if len(records) == limit {
			break
		}
	}
	return records, nil
}

// actionSpellings lists the canonical kind with every legacy spelling that
// normalizes to it, so rows written before normalization still match.
func actionSpellings(a activity.Action) []string {
	return append([]string{string(a)}, activity.LegacySpellings(a)...)
}

// Stats summarizes activity for one actor, or everyone when actorID is 0.
// Today starts at UTC midnight; the week is the trailing seven days.
func (s *ActivityStore) Stats(ctx context.Context, actorID int64, now time.Time) (*activity.Stats, error) {
	where := ``
	var args []any
	if actorID != 0 {
		where = ` WHERE actor_id = ?`
		args = append(args, actorID)
	}

	var rows []struct {
		Action     string    `db:"action"`
		EntityType string    `db:"entity_type"`
		CreatedAt  time.Time `db:"created_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT action, entity_type, created_at FROM activities`+where, args...); err != nil {
		return nil, fmt.Errorf("activity stats: %w", err)
	}

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	stats := &activity.Stats{
		ByAction: make(map[string]int),
		ByEntity: make(map[string]int),
	}
	for _, r := range rows {
		stats.Total++
		if !r.CreatedAt.Before(today) {
			stats.Today++
		}
		if !r.CreatedAt.Before(weekAgo) {
			stats.ThisWeek++
		}
		action := r.Action
		if a, ok := activity.NormalizeAction(r.Action); ok {
			action = string(a)
		}
		entity := r.EntityType
		if e, ok := activity.ParseEntity(r.EntityType); ok {
			entity = string(e)
		}
		stats.ByAction[action]++
		stats.ByEntity[entity]++
	}
	return stats, nil
}

// DeleteOlderThan prunes activities created before cutoff.
func (s *ActivityStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE created_at < ?`, sqliteTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune activities: %w", err)
	}
	return result.RowsAffected()
}
