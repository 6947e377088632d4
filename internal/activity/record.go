package activity

import (
	"strings"
	"time"
)

// Event is one user action submitted to the Recorder.
type Event struct {
	ActorID  int64
	Action   Action
	Entity   EntityType
	EntityID string
	Details  Details
}

// Record is a stored activity joined with its actor's profile.
type Record struct {
	ID            int64      `json:"id"`
	ActorID       int64      `json:"actor_id"`
	Action        Action     `json:"action"`
	Entity        EntityType `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	Details       Details    `json:"details"`
	CreatedAt     time.Time  `json:"created_at"`
	ActorFullName string     `json:"actor_full_name"`
	ActorEmail    string     `json:"actor_email"`
}

// Filter narrows an activity feed. Action and Entity are applied by the
// store; Search is matched against the formatted sentence.
type Filter struct {
	ActorID int64
	Action  Action
	Entity  EntityType
	Search  string
	Limit   int
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// EffectiveLimit clamps the requested limit to [1, MaxLimit], defaulting to 50.
func (f Filter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	}
	return f.Limit
}

// Matches reports whether the record satisfies every set criterion.
func (f Filter) Matches(r Record) bool {
	if f.ActorID != 0 && r.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && r.Action != f.Action {
		return false
	}
	if f.Entity != "" && r.Entity != f.Entity {
		return false
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		return strings.Contains(strings.ToLower(Format(r)), strings.ToLower(q))
	}
	return true
}

type Stats struct {
	Total    int            `json:"total"`
	Today    int            `json:"today"`
	ThisWeek int            `json:"this_week"`
	ByAction map[string]int `json:"by_action"`
	ByEntity map[string]int `json:"by_entity"`
}
