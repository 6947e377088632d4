package activity

import (
	"encoding/json"
	"fmt"
)

// Details is the payload attached to an activity. Each kind has exactly one
// concrete shape; Raw is used only for payloads that fail to decode.
type Details interface {
	accepts(EntityType, Action) bool
}

func isCRUD(a Action) bool {
	return a == ActionCreated || a == ActionUpdated || a == ActionDeleted
}

// ProjectSnapshot captures the fields of a project before an update.
type ProjectSnapshot struct {
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Budget   *float64 `json:"budget,omitempty"`
	Deadline *string  `json:"deadline,omitempty"`
}

type ProjectDetails struct {
	Title          string           `json:"title"`
	Status         string           `json:"status,omitempty"`
	Budget         *float64         `json:"budget,omitempty"`
	Deadline       *string          `json:"deadline,omitempty"`
	PreviousValues *ProjectSnapshot `json:"previous_values,omitempty"`
}

func (ProjectDetails) accepts(e EntityType, a Action) bool {
	return e == EntityProject && isCRUD(a)
}

type TaskDetails struct {
	Title          string  `json:"title"`
	ProjectID      int64   `json:"project_id,omitempty"`
	Status         string  `json:"status,omitempty"`
	Priority       string  `json:"priority,omitempty"`
	AssignedTo     *int64  `json:"assigned_to,omitempty"`
	DueDate        *string `json:"due_date,omitempty"`
	StatusChanged  bool    `json:"status_changed,omitempty"`
	PreviousStatus string  `json:"previous_status,omitempty"`
	NewStatus      string  `json:"new_status,omitempty"`
}

func (TaskDetails) accepts(e EntityType, a Action) bool {
	return e == EntityTask && isCRUD(a)
}

type GoalDetails struct {
	Title              string  `json:"title"`
	ProjectID          int64   `json:"project_id,omitempty"`
	TargetValue        float64 `json:"target_value"`
	CurrentValue       float64 `json:"current_value"`
	ProgressPercentage int     `json:"progress_percentage"`
}

func (GoalDetails) accepts(e EntityType, a Action) bool {
	return e == EntityGoal && isCRUD(a)
}

type GoalProgressDetails struct {
	Title              string   `json:"title"`
	PreviousValue      float64  `json:"previous_value"`
	NewValue           float64  `json:"new_value"`
	TargetValue        float64  `json:"target_value"`
	ProgressChange     float64  `json:"progress_change"`
	PreviousPercentage int      `json:"previous_progress_percentage"`
	NewPercentage      int      `json:"new_progress_percentage"`
	Mode               string   `json:"update_mode"`
	IncrementValue     *float64 `json:"increment_value,omitempty"`
}

func (GoalProgressDetails) accepts(e EntityType, a Action) bool {
	return e == EntityGoal && a == ActionProgressUpdated
}

type ExpenseDetails struct {
	Description    string   `json:"description"`
	Amount         float64  `json:"amount"`
	ProjectID      int64    `json:"project_id,omitempty"`
	TaskID         *int64   `json:"task_id,omitempty"`
	ExpenseDate    string   `json:"expense_date,omitempty"`
	PreviousAmount *float64 `json:"previous_amount,omitempty"`
	BudgetWarning  string   `json:"budget_warning,omitempty"`
}

func (ExpenseDetails) accepts(e EntityType, a Action) bool {
	return e == EntityExpense && isCRUD(a)
}

type InviteDetails struct {
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	Method   string `json:"invitation_method,omitempty"`
}

func (InviteDetails) accepts(e EntityType, a Action) bool {
	return e == EntityUser && a == ActionInvited
}

type RoleChangeDetails struct {
	Email   string `json:"email"`
	OldRole string `json:"old_role"`
	NewRole string `json:"new_role"`
}

func (RoleChangeDetails) accepts(e EntityType, a Action) bool {
	return e == EntityUser && a == ActionRoleChanged
}

type UserDetails struct {
	Email         string   `json:"email"`
	FullName      string   `json:"full_name,omitempty"`
	Method        string   `json:"method,omitempty"`
	ChangedFields []string `json:"changed_fields,omitempty"`
}

func (UserDetails) accepts(e EntityType, a Action) bool {
	return e == EntityUser && (a == ActionUpdated || a == ActionDeleted)
}

type AuthDetails struct {
	Email  string `json:"email"`
	Method string `json:"method,omitempty"`
}

func (AuthDetails) accepts(e EntityType, a Action) bool {
	return e == EntityAuth
}

type SecurityDetails struct {
	Method          string `json:"method,omitempty"`
	SessionsRevoked int    `json:"sessions_revoked,omitempty"`
	AvatarURL       string `json:"avatar_url,omitempty"`
}

func (SecurityDetails) accepts(e EntityType, a Action) bool {
	return e == EntitySecurity
}

type SettingsDetails struct {
	UpdatedFields []string `json:"updated_fields"`
}

func (SettingsDetails) accepts(e EntityType, a Action) bool {
	return e == EntitySettings
}

// Raw holds a stored payload that could not be decoded into its kind's shape.
type Raw map[string]any

func (Raw) accepts(EntityType, Action) bool { return false }

// EncodeDetails serializes a payload for storage; nil becomes an empty object.
func EncodeDetails(d Details) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return b, nil
}

func decodeAs[T Details](raw []byte) (Details, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeDetails rebuilds the payload for the given kind. Payloads of unknown
// kinds, or ones that fail to decode, come back as Raw.
func DecodeDetails(entity EntityType, action Action, raw []byte) Details {
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var (
		d   Details
		err error
	)
	switch {
	case entity == EntityProject && isCRUD(action):
		d, err = decodeAs[ProjectDetails](raw)
	case entity == EntityTask && isCRUD(action):
		d, err = decodeAs[TaskDetails](raw)
	case entity == EntityGoal && action == ActionProgressUpdated:
		d, err = decodeAs[GoalProgressDetails](raw)
	case entity == EntityGoal && isCRUD(action):
		d, err = decodeAs[GoalDetails](raw)
	case entity == EntityExpense && isCRUD(action):
		d, err = decodeAs[ExpenseDetails](raw)
	case entity == EntityUser && action == ActionInvited:
		d, err = decodeAs[InviteDetails](raw)
	case entity == EntityUser && action == ActionRoleChanged:
		d, err = decodeAs[RoleChangeDetails](raw)
	case entity == EntityUser && (action == ActionUpdated || action == ActionDeleted):
		d, err = decodeAs[UserDetails](raw)
	case entity == EntityAuth && Allowed(entity, action):
		d, err = decodeAs[AuthDetails](raw)
	case entity == EntitySecurity && Allowed(entity, action):
		d, err = decodeAs[SecurityDetails](raw)
	case entity == EntitySettings && Allowed(entity, action):
		d, err = decodeAs[SettingsDetails](raw)
	default:
		err = fmt.Errorf("unknown kind")
	}
	if err == nil {
		return d
	}

	var m Raw
	if json.Unmarshal(raw, &m) != nil {
		m = Raw{}
	}
	return m
}
