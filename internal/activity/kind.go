// Package activity records and renders the audit trail of user actions.
//
// Every action belongs to a closed set of kinds per entity type, and every
// kind carries exactly one details payload shape. Legacy verb spellings are
// mapped to the canonical kind by NormalizeAction before anything is stored.
package activity

import (
	"fmt"
	"sort"
	"strings"
)

type EntityType string

const (
	EntityProject  EntityType = "project"
	EntityTask     EntityType = "task"
	EntityGoal     EntityType = "goal"
	EntityExpense  EntityType = "expense"
	EntityUser     EntityType = "user"
	EntityAuth     EntityType = "auth"
	EntitySecurity EntityType = "security"
	EntitySettings EntityType = "settings"
)

type Action string

const (
	ActionCreated         Action = "created"
	ActionUpdated         Action = "updated"
	ActionDeleted         Action = "deleted"
	ActionProgressUpdated Action = "progress_updated"
	ActionInvited         Action = "invited"
	ActionRoleChanged     Action = "role_changed"
	ActionSignedUp        Action = "signed_up"
	ActionSignedIn        Action = "signed_in"
	ActionSignedOut       Action = "signed_out"
	ActionPasswordChanged Action = "password_changed"
	ActionPasswordReset   Action = "password_reset"
	Action2FAEnabled      Action = "2fa_enabled"
	Action2FADisabled     Action = "2fa_disabled"
	ActionSessionsRevoked Action = "sessions_revoked"
	ActionAvatarUpdated   Action = "avatar_updated"
	ActionAvatarRemoved   Action = "avatar_removed"
	ActionPrefsUpdated    Action = "notification_settings_updated"
	ActionProfileUpdated  Action = "profile_updated"
)

var crud = []Action{ActionCreated, ActionUpdated, ActionDeleted}

// kinds lists the actions each entity type accepts.
var kinds = map[EntityType][]Action{
	EntityProject:  crud,
	EntityTask:     crud,
	EntityGoal:     append(append([]Action{}, crud...), ActionProgressUpdated),
	EntityExpense:  crud,
	EntityUser:     {ActionInvited, ActionUpdated, ActionRoleChanged, ActionDeleted},
	EntityAuth:     {ActionSignedUp, ActionSignedIn, ActionSignedOut},
	EntitySecurity: {ActionPasswordChanged, ActionPasswordReset, Action2FAEnabled, Action2FADisabled, ActionSessionsRevoked, ActionAvatarUpdated, ActionAvatarRemoved},
	EntitySettings: {ActionPrefsUpdated, ActionProfileUpdated},
}

// legacyActions maps verb spellings found in older call sites to their kind.
var legacyActions = map[string]Action{
	"create":            ActionCreated,
	"add":               ActionCreated,
	"added":             ActionCreated,
	"update":            ActionUpdated,
	"edit":              ActionUpdated,
	"edited":            ActionUpdated,
	"delete":            ActionDeleted,
	"remove":            ActionDeleted,
	"removed":           ActionDeleted,
	"invite":            ActionInvited,
	"update_progress":   ActionProgressUpdated,
	"progress_update":   ActionProgressUpdated,
	"change_role":       ActionRoleChanged,
	"role_change":       ActionRoleChanged,
	"sign_up":           ActionSignedUp,
	"signup":            ActionSignedUp,
	"register":          ActionSignedUp,
	"registered":        ActionSignedUp,
	"sign_in":           ActionSignedIn,
	"signin":            ActionSignedIn,
	"login":             ActionSignedIn,
	"logged_in":         ActionSignedIn,
	"sign_out":          ActionSignedOut,
	"signout":           ActionSignedOut,
	"logout":            ActionSignedOut,
	"logged_out":        ActionSignedOut,
	"change_password":   ActionPasswordChanged,
	"reset_password":    ActionPasswordReset,
	"enable_2fa":        Action2FAEnabled,
	"2fa_enable":        Action2FAEnabled,
	"disable_2fa":       Action2FADisabled,
	"2fa_disable":       Action2FADisabled,
	"sign_out_all":      ActionSessionsRevoked,
	"upload_avatar":     ActionAvatarUpdated,
	"delete_avatar":     ActionAvatarRemoved,
	"update_profile":    ActionProfileUpdated,
	"settings_updated":  ActionPrefsUpdated,
	"update_settings":   ActionPrefsUpdated,
	"notification_pref": ActionPrefsUpdated,
}

// NormalizeAction maps a raw verb to its canonical action. Matching ignores
// case, surrounding space, and treats '-' and ' ' as '_'.
func NormalizeAction(raw string) (Action, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if s == "" {
		return "", false
	}
	if a, ok := legacyActions[s]; ok {
		return a, true
	}
	a := Action(s)
	for _, actions := range kinds {
		for _, known := range actions {
			if known == a {
				return a, true
			}
		}
	}
	return "", false
}

// ParseEntity accepts an entity type name, ignoring case and a plural "s".
func ParseEntity(raw string) (EntityType, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := kinds[EntityType(s)]; ok {
		return EntityType(s), true
	}
	s = strings.TrimSuffix(s, "s")
	if _, ok := kinds[EntityType(s)]; ok {
		return EntityType(s), true
	}
	return "", false
}

// Allowed reports whether the entity type accepts the action.
func Allowed(entity EntityType, action Action) bool {
	for _, a := range kinds[entity] {
		if a == action {
			return true
		}
	}
	return false
}

// Validate checks that the event names a known kind and that its details
// payload has the shape that kind expects.
func (e Event) Validate() error {
	if !Allowed(e.Entity, e.Action) {
		return fmt.Errorf("unknown activity kind %s/%s", e.Entity, e.Action)
	}
	if e.Details == nil {
		return nil
	}
	if !e.Details.accepts(e.Entity, e.Action) {
		return fmt.Errorf("details %T do not match %s/%s", e.Details, e.Entity, e.Action)
	}
	return nil
}

// LegacySpellings returns the older verbs that normalize to a, sorted.
func LegacySpellings(a Action) []string {
	var out []string
	for legacy, kind := range legacyActions {
		if kind == a {
			out = append(out, legacy)
		}
	}
	sort.Strings(out)
	return out
}
