package activity

import (
	"fmt"
	"strconv"
	"strings"
)

// ActorName resolves the display name for an activity's actor.
func ActorName(fullName, email string) string {
	if s := strings.TrimSpace(fullName); s != "" {
		return s
	}
	if s := strings.TrimSpace(email); s != "" {
		return s
	}
	return "Someone"
}

// Format renders the record as a sentence. It is pure: the same record always
// yields the same text.
func Format(r Record) string {
	u := ActorName(r.ActorFullName, r.ActorEmail)

	switch d := r.Details.(type) {
	case ProjectDetails:
		return fmt.Sprintf("%s %s project %q", u, r.Action, titleOr(d.Title))
	case TaskDetails:
		if r.Action == ActionUpdated && d.StatusChanged {
			return fmt.Sprintf("%s changed task %q status to %s", u, titleOr(d.Title), humanize(d.NewStatus))
		}
		return fmt.Sprintf("%s %s task %q", u, r.Action, titleOr(d.Title))
	case GoalDetails:
		return fmt.Sprintf("%s %s goal %q", u, r.Action, titleOr(d.Title))
	case GoalProgressDetails:
		return fmt.Sprintf("%s updated goal %q progress to %d%%", u, titleOr(d.Title), d.NewPercentage)
	case ExpenseDetails:
		if r.Action == ActionCreated {
			return fmt.Sprintf("%s added expense %q for $%s", u, titleOr(d.Description), formatAmount(d.Amount))
		}
		return fmt.Sprintf("%s %s expense %q", u, r.Action, titleOr(d.Description))
	case InviteDetails:
		return fmt.Sprintf("%s invited %s to join", u, orEntityID(d.Email, r.EntityID))
	case RoleChangeDetails:
		return fmt.Sprintf("%s changed %s's role to %s", u, orEntityID(d.Email, r.EntityID), d.NewRole)
	case UserDetails:
		if r.Action == ActionDeleted {
			return fmt.Sprintf("%s removed user %s", u, orEntityID(d.Email, r.EntityID))
		}
		return fmt.Sprintf("%s updated user profile", u)
	case AuthDetails:
		switch r.Action {
		case ActionSignedUp:
			return u + " created an account"
		case ActionSignedIn:
			return u + " signed in"
		case ActionSignedOut:
			return u + " signed out"
		}
	case SecurityDetails:
		switch r.Action {
		case ActionPasswordChanged:
			return u + " changed their password"
		case ActionPasswordReset:
			return u + " reset their password"
		case Action2FAEnabled:
			return u + " enabled two-factor authentication"
		case Action2FADisabled:
			return u + " disabled two-factor authentication"
		case ActionSessionsRevoked:
			return u + " signed out of all sessions"
		case ActionAvatarUpdated:
			return u + " updated their avatar"
		case ActionAvatarRemoved:
			return u + " removed their avatar"
		}
	case SettingsDetails:
		if r.Action == ActionProfileUpdated {
			return u + " updated their profile"
		}
		return u + " updated notification settings"
	}

	return fmt.Sprintf("%s %s %s", u, pastTense(string(r.Action)), orUnknown(string(r.Entity)))
}

func titleOr(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Untitled"
	}
	return s
}

func orEntityID(s, id string) string {
	if s != "" {
		return s
	}
	return id
}

func orUnknown(s string) string {
	if s == "" {
		return "item"
	}
	return s
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// humanize turns "in_progress" into "in progress".
func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// pastTense appends "d" to a bare verb, leaving verbs already in the past
// tense alone. "invite" becomes "invited"; "created" stays "created".
func pastTense(verb string) string {
	v := humanize(verb)
	switch {
	case v == "":
		return "did something to"
	case strings.HasSuffix(v, "ed"):
		return v
	case strings.HasSuffix(v, "e"):
		return v + "d"
	}
	return v + "ed"
}
