package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAction(t *testing.T) {
	tests := map[string]Action{
		"create":           ActionCreated,
		"created":          ActionCreated,
		" Update ":         ActionUpdated,
		"delete":           ActionDeleted,
		"deleted":          ActionDeleted,
		"invite":           ActionInvited,
		"progress_updated": ActionProgressUpdated,
		"2fa_enabled":      Action2FAEnabled,
		"enable-2fa":       Action2FAEnabled,
		"password_changed": ActionPasswordChanged,
		"sign in":          ActionSignedIn,
		"role_changed":     ActionRoleChanged,
	}
	for raw, want := range tests {
		got, ok := NormalizeAction(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "explode", "createdd"} {
		_, ok := NormalizeAction(raw)
		assert.False(t, ok, raw)
	}
}

func TestParseEntity(t *testing.T) {
	e, ok := ParseEntity("Projects")
	require.True(t, ok)
	assert.Equal(t, EntityProject, e)

	_, ok = ParseEntity("invoice")
	assert.False(t, ok)
}

func TestEventValidate(t *testing.T) {
	ok := Event{ActorID: 1, Entity: EntityUser, Action: ActionInvited, EntityID: "a@b.com", Details: InviteDetails{Email: "a@b.com"}}
	assert.NoError(t, ok.Validate())

	noDetails := Event{ActorID: 1, Entity: EntityAuth, Action: ActionSignedIn}
	assert.NoError(t, noDetails.Validate())

	wrongKind := Event{ActorID: 1, Entity: EntityTask, Action: ActionInvited}
	assert.Error(t, wrongKind.Validate())

	wrongShape := Event{ActorID: 1, Entity: EntityTask, Action: ActionCreated, Details: GoalDetails{Title: "x"}}
	assert.Error(t, wrongShape.Validate())

	raw := Event{ActorID: 1, Entity: EntityTask, Action: ActionCreated, Details: Raw{"title": "x"}}
	assert.Error(t, raw.Validate())
}

func TestDecodeDetails(t *testing.T) {
	d := DecodeDetails(EntityGoal, ActionProgressUpdated, []byte(`{"title":"Ship","new_progress_percentage":40,"update_mode":"increment"}`))
	gp, ok := d.(GoalProgressDetails)
	require.True(t, ok, "got %T", d)
	assert.Equal(t, "Ship", gp.Title)
	assert.Equal(t, 40, gp.NewPercentage)
	assert.Equal(t, "increment", gp.Mode)

	d = DecodeDetails(EntityTask, ActionCreated, []byte(`{"title": 12}`))
	assert.IsType(t, Raw{}, d)

	d = DecodeDetails(EntityType("invoice"), ActionCreated, []byte(`{"n":1}`))
	assert.Equal(t, Raw{"n": float64(1)}, d)

	d = DecodeDetails(EntityTask, ActionCreated, nil)
	assert.Equal(t, TaskDetails{}, d)
}

func TestEncodeDetailsRoundTrip(t *testing.T) {
	in := ExpenseDetails{Description: "Laptops", Amount: 500, ProjectID: 3}
	b, err := EncodeDetails(in)
	require.NoError(t, err)
	assert.Equal(t, in, DecodeDetails(EntityExpense, ActionCreated, b))

	b, err = EncodeDetails(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}
