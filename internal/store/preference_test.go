package store

import (
	"context"
	"testing"

	"github.com/999joaquin/CoreTrack/internal/model"
)

func TestPreferenceGetMissing(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPreferenceStore(db)
	u := mustCreateUser(t, db, "alice@example.com", "Alice")

	p, err := ps.Get(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p != nil {
		t.Error("expected nil before any row is written")
	}
}

func TestPreferenceCreateDefault(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPreferenceStore(db)
	ctx := context.Background()
	u := mustCreateUser(t, db, "alice@example.com", "Alice")

	if err := ps.CreateDefault(ctx, u.ID); err != nil {
		t.Fatalf("create default: %v", err)
	}
	p, err := ps.Get(ctx, u.ID)
	if err != nil || p == nil {
		t.Fatalf("get: %v %v", p, err)
	}
	if !p.PushTaskAssignments || !p.EmailWeeklyReports {
		t.Error("defaults should be on")
	}
	if p.DigestFrequency != "weekly" || p.QuietHoursStart != "22:00" || p.QuietHoursEnd != "08:00" || p.Timezone != "UTC" {
		t.Errorf("defaults = %+v", p)
	}

	p.PushTaskAssignments = false
	ps.Upsert(ctx, *p)
	if err := ps.CreateDefault(ctx, u.ID); err != nil {
		t.Fatalf("create default again: %v", err)
	}
	again, _ := ps.Get(ctx, u.ID)
	if again.PushTaskAssignments {
		t.Error("CreateDefault must not overwrite an existing row")
	}
}

func TestPreferenceUpsert(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPreferenceStore(db)
	ctx := context.Background()
	u := mustCreateUser(t, db, "alice@example.com", "Alice")

	p := model.DefaultPreferences(u.ID)
	p.EmailExpenseAlerts = false
	p.DigestFrequency = "daily"
	p.Timezone = "Europe/Berlin"

	got, err := ps.Upsert(ctx, p)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got.EmailExpenseAlerts || got.DigestFrequency != "daily" || got.Timezone != "Europe/Berlin" {
		t.Errorf("upserted = %+v", got)
	}

	p.DigestFrequency = "hourly"
	if _, err := ps.Upsert(ctx, p); err == nil {
		t.Error("expected error for unknown digest frequency")
	}
}

func TestPreferenceListByDigest(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPreferenceStore(db)
	ctx := context.Background()

	daily := mustCreateUser(t, db, "daily@example.com", "Daily")
	weekly := mustCreateUser(t, db, "weekly@example.com", "Weekly")
	optedOut := mustCreateUser(t, db, "out@example.com", "Out")

	p := model.DefaultPreferences(daily.ID)
	p.DigestFrequency = "daily"
	ps.Upsert(ctx, p)
	ps.CreateDefault(ctx, weekly.ID)
	p = model.DefaultPreferences(optedOut.ID)
	p.EmailWeeklyReports = false
	ps.Upsert(ctx, p)

	got, err := ps.ListByDigest(ctx, "weekly")
	if err != nil {
		t.Fatalf("list by digest: %v", err)
	}
	if len(got) != 1 || got[0].UserID != weekly.ID {
		t.Errorf("weekly = %+v", got)
	}

	got, _ = ps.ListByDigest(ctx, "daily")
	if len(got) != 1 || got[0].UserID != daily.ID {
		t.Errorf("daily = %+v", got)
	}
}
