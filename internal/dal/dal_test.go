package dal

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

func sampleDocument(names ...string) *models.Document {
	doc := &models.Document{
		UnitConfig: models.UnitConfig{Tiers: map[string][]models.Unit{
			models.TierEpic: {{Name: "Azaps", LeadershipCost: 255}},
		}},
		Groups: []models.Group{{ID: "g1", Name: "Group 1", Members: []models.GroupMember{}}},
	}
	for i, n := range names {
		doc.Players = append(doc.Players, models.Player{
			ID:    string(rune('a' + i)),
			Name:  n,
			Units: models.NewUnitSet("Azaps"),
		})
	}
	return doc
}

func exerciseDAL(t *testing.T, d DocumentDAL) {
	t.Helper()

	if _, err := d.Latest(); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument on an empty store, got %v", err)
	}

	for i, names := range [][]string{{"Amy"}, {"Amy", "Bob"}, {"Amy", "Bob", "Cid"}, {"Dee"}} {
		snap, err := d.Save(sampleDocument(names...))
		if err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
		if snap.ID == 0 || snap.Players != len(names) || snap.Groups != 1 {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	}

	latest, err := d.Latest()
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(latest.Players) != 1 || latest.Players[0].Name != "Dee" || !latest.Players[0].Units.Has("Azaps") {
		t.Errorf("unexpected latest document: %+v", latest.Players)
	}
	if latest.UnitConfig.Tiers[models.TierEpic][0].LeadershipCost != 255 {
		t.Error("catalog costs should survive storage")
	}

	history, err := d.History(0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected retention of 3 snapshots, got %d", len(history))
	}
	if history[0].Players != 1 || history[2].Players != 2 {
		t.Errorf("history should be newest first: %+v", history)
	}
	if history[0].ID <= history[1].ID {
		t.Errorf("ids should increase: %+v", history)
	}

	limited, err := d.History(1)
	if err != nil || len(limited) != 1 {
		t.Errorf("History(1) = %v, %v", limited, err)
	}

	if err := d.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := d.Latest(); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument after reset, got %v", err)
	}
}

func TestMemoryDAL(t *testing.T) {
	exerciseDAL(t, NewMemoryDAL(3))
}

func TestMemoryDALIsolatesSnapshots(t *testing.T) {
	d := NewMemoryDAL(0)
	doc := sampleDocument("Amy")
	if _, err := d.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	doc.Players[0].Name = "Changed"

	latest, err := d.Latest()
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.Players[0].Name != "Amy" {
		t.Error("stored snapshot must not alias the caller's document")
	}
}

func TestSQLiteDAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.sqlite")
	d, err := NewSQLiteDAL(path, 3)
	if err != nil {
		t.Fatalf("NewSQLiteDAL failed: %v", err)
	}
	defer d.Close()

	exerciseDAL(t, d)
}

func TestSQLiteDALReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.sqlite")
	d, err := NewSQLiteDAL(path, 3)
	if err != nil {
		t.Fatalf("NewSQLiteDAL failed: %v", err)
	}
	if _, err := d.Save(sampleDocument("Amy")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	d.Close()

	// Migrations must be idempotent across restarts.
	d, err = NewSQLiteDAL(path, 3)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer d.Close()

	latest, err := d.Latest()
	if err != nil || latest.Players[0].Name != "Amy" {
		t.Errorf("expected saved document after reopen, got %v, %v", latest, err)
	}
}
