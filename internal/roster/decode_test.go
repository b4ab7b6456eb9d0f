package roster

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

func TestDecodeDocumentRejectsShape(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"not an object", `[1,2]`},
		{"missing players", `{"unitConfig":{"tiers":{}}}`},
		{"players not array", `{"players":{},"unitConfig":{"tiers":{}}}`},
		{"missing unitConfig", `{"players":[]}`},
		{"null unitConfig", `{"players":[],"unitConfig":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument([]byte(tt.raw))
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestDecodeDocumentDefaults(t *testing.T) {
	raw := `{
		"players": [
			{"id": "p1", "name": "Amy", "units": ["Azaps", 7, "Serfs"], "notInHouse": true, "totalLeadership": 650},
			{"units": "nope", "info": 3},
			"junk"
		],
		"unitConfig": {"tiers": {
			"Epic": ["Azaps", {"name": "Silahdars", "leadershipCost": 270}, {"leadershipCost": 5}],
			"Broken": "nope"
		}},
		"groups": [
			{"members": [{"playerId": "p1", "selectedUnits": [{"unitName": "Azaps", "rank": 7}]}]}
		],
		"twAttendance": [
			{"discordName": "Amy", "status": "Accepted", "matchedPlayerId": "p1"},
			{"discordName": "Ghost", "status": "Declined"}
		]
	}`
	doc, err := DecodeDocument([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}

	if len(doc.Players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(doc.Players))
	}
	amy := doc.Players[0]
	if diff := cmp.Diff([]string{"Azaps", "Serfs"}, amy.Units.Names()); diff != "" {
		t.Errorf("units (-want +got):\n%s", diff)
	}
	if !amy.NotInHouse || amy.TotalLeadership != 650 {
		t.Errorf("unexpected player fields: %+v", amy)
	}
	for _, p := range doc.Players[1:] {
		if p.ID == "" || p.Name != "Unknown Player" || p.Units.Len() != 0 || p.Info != "" {
			t.Errorf("expected defaults, got %+v", p)
		}
	}
	if doc.Players[1].ID == doc.Players[2].ID {
		t.Error("generated ids must be unique")
	}

	wantTiers := map[string][]models.Unit{
		"Epic":   {{Name: "Azaps"}, {Name: "Silahdars", LeadershipCost: 270}},
		"Broken": nil,
	}
	if diff := cmp.Diff(wantTiers["Epic"], doc.UnitConfig.Tiers["Epic"]); diff != "" {
		t.Errorf("tiers (-want +got):\n%s", diff)
	}
	if _, ok := doc.UnitConfig.Tiers["Broken"]; ok {
		t.Error("a tier that is not a list should be dropped")
	}

	g := doc.Groups[0]
	if g.ID == "" || g.Name != "Unknown Group" || g.LeaderID != "" {
		t.Errorf("expected group defaults, got %+v", g)
	}
	want := []models.GroupMember{{PlayerID: "p1", SelectedUnits: []models.UnitSelection{{UnitName: "Azaps"}}}}
	if diff := cmp.Diff(want, g.Members); diff != "" {
		t.Errorf("members (-want +got):\n%s", diff)
	}

	if len(doc.TWAttendance) != 1 || doc.TWAttendance[0].MatchedPlayerID != "p1" {
		t.Errorf("unexpected attendance: %+v", doc.TWAttendance)
	}
}

func TestDecodeDocumentMalformedCatalog(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"players":[],"unitConfig":"legacy"}`))
	if err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}
	if doc.UnitConfig.Tiers == nil || len(doc.UnitConfig.Tiers) != 0 {
		t.Errorf("expected empty tiers, got %+v", doc.UnitConfig)
	}
	if doc.Groups == nil || doc.TWAttendance == nil {
		t.Error("missing lists should decode as empty")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc := fixture()
	data, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("EncodeDocument failed: %v", err)
	}
	if !strings.Contains(string(data), `"leaderId": null`) {
		t.Error("empty leader should export as null")
	}

	back, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("DecodeDocument failed: %v", err)
	}
	if diff := cmp.Diff(doc, back, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestExportShape(t *testing.T) {
	data, err := EncodeDocument(models.Document{})
	if err != nil {
		t.Fatalf("EncodeDocument failed: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"players", "unitConfig", "groups", "twAttendance"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("export is missing %q", key)
		}
	}
	if _, err := DecodeDocument(data); err != nil {
		t.Errorf("an empty export should load again: %v", err)
	}
}
