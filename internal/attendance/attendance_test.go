package attendance

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

func TestWash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bob", "bob"},
		{"B0b [EU]", "bob"},
		{"Élise (alt)", "elise"},
		{"O'Brien <officer>", "obrien"},
		{"  Sir  Lancelot ", "sirlancelot"},
		{"[TAG]", ""},
		{"Zoë", "zoe"},
	}
	for _, tt := range tests {
		if got := Wash(tt.in); got != tt.want {
			t.Errorf("Wash(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	signups, err := Parse([]byte(`{"signUps":[{"name":"Bob","className":"Accepted"}],"extra":1}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(signups) != 1 || signups[0].Name != "Bob" {
		t.Errorf("unexpected signups: %+v", signups)
	}

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{"signUps":`, ErrInvalidJSON},
		{"array", `[]`, ErrInvalidJSON},
		{"missing key", `{"players":[]}`, ErrMissingSignUps},
		{"null list", `{"signUps": null}`, ErrMissingSignUps},
		{"wrong type", `{"signUps":"nope"}`, ErrInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMatchScenario(t *testing.T) {
	players := []models.Player{{ID: "p-bob", Name: "Bob"}}
	out := Match([]SignUp{{Name: "B0b [EU]", ClassName: "Accepted"}}, players)

	want := []models.AttendancePlayer{{DiscordName: "B0b [EU]", Status: models.StatusAccepted, MatchedPlayerID: "p-bob"}}
	if diff := cmp.Diff(want, out.Attendance); diff != "" {
		t.Errorf("attendance mismatch (-want +got):\n%s", diff)
	}
	if len(out.Declined) != 0 {
		t.Errorf("expected no declined players, got %v", out.Declined)
	}
}

func TestMatchTieBreak(t *testing.T) {
	players := []models.Player{
		{ID: "p-al", Name: "Al"},
		{ID: "p-alan", Name: "Alan"},
		{ID: "p-alana", Name: "Alana"},
		{ID: "p-blank", Name: "[GM]"},
	}
	m := newMatcher(players)

	tests := []struct {
		name string
		want string
	}{
		{"Alan", "p-alan"},            // exact beats substring
		{"Alana (healer)", "p-alana"}, // exact after washing
		{"Alanx", "p-alan"},           // closest length among substrings
		{"Zed", ""},
		{"[GM]", ""}, // empty washed names never match
	}
	for _, tt := range tests {
		got, _ := m.match(tt.name)
		if got != tt.want {
			t.Errorf("match(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMatchClassification(t *testing.T) {
	players := []models.Player{
		{ID: "p1", Name: "Amy"},
		{ID: "p2", Name: "Bob"},
		{ID: "p3", Name: "Cid"},
		{ID: "p4", Name: "Dee"},
	}
	signups := []SignUp{
		{Name: "dee", ClassName: "Maybe"},
		{Name: "Cid", ClassName: "Absence"},
		{Name: "bob", ClassName: "Accepted"},
		{Name: "Amy", ClassName: "Accepted"},
		{Name: "Stranger", ClassName: "Maybe"},
		{Name: "Dee (alt)", ClassName: "Declined"},
	}
	out := Match(signups, players)

	want := []models.AttendancePlayer{
		{DiscordName: "Amy", Status: models.StatusAccepted, MatchedPlayerID: "p1"},
		{DiscordName: "bob", Status: models.StatusAccepted, MatchedPlayerID: "p2"},
		{DiscordName: "dee", Status: models.StatusMaybe, MatchedPlayerID: "p4"},
		{DiscordName: "Stranger", Status: models.StatusMaybe},
	}
	if diff := cmp.Diff(want, out.Attendance); diff != "" {
		t.Errorf("attendance mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]bool{"p3": true}, out.Declined); diff != "" {
		t.Errorf("declined mismatch (-want +got):\n%s", diff)
	}

	accepted, maybe, declined := out.Counts()
	if accepted != 2 || maybe != 2 || declined != 1 {
		t.Errorf("counts = %d/%d/%d", accepted, maybe, declined)
	}

	at := time.Date(2026, 1, 2, 20, 0, 0, 0, time.UTC)
	records := out.Records("imp-1", at)
	if len(records) != len(signups) {
		t.Fatalf("expected %d records, got %d", len(signups), len(records))
	}
	if records[1].Status != models.StatusDeclined || records[1].PlayerID != "p3" || records[1].ImportID != "imp-1" {
		t.Errorf("unexpected record: %+v", records[1])
	}
}
