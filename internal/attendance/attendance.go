// Package attendance reads event signup exports and matches the external
// names in them against the roster.
package attendance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Billy-Davies-2/warband-roster/internal/catalog"
	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

var (
	ErrInvalidJSON    = errors.New("attendance: invalid JSON")
	ErrMissingSignUps = errors.New("attendance: missing signUps list")
)

// SignUp is one entry of the export
type SignUp struct {
	Name      string `json:"name"`
	ClassName string `json:"className"`
}

// Parse decodes an export of the form {"signUps": [{"name", "className"}]}
func Parse(raw []byte) ([]SignUp, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	list, ok := top["signUps"]
	if !ok || string(bytes.TrimSpace(list)) == "null" {
		return nil, ErrMissingSignUps
	}
	var signups []SignUp
	if err := json.Unmarshal(list, &signups); err != nil {
		return nil, fmt.Errorf("%w: signUps: %v", ErrInvalidJSON, err)
	}
	if signups == nil {
		signups = []SignUp{}
	}
	return signups, nil
}

var (
	bracketed = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|<[^>]*>`)
	leet      = strings.NewReplacer("0", "o", "1", "i", "3", "e", "4", "a", "5", "s", "7", "t")
)

func stripped(r rune) bool {
	switch r {
	case '\'', '’', '‘', '`':
		return true
	}
	return unicode.IsSpace(r)
}

// Wash normalizes a display name for fuzzy comparison
func Wash(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}
	s = bracketed.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if stripped(r) {
			return -1
		}
		return r
	}, s)
	return leet.Replace(strings.ToLower(s))
}

// Counted reports whether a signup status enters the attendance list
func Counted(status string) bool {
	return status == string(models.StatusAccepted) || status == string(models.StatusMaybe)
}

type candidate struct {
	id     string
	washed string
}

// matcher picks a player for a washed external name: an exact match wins,
// then the substring match closest in length, then roster order.
type matcher []candidate

func newMatcher(players []models.Player) matcher {
	m := make(matcher, 0, len(players))
	for _, p := range players {
		if w := Wash(p.Name); w != "" {
			m = append(m, candidate{id: p.ID, washed: w})
		}
	}
	return m
}

func (m matcher) match(name string) (string, bool) {
	washed := Wash(name)
	if washed == "" {
		return "", false
	}
	best, bestDiff := -1, 0
	for i, c := range m {
		if c.washed == washed {
			return c.id, true
		}
		if !strings.Contains(washed, c.washed) && !strings.Contains(c.washed, washed) {
			continue
		}
		diff := len(washed) - len(c.washed)
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best < 0 {
		return "", false
	}
	return m[best].id, true
}

// Entry is one signup with its match
type Entry struct {
	SignUp   SignUp
	PlayerID string
}

// Outcome is the result of matching an import against the roster
type Outcome struct {
	// Attendance holds the Accepted and Maybe signups, Accepted first, then by name
	Attendance []models.AttendancePlayer
	// Declined holds ids of matched players whose signup was neither Accepted nor Maybe
	Declined map[string]bool
	Entries  []Entry
}

// Match resolves every signup against players
func Match(signups []SignUp, players []models.Player) Outcome {
	m := newMatcher(players)
	out := Outcome{
		Attendance: []models.AttendancePlayer{},
		Declined:   map[string]bool{},
		Entries:    make([]Entry, 0, len(signups)),
	}
	attending := map[string]bool{}

	for _, s := range signups {
		id, _ := m.match(s.Name)
		out.Entries = append(out.Entries, Entry{SignUp: s, PlayerID: id})
		if Counted(s.ClassName) {
			out.Attendance = append(out.Attendance, models.AttendancePlayer{
				DiscordName:     s.Name,
				Status:          models.AttendanceStatus(s.ClassName),
				MatchedPlayerID: models.OptionalID(id),
			})
			if id != "" {
				attending[id] = true
			}
		} else if id != "" {
			out.Declined[id] = true
		}
	}
	for id := range attending {
		delete(out.Declined, id)
	}

	c := catalog.NewCollator()
	slices.SortStableFunc(out.Attendance, func(a, b models.AttendancePlayer) int {
		if a.Status != b.Status {
			if a.Status == models.StatusAccepted {
				return -1
			}
			return 1
		}
		return c.CompareString(a.DiscordName, b.DiscordName)
	})
	return out
}

// Counts returns the number of Accepted, Maybe and declined players
func (o Outcome) Counts() (accepted, maybe, declined int) {
	for _, a := range o.Attendance {
		if a.Status == models.StatusAccepted {
			accepted++
		} else {
			maybe++
		}
	}
	return accepted, maybe, len(o.Declined)
}

// Records converts the entries into history rows
func (o Outcome) Records(importID string, at time.Time) []models.AttendanceRecord {
	records := make([]models.AttendanceRecord, 0, len(o.Entries))
	for _, e := range o.Entries {
		status := models.StatusDeclined
		if Counted(e.SignUp.ClassName) {
			status = models.AttendanceStatus(e.SignUp.ClassName)
		}
		records = append(records, models.AttendanceRecord{
			ImportID:    importID,
			ImportedAt:  at,
			DiscordName: e.SignUp.Name,
			Status:      status,
			PlayerID:    e.PlayerID,
		})
	}
	return records
}
