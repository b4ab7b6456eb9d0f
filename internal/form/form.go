// Package form generates the plain-text unit checklist sent to players and
// reads filled-in copies back.
//
// Every generated form starts with a "Form version: N" line. Each version
// has its own line grammar so that older pastes keep parsing after the
// layout changes.
package form

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Billy-Davies-2/warband-roster/internal/catalog"
	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// ErrUnknownVersion is returned for a version marker no Format handles
var ErrUnknownVersion = errors.New("unknown form version")

// Latest is the version Generate uses when none is requested
const Latest = 2

const (
	separator    = "------------------------------------"
	exampleLabel = "Example:"
)

var markerPattern = regexp.MustCompile(`^\s*Form version:\s*(\d+)\s*$`)

// Status is the set of checkboxes on one form line
type Status struct {
	Owned    bool
	Maxed    bool
	Mastery  bool
	Favorite bool
}

// Format is one revision of the line grammar
type Format interface {
	Version() int
	HasFavorites() bool
	Line(unit string, s Status) string
	ParseLine(line string) (unit string, s Status, ok bool)
}

// formats is ordered newest first
var formats = []Format{v2{}, v1{}}

// Lookup returns the Format for version
func Lookup(version int) (Format, error) {
	for _, f := range formats {
		if f.Version() == version {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
}

// Versions lists the supported versions, newest first
func Versions() []int {
	out := make([]int, len(formats))
	for i, f := range formats {
		out[i] = f.Version()
	}
	return out
}

// Options control Generate
type Options struct {
	// Version selects the grammar. Zero means Latest.
	Version int
	// Prefill marks the player's current statuses instead of leaving every box empty.
	Prefill bool
}

// Generate renders the checklist for p over every unit in cfg, grouped by tier
func Generate(p models.Player, cfg models.UnitConfig, opts Options) (string, error) {
	version := opts.Version
	if version == 0 {
		version = Latest
	}
	f, err := Lookup(version)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Form version: %d\n", f.Version())
	fmt.Fprintf(&b, "Hello %s!\n\n", p.Name)
	b.WriteString("Please fill out which units you have and their status.\n\n")
	b.WriteString("Instructions:\nPut an 'x' in the brackets [] for each status that applies.\n\n")
	fmt.Fprintf(&b, "%s\n%s\n\n", exampleLabel, f.Line("Silahdars", Status{Owned: true, Maxed: true}))
	b.WriteString(separator + "\n\n")

	for _, tier := range catalog.TierNames(cfg) {
		fmt.Fprintf(&b, "--- %s ---\n", tier)
		for _, u := range catalog.SortedUnits(cfg, tier) {
			var s Status
			if opts.Prefill {
				s = Status{
					Owned:    p.Units.Has(u.Name),
					Maxed:    p.PreparedUnits.Has(u.Name),
					Mastery:  p.MasteryUnits.Has(u.Name),
					Favorite: p.FavoriteUnits.Has(u.Name),
				}
			}
			b.WriteString(f.Line(u.Name, s))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func box(checked bool) string {
	if checked {
		return "[x]"
	}
	return "[ ]"
}

// marked reports whether bracket content counts as a tick
func marked(content string) bool {
	return strings.EqualFold(strings.TrimSpace(content), "x")
}

// v1 is the original layout with the unit name last and no favorite column
type v1 struct{}

var v1Pattern = regexp.MustCompile(`✅ Owned: \[(.*?)\].*🌟 Maxed: \[(.*?)\].*👑 Mastery: \[(.*?)\].*- (.*)`)

func (v1) Version() int       { return 1 }
func (v1) HasFavorites() bool { return false }

func (v1) Line(unit string, s Status) string {
	return fmt.Sprintf("✅ Owned: %s  🌟 Maxed: %s  👑 Mastery: %s - %s", box(s.Owned), box(s.Maxed), box(s.Mastery), unit)
}

func (v1) ParseLine(line string) (string, Status, bool) {
	m := v1Pattern.FindStringSubmatch(line)
	if m == nil {
		return "", Status{}, false
	}
	return strings.TrimSpace(m[4]), Status{Owned: marked(m[1]), Maxed: marked(m[2]), Mastery: marked(m[3])}, true
}

// v2 leads with the unit name and adds the favorite column
type v2 struct{}

var v2Pattern = regexp.MustCompile(`^(.+?) - ✅ Owned: \[(.*?)\]\s*🌟 Maxed: \[(.*?)\]\s*👑 Mastery: \[(.*?)\](?:\s*⭐ Favorite: \[(.*?)\])?\s*$`)

func (v2) Version() int       { return 2 }
func (v2) HasFavorites() bool { return true }

func (v2) Line(unit string, s Status) string {
	return fmt.Sprintf("%s - ✅ Owned: %s  🌟 Maxed: %s  👑 Mastery: %s  ⭐ Favorite: %s", unit, box(s.Owned), box(s.Maxed), box(s.Mastery), box(s.Favorite))
}

func (v2) ParseLine(line string) (string, Status, bool) {
	m := v2Pattern.FindStringSubmatch(line)
	if m == nil {
		return "", Status{}, false
	}
	return strings.TrimSpace(m[1]), Status{Owned: marked(m[2]), Maxed: marked(m[3]), Mastery: marked(m[4]), Favorite: marked(m[5])}, true
}
