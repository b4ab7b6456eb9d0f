package form

import (
	"strconv"
	"strings"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// Result holds the statuses read from a filled-in form
type Result struct {
	// Version is the marker found in the text, or the newest grammar that
	// matched a line when there was no marker. Zero if neither.
	Version int
	// Matched counts lines that named a known unit
	Matched int

	Units     models.UnitSet
	Prepared  models.UnitSet
	Mastery   models.UnitSet
	Favorites models.UnitSet
	// HasFavorites is set when the grammar used carries a favorite column
	HasFavorites bool
}

// Parse reads text line by line. Lines that match no grammar, or whose unit
// is not in known, are skipped. A "Form version" marker restricts parsing to
// that version's grammar; an unsupported marker returns ErrUnknownVersion.
func Parse(text string, known models.UnitSet) (Result, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	candidates := formats
	var res Result
	if v, ok := findMarker(lines); ok {
		f, err := Lookup(v)
		if err != nil {
			return Result{}, err
		}
		candidates = []Format{f}
		res.Version = v
		res.HasFavorites = f.HasFavorites()
	}

	lines = withoutExample(lines)

	var units, prepared, mastery, favorites []string
	for _, line := range lines {
		for _, f := range candidates {
			name, s, ok := f.ParseLine(line)
			if !ok {
				continue
			}
			if known.Has(name) {
				res.Matched++
				if s.Owned {
					units = append(units, name)
				}
				if s.Maxed {
					prepared = append(prepared, name)
				}
				if s.Mastery {
					mastery = append(mastery, name)
				}
				if s.Favorite {
					favorites = append(favorites, name)
				}
				if f.HasFavorites() {
					res.HasFavorites = true
				}
				if f.Version() > res.Version {
					res.Version = f.Version()
				}
			}
			break
		}
	}

	res.Units = models.NewUnitSet(units...)
	res.Prepared = models.NewUnitSet(prepared...)
	res.Mastery = models.NewUnitSet(mastery...)
	res.Favorites = models.NewUnitSet(favorites...)
	return res, nil
}

// withoutExample drops the first non-blank line after each "Example:" label.
// That line is part of the header, not an answer.
func withoutExample(lines []string) []string {
	out := make([]string, 0, len(lines))
	skip := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.EqualFold(trimmed, exampleLabel):
			skip = true
		case skip && trimmed != "":
			skip = false
		default:
			out = append(out, line)
		}
	}
	return out
}

func findMarker(lines []string) (int, bool) {
	for _, line := range lines {
		m := markerPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// Apply replaces p's unit sets with the parsed ones. Favorites are only
// replaced when the form carried a favorite column.
func (r Result) Apply(p models.Player) models.Player {
	p.Units = r.Units
	p.PreparedUnits = r.Prepared
	p.MasteryUnits = r.Mastery
	if r.HasFavorites {
		p.FavoriteUnits = r.Favorites
	}
	return p
}
