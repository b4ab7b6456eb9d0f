package form

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/Billy-Davies-2/warband-roster/internal/catalog"
	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

func testCatalog() models.UnitConfig {
	return models.UnitConfig{Tiers: map[string][]models.Unit{
		models.TierLegendary: {{Name: "Falconetti Gunners", LeadershipCost: 320}},
		models.TierEpic:      {{Name: "Azaps"}, {Name: "Silahdars"}},
		models.TierCommon:    {{Name: "Serfs"}},
	}}
}

func sorted(s models.UnitSet) []string {
	names := s.Names()
	slices.Sort(names)
	return names
}

func TestGenerateLayout(t *testing.T) {
	p := models.Player{Name: "Bob"}
	text, err := Generate(p, testCatalog(), Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !strings.HasPrefix(text, "Form version: 2\nHello Bob!") {
		t.Errorf("unexpected header: %q", text[:40])
	}
	legendary := strings.Index(text, "--- Legendary ---")
	epic := strings.Index(text, "--- Epic ---")
	common := strings.Index(text, "--- Common ---")
	if legendary < 0 || epic < legendary || common < epic {
		t.Errorf("tiers out of order: legendary=%d epic=%d common=%d", legendary, epic, common)
	}
	if strings.Contains(text[strings.Index(text, separator):], "[x]") {
		t.Error("blank form should have no ticked boxes")
	}
	if !strings.Contains(text, "Azaps - ✅ Owned: [ ]  🌟 Maxed: [ ]  👑 Mastery: [ ]  ⭐ Favorite: [ ]\n") {
		t.Error("missing v2 line for Azaps")
	}
}

func TestGenerateUnknownVersion(t *testing.T) {
	_, err := Generate(models.Player{}, testCatalog(), Options{Version: 9})
	if !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	cfg := testCatalog()
	known := catalog.AllNames(cfg)
	p := models.Player{
		Name:          "Amy",
		Units:         models.NewUnitSet("Silahdars", "Serfs", "Azaps"),
		PreparedUnits: models.NewUnitSet("Silahdars"),
		MasteryUnits:  models.NewUnitSet("Serfs"),
		FavoriteUnits: models.NewUnitSet("Azaps"),
	}

	for _, version := range Versions() {
		text, err := Generate(p, cfg, Options{Version: version, Prefill: true})
		if err != nil {
			t.Fatalf("v%d: Generate failed: %v", version, err)
		}
		res, err := Parse(text, known)
		if err != nil {
			t.Fatalf("v%d: Parse failed: %v", version, err)
		}
		if res.Version != version {
			t.Errorf("v%d: parsed version %d", version, res.Version)
		}
		if res.Matched != known.Len() {
			t.Errorf("v%d: matched %d lines, want %d", version, res.Matched, known.Len())
		}

		got := res.Apply(models.Player{FavoriteUnits: models.NewUnitSet("Azaps")})
		if !slices.Equal(sorted(got.Units), sorted(p.Units)) ||
			!slices.Equal(sorted(got.PreparedUnits), sorted(p.PreparedUnits)) ||
			!slices.Equal(sorted(got.MasteryUnits), sorted(p.MasteryUnits)) ||
			!slices.Equal(sorted(got.FavoriteUnits), sorted(p.FavoriteUnits)) {
			t.Errorf("v%d: round trip mismatch: %+v", version, got)
		}
	}
}

func TestParseLegacyWithoutMarker(t *testing.T) {
	text := strings.Join([]string{
		"Hello Bob!",
		"✅ Owned: [x]  🌟 Maxed: [ X ]  👑 Mastery: [] - Azaps",
		"✅ Owned: [x]  🌟 Maxed: [ ]  👑 Mastery: [ ] - Stale Unit",
		"garbage line",
		"✅ Owned: [yes]  🌟 Maxed: [ ]  👑 Mastery: [ ] - Serfs",
	}, "\n")

	res, err := Parse(text, catalog.AllNames(testCatalog()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Version != 1 || res.HasFavorites {
		t.Errorf("expected a v1 parse without favorites, got version=%d favorites=%v", res.Version, res.HasFavorites)
	}
	if got := sorted(res.Units); !slices.Equal(got, []string{"Azaps"}) {
		t.Errorf("units = %v", got)
	}
	if got := sorted(res.Prepared); !slices.Equal(got, []string{"Azaps"}) {
		t.Errorf("prepared = %v", got)
	}
	if res.Matched != 2 {
		t.Errorf("matched = %d, want 2", res.Matched)
	}

	p := res.Apply(models.Player{FavoriteUnits: models.NewUnitSet("Serfs")})
	if !p.FavoriteUnits.Has("Serfs") {
		t.Error("a form without a favorite column must keep existing favorites")
	}
}

func TestParseMarkerRestrictsGrammar(t *testing.T) {
	text := "Form version: 2\n✅ Owned: [x]  🌟 Maxed: [ ]  👑 Mastery: [ ] - Azaps\n"
	res, err := Parse(text, catalog.AllNames(testCatalog()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Matched != 0 || res.Units.Len() != 0 {
		t.Errorf("v1 line under a v2 marker should be ignored, got %v", res.Units.Names())
	}
	if !res.HasFavorites {
		t.Error("v2 marker should replace favorites")
	}
}

func TestParseUnknownMarker(t *testing.T) {
	_, err := Parse("Form version: 7\n", models.NewUnitSet("Azaps"))
	if !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}
}

func TestParseSkipsHeaderExample(t *testing.T) {
	text, err := Generate(models.Player{Name: "Bob"}, testCatalog(), Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	res, err := Parse(text, catalog.AllNames(testCatalog()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Units.Has("Silahdars") {
		t.Error("the example line must not be read as an answer")
	}
}

func TestParseKeepsAnswersAboveSeparator(t *testing.T) {
	var v v2
	text := v.Line("Silahdars", Status{Owned: true}) + "\n" + separator + "\n"
	res, err := Parse(text, models.NewUnitSet("Silahdars"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Matched != 1 || !res.Units.Has("Silahdars") {
		t.Errorf("answer above the separator was dropped: %+v", res)
	}
}

func TestParseTwoPastedForms(t *testing.T) {
	cfg := testCatalog()
	amy, err := Generate(models.Player{Name: "Amy", Units: models.NewUnitSet("Azaps")}, cfg, Options{Prefill: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	bob, err := Generate(models.Player{Name: "Bob", Units: models.NewUnitSet("Serfs")}, cfg, Options{Prefill: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	res, err := Parse(amy+bob, catalog.AllNames(cfg))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	for _, name := range []string{"Azaps", "Serfs"} {
		if !res.Units.Has(name) {
			t.Errorf("expected %s from the pasted forms, got %v", name, res.Units.Names())
		}
	}
	if res.Units.Has("Silahdars") {
		t.Error("example lines must not be read as answers")
	}
}

func TestParseEmpty(t *testing.T) {
	res, err := Parse("", models.NewUnitSet("Azaps"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Matched != 0 || res.Version != 0 {
		t.Errorf("unexpected result for empty text: %+v", res)
	}
}
