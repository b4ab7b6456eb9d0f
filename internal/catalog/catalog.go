// Package catalog holds the unit reference data: which units exist, which
// tier each one belongs to and what leadership it costs.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

//go:embed default.toml
var defaultCatalog []byte

// File is the on-disk TOML layout of a catalog
type File struct {
	TierOrder []string            `toml:"tier_order"`
	CostTiers []string            `toml:"cost_tiers"`
	Tiers     map[string][]string `toml:"tiers"`
	Costs     map[string]int      `toml:"costs"`
}

var (
	defaultOnce sync.Once
	defaultFile File
	defaultErr  error
)

func loadDefault() (File, error) {
	defaultOnce.Do(func() {
		defaultErr = toml.Unmarshal(defaultCatalog, &defaultFile)
	})
	return defaultFile, defaultErr
}

// Default returns a fresh copy of the built-in catalog
func Default() models.UnitConfig {
	f, err := loadDefault()
	if err != nil {
		// The embedded file is part of the build; failing here is a programming error.
		panic(fmt.Sprintf("catalog: parse embedded default: %v", err))
	}
	return f.UnitConfig()
}

// Parse decodes a TOML catalog
func Parse(data []byte) (models.UnitConfig, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return models.UnitConfig{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := f.Validate(); err != nil {
		return models.UnitConfig{}, err
	}
	return f.UnitConfig(), nil
}

// LoadFile reads a TOML catalog from disk
func LoadFile(path string) (models.UnitConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.UnitConfig{}, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Encode writes cfg in the TOML layout accepted by Parse
func Encode(cfg models.UnitConfig) ([]byte, error) {
	f := File{
		TierOrder: TierNames(cfg),
		CostTiers: costTiers(),
		Tiers:     make(map[string][]string, len(cfg.Tiers)),
		Costs:     map[string]int{},
	}
	for tier, units := range cfg.Tiers {
		names := make([]string, 0, len(units))
		for _, u := range units {
			names = append(names, u.Name)
			if u.LeadershipCost > 0 {
				f.Costs[u.Name] = u.LeadershipCost
			}
		}
		f.Tiers[tier] = names
	}
	data, err := toml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return data, nil
}

// Validate checks that unit names are unique across tiers
func (f File) Validate() error {
	seen := make(map[string]string)
	for tier, names := range f.Tiers {
		for _, name := range names {
			if name == "" {
				return fmt.Errorf("tier %q has an empty unit name", tier)
			}
			if other, ok := seen[name]; ok {
				return fmt.Errorf("unit %q appears in both %q and %q", name, other, tier)
			}
			seen[name] = tier
		}
	}
	for name, cost := range f.Costs {
		if cost < 0 {
			return fmt.Errorf("unit %q has negative leadership cost %d", name, cost)
		}
	}
	return nil
}

// UnitConfig converts the file into the document representation
func (f File) UnitConfig() models.UnitConfig {
	cfg := models.UnitConfig{Tiers: make(map[string][]models.Unit, len(f.Tiers))}
	for tier, names := range f.Tiers {
		units := make([]models.Unit, 0, len(names))
		for _, name := range names {
			u := models.Unit{Name: name}
			if cost := f.Costs[name]; cost > 0 && IsCostTier(tier) {
				u.LeadershipCost = cost
			}
			units = append(units, u)
		}
		cfg.Tiers[tier] = units
	}
	return cfg
}

func tierOrder() []string {
	f, err := loadDefault()
	if err != nil {
		return nil
	}
	return f.TierOrder
}

func costTiers() []string {
	f, err := loadDefault()
	if err != nil {
		return nil
	}
	return f.CostTiers
}

// IsCostTier reports whether units of tier carry a leadership cost
func IsCostTier(tier string) bool {
	return slices.Contains(costTiers(), tier)
}

// NewCollator returns a collator for display-name ordering. Collators keep
// internal buffers, so callers get their own instance.
func NewCollator() *collate.Collator {
	return collate.New(language.Und)
}

// SortNames sorts names in place using locale-aware ordering
func SortNames(names []string) {
	c := NewCollator()
	slices.SortStableFunc(names, c.CompareString)
}

// TierNames returns the tiers of cfg: known tiers in rarity order, then any
// others alphabetically.
func TierNames(cfg models.UnitConfig) []string {
	out := make([]string, 0, len(cfg.Tiers))
	known := make(map[string]bool)
	for _, tier := range tierOrder() {
		known[tier] = true
		if _, ok := cfg.Tiers[tier]; ok {
			out = append(out, tier)
		}
	}
	var rest []string
	for tier := range cfg.Tiers {
		if !known[tier] {
			rest = append(rest, tier)
		}
	}
	SortNames(rest)
	return append(out, rest...)
}

// SortedUnits returns the units of tier ordered by name
func SortedUnits(cfg models.UnitConfig, tier string) []models.Unit {
	units := slices.Clone(cfg.Tiers[tier])
	c := NewCollator()
	slices.SortStableFunc(units, func(a, b models.Unit) int {
		return c.CompareString(a.Name, b.Name)
	})
	return units
}

// AllNames returns every unit name in the catalog
func AllNames(cfg models.UnitConfig) models.UnitSet {
	var names []string
	for _, tier := range TierNames(cfg) {
		for _, u := range cfg.Tiers[tier] {
			names = append(names, u.Name)
		}
	}
	return models.NewUnitSet(names...)
}

// TierOf returns the tier holding name
func TierOf(cfg models.UnitConfig, name string) (string, bool) {
	for tier, units := range cfg.Tiers {
		for _, u := range units {
			if u.Name == name {
				return tier, true
			}
		}
	}
	return "", false
}

// CostMap returns leadership costs keyed by unit name. Units without a cost are absent.
func CostMap(cfg models.UnitConfig) map[string]int {
	costs := make(map[string]int)
	for _, units := range cfg.Tiers {
		for _, u := range units {
			if u.LeadershipCost > 0 {
				costs[u.Name] = u.LeadershipCost
			}
		}
	}
	return costs
}

// Clone deep-copies cfg
func Clone(cfg models.UnitConfig) models.UnitConfig {
	out := models.UnitConfig{Tiers: make(map[string][]models.Unit, len(cfg.Tiers))}
	for tier, units := range cfg.Tiers {
		out.Tiers[tier] = slices.Clone(units)
	}
	return out
}

// RenameUnit returns a copy of cfg with oldName renamed to newName in
// whichever tier holds it. The second result is false when oldName is absent.
func RenameUnit(cfg models.UnitConfig, oldName, newName string) (models.UnitConfig, bool) {
	tier, ok := TierOf(cfg, oldName)
	if !ok {
		return cfg, false
	}
	out := Clone(cfg)
	for i, u := range out.Tiers[tier] {
		if u.Name == oldName {
			out.Tiers[tier][i].Name = newName
		}
	}
	return out, true
}

// DeleteUnit returns a copy of cfg without name
func DeleteUnit(cfg models.UnitConfig, name string) (models.UnitConfig, bool) {
	tier, ok := TierOf(cfg, name)
	if !ok {
		return cfg, false
	}
	out := Clone(cfg)
	out.Tiers[tier] = slices.DeleteFunc(out.Tiers[tier], func(u models.Unit) bool {
		return u.Name == name
	})
	return out, true
}

// AddUnit returns a copy of cfg with a new unit appended to tier and the
// tier re-sorted by name. Names already present anywhere in the catalog are
// rejected. Costs are dropped outside cost tiers.
func AddUnit(cfg models.UnitConfig, tier string, u models.Unit) (models.UnitConfig, bool) {
	if tier == "" || u.Name == "" {
		return cfg, false
	}
	if _, exists := TierOf(cfg, u.Name); exists {
		return cfg, false
	}
	if u.LeadershipCost < 0 || !IsCostTier(tier) {
		u.LeadershipCost = 0
	}
	out := Clone(cfg)
	out.Tiers[tier] = append(out.Tiers[tier], u)
	out.Tiers[tier] = SortedUnits(out, tier)
	return out, true
}

// SetCost sets or clears (cost <= 0) the leadership cost of name
func SetCost(cfg models.UnitConfig, name string, cost int) (models.UnitConfig, bool) {
	tier, ok := TierOf(cfg, name)
	if !ok {
		return cfg, false
	}
	if cost < 0 || !IsCostTier(tier) {
		cost = 0
	}
	out := Clone(cfg)
	for i, u := range out.Tiers[tier] {
		if u.Name == name {
			out.Tiers[tier][i].LeadershipCost = cost
		}
	}
	return out, true
}
