package models

import (
	"encoding/json"
	"time"
)

// Tier names used by the default catalog
const (
	TierLegendary = "Legendary"
	TierEpic      = "Epic"
	TierRare      = "Rare"
	TierUncommon  = "Uncommon"
	TierCommon    = "Common"
)

// MaxGroupMembers is the squad size limit
const MaxGroupMembers = 5

// MaxUnitRank is the highest priority rank a selected unit can carry
const MaxUnitRank = 5

// UnitType selects one of the four per-player unit sets
type UnitType string

const (
	UnitTypeOwned    UnitType = "units"
	UnitTypePrepared UnitType = "preparedUnits"
	UnitTypeMastery  UnitType = "masteryUnits"
	UnitTypeFavorite UnitType = "favoriteUnits"
)

// Valid reports whether t names one of the four unit sets
func (t UnitType) Valid() bool {
	switch t {
	case UnitTypeOwned, UnitTypePrepared, UnitTypeMastery, UnitTypeFavorite:
		return true
	}
	return false
}

// AttendanceStatus is the signup status kept in the attendance list
type AttendanceStatus string

const (
	StatusAccepted AttendanceStatus = "Accepted"
	StatusMaybe    AttendanceStatus = "Maybe"
	StatusDeclined AttendanceStatus = "Declined"
)

// OptionalID is an id that serializes as null when empty
type OptionalID string

func (id OptionalID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

func (id *OptionalID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*id = OptionalID(s)
	return nil
}

// Unit is a catalog entry
type Unit struct {
	Name           string `json:"name"`
	LeadershipCost int    `json:"leadershipCost,omitempty"`
}

// UnitConfig is the unit catalog, keyed by tier name
type UnitConfig struct {
	Tiers map[string][]Unit `json:"tiers"`
}

// Player is a roster member and the units they own
type Player struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Units           UnitSet `json:"units"`
	PreparedUnits   UnitSet `json:"preparedUnits"`
	MasteryUnits    UnitSet `json:"masteryUnits"`
	FavoriteUnits   UnitSet `json:"favoriteUnits"`
	NotInHouse      bool    `json:"notInHouse"`
	Info            string  `json:"info"`
	TotalLeadership int     `json:"totalLeadership"`
}

// UnitSet returns the set selected by t
func (p Player) UnitSet(t UnitType) UnitSet {
	switch t {
	case UnitTypePrepared:
		return p.PreparedUnits
	case UnitTypeMastery:
		return p.MasteryUnits
	case UnitTypeFavorite:
		return p.FavoriteUnits
	default:
		return p.Units
	}
}

// WithUnitSet returns a copy of p with the set selected by t replaced
func (p Player) WithUnitSet(t UnitType, s UnitSet) Player {
	switch t {
	case UnitTypeOwned:
		p.Units = s
	case UnitTypePrepared:
		p.PreparedUnits = s
	case UnitTypeMastery:
		p.MasteryUnits = s
	case UnitTypeFavorite:
		p.FavoriteUnits = s
	}
	return p
}

// UnitSelection is one unit picked for a group member. Rank 0 means unranked.
type UnitSelection struct {
	UnitName string `json:"unitName"`
	Rank     int    `json:"rank"`
}

// GroupMember is a player's seat in a group
type GroupMember struct {
	PlayerID      string          `json:"playerId"`
	SelectedUnits []UnitSelection `json:"selectedUnits"`
	IsLocked      bool            `json:"isLocked"`
}

// Group is a squad of at most MaxGroupMembers players
type Group struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	LeaderID OptionalID    `json:"leaderId"`
	Members  []GroupMember `json:"members"`
}

// AttendancePlayer is an Accepted or Maybe signup from an attendance import
type AttendancePlayer struct {
	DiscordName     string           `json:"discordName"`
	Status          AttendanceStatus `json:"status"`
	MatchedPlayerID OptionalID       `json:"matchedPlayerId"`
}

// Document is the whole save file
type Document struct {
	Players      []Player           `json:"players"`
	UnitConfig   UnitConfig         `json:"unitConfig"`
	Groups       []Group            `json:"groups"`
	TWAttendance []AttendancePlayer `json:"twAttendance"`
}

// MarshalJSON writes empty lists instead of null so exports always carry every key
func (d Document) MarshalJSON() ([]byte, error) {
	type document Document
	out := document(d)
	if out.Players == nil {
		out.Players = []Player{}
	}
	if out.Groups == nil {
		out.Groups = []Group{}
	}
	if out.TWAttendance == nil {
		out.TWAttendance = []AttendancePlayer{}
	}
	if out.UnitConfig.Tiers == nil {
		out.UnitConfig.Tiers = map[string][]Unit{}
	}
	groups := make([]Group, len(out.Groups))
	for i, g := range out.Groups {
		members := make([]GroupMember, len(g.Members))
		for j, m := range g.Members {
			if m.SelectedUnits == nil {
				m.SelectedUnits = []UnitSelection{}
			}
			members[j] = m
		}
		g.Members = members
		groups[i] = g
	}
	out.Groups = groups
	return json.Marshal(out)
}

// AttendanceRecord is one row of attendance history
type AttendanceRecord struct {
	ImportID    string           `json:"importId"`
	ImportedAt  time.Time        `json:"importedAt"`
	DiscordName string           `json:"discordName"`
	Status      AttendanceStatus `json:"status"`
	PlayerID    string           `json:"playerId,omitempty"`
}

// AttendanceCount aggregates attendance history for one player
type AttendanceCount struct {
	PlayerID string `json:"playerId"`
	Accepted int    `json:"accepted"`
	Maybe    int    `json:"maybe"`
	Declined int    `json:"declined"`
}

// Snapshot is a stored copy of the document
type Snapshot struct {
	ID       int64     `json:"id"`
	SavedAt  time.Time `json:"savedAt"`
	Players  int       `json:"players"`
	Groups   int       `json:"groups"`
	Document *Document `json:"document,omitempty"`
}
