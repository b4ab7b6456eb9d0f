package roster

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// ErrInvalidDocument marks a save file that lacks the required top-level shape
var ErrInvalidDocument = errors.New("invalid document")

const (
	unknownPlayer = "Unknown Player"
	unknownGroup  = "Unknown Group"
)

type object map[string]json.RawMessage

func asObject(raw json.RawMessage) object {
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil
	}
	return o
}

func asArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	var a []json.RawMessage
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return nil, false
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false
	}
	return a, true
}

func (o object) str(key string) string {
	var s string
	if err := json.Unmarshal(o[key], &s); err != nil {
		return ""
	}
	return s
}

func (o object) boolean(key string) bool {
	var b bool
	if err := json.Unmarshal(o[key], &b); err != nil {
		return false
	}
	return b
}

func (o object) number(key string) int {
	var f float64
	if err := json.Unmarshal(o[key], &f); err != nil {
		return 0
	}
	return int(f)
}

func (o object) names(key string) models.UnitSet {
	items, _ := asArray(o[key])
	names := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			names = append(names, s)
		}
	}
	return models.NewUnitSet(names...)
}

// DecodeDocument parses a save file. The top level must carry a players
// array and a unitConfig; everything below that is coerced into shape with
// defaults instead of failing.
func DecodeDocument(raw []byte) (models.Document, error) {
	var top object
	if err := json.Unmarshal(raw, &top); err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	players, ok := asArray(top["players"])
	if !ok {
		return models.Document{}, fmt.Errorf("%w: players must be an array", ErrInvalidDocument)
	}
	cfg, ok := top["unitConfig"]
	if !ok || string(bytes.TrimSpace(cfg)) == "null" {
		return models.Document{}, fmt.Errorf("%w: unitConfig is missing", ErrInvalidDocument)
	}

	doc := models.Document{
		Players:      make([]models.Player, 0, len(players)),
		UnitConfig:   decodeUnitConfig(cfg),
		Groups:       []models.Group{},
		TWAttendance: []models.AttendancePlayer{},
	}
	for _, p := range players {
		doc.Players = append(doc.Players, decodePlayer(asObject(p)))
	}
	groups, _ := asArray(top["groups"])
	for _, g := range groups {
		doc.Groups = append(doc.Groups, decodeGroup(asObject(g)))
	}
	entries, _ := asArray(top["twAttendance"])
	for _, e := range entries {
		if a, ok := decodeAttendance(asObject(e)); ok {
			doc.TWAttendance = append(doc.TWAttendance, a)
		}
	}
	return doc, nil
}

func decodePlayer(o object) models.Player {
	p := models.Player{
		ID:              o.str("id"),
		Name:            o.str("name"),
		Units:           o.names("units"),
		PreparedUnits:   o.names("preparedUnits"),
		MasteryUnits:    o.names("masteryUnits"),
		FavoriteUnits:   o.names("favoriteUnits"),
		NotInHouse:      o.boolean("notInHouse"),
		Info:            o.str("info"),
		TotalLeadership: o.number("totalLeadership"),
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Name == "" {
		p.Name = unknownPlayer
	}
	return p
}

// decodeUnitConfig accepts tier entries as objects or as legacy bare names
func decodeUnitConfig(raw json.RawMessage) models.UnitConfig {
	cfg := models.UnitConfig{Tiers: map[string][]models.Unit{}}
	tiers := asObject(asObject(raw)["tiers"])
	for tier, list := range tiers {
		items, ok := asArray(list)
		if !ok {
			continue
		}
		units := make([]models.Unit, 0, len(items))
		for _, item := range items {
			var name string
			if err := json.Unmarshal(item, &name); err == nil {
				if name != "" {
					units = append(units, models.Unit{Name: name})
				}
				continue
			}
			o := asObject(item)
			u := models.Unit{Name: o.str("name"), LeadershipCost: o.number("leadershipCost")}
			if u.Name == "" {
				continue
			}
			if u.LeadershipCost < 0 {
				u.LeadershipCost = 0
			}
			units = append(units, u)
		}
		cfg.Tiers[tier] = units
	}
	return cfg
}

func decodeGroup(o object) models.Group {
	g := models.Group{
		ID:       o.str("id"),
		Name:     o.str("name"),
		LeaderID: models.OptionalID(o.str("leaderId")),
		Members:  []models.GroupMember{},
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Name == "" {
		g.Name = unknownGroup
	}
	members, _ := asArray(o["members"])
	for _, raw := range members {
		m := asObject(raw)
		member := models.GroupMember{
			PlayerID:      m.str("playerId"),
			SelectedUnits: []models.UnitSelection{},
			IsLocked:      m.boolean("isLocked"),
		}
		selected, _ := asArray(m["selectedUnits"])
		for _, s := range selected {
			so := asObject(s)
			sel := models.UnitSelection{UnitName: so.str("unitName"), Rank: so.number("rank")}
			if sel.UnitName == "" {
				continue
			}
			if sel.Rank < 0 || sel.Rank > models.MaxUnitRank {
				sel.Rank = 0
			}
			member.SelectedUnits = append(member.SelectedUnits, sel)
		}
		g.Members = append(g.Members, member)
	}
	return g
}

func decodeAttendance(o object) (models.AttendancePlayer, bool) {
	a := models.AttendancePlayer{
		DiscordName:     o.str("discordName"),
		Status:          models.AttendanceStatus(o.str("status")),
		MatchedPlayerID: models.OptionalID(o.str("matchedPlayerId")),
	}
	if a.Status != models.StatusAccepted && a.Status != models.StatusMaybe {
		return a, false
	}
	return a, true
}

// EncodeDocument writes the indented export form of doc
func EncodeDocument(doc models.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}
