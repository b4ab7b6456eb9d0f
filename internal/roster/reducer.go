// Package roster holds the document reducer: every mutation of the roster
// document goes through Reduce, which never modifies its input and treats
// references to unknown players, groups or units as no-ops.
package roster

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/warband-roster/internal/attendance"
	"github.com/Billy-Davies-2/warband-roster/internal/catalog"
	"github.com/Billy-Davies-2/warband-roster/internal/form"
	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// NewDocument returns an empty document with the default catalog
func NewDocument() models.Document {
	return models.Document{
		Players:      []models.Player{},
		UnitConfig:   catalog.Default(),
		Groups:       []models.Group{},
		TWAttendance: []models.AttendancePlayer{},
	}
}

// Reduce applies a to doc and returns the resulting document
func Reduce(doc models.Document, a Action) models.Document {
	switch a := a.(type) {
	case AddPlayer:
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return doc
		}
		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}
		if playerIndex(doc, id) >= 0 {
			return doc
		}
		players := append(slices.Clone(doc.Players), models.Player{ID: id, Name: name})
		c := catalog.NewCollator()
		slices.SortStableFunc(players, func(x, y models.Player) int {
			return c.CompareString(x.Name, y.Name)
		})
		doc.Players = players
		return doc

	case DeletePlayer:
		if playerIndex(doc, a.PlayerID) < 0 {
			return doc
		}
		doc.Players = slices.DeleteFunc(slices.Clone(doc.Players), func(p models.Player) bool {
			return p.ID == a.PlayerID
		})
		return doc

	case UpdatePlayerName:
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return doc
		}
		return updatePlayer(doc, a.PlayerID, func(p models.Player) models.Player {
			p.Name = name
			return p
		})

	case ToggleNotInHouse:
		return updatePlayer(doc, a.PlayerID, func(p models.Player) models.Player {
			p.NotInHouse = !p.NotInHouse
			return p
		})

	case TogglePlayerUnit:
		if !a.UnitType.Valid() || a.UnitName == "" {
			return doc
		}
		return updatePlayer(doc, a.PlayerID, func(p models.Player) models.Player {
			return p.WithUnitSet(a.UnitType, p.UnitSet(a.UnitType).Toggle(a.UnitName))
		})

	case UpdatePlayerInfo:
		return updatePlayer(doc, a.PlayerID, func(p models.Player) models.Player {
			p.Info = a.Info
			return p
		})

	case UpdatePlayerLeadership:
		return updatePlayer(doc, a.PlayerID, func(p models.Player) models.Player {
			p.TotalLeadership = int(a.TotalLeadership)
			return p
		})

	case ParsePlayerUnitsForm:
		if playerIndex(doc, a.PlayerID) < 0 {
			return doc
		}
		res, err := form.Parse(a.FormData, catalog.AllNames(doc.UnitConfig))
		if err != nil {
			return doc
		}
		return updatePlayer(doc, a.PlayerID, res.Apply)

	case UpdateUnitConfig:
		doc.UnitConfig = catalog.Clone(a.UnitConfig)
		return doc

	case RenameUnitGlobally:
		newName := strings.TrimSpace(a.NewName)
		if newName == "" || newName == a.OldName {
			return doc
		}
		if _, taken := catalog.TierOf(doc.UnitConfig, newName); taken {
			return doc
		}
		cfg, ok := catalog.RenameUnit(doc.UnitConfig, a.OldName, newName)
		if !ok {
			return doc
		}
		doc.UnitConfig = cfg
		doc.Players = mapPlayers(doc.Players, func(p models.Player) models.Player {
			for _, t := range unitTypes {
				p = p.WithUnitSet(t, p.UnitSet(t).Rename(a.OldName, newName))
			}
			return p
		})
		return doc

	case DeleteUnitGlobally:
		cfg, ok := catalog.DeleteUnit(doc.UnitConfig, a.UnitNameToDelete)
		if ok {
			doc.UnitConfig = cfg
		}
		doc.Players = mapPlayers(doc.Players, func(p models.Player) models.Player {
			for _, t := range unitTypes {
				p = p.WithUnitSet(t, p.UnitSet(t).Without(a.UnitNameToDelete))
			}
			return p
		})
		return doc

	case AddUnit:
		cfg, ok := catalog.AddUnit(doc.UnitConfig, strings.TrimSpace(a.Tier), models.Unit{
			Name:           strings.TrimSpace(a.Name),
			LeadershipCost: int(a.LeadershipCost),
		})
		if ok {
			doc.UnitConfig = cfg
		}
		return doc

	case SetUnitCost:
		cfg, ok := catalog.SetCost(doc.UnitConfig, a.Name, int(a.LeadershipCost))
		if ok {
			doc.UnitConfig = cfg
		}
		return doc

	case AddGroup:
		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}
		if groupIndex(doc, id) >= 0 {
			return doc
		}
		doc.Groups = append(slices.Clone(doc.Groups), models.Group{
			ID:      id,
			Name:    fmt.Sprintf("Group %d", len(doc.Groups)+1),
			Members: []models.GroupMember{},
		})
		return doc

	case DeleteGroup:
		if groupIndex(doc, a.GroupID) < 0 {
			return doc
		}
		doc.Groups = slices.DeleteFunc(slices.Clone(doc.Groups), func(g models.Group) bool {
			return g.ID == a.GroupID
		})
		return doc

	case UpdateGroupName:
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return doc
		}
		return updateGroup(doc, a.GroupID, func(g models.Group) models.Group {
			g.Name = name
			return g
		})

	case AddPlayerToGroup:
		if a.PlayerID == "" {
			return doc
		}
		return updateGroup(doc, a.GroupID, func(g models.Group) models.Group {
			return addMember(g, models.GroupMember{PlayerID: a.PlayerID, SelectedUnits: []models.UnitSelection{}})
		})

	case RemovePlayerFromGroup:
		return updateGroup(doc, a.GroupID, func(g models.Group) models.Group {
			g, _ = removeMember(g, a.PlayerID)
			return g
		})

	case MovePlayerBetweenGroups:
		src := groupIndex(doc, a.SourceGroupID)
		if src < 0 {
			return doc
		}
		source, member := removeMember(doc.Groups[src], a.PlayerID)
		if member == nil {
			return doc
		}
		groups := slices.Clone(doc.Groups)
		groups[src] = source
		// A full target drops the member.
		if dst := groupIndex(doc, a.TargetGroupID); dst >= 0 {
			groups[dst] = addMember(groups[dst], *member)
		}
		doc.Groups = groups
		return doc

	case ReorderGroupMember:
		return updateGroup(doc, a.GroupID, func(g models.Group) models.Group {
			from := memberIndex(g, a.PlayerID)
			to := memberIndex(g, a.TargetPlayerID)
			if from < 0 || to < 0 || from == to {
				return g
			}
			moved := g.Members[from]
			members := slices.Delete(slices.Clone(g.Members), from, from+1)
			g.Members = slices.Insert(members, to, moved)
			return g
		})

	case ToggleGroupMemberUnit:
		if a.UnitName == "" {
			return doc
		}
		return updateMember(doc, a.GroupID, a.PlayerID, func(m models.GroupMember) models.GroupMember {
			if i := selectionIndex(m, a.UnitName); i >= 0 {
				m.SelectedUnits = slices.Delete(slices.Clone(m.SelectedUnits), i, i+1)
			} else {
				m.SelectedUnits = append(slices.Clone(m.SelectedUnits), models.UnitSelection{UnitName: a.UnitName})
			}
			return m
		})

	case SetGroupMemberUnitRank:
		rank := int(a.Rank)
		if rank < 0 || rank > models.MaxUnitRank {
			rank = 0
		}
		return updateMember(doc, a.GroupID, a.PlayerID, func(m models.GroupMember) models.GroupMember {
			i := selectionIndex(m, a.UnitName)
			if i < 0 {
				return m
			}
			m.SelectedUnits = slices.Clone(m.SelectedUnits)
			m.SelectedUnits[i].Rank = rank
			return m
		})

	case ToggleGroupMemberLock:
		return updateMember(doc, a.GroupID, a.PlayerID, func(m models.GroupMember) models.GroupMember {
			m.IsLocked = !m.IsLocked
			return m
		})

	case SetGroupLeader:
		return updateGroup(doc, a.GroupID, func(g models.Group) models.Group {
			g.LeaderID = models.OptionalID(a.PlayerID)
			return g
		})

	case ImportTWAttendance:
		signups, err := attendance.Parse([]byte(a.JSONString))
		if err != nil {
			return doc
		}
		return ApplyAttendance(doc, attendance.Match(signups, doc.Players))

	case ClearTWAttendance:
		doc.TWAttendance = []models.AttendancePlayer{}
		return doc

	case LoadState:
		return a.Document

	case SaveSuccess:
		return doc
	}
	return doc
}

// ApplyAttendance installs the attendance list from out and removes declined
// players from every group.
func ApplyAttendance(doc models.Document, out attendance.Outcome) models.Document {
	doc.TWAttendance = slices.Clone(out.Attendance)
	if len(out.Declined) == 0 {
		return doc
	}
	groups := slices.Clone(doc.Groups)
	for i, g := range groups {
		for _, m := range g.Members {
			if out.Declined[m.PlayerID] {
				g, _ = removeMember(g, m.PlayerID)
			}
		}
		groups[i] = g
	}
	doc.Groups = groups
	return doc
}

var unitTypes = []models.UnitType{
	models.UnitTypeOwned,
	models.UnitTypePrepared,
	models.UnitTypeMastery,
	models.UnitTypeFavorite,
}

func playerIndex(doc models.Document, id string) int {
	return slices.IndexFunc(doc.Players, func(p models.Player) bool { return p.ID == id })
}

func groupIndex(doc models.Document, id string) int {
	return slices.IndexFunc(doc.Groups, func(g models.Group) bool { return g.ID == id })
}

func memberIndex(g models.Group, playerID string) int {
	return slices.IndexFunc(g.Members, func(m models.GroupMember) bool { return m.PlayerID == playerID })
}

func selectionIndex(m models.GroupMember, unitName string) int {
	return slices.IndexFunc(m.SelectedUnits, func(s models.UnitSelection) bool { return s.UnitName == unitName })
}

func mapPlayers(players []models.Player, fn func(models.Player) models.Player) []models.Player {
	if players == nil {
		return nil
	}
	out := make([]models.Player, len(players))
	for i, p := range players {
		out[i] = fn(p)
	}
	return out
}

func updatePlayer(doc models.Document, id string, fn func(models.Player) models.Player) models.Document {
	i := playerIndex(doc, id)
	if i < 0 {
		return doc
	}
	players := slices.Clone(doc.Players)
	players[i] = fn(players[i])
	doc.Players = players
	return doc
}

func updateGroup(doc models.Document, id string, fn func(models.Group) models.Group) models.Document {
	i := groupIndex(doc, id)
	if i < 0 {
		return doc
	}
	groups := slices.Clone(doc.Groups)
	groups[i] = fn(groups[i])
	doc.Groups = groups
	return doc
}

func updateMember(doc models.Document, groupID, playerID string, fn func(models.GroupMember) models.GroupMember) models.Document {
	return updateGroup(doc, groupID, func(g models.Group) models.Group {
		i := memberIndex(g, playerID)
		if i < 0 {
			return g
		}
		g.Members = slices.Clone(g.Members)
		g.Members[i] = fn(g.Members[i])
		return g
	})
}

// addMember appends m unless g is full or already has the player. The first
// member of an empty group becomes its leader.
func addMember(g models.Group, m models.GroupMember) models.Group {
	if len(g.Members) >= models.MaxGroupMembers || memberIndex(g, m.PlayerID) >= 0 {
		return g
	}
	if len(g.Members) == 0 {
		g.LeaderID = models.OptionalID(m.PlayerID)
	}
	g.Members = append(slices.Clone(g.Members), m)
	return g
}

// removeMember drops playerID from g and hands leadership to the new first
// member when the leader leaves. The removed member is nil if absent.
func removeMember(g models.Group, playerID string) (models.Group, *models.GroupMember) {
	i := memberIndex(g, playerID)
	if i < 0 {
		return g, nil
	}
	removed := g.Members[i]
	g.Members = slices.Delete(slices.Clone(g.Members), i, i+1)
	if string(g.LeaderID) == playerID {
		g.LeaderID = ""
		if len(g.Members) > 0 {
			g.LeaderID = models.OptionalID(g.Members[0].PlayerID)
		}
	}
	return g, &removed
}

// State is the document plus its dirty flag
type State struct {
	Document          models.Document `json:"document"`
	HasUnsavedChanges bool            `json:"hasUnsavedChanges"`
}

// Apply runs Reduce and tracks unsaved changes. Loading and saving mark the
// state clean; any other action that changes the document marks it dirty.
func Apply(s State, a Action) State {
	next := Reduce(s.Document, a)
	switch a.(type) {
	case LoadState, SaveSuccess:
		return State{Document: next}
	}
	return State{Document: next, HasUnsavedChanges: s.HasUnsavedChanges || Changed(s.Document, next)}
}

// Changed reports whether two documents serialize differently
func Changed(old, next models.Document) bool {
	a, errA := json.Marshal(old)
	b, errB := json.Marshal(next)
	if errA != nil || errB != nil {
		return true
	}
	return string(a) != string(b)
}
