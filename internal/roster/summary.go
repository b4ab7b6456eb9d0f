package roster

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/Billy-Davies-2/warband-roster/internal/catalog"
	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

const unrankedOrder = 99

// FindPlayer returns the player with id
func FindPlayer(doc models.Document, id string) (models.Player, bool) {
	i := playerIndex(doc, id)
	if i < 0 {
		return models.Player{}, false
	}
	return doc.Players[i], true
}

// FindPlayerByName returns the first player whose name equals name, ignoring case
func FindPlayerByName(doc models.Document, name string) (models.Player, bool) {
	for _, p := range doc.Players {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return models.Player{}, false
}

// FindGroup returns the group with id
func FindGroup(doc models.Document, id string) (models.Group, bool) {
	i := groupIndex(doc, id)
	if i < 0 {
		return models.Group{}, false
	}
	return doc.Groups[i], true
}

// PlayerGroup returns the first group that has playerID as a member
func PlayerGroup(doc models.Document, playerID string) (models.Group, bool) {
	for _, g := range doc.Groups {
		if memberIndex(g, playerID) >= 0 {
			return g, true
		}
	}
	return models.Group{}, false
}

// Usage is a member's leadership budget
type Usage struct {
	Used      int `json:"used"`
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
}

// Exceeded reports whether the selected units cost more than the player has
func (u Usage) Exceeded() bool { return u.Remaining < 0 }

func usage(m models.GroupMember, p models.Player, costs map[string]int) Usage {
	u := Usage{Total: p.TotalLeadership}
	for _, s := range m.SelectedUnits {
		u.Used += costs[s.UnitName]
	}
	u.Remaining = u.Total - u.Used
	return u
}

// LeadershipUsage sums the cost of the units playerID has selected in groupID
func LeadershipUsage(doc models.Document, groupID, playerID string) (Usage, bool) {
	g, ok := FindGroup(doc, groupID)
	if !ok {
		return Usage{}, false
	}
	p, ok := FindPlayer(doc, playerID)
	if !ok {
		return Usage{}, false
	}
	i := memberIndex(g, playerID)
	if i < 0 {
		return Usage{}, false
	}
	return usage(g.Members[i], p, catalog.CostMap(doc.UnitConfig)), true
}

// OrderedMembers returns the leader first, then the others in group order
func OrderedMembers(g models.Group) []models.GroupMember {
	out := make([]models.GroupMember, 0, len(g.Members))
	if i := memberIndex(g, string(g.LeaderID)); i >= 0 {
		out = append(out, g.Members[i])
	}
	for _, m := range g.Members {
		if m.PlayerID != string(g.LeaderID) {
			out = append(out, m)
		}
	}
	return out
}

// RankedSelections orders selections by rank with unranked units last
func RankedSelections(sel []models.UnitSelection) []models.UnitSelection {
	out := slices.Clone(sel)
	slices.SortStableFunc(out, func(a, b models.UnitSelection) int {
		return cmp.Compare(rankOrder(a.Rank), rankOrder(b.Rank))
	})
	return out
}

func rankOrder(rank int) int {
	if rank > 0 {
		return rank
	}
	return unrankedOrder
}

// GroupSummary renders the group as a markdown block for pasting into chat.
// Members whose player no longer exists are skipped.
func GroupSummary(doc models.Document, groupID string) (string, bool) {
	g, ok := FindGroup(doc, groupID)
	if !ok {
		return "", false
	}
	costs := catalog.CostMap(doc.UnitConfig)

	var blocks []string
	for _, m := range OrderedMembers(g) {
		p, ok := FindPlayer(doc, m.PlayerID)
		if !ok {
			continue
		}
		var b strings.Builder
		b.WriteString(p.Name)
		if p.ID == string(g.LeaderID) {
			b.WriteString(" (Lead)")
		}
		u := usage(m, p, costs)
		fmt.Fprintf(&b, " -- LS: %d / %d", u.Used, u.Total)
		for _, s := range RankedSelections(m.SelectedUnits) {
			marker := "-"
			if s.Rank > 0 {
				marker = fmt.Sprintf("%d.", s.Rank)
			}
			fmt.Fprintf(&b, "\n  %s %s (%d LS)", marker, s.UnitName, costs[s.UnitName])
		}
		blocks = append(blocks, b.String())
	}
	return fmt.Sprintf("--- %s ---\n```md\n%s\n```", g.Name, strings.Join(blocks, "\n\n")), true
}

// UnitMatch is a player and the owned units that matched a search
type UnitMatch struct {
	Player models.Player `json:"player"`
	Units  []string      `json:"units"`
}

// SearchUnits finds players owning units whose name contains term, ignoring case
func SearchUnits(doc models.Document, term string) []UnitMatch {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var out []UnitMatch
	for _, p := range doc.Players {
		var units []string
		for _, name := range p.Units.Names() {
			if strings.Contains(strings.ToLower(name), term) {
				units = append(units, name)
			}
		}
		if len(units) > 0 {
			out = append(out, UnitMatch{Player: p, Units: units})
		}
	}
	return out
}
