package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// ErrUnknownAction is returned by DecodeAction for an unrecognised type
var ErrUnknownAction = errors.New("unknown action type")

// ActionType is the wire name of an action
type ActionType string

const (
	ActionAddPlayer               ActionType = "ADD_PLAYER"
	ActionDeletePlayer            ActionType = "DELETE_PLAYER"
	ActionUpdatePlayerName        ActionType = "UPDATE_PLAYER_NAME"
	ActionToggleNotInHouse        ActionType = "TOGGLE_NOT_IN_HOUSE"
	ActionTogglePlayerUnit        ActionType = "TOGGLE_PLAYER_UNIT"
	ActionUpdatePlayerInfo        ActionType = "UPDATE_PLAYER_INFO"
	ActionUpdatePlayerLeadership  ActionType = "UPDATE_PLAYER_LEADERSHIP"
	ActionParsePlayerUnitsForm    ActionType = "PARSE_PLAYER_UNITS_FORM"
	ActionUpdateUnitConfig        ActionType = "UPDATE_UNIT_CONFIG"
	ActionRenameUnitGlobally      ActionType = "RENAME_UNIT_GLOBALLY"
	ActionDeleteUnitGlobally      ActionType = "DELETE_UNIT_GLOBALLY"
	ActionAddUnit                 ActionType = "ADD_UNIT"
	ActionSetUnitCost             ActionType = "SET_UNIT_COST"
	ActionAddGroup                ActionType = "ADD_GROUP"
	ActionDeleteGroup             ActionType = "DELETE_GROUP"
	ActionUpdateGroupName         ActionType = "UPDATE_GROUP_NAME"
	ActionAddPlayerToGroup        ActionType = "ADD_PLAYER_TO_GROUP"
	ActionRemovePlayerFromGroup   ActionType = "REMOVE_PLAYER_FROM_GROUP"
	ActionMovePlayerBetweenGroups ActionType = "MOVE_PLAYER_BETWEEN_GROUPS"
	ActionReorderGroupMember      ActionType = "REORDER_GROUP_MEMBER"
	ActionToggleGroupMemberUnit   ActionType = "TOGGLE_GROUP_MEMBER_UNIT"
	ActionSetGroupMemberUnitRank  ActionType = "SET_GROUP_MEMBER_UNIT_RANK"
	ActionToggleGroupMemberLock   ActionType = "TOGGLE_GROUP_MEMBER_LOCK"
	ActionSetGroupLeader          ActionType = "SET_GROUP_LEADER"
	ActionImportTWAttendance      ActionType = "IMPORT_TW_ATTENDANCE"
	ActionClearTWAttendance       ActionType = "CLEAR_TW_ATTENDANCE"
	ActionLoadState               ActionType = "LOAD_STATE"
	ActionSaveSuccess             ActionType = "SAVE_SUCCESS"
)

// Action is one of the concrete action structs below
type Action interface {
	Type() ActionType
}

// AddPlayer appends a player. An empty ID is filled with a fresh UUID.
type AddPlayer struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type DeletePlayer struct {
	PlayerID string `json:"playerId"`
}

type UpdatePlayerName struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type ToggleNotInHouse struct {
	PlayerID string `json:"playerId"`
}

type TogglePlayerUnit struct {
	PlayerID string          `json:"playerId"`
	UnitName string          `json:"unitName"`
	UnitType models.UnitType `json:"unitType"`
}

type UpdatePlayerInfo struct {
	PlayerID string `json:"playerId"`
	Info     string `json:"info"`
}

type UpdatePlayerLeadership struct {
	PlayerID        string  `json:"playerId"`
	TotalLeadership Integer `json:"totalLeadership"`
}

// ParsePlayerUnitsForm replaces a player's unit sets from a filled-in form
type ParsePlayerUnitsForm struct {
	PlayerID string `json:"playerId"`
	FormData string `json:"formData"`
}

type UpdateUnitConfig struct {
	UnitConfig models.UnitConfig `json:"unitConfig"`
}

type RenameUnitGlobally struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

type DeleteUnitGlobally struct {
	UnitNameToDelete string `json:"unitNameToDelete"`
}

type AddUnit struct {
	Tier           string  `json:"tier"`
	Name           string  `json:"name"`
	LeadershipCost Integer `json:"leadershipCost,omitempty"`
}

// SetUnitCost sets a unit's leadership cost; zero clears it
type SetUnitCost struct {
	Name           string  `json:"name"`
	LeadershipCost Integer `json:"leadershipCost,omitempty"`
}

// AddGroup appends an empty group. An empty ID is filled with a fresh UUID.
type AddGroup struct {
	ID string `json:"id,omitempty"`
}

type DeleteGroup struct {
	GroupID string `json:"groupId"`
}

type UpdateGroupName struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

type AddPlayerToGroup struct {
	GroupID  string `json:"groupId"`
	PlayerID string `json:"playerId"`
}

type RemovePlayerFromGroup struct {
	GroupID  string `json:"groupId"`
	PlayerID string `json:"playerId"`
}

type MovePlayerBetweenGroups struct {
	PlayerID      string `json:"playerId"`
	SourceGroupID string `json:"sourceGroupId"`
	TargetGroupID string `json:"targetGroupId"`
}

// ReorderGroupMember moves PlayerID to the position TargetPlayerID holds
type ReorderGroupMember struct {
	GroupID        string `json:"groupId"`
	PlayerID       string `json:"playerId"`
	TargetPlayerID string `json:"targetPlayerId"`
}

type ToggleGroupMemberUnit struct {
	GroupID  string `json:"groupId"`
	PlayerID string `json:"playerId"`
	UnitName string `json:"unitName"`
}

type SetGroupMemberUnitRank struct {
	GroupID  string  `json:"groupId"`
	PlayerID string  `json:"playerId"`
	UnitName string  `json:"unitName"`
	Rank     Integer `json:"rank"`
}

type ToggleGroupMemberLock struct {
	GroupID  string `json:"groupId"`
	PlayerID string `json:"playerId"`
}

type SetGroupLeader struct {
	GroupID  string `json:"groupId"`
	PlayerID string `json:"playerId"`
}

// ImportTWAttendance replaces the attendance list from a signup export
type ImportTWAttendance struct {
	JSONString string `json:"jsonString"`
}

type ClearTWAttendance struct{}

// LoadState replaces the whole document. Build it with DecodeDocument.
type LoadState struct {
	Document models.Document
}

type SaveSuccess struct{}

func (AddPlayer) Type() ActionType               { return ActionAddPlayer }
func (DeletePlayer) Type() ActionType            { return ActionDeletePlayer }
func (UpdatePlayerName) Type() ActionType        { return ActionUpdatePlayerName }
func (ToggleNotInHouse) Type() ActionType        { return ActionToggleNotInHouse }
func (TogglePlayerUnit) Type() ActionType        { return ActionTogglePlayerUnit }
func (UpdatePlayerInfo) Type() ActionType        { return ActionUpdatePlayerInfo }
func (UpdatePlayerLeadership) Type() ActionType  { return ActionUpdatePlayerLeadership }
func (ParsePlayerUnitsForm) Type() ActionType    { return ActionParsePlayerUnitsForm }
func (UpdateUnitConfig) Type() ActionType        { return ActionUpdateUnitConfig }
func (RenameUnitGlobally) Type() ActionType      { return ActionRenameUnitGlobally }
func (DeleteUnitGlobally) Type() ActionType      { return ActionDeleteUnitGlobally }
func (AddUnit) Type() ActionType                 { return ActionAddUnit }
func (SetUnitCost) Type() ActionType             { return ActionSetUnitCost }
func (AddGroup) Type() ActionType                { return ActionAddGroup }
func (DeleteGroup) Type() ActionType             { return ActionDeleteGroup }
func (UpdateGroupName) Type() ActionType         { return ActionUpdateGroupName }
func (AddPlayerToGroup) Type() ActionType        { return ActionAddPlayerToGroup }
func (RemovePlayerFromGroup) Type() ActionType   { return ActionRemovePlayerFromGroup }
func (MovePlayerBetweenGroups) Type() ActionType { return ActionMovePlayerBetweenGroups }
func (ReorderGroupMember) Type() ActionType      { return ActionReorderGroupMember }
func (ToggleGroupMemberUnit) Type() ActionType   { return ActionToggleGroupMemberUnit }
func (SetGroupMemberUnitRank) Type() ActionType  { return ActionSetGroupMemberUnitRank }
func (ToggleGroupMemberLock) Type() ActionType   { return ActionToggleGroupMemberLock }
func (SetGroupLeader) Type() ActionType          { return ActionSetGroupLeader }
func (ImportTWAttendance) Type() ActionType      { return ActionImportTWAttendance }
func (ClearTWAttendance) Type() ActionType       { return ActionClearTWAttendance }
func (LoadState) Type() ActionType               { return ActionLoadState }
func (SaveSuccess) Type() ActionType             { return ActionSaveSuccess }

// Integer decodes from a JSON number or a numeric string. Anything else,
// fractions included, reads as zero.
type Integer int

func (n *Integer) UnmarshalJSON(data []byte) error {
	*n = 0
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		if x == float64(int(x)) {
			*n = Integer(x)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			*n = Integer(i)
		}
	}
	return nil
}

// Envelope is the {"type", "payload"} wire form of an action
type Envelope struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeEnvelope reads an envelope and decodes the action inside it
func DecodeEnvelope(raw []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode action envelope: %w", err)
	}
	return DecodeAction(env.Type, env.Payload)
}

// DecodeAction builds the action named by t from its JSON payload
func DecodeAction(t ActionType, payload json.RawMessage) (Action, error) {
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}

	switch t {
	case ActionLoadState:
		doc, err := DecodeDocument(payload)
		if err != nil {
			return nil, err
		}
		return LoadState{Document: doc}, nil
	case ActionUpdateUnitConfig:
		var p struct {
			UnitConfig json.RawMessage `json:"unitConfig"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return UpdateUnitConfig{UnitConfig: decodeUnitConfig(p.UnitConfig)}, nil
	}

	var a Action
	switch t {
	case ActionAddPlayer:
		a = &AddPlayer{}
	case ActionDeletePlayer:
		a = &DeletePlayer{}
	case ActionUpdatePlayerName:
		a = &UpdatePlayerName{}
	case ActionToggleNotInHouse:
		a = &ToggleNotInHouse{}
	case ActionTogglePlayerUnit:
		a = &TogglePlayerUnit{}
	case ActionUpdatePlayerInfo:
		a = &UpdatePlayerInfo{}
	case ActionUpdatePlayerLeadership:
		a = &UpdatePlayerLeadership{}
	case ActionParsePlayerUnitsForm:
		a = &ParsePlayerUnitsForm{}
	case ActionRenameUnitGlobally:
		a = &RenameUnitGlobally{}
	case ActionDeleteUnitGlobally:
		a = &DeleteUnitGlobally{}
	case ActionAddUnit:
		a = &AddUnit{}
	case ActionSetUnitCost:
		a = &SetUnitCost{}
	case ActionAddGroup:
		a = &AddGroup{}
	case ActionDeleteGroup:
		a = &DeleteGroup{}
	case ActionUpdateGroupName:
		a = &UpdateGroupName{}
	case ActionAddPlayerToGroup:
		a = &AddPlayerToGroup{}
	case ActionRemovePlayerFromGroup:
		a = &RemovePlayerFromGroup{}
	case ActionMovePlayerBetweenGroups:
		a = &MovePlayerBetweenGroups{}
	case ActionReorderGroupMember:
		a = &ReorderGroupMember{}
	case ActionToggleGroupMemberUnit:
		a = &ToggleGroupMemberUnit{}
	case ActionSetGroupMemberUnitRank:
		a = &SetGroupMemberUnitRank{}
	case ActionToggleGroupMemberLock:
		a = &ToggleGroupMemberLock{}
	case ActionSetGroupLeader:
		a = &SetGroupLeader{}
	case ActionImportTWAttendance:
		a = &ImportTWAttendance{}
	case ActionClearTWAttendance:
		return ClearTWAttendance{}, nil
	case ActionSaveSuccess:
		return SaveSuccess{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, t)
	}

	if err := json.Unmarshal(payload, a); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return deref(a), nil
}

// deref turns the pointer used for decoding back into the value form Reduce switches on
func deref(a Action) Action {
	switch v := a.(type) {
	case *AddPlayer:
		return *v
	case *DeletePlayer:
		return *v
	case *UpdatePlayerName:
		return *v
	case *ToggleNotInHouse:
		return *v
	case *TogglePlayerUnit:
		return *v
	case *UpdatePlayerInfo:
		return *v
	case *UpdatePlayerLeadership:
		return *v
	case *ParsePlayerUnitsForm:
		return *v
	case *RenameUnitGlobally:
		return *v
	case *DeleteUnitGlobally:
		return *v
	case *AddUnit:
		return *v
	case *SetUnitCost:
		return *v
	case *AddGroup:
		return *v
	case *DeleteGroup:
		return *v
	case *UpdateGroupName:
		return *v
	case *AddPlayerToGroup:
		return *v
	case *RemovePlayerFromGroup:
		return *v
	case *MovePlayerBetweenGroups:
		return *v
	case *ReorderGroupMember:
		return *v
	case *ToggleGroupMemberUnit:
		return *v
	case *SetGroupMemberUnitRank:
		return *v
	case *ToggleGroupMemberLock:
		return *v
	case *SetGroupLeader:
		return *v
	case *ImportTWAttendance:
		return *v
	}
	return a
}
