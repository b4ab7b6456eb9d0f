package fuzz

import (
	"context"
	"testing"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Billy-Davies-2/warband-roster/internal/dal"
	grpcserver "github.com/Billy-Davies-2/warband-roster/internal/grpc"
	"github.com/Billy-Davies-2/warband-roster/internal/roster"
	"github.com/Billy-Davies-2/warband-roster/internal/workspace"
)

func newGRPCServer(t *testing.T) *grpcserver.Server {
	ws, err := workspace.New(workspace.Options{Store: dal.NewMemoryDAL(0)})
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	ws.Dispatch(roster.AddPlayer{ID: "p1", Name: "Amy"})
	ws.Dispatch(roster.AddGroup{ID: "g1"})
	return grpcserver.NewServer(ws)
}

// FuzzGRPCDispatch fuzzes Dispatch with arbitrary Struct requests
func FuzzGRPCDispatch(f *testing.F) {
	f.Add(`{"type":"ADD_PLAYER_TO_GROUP","payload":{"groupId":"g1","playerId":"p1"}}`)
	f.Add(`{"type":"TOGGLE_GROUP_MEMBER_UNIT","payload":{"groupId":"g1","playerId":"p1","unitName":""}}`)
	f.Add(`{"type":"UPDATE_PLAYER_LEADERSHIP","payload":{"playerId":"p1","totalLeadership":1e300}}`)
	f.Add(`{"type":"DELETE_GROUP","payload":null}`)
	f.Add(`{}`)

	f.Fuzz(func(t *testing.T, data string) {
		req := &structpb.Struct{}
		if err := protojson.Unmarshal([]byte(data), req); err != nil {
			t.Skip()
		}
		_, _ = newGRPCServer(t).Dispatch(context.Background(), req)
	})
}

// FuzzGRPCGenerateForm fuzzes GenerateForm arguments
func FuzzGRPCGenerateForm(f *testing.F) {
	f.Add("p1", 1.0)
	f.Add("p1", 2.0)
	f.Add("ghost", -3.5)
	f.Add("", 0.0)

	f.Fuzz(func(t *testing.T, playerID string, version float64) {
		req := &structpb.Struct{Fields: map[string]*structpb.Value{
			"playerId": structpb.NewStringValue(playerID),
			"version":  structpb.NewNumberValue(version),
		}}
		_, _ = newGRPCServer(t).GenerateForm(context.Background(), req)
	})
}
