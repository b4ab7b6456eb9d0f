package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/Billy-Davies-2/warband-roster/internal/form"
	"github.com/Billy-Davies-2/warband-roster/internal/logger"
	"github.com/Billy-Davies-2/warband-roster/internal/roster"
	"github.com/Billy-Davies-2/warband-roster/internal/workspace"
)

// Server implements the gRPC RosterService
type Server struct {
	ws *workspace.Workspace
}

var _ RosterServiceServer = (*Server)(nil)

// NewServer creates a new gRPC server
func NewServer(ws *workspace.Workspace) *Server {
	return &Server{ws: ws}
}

// GetDocument returns the current state as {document, hasUnsavedChanges}
func (s *Server) GetDocument(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	logger.Debug("gRPC: Getting roster state")
	return toStruct(s.ws.State())
}

// Dispatch applies {type, payload} and returns the new state
func (s *Server) Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	actionType := fields["type"].GetStringValue()
	if actionType == "" {
		return nil, status.Error(codes.InvalidArgument, "type is required")
	}

	var payload json.RawMessage
	if p, ok := fields["payload"]; ok {
		raw, err := protojson.Marshal(p)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "payload: %v", err)
		}
		payload = raw
	}

	action, err := roster.DecodeAction(roster.ActionType(actionType), payload)
	if err != nil {
		logger.Warn("gRPC: Failed to decode action", "error", err, "action", actionType)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	state, err := s.ws.Handle(ctx, action)
	if err != nil {
		logger.Warn("gRPC: Action rejected", "error", err, "action", actionType)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return toStruct(state)
}

// ExportDocument returns the indented export file
func (s *Server) ExportDocument(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	data, _, err := s.ws.Export()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(data), nil
}

// GenerateForm renders the form for {playerId, version}
func (s *Server) GenerateForm(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields := req.GetFields()
	playerID := fields["playerId"].GetStringValue()
	if playerID == "" {
		return nil, status.Error(codes.InvalidArgument, "playerId is required")
	}
	version := int(fields["version"].GetNumberValue())

	text, err := s.ws.GenerateForm(playerID, version)
	switch {
	case errors.Is(err, workspace.ErrPlayerNotFound):
		return nil, status.Error(codes.NotFound, err.Error())
	case errors.Is(err, form.ErrUnknownVersion):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case err != nil:
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.String(text), nil
}

func toStruct(state roster.State) (*structpb.Struct, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
