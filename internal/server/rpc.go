package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"pubg-rank-bot/internal/domain"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ListPlayersProcedure = "/pubgrank.v1.PlayerService/ListPlayers"
	GetPlayerProcedure   = "/pubgrank.v1.PlayerService/GetPlayer"
)

// mountRPC exposes the player views as connect unary procedures next to the JSON routes.
func (s *OpsServer) mountRPC(mux *http.ServeMux) {
	mux.Handle(ListPlayersProcedure, connect.NewUnaryHandler(ListPlayersProcedure, s.ListPlayers))
	mux.Handle(GetPlayerProcedure, connect.NewUnaryHandler(GetPlayerProcedure, s.GetPlayer))
}

func (s *OpsServer) ListPlayers(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	players, err := s.playerList(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load players")
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	out, err := toStruct(map[string]any{"players": players})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

func (s *OpsServer) GetPlayer(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.Struct], error) {
	id := req.Msg.GetValue()
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("user id is required"))
	}

	player, err := s.playerDetail(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUnregisteredAccount) {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("player %s is not registered", id))
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", id).Msg("failed to load player")
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	out, err := toStruct(player)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// toStruct converts a JSON-tagged response into a protobuf Struct with the same field names.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return structpb.NewStruct(fields)
}
