package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"pubg-rank-bot/internal/config"
	"pubg-rank-bot/internal/constants"
	"pubg-rank-bot/internal/domain"
	"pubg-rank-bot/internal/middleware"
	"pubg-rank-bot/internal/service"
	"pubg-rank-bot/internal/tier"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type PlayerReader interface {
	Registered(ctx context.Context) (map[string]domain.PlayerRecord, error)
	Lookup(ctx context.Context, userID string) (*domain.PlayerRecord, *domain.Tier, error)
	History(ctx context.Context, userID string, limit int) ([]domain.SyncRecord, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// OpsServer exposes read-only player state and a health check over HTTP.
type OpsServer struct {
	players  PlayerReader
	resolver *tier.Resolver
	db       Pinger
	logger   zerolog.Logger
}

func NewOpsServer(syncSvc *service.SyncService, resolver *tier.Resolver, db *sql.DB, logger zerolog.Logger) *OpsServer {
	return newOpsServer(syncSvc, resolver, db, logger)
}

func newOpsServer(players PlayerReader, resolver *tier.Resolver, db Pinger, logger zerolog.Logger) *OpsServer {
	return &OpsServer{players: players, resolver: resolver, db: db, logger: logger}
}

type tierResponse struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type playerResponse struct {
	UserID    string                `json:"user_id"`
	Account   string                `json:"account"`
	Avatar    string                `json:"avatar,omitempty"`
	MaxRating int                   `json:"max_rating"`
	Tier      *tierResponse         `json:"tier"`
	Stats     *domain.StatsSnapshot `json:"stats,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

type historyResponse struct {
	MaxRating int       `json:"max_rating"`
	Tier      string    `json:"tier"`
	RoleError string    `json:"role_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type playerDetailResponse struct {
	playerResponse
	History []historyResponse `json:"history"`
}

func (s *OpsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /players", s.listPlayers)
	mux.HandleFunc("GET /players/{id}", s.getPlayer)
	s.mountRPC(mux)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return middleware.RequestID(s.logger)(middleware.Recover(c.Handler(mux)))
}

func (s *OpsServer) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("database ping failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *OpsServer) listPlayers(w http.ResponseWriter, r *http.Request) {
	out, err := s.playerList(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to load players")
		writeError(w, http.StatusInternalServerError, "failed to load players")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *OpsServer) getPlayer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	resp, err := s.playerDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUnregisteredAccount) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("player %s is not registered", id))
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Str("user_id", id).Msg("failed to load player")
		writeError(w, http.StatusInternalServerError, "failed to load player")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// playerList returns every registered player without stats, highest rating first.
func (s *OpsServer) playerList(ctx context.Context) ([]playerResponse, error) {
	records, err := s.players.Registered(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]playerResponse, 0, len(records))
	for _, rec := range records {
		resp := s.toPlayerResponse(&rec)
		resp.Stats = nil
		out = append(out, resp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MaxRating != out[j].MaxRating {
			return out[i].MaxRating > out[j].MaxRating
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *OpsServer) playerDetail(ctx context.Context, id string) (*playerDetailResponse, error) {
	rec, _, err := s.players.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := s.players.History(ctx, id, constants.HistoryListLimit)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", id).Msg("failed to load sync history")
	}

	resp := &playerDetailResponse{playerResponse: s.toPlayerResponse(rec), History: make([]historyResponse, 0, len(history))}
	for _, h := range history {
		resp.History = append(resp.History, historyResponse{
			MaxRating: h.MaxRating,
			Tier:      h.TierName,
			RoleError: h.RoleError,
			CreatedAt: h.CreatedAt,
		})
	}
	return resp, nil
}

func (s *OpsServer) toPlayerResponse(rec *domain.PlayerRecord) playerResponse {
	resp := playerResponse{
		UserID:    rec.UserID,
		Account:   rec.Account,
		Avatar:    rec.Avatar,
		MaxRating: tier.MaxRating(rec.Stats),
		Stats:     rec.Stats,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if t := s.resolver.Resolve(resp.MaxRating); t != nil {
		resp.Tier = &tierResponse{Index: t.Index, Name: t.Name}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// NewHTTPServer builds the listener for the ops surface.
func NewHTTPServer(cfg *config.Config, ops *OpsServer) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           ops.Handler(),
		ReadHeaderTimeout: constants.RequestTimeout,
	}
}
