package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/riskibarqy/matchpulse/internal/domain/match"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
	"github.com/riskibarqy/matchpulse/internal/realtime"
	"github.com/riskibarqy/matchpulse/internal/usecase"
)

const defaultUpcomingDays = 3

type HandlerConfig struct {
	DefaultUpcomingDays int
	AllowedOrigins      []string
	PingInterval        time.Duration
	PongWait            time.Duration
}

type Handler struct {
	resources    *usecase.ResourceService
	hub          *realtime.Hub
	logger       *logging.Logger
	validator    *validator.Validate
	upgrader     websocket.Upgrader
	upcomingDays int
	pingInterval time.Duration
	pongWait     time.Duration
}

func NewHandler(resources *usecase.ResourceService, hub *realtime.Hub, logger *logging.Logger, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	upcomingDays := cfg.DefaultUpcomingDays
	if upcomingDays < 1 || upcomingDays > usecase.MaxUpcomingDays {
		upcomingDays = defaultUpcomingDays
	}
	pongWait := cfg.PongWait
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 || pingInterval >= pongWait {
		pingInterval = pongWait * 9 / 10
	}

	return &Handler{
		resources: resources,
		hub:       hub,
		logger:    logger,
		validator: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin(cfg.AllowedOrigins),
		},
		upcomingDays: upcomingDays,
		pingInterval: pingInterval,
		pongWait:     pongWait,
	}
}

type upcomingRequest struct {
	Days int `validate:"min=1,max=14"`
}

type leagueMatchesRequest struct {
	LeagueID int64 `validate:"gt=0"`
}

type matchRequest struct {
	MatchID string `validate:"required,max=32"`
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListLive(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "ListLive")
	defer span.End()

	view, err := h.resources.Live(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list live matches failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, toResourceDTO(view, toMatchDTO))
}

func (h *Handler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "ListUpcoming")
	defer span.End()

	req := upcomingRequest{Days: h.upcomingDays}
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: days must be an integer", usecase.ErrInvalidInput))
			return
		}
		req.Days = days
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	view, err := h.resources.Upcoming(ctx, req.Days)
	if err != nil {
		h.logger.WarnContext(ctx, "list upcoming matches failed", "days", req.Days, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, toResourceDTO(view, toMatchDTO))
}

func (h *Handler) ListLeagueMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "ListLeagueMatches")
	defer span.End()

	leagueID, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("leagueID")), 10, 64)
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: league id must be an integer", usecase.ErrInvalidInput))
		return
	}
	req := leagueMatchesRequest{LeagueID: leagueID}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	view, err := h.resources.LeagueMatches(ctx, req.LeagueID)
	if err != nil {
		h.logger.WarnContext(ctx, "list league matches failed", "league_id", req.LeagueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, toResourceDTO(view, toMatchDTO))
}

func (h *Handler) ListLeagues(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "ListLeagues")
	defer span.End()

	view, err := h.resources.Leagues(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "list leagues failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, toResourceDTO(view, toLeagueDTO))
}

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "GetMatch")
	defer span.End()

	req := matchRequest{MatchID: strings.TrimSpace(r.PathValue("matchID"))}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	item, err := h.resources.Match(ctx, req.MatchID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, toMatchDTO(item))
}

func (h *Handler) HubStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "HubStats")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.hub.Stats())
}

func (h *Handler) FeedStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "FeedStatus")
	defer span.End()

	classes := h.resources.FeedStatus()
	if classes == nil {
		classes = []usecase.ClassStatus{}
	}
	writeSuccess(ctx, w, http.StatusOK, map[string]any{"classes": classes})
}

// subscribeChannel defaults to the global channel.
func subscribeChannel(r *http.Request) string {
	channel := r.URL.Query().Get("channel")
	if strings.TrimSpace(channel) == "" {
		return match.ChannelAll
	}
	return channel
}
