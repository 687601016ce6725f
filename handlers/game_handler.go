package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dosada05/lan-tournament/middleware"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
	"github.com/Dosada05/lan-tournament/services"
)

// GameHandler serves the public per-game views and the caller's own
// pending matches.
type GameHandler struct {
	eventID       int
	games         services.GameService
	registrations services.RegistrationService
	pools         services.PoolService
	matches       services.MatchService
}

func NewGameHandler(eventID int, gs services.GameService, rs services.RegistrationService, ps services.PoolService, ms services.MatchService) *GameHandler {
	return &GameHandler{
		eventID:       eventID,
		games:         gs,
		registrations: rs,
		pools:         ps,
		matches:       ms,
	}
}

// ListGames
// @Summary Список игр
// @Tags games
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/games [get]
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ListGames(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"games": games}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	game, err := h.games.GetGame(r.Context(), gameID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GameHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	eventID, err := queryInt(r, "event_id", h.eventID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	regs, err := h.registrations.ListRegistrations(r.Context(), eventID, gameID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": regs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListPools
// @Summary Пулы игры и состояние сетки
// @Tags pools
// @Produce json
// @Param gameID path int true "Game ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/games/{gameID}/pools [get]
func (h *GameHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	eventID, err := queryInt(r, "event_id", h.eventID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	ctx := r.Context()
	pools, err := h.pools.ListPools(ctx, eventID, gameID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	state, err := h.pools.BracketState(ctx, eventID, gameID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"state": state, "pools": pools}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GameHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	poolID, err := getIDFromURL(r, "poolID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	pool, err := h.pools.GetPool(r.Context(), poolID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"pool": pool}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatches
// @Summary Матчи игры
// @Tags matches
// @Produce json
// @Param gameID path int true "Game ID"
// @Param finished query bool false "Only finished (true) or unfinished (false) matches"
// @Success 200 {object} map[string]interface{}
// @Router /api/games/{gameID}/matches [get]
func (h *GameHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	eventID, err := queryInt(r, "event_id", h.eventID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	filter := repositories.MatchFilter{EventID: eventID, GameID: &gameID}
	if raw := r.URL.Query().Get("finished"); raw != "" {
		finished, err := strconv.ParseBool(raw)
		if err != nil {
			badRequestResponse(w, r, fmt.Errorf("invalid finished query parameter: %q", raw))
			return
		}
		if finished {
			filter.States = []models.MatchState{models.MatchFinished}
		} else {
			filter.States = []models.MatchState{models.MatchOpen, models.MatchAccepted, models.MatchAwaitingConfirmation}
		}
	}

	matches, err := h.matches.ListMatches(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *GameHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	match, err := h.matches.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MyPending lists the caller's challenges to answer and results to confirm.
// Group matches are included with ?group_id=.
func (h *GameHandler) MyPending(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	p := models.UserParticipant(userID)
	groupID, err := queryInt(r, "group_id", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if groupID != 0 {
		p = models.GroupParticipant(groupID, nil)
	}

	ctx := r.Context()
	challenges, err := h.matches.OpenChallenges(ctx, h.eventID, p)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	confirmations, err := h.matches.OpenConfirmations(ctx, h.eventID, p)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	response := jsonResponse{"challenges": challenges, "confirmations": confirmations}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
