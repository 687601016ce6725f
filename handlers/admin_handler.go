package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/reports"
	"github.com/Dosada05/lan-tournament/services"
)

// AdminHandler covers the organiser operations. Routes are mounted behind
// Authenticate + Authorize(admin).
type AdminHandler struct {
	eventID    int
	games      services.GameService
	pools      services.PoolService
	rankings   services.RankingService
	timeTrials services.TimeTrialService
}

func NewAdminHandler(eventID int, gs services.GameService, ps services.PoolService, rs services.RankingService, ts services.TimeTrialService) *AdminHandler {
	return &AdminHandler{
		eventID:    eventID,
		games:      gs,
		pools:      ps,
		rankings:   rs,
		timeTrials: ts,
	}
}

// CreateGame
// @Summary Создать игру
// @Tags admin
// @Accept json
// @Produce json
// @Param body body services.CreateGameInput true "Game flags and points"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string "Нет прав (не админ)"
// @Security BearerAuth
// @Router /api/admin/games [post]
func (h *AdminHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var input services.CreateGameInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	game, err := h.games.CreateGame(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type poolRoundInput struct {
	Count int `json:"count"`
	Rank  int `json:"rank"`
}

// CreatePools
// @Summary Разбить зарегистрированных на пулы
// @Tags admin
// @Accept json
// @Produce json
// @Param gameID path int true "Game ID"
// @Param body body poolRoundInput true "count"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/admin/games/{gameID}/pools [post]
func (h *AdminHandler) CreatePools(w http.ResponseWriter, r *http.Request) {
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input poolRoundInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	pools, err := h.pools.CreatePools(r.Context(), h.eventID, gameID, input.Count)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"pools": pools}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ProcessPools closes the round: rank is the advancement threshold.
// @Summary Завершить раунд пулов
// @Tags admin
// @Accept json
// @Produce json
// @Param gameID path int true "Game ID"
// @Param body body poolRoundInput true "count and rank threshold"
// @Success 201 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/admin/games/{gameID}/pools/process [post]
func (h *AdminHandler) ProcessPools(w http.ResponseWriter, r *http.Request) {
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input poolRoundInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	pools, err := h.pools.ProcessPools(r.Context(), h.eventID, gameID, input.Count, input.Rank)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"pools": pools}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) ProcessFinalPool(w http.ResponseWriter, r *http.Request) {
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	pool, err := h.pools.ProcessFinalPool(r.Context(), h.eventID, gameID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"pool": pool}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type poolRanksInput struct {
	Ranks []models.PoolMember `json:"ranks"`
}

// SetPoolRanks applies one or several ranks. A single entry uses SetRank so
// a non-member is reported as not updated instead of failing.
func (h *AdminHandler) SetPoolRanks(w http.ResponseWriter, r *http.Request) {
	poolID, err := getIDFromURL(r, "poolID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input poolRanksInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(input.Ranks) == 0 {
		badRequestResponse(w, r, errors.New("ranks must not be empty"))
		return
	}

	ctx := r.Context()
	updated := true
	if len(input.Ranks) == 1 {
		updated, err = h.pools.SetRank(ctx, poolID, input.Ranks[0].Participant, input.Ranks[0].Rank)
	} else {
		err = h.pools.SetRanks(ctx, poolID, input.Ranks)
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"updated": updated}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateSnapshot
// @Summary Снимок рейтинга
// @Description Не создаёт снимок, если предыдущий моложе часа или рейтинг пуст.
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]bool
// @Security BearerAuth
// @Router /api/admin/snapshots [post]
func (h *AdminHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	created, err := h.rankings.CreateSnapshot(r.Context(), h.eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"created": created}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) ProcessMap(w http.ResponseWriter, r *http.Request) {
	mapID, err := getIDFromURL(r, "mapID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.timeTrials.ProcessMap(r.Context(), h.eventID, mapID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "processed"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type pointsInput struct {
	UserID      int    `json:"user_id"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}

// AddPoints credits a manual correction. With a description it is recorded
// as an award.
func (h *AdminHandler) AddPoints(w http.ResponseWriter, r *http.Request) {
	var input pointsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	if input.Description != "" {
		if err := h.rankings.GrantAward(ctx, h.eventID, input.UserID, input.Points, input.Description); err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "awarded"}, nil); err != nil {
			serverErrorResponse(w, r, err)
		}
		return
	}

	total, err := h.rankings.AddPoints(ctx, h.eventID, input.UserID, input.Points)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"user_id": input.UserID, "points": total}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ExportStandings
// @Summary Выгрузка рейтинга в XLSX
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /api/admin/standings.xlsx [get]
func (h *AdminHandler) ExportStandings(w http.ResponseWriter, r *http.Request) {
	board, err := h.rankings.Leaderboard(r.Context(), h.eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	rows := make([]reports.StandingRow, len(board))
	for i, e := range board {
		rows[i] = reports.StandingRow{Rank: e.Rank, UserID: e.UserID, Name: e.Name, Points: e.Points, Movement: e.Movement}
	}

	now := time.Now()
	data, err := reports.StandingsWorkbook(fmt.Sprintf("Event %d standings", h.eventID), now, rows)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="standings-%d-%s.xlsx"`, h.eventID, now.UTC().Format("20060102-1504")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
