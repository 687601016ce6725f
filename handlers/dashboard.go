package handlers

import (
	"net/http"

	"github.com/Dosada05/lan-tournament/services"
)

type DashboardHandler struct {
	eventID          int
	dashboardService services.DashboardService
	rankingService   services.RankingService
}

func NewDashboardHandler(eventID int, ds services.DashboardService, rs services.RankingService) *DashboardHandler {
	return &DashboardHandler{eventID: eventID, dashboardService: ds, rankingService: rs}
}

// Overview
// @Summary Сводка по событию
// @Tags events
// @Produce json
// @Param event_id query int false "Event ID (default: current event)"
// @Success 200 {object} models.EventOverview
// @Router /api/overview [get]
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	eventID, err := queryInt(r, "event_id", h.eventID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	overview, err := h.dashboardService.Overview(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, overview, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Leaderboard
// @Summary Таблица рейтинга
// @Tags rankings
// @Produce json
// @Param event_id query int false "Event ID (default: current event)"
// @Success 200 {object} map[string]interface{}
// @Router /api/leaderboard [get]
func (h *DashboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	eventID, err := queryInt(r, "event_id", h.eventID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	board, err := h.rankingService.Leaderboard(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"event_id": eventID, "leaderboard": board}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UserRank returns rank, movement and, with snapshot_id, the rank recorded
// in that snapshot.
// @Summary Позиция игрока в рейтинге
// @Tags rankings
// @Produce json
// @Param userID path int true "User ID"
// @Param snapshot_id query int false "Snapshot ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/users/{userID}/rank [get]
func (h *DashboardHandler) UserRank(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	eventID, err := queryInt(r, "event_id", h.eventID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	snapshotID, err := queryInt(r, "snapshot_id", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	rank, err := h.rankingService.Rank(ctx, eventID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	movement, err := h.rankingService.RankMovement(ctx, eventID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	response := jsonResponse{"user_id": userID, "rank": rank, "movement": movement}

	if snapshotID != 0 {
		past, err := h.rankingService.RankAt(ctx, eventID, userID, snapshotID)
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		response["snapshot_id"] = snapshotID
		response["snapshot_rank"] = past
	} else {
		past, err := h.rankingService.SnapshotRank(ctx, eventID, userID)
		if err != nil {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		response["snapshot_rank"] = past
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DashboardHandler) Awards(w http.ResponseWriter, r *http.Request) {
	eventID, err := queryInt(r, "event_id", h.eventID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	awards, err := h.rankingService.Awards(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"awards": awards}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
