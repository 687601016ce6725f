package handlers

import (
	"net/http"
	"time"

	"github.com/Dosada05/lan-tournament/services"
	"github.com/Dosada05/lan-tournament/utils"
)

// TimeTrialHandler receives records from the game-side logger. The logger
// authenticates with a shared password instead of a user token.
type TimeTrialHandler struct {
	eventID      int
	timeTrials   services.TimeTrialService
	passwordHash string
	location     *time.Location
}

func NewTimeTrialHandler(eventID int, ts services.TimeTrialService, passwordHash string) *TimeTrialHandler {
	return &TimeTrialHandler{
		eventID:      eventID,
		timeTrials:   ts,
		passwordHash: passwordHash,
		location:     time.Local,
	}
}

// Submit
// @Summary Приём результата time trial
// @Tags timetrial
// @Accept x-www-form-urlencoded
// @Produce json
// @Param password formData string true "Shared logger password"
// @Param user formData string true "User name"
// @Param map_name formData string true "Map name"
// @Param date formData string false "Date of the run"
// @Param time formData string false "Time of the run"
// @Param record formData string true "ss.mmm, mm:ss.mmm or hh:mm:ss.mmm"
// @Success 200 {object} map[string]string "result: added | improved | no_improvement"
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 429 {string} string
// @Router /api/timetrial [post]
func (h *TimeTrialHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.passwordHash == "" {
		mapServiceErrorToHTTP(w, r, services.ErrIngestionClosed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !utils.CheckPasswordHash(r.PostForm.Get("password"), h.passwordHash) {
		unauthorizedResponse(w, r, "invalid password")
		return
	}

	recordedAt, err := utils.ParseLocalDateTime(r.PostForm.Get("date"), r.PostForm.Get("time"), h.location)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	outcome, err := h.timeTrials.SubmitRecord(r.Context(), h.eventID,
		r.PostForm.Get("user"), r.PostForm.Get("map_name"), recordedAt, r.PostForm.Get("record"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": outcome}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TimeTrialHandler) ListMaps(w http.ResponseWriter, r *http.Request) {
	eventID, err := queryInt(r, "event_id", h.eventID)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	maps, err := h.timeTrials.ListMaps(r.Context(), eventID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"maps": maps}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TimeTrialHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	mapID, err := getIDFromURL(r, "mapID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	records, err := h.timeTrials.ListRecords(r.Context(), mapID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"records": records}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
