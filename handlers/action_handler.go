package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/lan-tournament/middleware"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
	"github.com/Dosada05/lan-tournament/services"
)

// Dispatchable actions. The names are what the event page posts.
const (
	ActionJoinPool      = "joinUserPool"
	ActionLeavePool     = "leaveUserPool"
	ActionChallenge     = "challengeUser"
	ActionAccept        = "acceptUserChallenge"
	ActionDecline       = "declineUserChallenge"
	ActionReportResult  = "reportResultUserMatch"
	ActionConfirmResult = "confirmResultUserMatch"
	ActionDeclineResult = "declineResultUserMatch"
	ActionWithdraw      = "withdrawUserChallenge"
	ActionCancel        = "cancelUserMatch"
)

var knownActions = map[string]bool{
	ActionJoinPool: true, ActionLeavePool: true, ActionChallenge: true,
	ActionAccept: true, ActionDecline: true, ActionReportResult: true,
	ActionConfirmResult: true, ActionDeclineResult: true,
	ActionWithdraw: true, ActionCancel: true,
}

var errUnknownAction = errors.New("unknown action")

// actionRequest is the union of the fields any action reads. For group
// games GroupID (or ChallengerID when challenging) names the acting group.
type actionRequest struct {
	Action       string `json:"action"`
	Token        string `json:"token"`
	IsTeam       bool   `json:"is_team"`
	GameID       int    `json:"game_id"`
	MatchID      int    `json:"match_id"`
	GroupID      int    `json:"group_id"`
	ChallengerID int    `json:"challenger_id"`
	ChallengedID int    `json:"challenged_id"`
	Score1       *int   `json:"user1_score"`
	Score2       *int   `json:"user2_score"`
	Roster       []int  `json:"user_ids"`
}

type ActionHandler struct {
	eventID       int
	registrations services.RegistrationService
	matches       services.MatchService
	directory     repositories.Directory
	tokens        *middleware.ActionTokens
}

func NewActionHandler(eventID int, rs services.RegistrationService, ms services.MatchService, dir repositories.Directory, tokens *middleware.ActionTokens) *ActionHandler {
	return &ActionHandler{
		eventID:       eventID,
		registrations: rs,
		matches:       ms,
		directory:     dir,
		tokens:        tokens,
	}
}

// IssueToken
// @Summary Выдать токен для действия
// @Tags actions
// @Produce json
// @Param action query string true "Action name"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Security BearerAuth
// @Router /api/action/token [get]
func (h *ActionHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	action := r.URL.Query().Get("action")
	if !knownActions[action] {
		badRequestResponse(w, r, fmt.Errorf("%w: %q", errUnknownAction, action))
		return
	}

	token, expires, err := h.tokens.Issue(userID, action)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	response := jsonResponse{"action": action, "token": token, "expires_at": expires.UTC().Format(time.RFC3339)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Dispatch
// @Summary Выполнить действие игрока
// @Description Единая точка для регистрации, вызовов и результатов матчей. Требует токен действия.
// @Tags actions
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Success 200 {object} map[string]string "status: success"
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /api/action [post]
func (h *ActionHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}
	req, err := readActionRequest(w, r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !knownActions[req.Action] {
		badRequestResponse(w, r, fmt.Errorf("%w: %q", errUnknownAction, req.Action))
		return
	}

	if err := h.dispatch(r, userID, req); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "success"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ActionHandler) dispatch(r *http.Request, userID int, req *actionRequest) error {
	ctx := r.Context()
	actingGroup := req.GroupID
	if req.Action == ActionChallenge && req.ChallengerID != 0 {
		actingGroup = req.ChallengerID
	}
	actor, err := h.actor(r, userID, req.IsTeam, actingGroup)
	if err != nil {
		return err
	}

	switch req.Action {
	case ActionJoinPool:
		_, err = h.registrations.Register(ctx, h.eventID, req.GameID, actor)
	case ActionLeavePool:
		err = h.registrations.Unregister(ctx, h.eventID, req.GameID, actor)
	case ActionChallenge:
		target := models.UserParticipant(req.ChallengedID)
		if req.IsTeam {
			target = models.GroupParticipant(req.ChallengedID, nil)
		}
		_, err = h.matches.Challenge(ctx, h.eventID, req.GameID, actor, target)
	case ActionAccept:
		_, err = h.matches.Accept(ctx, req.MatchID, actor)
	case ActionDecline:
		err = h.matches.Decline(ctx, req.MatchID, actor)
	case ActionWithdraw:
		err = h.matches.Withdraw(ctx, req.MatchID, actor)
	case ActionCancel:
		err = h.matches.Cancel(ctx, req.MatchID, actor)
	case ActionReportResult:
		if req.Score1 == nil || req.Score2 == nil {
			return fmt.Errorf("%w: user1_score and user2_score are required", services.ErrValidationFailed)
		}
		_, err = h.matches.ReportResult(ctx, req.MatchID, actor, *req.Score1, *req.Score2, req.Roster)
	case ActionConfirmResult:
		_, err = h.matches.ConfirmResult(ctx, req.MatchID, actor, req.Roster)
	case ActionDeclineResult:
		_, err = h.matches.DeclineResult(ctx, req.MatchID, actor)
	}
	return err
}

// actor is the participant the caller acts as: themself, or a group they
// belong to.
func (h *ActionHandler) actor(r *http.Request, userID int, isTeam bool, groupID int) (models.Participant, error) {
	if !isTeam {
		return models.UserParticipant(userID), nil
	}
	if groupID <= 0 {
		return models.Participant{}, fmt.Errorf("%w: group_id is required for team actions", services.ErrValidationFailed)
	}
	group, err := h.directory.GetGroup(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return models.Participant{}, services.ErrGroupNotFound
		}
		return models.Participant{}, err
	}
	if !group.HasMember(userID) {
		return models.Participant{}, fmt.Errorf("%w: user %d is not a member of group %d", services.ErrUnauthorized, userID, groupID)
	}
	return models.GroupParticipant(group.ID, group.MemberIDs), nil
}

func readActionRequest(w http.ResponseWriter, r *http.Request) (*actionRequest, error) {
	var req actionRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.New("body contains badly-formed JSON")
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	f := formReader{values: r.PostForm}
	req.Action = f.values.Get("action")
	req.Token = f.values.Get("token")
	req.IsTeam = f.boolValue("is_team")
	req.GameID = f.intValue("game_id")
	req.MatchID = f.intValue("match_id")
	req.GroupID = f.intValue("group_id")
	req.ChallengerID = f.intValue("challenger_id")
	req.ChallengedID = f.intValue("challenged_id")
	req.Score1 = f.optInt("user1_score")
	req.Score2 = f.optInt("user2_score")
	req.Roster = f.intList("user_ids")
	if f.err != nil {
		return nil, f.err
	}
	return &req, nil
}

// formReader collects the first conversion error.
type formReader struct {
	values url.Values
	err    error
}

func (f *formReader) get(name string) string {
	if v := f.values[name]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (f *formReader) intValue(name string) int {
	v := f.optInt(name)
	if v == nil {
		return 0
	}
	return *v
}

func (f *formReader) optInt(name string) *int {
	raw := f.get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil && f.err == nil {
		f.err = fmt.Errorf("invalid %s: %q", name, raw)
	}
	return &v
}

func (f *formReader) boolValue(name string) bool {
	switch strings.ToLower(f.get(name)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// intList accepts repeated fields and comma separated lists.
func (f *formReader) intList(name string) []int {
	var out []int
	for _, raw := range f.values[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			v, err := strconv.Atoi(part)
			if err != nil {
				if f.err == nil {
					f.err = fmt.Errorf("invalid %s: %q", name, part)
				}
				continue
			}
			out = append(out, v)
		}
	}
	return out
}
