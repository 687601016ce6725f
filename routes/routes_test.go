package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/lan-tournament/brackets"
	"github.com/Dosada05/lan-tournament/handlers"
	"github.com/Dosada05/lan-tournament/metrics"
	"github.com/Dosada05/lan-tournament/middleware"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
	"github.com/Dosada05/lan-tournament/services"
)

const (
	testSecret   = "routes-test-secret"
	testEvent    = 1
	trialSecret  = "logger-password"
	adminUserID  = 9
	playerOneID  = 1
	playerTwoID  = 2
	ingestBurst  = 3
	tokenTimeout = time.Minute
)

type testServer struct {
	t      *testing.T
	router *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := repositories.NewMemoryStore()
	dir := repositories.NewMemoryDirectory()
	dir.AddUser(models.User{ID: playerOneID, Name: "Fragmaster", Role: models.RolePlayer})
	dir.AddUser(models.User{ID: playerTwoID, Name: "Camper", Role: models.RolePlayer})
	dir.AddUser(models.User{ID: adminUserID, Name: "Orga", Role: models.RoleAdmin})

	hub := brackets.NewHub(logger)
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	rankings := services.NewRankingService(services.RankingServiceDeps{Store: store, Directory: dir, Notifier: hub, Metrics: m, Logger: logger})
	games := services.NewGameService(store, logger)
	regs := services.NewRegistrationService(store, dir, hub, logger)
	matches := services.NewMatchService(services.MatchServiceDeps{Store: store, Directory: dir, Notifier: hub, Metrics: m, Logger: logger})
	pools := services.NewPoolService(services.PoolServiceDeps{Store: store, Directory: dir, Notifier: hub, Metrics: m, Logger: logger})
	timeTrials := services.NewTimeTrialService(store, dir, hub, m, logger)
	dashboard := services.NewDashboardService(rankings, games, pools, matches)

	hash, err := bcrypt.GenerateFromPassword([]byte(trialSecret), bcrypt.MinCost)
	require.NoError(t, err)

	tokens := middleware.NewActionTokens([]byte(testSecret), tokenTimeout)
	limiter, stop := middleware.NewTokenBucketRateLimiter(1, ingestBurst)
	t.Cleanup(stop)

	router := chi.NewRouter()
	SetupRoutes(router,
		Options{
			JWTSecret:      []byte(testSecret),
			AllowedOrigins: []string{"*"},
			ActionTokens:   tokens,
			IngestLimiter:  limiter,
			Gatherer:       registry,
		},
		handlers.NewDashboardHandler(testEvent, dashboard, rankings),
		handlers.NewGameHandler(testEvent, games, regs, pools, matches),
		handlers.NewActionHandler(testEvent, regs, matches, dir, tokens),
		handlers.NewAdminHandler(testEvent, games, pools, rankings, timeTrials),
		handlers.NewTimeTrialHandler(testEvent, timeTrials, string(hash)),
		handlers.NewWebSocketHandler(hub, []string{"*"}, logger),
	)
	return &testServer{t: t, router: router}
}

func bearer(t *testing.T, userID int, role models.UserRole) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func (s *testServer) do(method, target, auth, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "192.0.2.10:5555"
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) json(method, target, auth, body string) *httptest.ResponseRecorder {
	return s.do(method, target, auth, "application/json", strings.NewReader(body))
}

func (s *testServer) form(target, auth string, values url.Values) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, target, auth, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (s *testServer) actionToken(auth, action string) string {
	rr := s.do(http.MethodGet, "/api/action/token?action="+action, auth, "", nil)
	require.Equal(s.t, http.StatusOK, rr.Code, rr.Body.String())
	return decode(s.t, rr)["token"].(string)
}

func (s *testServer) createGame(body string) int {
	rr := s.json(http.MethodPost, "/api/admin/games", bearer(s.t, adminUserID, models.RoleAdmin), body)
	require.Equal(s.t, http.StatusCreated, rr.Code, rr.Body.String())
	game := decode(s.t, rr)["game"].(map[string]interface{})
	return int(game["id"].(float64))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	body := `{"name":"Quake","pool_enabled":true,"points_win":10,"points_loss":2}`

	rr := s.json(http.MethodPost, "/api/admin/games", "", body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.json(http.MethodPost, "/api/admin/games", bearer(t, playerOneID, models.RolePlayer), body)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.json(http.MethodPost, "/api/admin/games", bearer(t, adminUserID, models.RoleAdmin), body)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = s.json(http.MethodPost, "/api/admin/games", bearer(t, adminUserID, models.RoleAdmin), `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestActionDispatchFlow(t *testing.T) {
	s := newTestServer(t)
	gameID := s.createGame(`{"name":"Quake","pool_enabled":true,"points_win":10,"points_loss":2}`)
	one := bearer(t, playerOneID, models.RolePlayer)
	two := bearer(t, playerTwoID, models.RolePlayer)

	join := s.actionToken(one, handlers.ActionJoinPool)
	rr := s.form("/api/action", one, url.Values{
		"action": {handlers.ActionJoinPool}, "token": {join}, "game_id": {fmt.Sprint(gameID)},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "success", decode(t, rr)["status"])

	rr = s.form("/api/action", one, url.Values{
		"action": {handlers.ActionJoinPool}, "token": {join}, "game_id": {fmt.Sprint(gameID)},
	})
	assert.Equal(t, http.StatusConflict, rr.Code, "second registration conflicts")

	rr = s.form("/api/action", one, url.Values{
		"action": {handlers.ActionLeavePool}, "token": {join}, "game_id": {fmt.Sprint(gameID)},
	})
	assert.Equal(t, http.StatusForbidden, rr.Code, "token bound to another action")

	rr = s.form("/api/action", two, url.Values{
		"action": {handlers.ActionJoinPool}, "token": {join}, "game_id": {fmt.Sprint(gameID)},
	})
	assert.Equal(t, http.StatusForbidden, rr.Code, "token bound to another user")

	joinTwo := s.actionToken(two, handlers.ActionJoinPool)
	req := httptest.NewRequest(http.MethodPost, "/api/action",
		strings.NewReader(fmt.Sprintf(`{"action":%q,"game_id":%d}`, handlers.ActionJoinPool, gameID)))
	req.Header.Set("Authorization", two)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActionTokenHeader, joinTwo)
	rr = httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.form("/api/action", one, url.Values{
		"action":        {handlers.ActionChallenge},
		"token":         {s.actionToken(one, handlers.ActionChallenge)},
		"game_id":       {fmt.Sprint(gameID)},
		"challenged_id": {fmt.Sprint(playerTwoID)},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(http.MethodGet, "/api/me/pending", two, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	challenges := decode(t, rr)["challenges"].([]interface{})
	require.Len(t, challenges, 1)
	matchID := int(challenges[0].(map[string]interface{})["id"].(float64))

	steps := []struct {
		auth   string
		action string
		extra  url.Values
	}{
		{auth: two, action: handlers.ActionAccept},
		{auth: one, action: handlers.ActionReportResult, extra: url.Values{"user1_score": {"3"}, "user2_score": {"1"}}},
		{auth: two, action: handlers.ActionConfirmResult},
	}
	for _, step := range steps {
		values := url.Values{"action": {step.action}, "token": {s.actionToken(step.auth, step.action)}, "match_id": {fmt.Sprint(matchID)}}
		for k, v := range step.extra {
			values[k] = v
		}
		rr = s.form("/api/action", step.auth, values)
		require.Equal(t, http.StatusOK, rr.Code, "%s: %s", step.action, rr.Body.String())
	}

	rr = s.do(http.MethodGet, fmt.Sprintf("/api/matches/%d", matchID), "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	match := decode(t, rr)["match"].(map[string]interface{})
	assert.Equal(t, string(models.MatchFinished), match["state"])

	rr = s.do(http.MethodGet, "/api/leaderboard", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	board := decode(t, rr)["leaderboard"].([]interface{})
	require.Len(t, board, 2)
	top := board[0].(map[string]interface{})
	assert.Equal(t, "Fragmaster", top["name"])
	assert.EqualValues(t, 10, top["points"])

	rr = s.form("/api/action", one, url.Values{
		"action": {handlers.ActionReportResult}, "token": {s.actionToken(one, handlers.ActionReportResult)},
		"match_id": {fmt.Sprint(matchID)}, "user1_score": {"0"}, "user2_score": {"9"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "finished matches reject reports")
}

func TestUnknownActionToken(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodGet, "/api/action/token?action=dropTables", bearer(t, playerOneID, models.RolePlayer), "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodGet, "/api/action/token?action=joinUserPool", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTimeTrialIngestion(t *testing.T) {
	s := newTestServer(t)
	submit := func(password, record string) *httptest.ResponseRecorder {
		return s.form("/api/timetrial", "", url.Values{
			"password": {password}, "user": {"Fragmaster"}, "map_name": {"A01"},
			"date": {"2024-05-01"}, "time": {"21:30:00"}, "record": {record},
		})
	}

	rr := submit("wrong", "45.000")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = submit(trialSecret, "45.000")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "added", decode(t, rr)["result"])

	rr = submit(trialSecret, "44.000")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "improved", decode(t, rr)["result"])

	rr = submit(trialSecret, "44.000")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "burst of %d exhausted", ingestBurst)

	rr = s.do(http.MethodGet, "/api/timetrial/maps", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	maps := decode(t, rr)["maps"].([]interface{})
	require.Len(t, maps, 1)
	mapID := int(maps[0].(map[string]interface{})["id"].(float64))

	rr = s.do(http.MethodPost, fmt.Sprintf("/api/admin/timetrial/maps/%d/process", mapID), bearer(t, adminUserID, models.RoleAdmin), "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(http.MethodGet, "/api/users/1/rank", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decode(t, rr)["rank"])
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodGet, "/swagger/doc.json", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "LAN Tournament API")

	s.createGame(`{"name":"Quake","pool_enabled":true,"points_win":10}`)
	rr = s.do(http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# HELP")

	rr = s.do(http.MethodGet, "/api/overview", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, testEvent, decode(t, rr)["event_id"])

	rr = s.do(http.MethodGet, "/api/games/999", "", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodGet, "/api/games/abc", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
