package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"samplr/config"
	"samplr/pkg/entities"
	"samplr/pkg/middlewares"
	"samplr/pkg/repo/driver/medium"
	"samplr/pkg/repo/memory"
	"samplr/pkg/usecases"
)

type nopSender struct{}

func (nopSender) Send(context.Context, entities.PushMessage) error { return nil }

type testServer struct {
	router     *gin.Engine
	store      *memory.Store
	dispatcher *usecases.Dispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conf := &config.SamplrConfModel{
		Mode:          "local",
		Server:        config.Server{APIVersion: "v1"},
		Ledger:        config.Ledger{CASRetries: 3},
		Notifications: config.Notifications{Capacity: 50, PushTimeout: "1s", PushWorkers: 2},
	}
	config.SetConfig(conf)

	ctx := context.Background()
	store := memory.New()
	for _, tier := range []entities.Tier{
		{Order: 1, Name: "Newbie", RequiredPoints: 0},
		{Order: 2, Name: "Active", RequiredPoints: 1000},
	} {
		require.NoError(t, store.UpsertTier(ctx, tier))
	}
	require.NoError(t, store.UpsertAccount(ctx, entities.UserAccount{AuthID: "auth-1", ProfileID: "profile-1", TotalPoints: 950}))

	ws := medium.NewWebSocket()
	dispatcher := usecases.NewDispatcher(store, nopSender{}, conf)
	notificationUsecases := usecases.NewNotificationUsecases(
		usecases.NewNotificationLog(store, conf), store, ws, dispatcher,
	)
	accrualUsecases := usecases.NewAccrualUsecases(store, store, store, notificationUsecases)
	m := middlewares.NewMiddlewares(notificationUsecases)

	router := gin.New()
	api := router.Group("/api/local")
	NewLedgerController(api, accrualUsecases, m).InitRoutes()
	NewNotificationController(api, notificationUsecases, ws, m).InitRoutes()
	NewUserController(api, notificationUsecases, m).InitRoutes()
	NewController(api, usecases.NewUseCases(store), m).InitRoutes()

	t.Cleanup(func() { _ = dispatcher.Drain(context.Background()) })

	return &testServer{router: router, store: store, dispatcher: dispatcher}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, entities.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/api/local/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp entities.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestCheckInRoute(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
	}{
		{
			name:       "accepted",
			path:       "/users/auth-1/events/e1/check-ins",
			body:       map[string]interface{}{"check_in_code": "ABC", "points_earned": 75},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "duplicate",
			path:       "/users/profile-1/events/e1/check-ins",
			body:       map[string]interface{}{"check_in_code": "ABC", "points_earned": 75},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "missing code",
			path:       "/users/profile-1/events/e2/check-ins",
			body:       map[string]interface{}{"points_earned": 10},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "points past int64",
			path:       "/users/profile-1/events/e4/check-ins",
			body:       map[string]interface{}{"check_in_code": "ABC", "points_earned": int64(math.MaxInt64)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown user",
			path:       "/users/ghost/events/e1/check-ins",
			body:       map[string]interface{}{"check_in_code": "ABC"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed body",
			path:       "/users/profile-1/events/e3/check-ins",
			body:       "not an object",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := s.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	rec, resp := s.do(t, http.MethodGet, "/users/profile-1/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := resp.Data.(map[string]interface{})
	require.EqualValues(t, 1025, stats["total_points"])
	require.EqualValues(t, 1, stats["event_check_ins"])
	require.EqualValues(t, 1, stats["badge_achievements"])
}

func TestReviewRoute(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/users/profile-1/events/e1/reviews",
		map[string]interface{}{"rating": 9, "points_earned": 10})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := s.do(t, http.MethodPost, "/users/profile-1/events/e1/reviews",
		map[string]interface{}{"rating": 4, "text": "tasty", "points_earned": 10})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.EqualValues(t, 4, resp.Data.(map[string]interface{})["rating"])

	rec, resp = s.do(t, http.MethodPost, "/users/profile-1/statistics/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, resp.Data.(map[string]interface{})["repaired"])
}

func TestNotificationRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodPost, "/users/profile-1/notifications", map[string]interface{}{
		"type": "event-added", "title": "New event", "message": "Samples at Main St",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := resp.Data.(map[string]interface{})["id"].(string)

	rec, _ = s.do(t, http.MethodPost, "/users/profile-1/notifications", map[string]interface{}{
		"type": "promo", "title": "x", "message": "y",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = s.do(t, http.MethodGet, "/users/auth-1/notifications/unread/count", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, resp.Data.(map[string]interface{})["unread"])

	rec, _ = s.do(t, http.MethodPut, "/users/profile-1/notifications/"+id+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/users/profile-1/notifications/missing/read", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = s.do(t, http.MethodGet, "/users/profile-1/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, resp.Data)

	rec, resp = s.do(t, http.MethodGet, "/users/profile-1/notifications?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Data, 1)

	rec, _ = s.do(t, http.MethodPut, "/users/profile-1/notifications/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/users/profile-1/notifications/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/users/profile-1/notifications/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodDelete, "/users/profile-1/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/users/auth-1/devices", map[string]interface{}{"device_id": "token-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/users/auth-1/devices", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	tokens, err := s.store.GetFCMTokens(context.Background(), "profile-1")
	require.NoError(t, err)
	require.Equal(t, []string{"token-1"}, tokens)

	rec, _ = s.do(t, http.MethodPut, "/users/profile-1/preferences", map[string]bool{"push": false})
	require.Equal(t, http.StatusOK, rec.Code)

	account, err := s.store.GetProfile(context.Background(), "profile-1")
	require.NoError(t, err)
	require.False(t, account.PushEnabled())
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/db/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "samplr_")
}
