package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/journeymanlabs/trafficguard/internal/application/services"
	"github.com/journeymanlabs/trafficguard/internal/core/domain/limit"
	"github.com/journeymanlabs/trafficguard/internal/core/domain/session"
	"github.com/journeymanlabs/trafficguard/internal/core/ports"
	"github.com/journeymanlabs/trafficguard/internal/infrastructure/httpserver"
	tmocks "github.com/journeymanlabs/trafficguard/test/mocks"
)

func newTestServer(t *testing.T, recorder ports.SessionRecorder, strategy ports.RateLimitStrategy) *httpserver.Server {
	t.Helper()
	if strategy == nil {
		strategy = &tmocks.RateLimitStrategyMock{}
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return httpserver.NewServer(&httpserver.ServerConfig{RequestTimeout: 2 * time.Second}, logger, httpserver.ServerDeps{
		Strategy:        strategy,
		Shedder:         services.NewLoadShedder(nil, nil, 1),
		Breakers:        services.NewBreakerRegistry(&services.BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, VolumeThreshold: 1, Timeout: time.Minute}, nil),
		Bulkheads:       services.NewBulkheadRegistry(&services.BulkheadConfig{MaxConcurrent: 4, MaxQueueLength: 2}, nil),
		SessionRecorder: recorder,
	})
}

func doRequest(srv *httpserver.Server, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestRecordSession_PersistsAndReturns201(t *testing.T) {
	var got *session.GameSession
	recorder := &tmocks.SessionRecorderMock{RecordSessionFn: func(ctx context.Context, s *session.GameSession) error {
		got = s
		return nil
	}}
	srv := newTestServer(t, recorder, nil)

	rec := doRequest(srv, http.MethodPost, "/api/v1/sessions",
		`{"playerId":"p-1","score":840,"questions":10,"correct":8,"durationMs":61250}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, got)
	require.Equal(t, "p-1", got.PlayerID)
	require.Equal(t, 840, got.Score)
	require.Equal(t, 8, got.Correct)
}

func TestRecordSession_RejectsMissingPlayerID(t *testing.T) {
	srv := newTestServer(t, &tmocks.SessionRecorderMock{}, nil)

	rec := doRequest(srv, http.MethodPost, "/api/v1/sessions", `{"score":10}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordSession_BreakerFailsFastAfterPostgresOutage(t *testing.T) {
	calls := 0
	recorder := &tmocks.SessionRecorderMock{RecordSessionFn: func(ctx context.Context, s *session.GameSession) error {
		calls++
		return errors.New("connection refused")
	}}
	srv := newTestServer(t, recorder, nil)

	body := `{"playerId":"p-1","score":1}`

	// First request retries the write, then fails and trips the breaker.
	rec := doRequest(srv, http.MethodPost, "/api/v1/sessions", body)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 3, calls)

	// Second request is rejected without touching the recorder.
	rec = doRequest(srv, http.MethodPost, "/api/v1/sessions", body)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "Service Unavailable")
	require.Contains(t, rec.Body.String(), "retryAfter")
	require.Equal(t, 3, calls)
}

func TestGetLeaderboard_ReturnsEntries(t *testing.T) {
	recorder := &tmocks.SessionRecorderMock{LeaderboardFn: func(ctx context.Context, topN int) ([]session.LeaderboardEntry, error) {
		return []session.LeaderboardEntry{{PlayerID: "p-1", BestScore: 900, Sessions: 4}}, nil
	}}
	srv := newTestServer(t, recorder, nil)

	rec := doRequest(srv, http.MethodGet, "/api/v1/leaderboard?top=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []session.LeaderboardEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, "p-1", entries[0].PlayerID)
	require.Empty(t, rec.Header().Get("X-Leaderboard-Stale"))
}

func TestGetLeaderboard_ServesCachedCopyWhenStoreIsDown(t *testing.T) {
	healthy := true
	recorder := &tmocks.SessionRecorderMock{LeaderboardFn: func(ctx context.Context, topN int) ([]session.LeaderboardEntry, error) {
		if !healthy {
			return nil, errors.New("connection refused")
		}
		return []session.LeaderboardEntry{{PlayerID: "p-1", BestScore: 900, Sessions: 4}}, nil
	}}
	srv := newTestServer(t, recorder, nil)

	rec := doRequest(srv, http.MethodGet, "/api/v1/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = doRequest(srv, http.MethodGet, "/api/v1/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "true", rec.Header().Get("X-Leaderboard-Stale"))
	require.Contains(t, rec.Body.String(), "p-1")
}

func TestServer_RateLimitAppliesToAPIRoutes(t *testing.T) {
	denied := &tmocks.RateLimitStrategyMock{AllowFn: func(ctx context.Context, identifier string) (limit.Decision, error) {
		return limit.Decision{Allowed: false, ResetIn: time.Second, Limit: 5}, nil
	}}
	srv := newTestServer(t, &tmocks.SessionRecorderMock{}, denied)

	rec := doRequest(srv, http.MethodGet, "/api/v1/leaderboard", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
}

func TestServer_HealthEndpointBypassesNothingButResponds(t *testing.T) {
	srv := newTestServer(t, &tmocks.SessionRecorderMock{}, nil)

	rec := doRequest(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "healthy")
}

func TestRecordSession_SlowStoreAnswers504AndLeavesBreakerClosed(t *testing.T) {
	recorder := &tmocks.SessionRecorderMock{RecordSessionFn: func(ctx context.Context, s *session.GameSession) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	breakers := services.NewBreakerRegistry(&services.BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, VolumeThreshold: 1, Timeout: time.Minute}, nil)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	srv := httpserver.NewServer(&httpserver.ServerConfig{RequestTimeout: 50 * time.Millisecond}, logger, httpserver.ServerDeps{
		Strategy:        &tmocks.RateLimitStrategyMock{},
		Shedder:         services.NewLoadShedder(nil, nil, 1),
		Breakers:        breakers,
		Bulkheads:       services.NewBulkheadRegistry(&services.BulkheadConfig{MaxConcurrent: 4, MaxQueueLength: 2}, nil),
		SessionRecorder: recorder,
	})

	rec := doRequest(srv, http.MethodPost, "/api/v1/sessions", `{"playerId":"p-1","score":1}`)
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	// The slow call was cut off by the request deadline, not rejected by the
	// dependency, so the breaker must not have tripped.
	require.Equal(t, services.BreakerClosed, breakers.Get("postgres").State())
}
