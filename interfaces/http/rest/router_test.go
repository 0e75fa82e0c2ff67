package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coredetect/application/commands"
	"coredetect/application/commands/bus"
	commandhandlers "coredetect/application/commands/handlers"
	"coredetect/application/queries"
	querybus "coredetect/application/queries/bus"
	queryhandlers "coredetect/application/queries/handlers"
	"coredetect/application/services"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	"coredetect/domain/events"
	"coredetect/infrastructure/persistence/memory"
	"coredetect/interfaces/http/rest/middleware"
	"coredetect/pkg/auth"
	pkgerrors "coredetect/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDetector struct {
	result *services.DetectionResult
	err    error
}

func (s *stubDetector) Detect(ctx context.Context, seed valueobjects.UserID, opts services.DetectOptions) (*services.DetectionResult, error) {
	return s.result, s.err
}

func (s *stubDetector) DetectByScreenName(ctx context.Context, screenName string, opts services.DetectOptions) (*services.DetectionResult, error) {
	return s.result, s.err
}

type stubDownloader struct{}

func (stubDownloader) Download(ctx context.Context, userID valueobjects.UserID) (int, error) {
	return 3, nil
}

type testServer struct {
	handler   http.Handler
	validator *auth.JWTValidator
	users     *memory.InMemoryUserRepository
	runs      *memory.InMemoryRunEventStore
}

func newTestServer(t *testing.T, detector commandhandlers.Detector) *testServer {
	t.Helper()
	logger := zap.NewNop()

	validator, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: "secret", Issuer: "coredetect"})
	require.NoError(t, err)
	errHandler := pkgerrors.NewErrorHandler(logger, false, ClassifyDetectionError)

	users := memory.NewInMemoryUserRepository()
	runs := memory.NewInMemoryRunEventStore()
	commandBus := bus.NewCommandBus()
	require.NoError(t, commandBus.Register(commands.DetectCoreCommand{},
		commandhandlers.NewDetectCoreHandler(detector, memory.NewInMemoryRunLock(), nil, time.Minute, logger)))
	require.NoError(t, commandBus.Register(commands.DownloadNeighbourhoodTweetsCommand{},
		commandhandlers.NewDownloadTweetsHandler(stubDownloader{}, logger)))

	queryBus := querybus.NewQueryBus()
	require.NoError(t, queryBus.Register(queries.GetUserQuery{}, queryhandlers.NewGetUserHandler(users)))
	require.NoError(t, queryBus.Register(queries.GetRunQuery{}, queryhandlers.NewGetRunHandler(runs)))

	authenticator := middleware.NewAuthenticator(validator, auth.NewKeyedLimiter(600, 100, time.Minute), nil, errHandler, logger)
	router := NewRouter(commandBus, queryBus, authenticator, errHandler, RouterConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("metrics")) }),
		Readiness: map[string]ReadinessCheck{
			"storage": func(ctx context.Context) error { return nil },
		},
	}, logger)

	return &testServer{handler: router.Setup(), validator: validator, users: users, runs: runs}
}

func (s *testServer) do(t *testing.T, method, path, body string, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if roles != nil {
		token, err := s.validator.GenerateToken("analyst-1", "", roles)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouter_PublicEndpoints(t *testing.T) {
	s := newTestServer(t, &stubDetector{})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", "").Code)

	rec := s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t, &stubDetector{})

	rec := s.do(t, http.MethodGet, "/api/v1/users/42", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_GetUser(t *testing.T) {
	// Arrange
	s := newTestServer(t, &stubDetector{})
	user, err := entities.NewUser(valueobjects.MustUserID("42"), "Alice")
	require.NoError(t, err)
	require.NoError(t, s.users.Save(context.Background(), user))

	// Act
	byID := s.do(t, http.MethodGet, "/api/v1/users/42", "", "viewer")
	byName := s.do(t, http.MethodGet, "/api/v1/users/@alice", "", "viewer")
	missing := s.do(t, http.MethodGet, "/api/v1/users/43", "", "viewer")

	// Assert
	require.Equal(t, http.StatusOK, byID.Code)
	body := decode(t, byID)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Alice", body["data"].(map[string]interface{})["screen_name"])
	assert.Equal(t, http.StatusOK, byName.Code)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestRouter_CreateDetection(t *testing.T) {
	tests := []struct {
		name     string
		detector *stubDetector
		body     string
		roles    []string
		status   int
		errType  string
	}{
		{
			name:     "converged",
			detector: &stubDetector{result: &services.DetectionResult{Core: valueobjects.MustUserID("7"), Steps: 2}},
			body:     `{"seed_user_id":"42"}`,
			roles:    []string{"analyst"},
			status:   http.StatusOK,
		},
		{
			name:     "not converged",
			detector: &stubDetector{err: &services.NotConvergedError{MaxIterations: 3, Last: valueobjects.MustUserID("2"), Previous: valueobjects.MustUserID("1")}},
			body:     `{"seed_user_id":"42","max_iterations":3}`,
			roles:    []string{"analyst"},
			status:   http.StatusUnprocessableEntity,
			errType:  "NOT_CONVERGED",
		},
		{
			name:     "step failed",
			detector: &stubDetector{err: &services.StepFailedError{Step: 1, UserID: valueobjects.MustUserID("42"), Phase: services.PhaseCluster, Cause: errors.New("boom")}},
			body:     `{"seed_user_id":"42"}`,
			roles:    []string{"analyst"},
			status:   http.StatusBadGateway,
			errType:  "STEP_FAILED",
		},
		{
			name:     "invalid body",
			detector: &stubDetector{},
			body:     `{"seed_user_id":"42","screen_name":"alice"}`,
			roles:    []string{"analyst"},
			status:   http.StatusBadRequest,
			errType:  string(pkgerrors.ErrorTypeValidation),
		},
		{
			name:     "unknown field",
			detector: &stubDetector{},
			body:     `{"seed":"42"}`,
			roles:    []string{"analyst"},
			status:   http.StatusBadRequest,
			errType:  string(pkgerrors.ErrorTypeValidation),
		},
		{
			name:     "viewer cannot start runs",
			detector: &stubDetector{},
			body:     `{"seed_user_id":"42"}`,
			roles:    []string{"viewer"},
			status:   http.StatusForbidden,
			errType:  string(pkgerrors.ErrorTypeForbidden),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.detector)

			rec := s.do(t, http.MethodPost, "/api/v1/detections", tt.body, tt.roles...)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.errType != "" {
				assert.Equal(t, tt.errType, decode(t, rec)["type"])
			}
		})
	}
}

func TestRouter_DownloadTweets(t *testing.T) {
	s := newTestServer(t, &stubDetector{})

	rec := s.do(t, http.MethodPost, "/api/v1/users/42/tweets/download", "", "admin")

	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["users"])
}

func TestRouter_GetRun(t *testing.T) {
	// Arrange
	s := newTestServer(t, &stubDetector{})
	runID := events.NewRunID()
	now := time.Now().UTC()
	for _, e := range []events.DomainEvent{
		events.NewDetectionStarted(runID, "42", 10, false, now),
		events.NewDetectionConverged(runID, "42", "42", 1, now),
	} {
		rec, err := events.NewRecord(e)
		require.NoError(t, err)
		require.NoError(t, s.runs.Append(context.Background(), []events.Record{rec}))
	}

	// Act
	found := s.do(t, http.MethodGet, "/api/v1/detections/"+runID, "", "viewer")
	missing := s.do(t, http.MethodGet, "/api/v1/detections/"+events.NewRunID(), "", "viewer")
	invalid := s.do(t, http.MethodGet, "/api/v1/detections/nope", "", "viewer")

	// Assert
	require.Equal(t, http.StatusOK, found.Code, found.Body.String())
	data := decode(t, found)["data"].(map[string]interface{})
	assert.Equal(t, events.RunStatusConverged, data["status"])
	assert.Equal(t, "42", data["core_user_id"])
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestClassifyDetectionError_Unknown(t *testing.T) {
	_, _, _, ok := ClassifyDetectionError(errors.New("plain"))
	assert.False(t, ok)

	status, _, _, ok := ClassifyDetectionError(context.DeadlineExceeded)
	assert.True(t, ok)
	assert.Equal(t, http.StatusGatewayTimeout, status)
}
