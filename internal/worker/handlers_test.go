// Package worker provides the HTTP service for quickpen.
package worker

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/quickpen-app/quickpen/internal/auth"
	"github.com/quickpen-app/quickpen/internal/config"
	gormstore "github.com/quickpen-app/quickpen/internal/db/gorm"
	"github.com/quickpen-app/quickpen/internal/events"
	"github.com/quickpen-app/quickpen/internal/sprint"
	"github.com/quickpen-app/quickpen/internal/worker/sse"
	"github.com/quickpen-app/quickpen/pkg/models"
)

// testService creates a Service backed by a temp SQLite database.
func testService(t *testing.T) *Service {
	t.Helper()

	store, err := gormstore.NewStore(gormstore.Config{
		Driver:   "sqlite",
		Path:     filepath.Join(t.TempDir(), "test.db"),
		MaxConns: 4,
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)

	sprintStore := gormstore.NewSprintStore(store)
	userStore := gormstore.NewUserStore(store)
	authSvc := auth.NewService(userStore, time.Hour)
	bus := events.NewBus()
	sessions := sprint.NewManager(sprintStore, bus)

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:        "test-version",
		config:         config.Default(),
		store:          store,
		sprintStore:    sprintStore,
		userStore:      userStore,
		auth:           authSvc,
		sessions:       sessions,
		bus:            bus,
		sseBroadcaster: sse.NewBroadcaster(),
		router:         chi.NewRouter(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}
	svc.unsubscribe = append(svc.unsubscribe,
		bus.Subscribe(events.SprintCompleted, svc.onSprintCompleted))
	svc.setupRoutes()
	svc.ready.Store(true)

	t.Cleanup(func() {
		cancel()
		sessions.Shutdown()
		store.Close()
	})

	return svc
}

// doJSON performs a request with an optional JSON body and bearer token.
func doJSON(t *testing.T, svc *Service, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// signInAnonymous creates a throwaway identity and returns its token.
func signInAnonymous(t *testing.T, svc *Service) string {
	t.Helper()

	rec := doJSON(t, svc, http.MethodPost, "/api/auth/anonymous", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var sess auth.Session
	decodeJSON(t, rec, &sess)
	require.NotEmpty(t, sess.Token)
	return sess.Token
}

// seedSprint writes a sprint directly to the store for the token's user.
func seedSprint(t *testing.T, svc *Service, token, content string, words, duration int, completed time.Time, tags ...string) string {
	t.Helper()

	user, err := svc.auth.VerifyToken(context.Background(), token)
	require.NoError(t, err)

	id, err := svc.sprintStore.SaveSprint(context.Background(), &models.Sprint{
		UserID:      user.UID,
		Content:     content,
		WordCount:   words,
		Duration:    duration,
		CompletedAt: completed,
		Tags:        models.JSONStringArray(tags),
	})
	require.NoError(t, err)
	return id
}

func TestHandleHealth(t *testing.T) {
	svc := testService(t)
	svc.version = "test-version-1.2.3"

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	svc.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	decodeJSON(t, rec, &response)
	assert.Equal(t, "ready", response["status"])
	assert.Equal(t, "test-version-1.2.3", response["version"])
}

func TestHandleVersion(t *testing.T) {
	svc := testService(t)

	rec := doJSON(t, svc, http.MethodGet, "/api/version", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]string
	decodeJSON(t, rec, &response)
	assert.Equal(t, "test-version", response["version"])
}

func TestHandleReadyNotReady(t *testing.T) {
	svc := testService(t)
	svc.ready.Store(false)

	rec := doJSON(t, svc, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireReadyMiddlewareBlocks(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)
	svc.ready.Store(false)

	rec := doJSON(t, svc, http.MethodGet, "/api/sprints/", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthSignUpSignIn(t *testing.T) {
	svc := testService(t)

	rec := doJSON(t, svc, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":        "writer@example.com",
		"password":     "secret123",
		"display_name": "Writer",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created auth.Session
	decodeJSON(t, rec, &created)
	assert.Equal(t, "writer@example.com", created.User.Email)
	assert.NotEmpty(t, created.Token)

	// Duplicate signup conflicts.
	rec = doJSON(t, svc, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    "writer@example.com",
		"password": "other456",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, svc, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    "writer@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, svc, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    "writer@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMe(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	rec := doJSON(t, svc, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.SerializedUser
	decodeJSON(t, rec, &user)
	assert.NotEmpty(t, user.UID)
	assert.True(t, user.IsAnonymous)

	rec = doJSON(t, svc, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthSignOut(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	rec := doJSON(t, svc, http.MethodPost, "/api/auth/signout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, svc, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	svc := testService(t)

	for _, path := range []string{
		"/api/sprints/",
		"/api/progress",
		"/api/highscores",
		"/api/session/",
	} {
		rec := doJSON(t, svc, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	// Start a fifteen minute sprint.
	rec := doJSON(t, svc, http.MethodPost, "/api/session/start", token, map[string]string{
		"duration": "15",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var st sprint.SessionState
	decodeJSON(t, rec, &st)
	assert.Equal(t, 900, st.TotalDuration)

	// Starting again conflicts.
	rec = doJSON(t, svc, http.MethodPost, "/api/session/start", token, map[string]string{
		"duration": "15",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Write some words.
	rec = doJSON(t, svc, http.MethodPost, "/api/session/content", token, map[string]string{
		"content": "words written during the sprint",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &st)
	assert.Equal(t, 5, st.WordCount)

	// Ending early with content asks for confirmation.
	rec = doJSON(t, svc, http.MethodPost, "/api/session/end-early", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var early struct {
		Decision string `json:"decision"`
	}
	decodeJSON(t, rec, &early)
	assert.Equal(t, "confirm_complete", early.Decision)

	// Confirm and complete.
	rec = doJSON(t, svc, http.MethodPost, "/api/session/complete", token, map[string]bool{
		"ended_early": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sp models.Sprint
	decodeJSON(t, rec, &sp)
	assert.NotEmpty(t, sp.ID)
	assert.Equal(t, 5, sp.WordCount)
	assert.True(t, sp.EndedEarly)
	assert.True(t, sp.ActualDuration.Valid)

	// Session is idle again.
	rec = doJSON(t, svc, http.MethodGet, "/api/session/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &st)
	assert.Equal(t, sprint.PhaseIdle, st.Phase)

	// The completed sprint shows up in history.
	rec = doJSON(t, svc, http.MethodGet, "/api/sprints/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Sprints []*models.Sprint `json:"sprints"`
		Count   int              `json:"count"`
	}
	decodeJSON(t, rec, &listing)
	assert.Equal(t, 1, listing.Count)
}

func TestSessionInvalidDuration(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	rec := doJSON(t, svc, http.MethodPost, "/api/session/start", token, map[string]string{
		"duration": "0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndEarlyWithoutContent(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	rec := doJSON(t, svc, http.MethodPost, "/api/session/start", token, map[string]string{
		"duration": "5",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Nothing written yet, so ending early suggests discarding.
	rec = doJSON(t, svc, http.MethodPost, "/api/session/end-early", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var early struct {
		Decision string `json:"decision"`
	}
	decodeJSON(t, rec, &early)
	assert.Equal(t, "discard", early.Decision)
}

func TestSessionDiscard(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	rec := doJSON(t, svc, http.MethodPost, "/api/session/discard", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, svc, http.MethodPost, "/api/session/start", token, map[string]string{
		"duration": "5",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, svc, http.MethodPost, "/api/session/discard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, svc, http.MethodGet, "/api/sprints/", token, nil)
	var listing struct {
		Count int `json:"count"`
	}
	decodeJSON(t, rec, &listing)
	assert.Zero(t, listing.Count)
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	svc := testService(t)
	alice := signInAnonymous(t, svc)
	bob := signInAnonymous(t, svc)

	rec := doJSON(t, svc, http.MethodPost, "/api/session/start", alice, map[string]string{
		"duration": "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Bob's session is unaffected by Alice's.
	rec = doJSON(t, svc, http.MethodGet, "/api/session/", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var st sprint.SessionState
	decodeJSON(t, rec, &st)
	assert.Equal(t, sprint.PhaseIdle, st.Phase)
}

func TestCreateAndGetSprint(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	rec := doJSON(t, svc, http.MethodPost, "/api/sprints/", token, map[string]interface{}{
		"content":      "imported from a notebook",
		"duration":     300,
		"completed_at": time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sp models.Sprint
	decodeJSON(t, rec, &sp)
	require.NotEmpty(t, sp.ID)
	assert.Equal(t, 4, sp.WordCount)

	rec = doJSON(t, svc, http.MethodGet, "/api/sprints/"+sp.ID+"/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Sprint
	decodeJSON(t, rec, &got)
	assert.Equal(t, sp.ID, got.ID)
	assert.Equal(t, "imported from a notebook", got.Content)
}

func TestGetSprintOwnership(t *testing.T) {
	svc := testService(t)
	alice := signInAnonymous(t, svc)
	bob := signInAnonymous(t, svc)

	id := seedSprint(t, svc, alice, "private words", 2, 60, time.Now())

	rec := doJSON(t, svc, http.MethodGet, "/api/sprints/"+id+"/", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, svc, http.MethodGet, "/api/sprints/"+id+"/", alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListSprintsWithFilters(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	seedSprint(t, svc, token, "dragon chapter one", 3, 300,
		time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), "fiction")
	seedSprint(t, svc, token, "grocery planning", 2, 300,
		time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC), "notes")
	seedSprint(t, svc, token, "dragon chapter two", 3, 300,
		time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC), "fiction")

	var listing struct {
		Sprints []*models.Sprint `json:"sprints"`
		Count   int              `json:"count"`
	}

	rec := doJSON(t, svc, http.MethodGet, "/api/sprints/?tags=fiction", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &listing)
	assert.Equal(t, 2, listing.Count)

	rec = doJSON(t, svc, http.MethodGet, "/api/sprints/?q=dragon&start=2024-03-01&end=2024-03-31", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &listing)
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, "dragon chapter one", listing.Sprints[0].Content)

	// Start without end is rejected.
	rec = doJSON(t, svc, http.MethodGet, "/api/sprints/?start=2024-03-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSprintTagsOverHTTP(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	id := seedSprint(t, svc, token, "taggable", 1, 60, time.Now())

	rec := doJSON(t, svc, http.MethodPost, "/api/sprints/"+id+"/tags", token, map[string]string{
		"tag": "fiction",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var sp models.Sprint
	decodeJSON(t, rec, &sp)
	assert.Equal(t, models.JSONStringArray{"fiction"}, sp.Tags)

	rec = doJSON(t, svc, http.MethodPost, "/api/sprints/"+id+"/tags", token, map[string]string{
		"tag": "",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, svc, http.MethodDelete, "/api/sprints/"+id+"/tags/fiction", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &sp)
	assert.Empty(t, sp.Tags)

	seedSprint(t, svc, token, "other", 1, 60, time.Now(), "alpha", "zulu")
	rec = doJSON(t, svc, http.MethodGet, "/api/sprints/tags", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tags struct {
		Tags []string `json:"tags"`
	}
	decodeJSON(t, rec, &tags)
	assert.Equal(t, []string{"alpha", "zulu"}, tags.Tags)
}

func TestProgressEndpoint(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	now := time.Now().UTC()
	seedSprint(t, svc, token, "a", 20, 60, now.Add(-time.Minute))
	seedSprint(t, svc, token, "b", 40, 60, now.Add(-2*time.Minute))

	rec := doJSON(t, svc, http.MethodGet, "/api/progress?range=today", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Range string               `json:"range"`
		Stats models.ProgressStats `json:"stats"`
	}
	decodeJSON(t, rec, &response)
	assert.Equal(t, "today", response.Range)
	assert.Equal(t, 60, response.Stats.WordCount)
	assert.InDelta(t, 30.0, response.Stats.AverageWPM, 0.001)
	assert.Equal(t, 1, response.Stats.CurrentStreak)

	rec = doJSON(t, svc, http.MethodGet, "/api/progress?range=fortnight", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHighScoresEndpoint(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	seedSprint(t, svc, token, "fast", 100, 60, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	seedSprint(t, svc, token, "wordy", 500, 1800, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC))

	rec := doJSON(t, svc, http.MethodGet, "/api/highscores", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var hs models.HighScores
	decodeJSON(t, rec, &hs)
	require.NotNil(t, hs.WPM)
	assert.Equal(t, 100, hs.WPM.WordCount)
	require.NotNil(t, hs.Words)
	assert.Equal(t, 500, hs.Words.WordCount)
	assert.Equal(t, 2, hs.BestStreak)
}

func TestExportText(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	seedSprint(t, svc, token, "exported text body", 3, 300, time.Now())

	rec := doJSON(t, svc, http.MethodGet, "/api/sprints/export?format=txt", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "QuickPen_Export_")
	assert.Contains(t, rec.Body.String(), "QuickPen Sprint Export")
	assert.Contains(t, rec.Body.String(), "exported text body")
}

func TestExportPDF(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	seedSprint(t, svc, token, "pdf body", 2, 300, time.Now())

	rec := doJSON(t, svc, http.MethodGet, "/api/sprints/export?format=pdf", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestExportUnknownFormat(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	rec := doJSON(t, svc, http.MethodGet, "/api/sprints/export?format=docx", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompletedSprintReachesSSEClients(t *testing.T) {
	svc := testService(t)
	token := signInAnonymous(t, svc)

	user, err := svc.auth.VerifyToken(context.Background(), token)
	require.NoError(t, err)

	w := newFlushRecorder()
	client, err := svc.sseBroadcaster.AddClient(w, user.UID)
	require.NoError(t, err)
	defer svc.sseBroadcaster.RemoveClient(client)

	rec := doJSON(t, svc, http.MethodPost, "/api/session/start", token, map[string]string{
		"duration": "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, svc, http.MethodPost, "/api/session/content", token, map[string]string{
		"content": "streamed words",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, svc, http.MethodPost, "/api/session/complete", token, map[string]bool{
		"ended_early": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Eventually(t, func() bool {
		return bytes.Contains(w.Body(), []byte("sprint_completed"))
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, string(w.Body()), "streamed words")
}

func TestHandleEventsRequiresAuth(t *testing.T) {
	svc := testService(t)
	rec := doJSON(t, svc, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// flushRecorder implements http.ResponseWriter and http.Flusher so the SSE
// broadcaster accepts it as a client.
type flushRecorder struct {
	mu     sync.Mutex
	header http.Header
	body   []byte
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{header: make(http.Header)}
}

func (f *flushRecorder) Header() http.Header { return f.header }

func (f *flushRecorder) Write(data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = append(f.body, data...)
	return len(data), nil
}

func (f *flushRecorder) WriteHeader(int) {}

func (f *flushRecorder) Flush() {}

func (f *flushRecorder) Body() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.body...)
}
