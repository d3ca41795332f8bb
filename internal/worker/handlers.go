package worker

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/quickpen-app/quickpen/internal/auth"
	"github.com/quickpen-app/quickpen/internal/history"
	"github.com/quickpen-app/quickpen/internal/progress"
	"github.com/quickpen-app/quickpen/internal/sprint"
	"github.com/quickpen-app/quickpen/pkg/models"
)

const dateParamLayout = "2006-01-02"

// writeJSON encodes v to the response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Health ---

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          status,
		"version":         s.version,
		"uptime_seconds":  int(time.Since(s.startTime).Seconds()),
		"active_sessions": s.sessions.ActiveCount(),
		"sse_clients":     s.sseBroadcaster.ClientCount(),
	})
}

func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "service not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- Auth ---

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

func (s *Service) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.auth.SignUpWithEmail(r.Context(), req.Email, req.Password, req.DisplayName)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Error().Err(err).Msg("Sign-up failed")
		writeError(w, http.StatusInternalServerError, "sign-up failed")
	default:
		writeJSON(w, http.StatusCreated, session)
	}
}

func (s *Service) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.auth.SignInWithEmail(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case err != nil:
		log.Error().Err(err).Msg("Sign-in failed")
		writeError(w, http.StatusInternalServerError, "sign-in failed")
	default:
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *Service) handleSignInAnonymously(w http.ResponseWriter, r *http.Request) {
	session, err := s.auth.SignInAnonymously(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Anonymous sign-in failed")
		writeError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Service) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), auth.TokenFromContext(r.Context())); err != nil {
		log.Error().Err(err).Msg("Sign-out failed")
		writeError(w, http.StatusInternalServerError, "sign-out failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.UserFromContext(r.Context()))
}

// --- Sprint session ---

// sessionError maps state machine errors to HTTP statuses.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sprint.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sprint.ErrNoActiveSession),
		errors.Is(err, sprint.ErrSessionActive),
		errors.Is(err, sprint.ErrEditWhilePaused),
		errors.Is(err, sprint.ErrTimerActive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("Session operation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Service) userSession(r *http.Request) *sprint.Session {
	return s.sessions.Session(auth.UserFromContext(r.Context()).UID)
}

func (s *Service) handleSessionState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.userSession(r).Snapshot())
}

func (s *Service) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Duration string `json:"duration"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := s.userSession(r)
	if err := sess.StartSprint(req.Duration); err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Service) handleSessionContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := s.userSession(r)
	if err := sess.EditContent(req.Content); err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Service) handleSessionPause(w http.ResponseWriter, r *http.Request) {
	sess := s.userSession(r)
	if err := sess.Pause(); err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Service) handleSessionResume(w http.ResponseWriter, r *http.Request) {
	sess := s.userSession(r)
	if err := sess.Resume(); err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Service) handleSessionEndEarly(w http.ResponseWriter, r *http.Request) {
	decision, err := s.userSession(r).EndEarly()
	if err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"decision": decision.String()})
}

func (s *Service) handleSessionComplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EndedEarly bool `json:"ended_early"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sp, err := s.userSession(r).Complete(r.Context(), req.EndedEarly)
	if err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (s *Service) handleSessionDiscard(w http.ResponseWriter, r *http.Request) {
	sess := s.userSession(r)
	if err := sess.Discard(); err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// --- Sprint history ---

// filtersFromQuery builds AppliedFilters from the request query string.
// Dates are interpreted in the request's timezone.
func filtersFromQuery(r *http.Request, loc *time.Location) (models.AppliedFilters, error) {
	q := r.URL.Query()
	var f models.AppliedFilters

	if raw := q.Get("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}

	startRaw, endRaw := q.Get("start"), q.Get("end")
	if startRaw != "" || endRaw != "" {
		if startRaw == "" || endRaw == "" {
			return f, fmt.Errorf("start and end must be provided together")
		}
		start, err := time.ParseInLocation(dateParamLayout, startRaw, loc)
		if err != nil {
			return f, fmt.Errorf("invalid start date %q", startRaw)
		}
		end, err := time.ParseInLocation(dateParamLayout, endRaw, loc)
		if err != nil {
			return f, fmt.Errorf("invalid end date %q", endRaw)
		}
		f.DateRange = &models.DateRange{Start: start, End: end}
	}

	f.ContentQuery = q.Get("q")
	return f, nil
}

// location resolves the request timezone. A tz query parameter wins over
// the configured timezone; both fall back to UTC.
func (s *Service) location(r *http.Request) *time.Location {
	name := r.URL.Query().Get("tz")
	if name == "" {
		name = s.config.Timezone
	}
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Debug().Str("tz", name).Msg("Unknown timezone, using UTC")
		return time.UTC
	}
	return loc
}

func (s *Service) handleListSprints(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	loc := s.location(r)

	filters, err := filtersFromQuery(r, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	records, err := s.sprintStore.GetUserSprints(r.Context(), user.UID, 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sprints")
		writeError(w, http.StatusInternalServerError, "failed to list sprints")
		return
	}

	records = history.Filter(records, filters)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sprints": records,
		"count":   len(records),
	})
}

func (s *Service) handleCreateSprint(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var sp models.Sprint
	if err := decodeBody(r, &sp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sp.UserID = user.UID
	if sp.CompletedAt.IsZero() {
		sp.CompletedAt = time.Now()
	}
	if sp.WordCount == 0 {
		sp.WordCount = sprint.CountWords(sp.Content)
	}

	id, err := s.sprintStore.SaveSprint(r.Context(), &sp)
	if err != nil {
		if errors.Is(err, models.ErrInvariant) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to save sprint")
		writeError(w, http.StatusInternalServerError, "failed to save sprint")
		return
	}

	sp.ID = id
	writeJSON(w, http.StatusCreated, &sp)
}

// ownedSprint loads a sprint and checks it belongs to the request's user.
// Sprints owned by other users read as not found.
func (s *Service) ownedSprint(w http.ResponseWriter, r *http.Request) *models.Sprint {
	user := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "sprintID")

	sp, err := s.sprintStore.GetSprint(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("sprint", id).Msg("Failed to load sprint")
		writeError(w, http.StatusInternalServerError, "failed to load sprint")
		return nil
	}
	if sp == nil || sp.UserID != user.UID {
		writeError(w, http.StatusNotFound, "sprint not found")
		return nil
	}
	return sp
}

func (s *Service) handleGetSprint(w http.ResponseWriter, r *http.Request) {
	sp := s.ownedSprint(w, r)
	if sp == nil {
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Service) handleAddTag(w http.ResponseWriter, r *http.Request) {
	sp := s.ownedSprint(w, r)
	if sp == nil {
		return
	}

	var req struct {
		Tag string `json:"tag"`
	}
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Tag) == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}

	if err := s.sprintStore.AddTag(r.Context(), sp.ID, strings.TrimSpace(req.Tag)); err != nil {
		log.Error().Err(err).Str("sprint", sp.ID).Msg("Failed to add tag")
		writeError(w, http.StatusInternalServerError, "failed to add tag")
		return
	}

	updated, err := s.sprintStore.GetSprint(r.Context(), sp.ID)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "failed to reload sprint")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Service) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	sp := s.ownedSprint(w, r)
	if sp == nil {
		return
	}

	tag := chi.URLParam(r, "tag")
	if err := s.sprintStore.RemoveTag(r.Context(), sp.ID, tag); err != nil {
		log.Error().Err(err).Str("sprint", sp.ID).Msg("Failed to remove tag")
		writeError(w, http.StatusInternalServerError, "failed to remove tag")
		return
	}

	updated, err := s.sprintStore.GetSprint(r.Context(), sp.ID)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "failed to reload sprint")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Service) handleListTags(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	records, err := s.sprintStore.GetUserSprints(r.Context(), user.UID, 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tags")
		writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tags": history.UniqueTags(records),
	})
}

// --- Export ---

func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	loc := s.location(r)

	filters, err := filtersFromQuery(r, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "txt"
	}
	if format != "txt" && format != "pdf" {
		writeError(w, http.StatusBadRequest, "format must be txt or pdf")
		return
	}

	records, err := s.sprintStore.GetUserSprints(r.Context(), user.UID, 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load sprints for export")
		writeError(w, http.StatusInternalServerError, "failed to load sprints")
		return
	}
	records = history.Filter(records, filters)

	now := time.Now().In(loc)
	filename := history.ExportFilename(format, now)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if format == "pdf" {
		w.Header().Set("Content-Type", "application/pdf")
		err = history.ExportPDF(w, records, now)
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err = history.ExportText(w, records, now)
	}
	if err != nil {
		log.Error().Err(err).Str("format", format).Msg("Export failed")
	}
}

// --- Progress ---

func (s *Service) handleProgress(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	loc := s.location(r)

	rng, err := models.ParseProgressRange(r.URL.Query().Get("range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.sprintStore.GetUserSprints(r.Context(), user.UID, 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load sprints for progress")
		writeError(w, http.StatusInternalServerError, "failed to load sprints")
		return
	}

	stats := progress.Stats(records, rng, time.Now(), loc)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"range": rng,
		"stats": stats,
	})
}

func (s *Service) handleHighScores(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	loc := s.location(r)

	records, err := s.sprintStore.GetUserSprints(r.Context(), user.UID, 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load sprints for high scores")
		writeError(w, http.StatusInternalServerError, "failed to load sprints")
		return
	}

	writeJSON(w, http.StatusOK, progress.HighScores(records, loc))
}

// --- Events ---

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	s.sseBroadcaster.HandleSSE(w, r, user.UID)
}
