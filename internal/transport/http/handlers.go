package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"quizkeeper/internal/app"
	"quizkeeper/internal/domain"
)

type handler struct {
	service *app.Service
	hub     *Hub
}

type ctxKey int

const (
	ctxProfile ctxKey = iota
	ctxTokenID
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error()})
	case errors.Is(err, domain.ErrQuizNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotQuizOwner):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrNotSignedIn), errors.Is(err, domain.ErrTokenRevoked):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// authenticate resolves the bearer token and stashes the caller in context.
func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}
		profile, tokenID, err := h.service.Authenticate(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
			return
		}
		ctx := context.WithValue(r.Context(), ctxProfile, profile)
		ctx = context.WithValue(ctx, ctxTokenID, tokenID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func caller(r *http.Request) domain.UserProfile {
	profile, _ := r.Context().Value(ctxProfile).(domain.UserProfile)
	return profile
}

type loginResponse struct {
	User        domain.UserProfile `json:"user"`
	AccessToken string             `json:"accessToken"`
	ExpiresAt   int64              `json:"expiresAt"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var assertion domain.IdentityAssertion
	if err := json.NewDecoder(r.Body).Decode(&assertion); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid login payload"})
		return
	}
	profile, token, expiry, err := h.service.Login(r.Context(), assertion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		User:        profile,
		AccessToken: token,
		ExpiresAt:   expiry.UnixMilli(),
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	tokenID, _ := r.Context().Value(ctxTokenID).(string)
	if err := h.service.Logout(r.Context(), tokenID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, caller(r))
}

func (h *handler) userQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.UserQuizzes(r.Context(), caller(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var patch domain.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid profile payload"})
		return
	}
	profile, err := h.service.UpdateUser(r.Context(), caller(r).ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid quiz payload"})
		return
	}
	created, err := h.service.CreateQuiz(r.Context(), caller(r).ID, quiz)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) updateQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid quiz id"})
		return
	}
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid quiz payload"})
		return
	}
	quiz.ID = id
	updated, err := h.service.UpdateQuiz(r.Context(), caller(r).ID, quiz)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid quiz id"})
		return
	}
	if err := h.service.DeleteQuiz(r.Context(), caller(r).ID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *handler) saveResult(w http.ResponseWriter, r *http.Request) {
	var result domain.QuizResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid result payload"})
		return
	}
	if err := h.service.RecordResult(r.Context(), caller(r).ID, result); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (h *handler) resultHistory(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ResultHistory(r.Context(), caller(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *handler) sharedQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid quiz id"})
		return
	}
	quiz, err := h.service.SharedQuiz(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

// serveWS upgrades the connection and streams collection-change events until
// the client goes away. The token rides a query parameter because browser
// websocket clients cannot set headers.
func (h *handler) serveWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	profile, _, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	h.hub.serve(w, r, profile.ID)
}
