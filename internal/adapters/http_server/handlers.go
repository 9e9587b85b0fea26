// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"mealsfly_review/internal/adapters/observability"
	"mealsfly_review/internal/app"
	"mealsfly_review/internal/domain"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	Auth     *app.AuthService
	Users    *app.UserService
	Tasks    *app.TaskService
	Reviews  *app.ReviewService
	Query    *app.QueryService
	Uploader domain.ImageUploader
	// UploadDir is served under /static/ when set.
	UploadDir string
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	if h.UploadDir != "" {
		s.mux.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(h.UploadDir))))
	}

	s.mux.Post("/auth/register", h.register)
	s.mux.Post("/auth/login", h.login)

	s.mux.Group(func(r chi.Router) {
		r.Use(Authenticate(h.Auth))

		r.Get("/auth/verify-token", h.verifyToken)
		r.With(RequireRole(domain.RoleAdmin)).Post("/auth/admin/change-password", h.changePassword)

		r.Route("/user", func(r chi.Router) {
			r.Get("/me", h.me)
			r.Group(func(r chi.Router) {
				r.Use(RequireRole(domain.RoleUser))
				r.Get("/restaurants", h.listAssignable)
				r.Get("/restaurants/{id}", h.getRestaurant)
				r.Post("/tasks/assign/{restaurantId}", h.assign)
				r.Get("/tasks/pending", h.listPending)
				r.Get("/tasks/completed", h.listCompleted)
				r.Post("/tasks/review/{taskId}", h.submitReview)
				r.Post("/uploads", h.upload)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAdmin))
			r.Get("/restaurants", h.adminListRestaurants)
			r.Post("/restaurants", h.adminCreateRestaurant)
			r.Get("/restaurants/{id}", h.getRestaurant)
			r.Put("/restaurants/{id}/status", h.adminSetStatus)
			r.Delete("/restaurants/{id}", h.adminDeleteRestaurant)
			r.Get("/restaurants/{id}/audit", h.adminRestaurantAudit)
			r.Get("/users", h.adminListUsers)
			r.Post("/users/approve/{id}", h.adminApproveUser)
			r.Delete("/users/{id}", h.adminDeleteUser)
			r.Get("/tasks/{userId}", h.adminUserTasks)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors to problem responses. op labels conflict
// metrics and the error log.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		observability.ObserveConflict(op)
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrInvalid):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "request was cancelled or timed out")
	default:
		log.Error().Err(err).
			Str("op", op).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable answers 304 when the client already holds this version.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write cacheable body")
	}
}

// decode reads a JSON body into dst and runs its validation tags. It writes
// the 400 itself and reports false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		fields := validationErrors(err)
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeProblemBody(w, problem{
			Type:   "about:blank",
			Title:  "Bad Request",
			Status: http.StatusBadRequest,
			Detail: "invalid fields: " + strings.Join(keys, ", "),
			Errors: fields,
		})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", fmt.Sprintf("%s must be a positive number", name))
		return 0, false
	}
	return id, true
}

func session(r *http.Request) domain.Session {
	sess, _ := sessionFrom(r)
	return sess
}

func (h *Handlers) getRestaurant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rest, err := h.Query.GetRestaurant(r.Context(), session(r), id)
	if err != nil {
		writeError(w, r, "get_restaurant", err)
		return
	}
	writeCacheable(w, r, toRestaurant(rest))
}
