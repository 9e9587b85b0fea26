package httpserver

import (
	"net/http"

	"mealsfly_review/internal/domain"
)

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Users.Register(r.Context(), req.Name, req.Username, req.Password)
	if err != nil {
		writeError(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUser(u))
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	tok, u, err := h.Auth.Login(r.Context(), req.Username, req.Password, domain.Role(req.Role))
	if err != nil {
		writeError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: tok, Role: string(u.Role), User: toUser(u)})
}

func (h *Handlers) verifyToken(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true, UserID: sess.UserID, Role: string(sess.Role)})
}

func (h *Handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Auth.ChangePassword(r.Context(), session(r), req.OldPassword, req.NewPassword); err != nil {
		writeError(w, r, "change_password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Me(r.Context(), session(r))
	if err != nil {
		writeError(w, r, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(u))
}
