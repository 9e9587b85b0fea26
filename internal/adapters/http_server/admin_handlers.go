package httpserver

import (
	"net/http"

	"mealsfly_review/internal/domain"
)

func (h *Handlers) adminListRestaurants(w http.ResponseWriter, r *http.Request) {
	var status *domain.ReviewStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := domain.ParseReviewStatus(s)
		if err != nil {
			writeError(w, r, "admin_list_restaurants", err)
			return
		}
		status = &st
	}
	rs, err := h.Tasks.AdminListRestaurants(r.Context(), session(r), status, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, "admin_list_restaurants", err)
		return
	}
	writeJSON(w, http.StatusOK, toRestaurants(rs))
}

func (h *Handlers) adminCreateRestaurant(w http.ResponseWriter, r *http.Request) {
	var req createRestaurantRequest
	if !decode(w, r, &req) {
		return
	}
	rest, err := h.Tasks.AdminCreateRestaurant(r.Context(), session(r), req.toDomain())
	if err != nil {
		writeError(w, r, "admin_create_restaurant", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRestaurant(rest))
}

func (h *Handlers) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req setStatusRequest
	if !decode(w, r, &req) {
		return
	}
	st, err := domain.ParseReviewStatus(req.Status)
	if err != nil {
		writeError(w, r, "admin_set_status", err)
		return
	}
	rest, err := h.Tasks.AdminSetStatus(r.Context(), session(r), id, st)
	if err != nil {
		writeError(w, r, "admin_set_status", err)
		return
	}
	writeJSON(w, http.StatusOK, toRestaurant(rest))
}

func (h *Handlers) adminDeleteRestaurant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Tasks.AdminDeleteRestaurant(r.Context(), session(r), id); err != nil {
		writeError(w, r, "admin_delete_restaurant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) adminRestaurantAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	as, err := h.Tasks.AdminRestaurantAudit(r.Context(), session(r), id)
	if err != nil {
		writeError(w, r, "admin_restaurant_audit", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminActions(as))
}

func (h *Handlers) adminListUsers(w http.ResponseWriter, r *http.Request) {
	us, err := h.Users.ListUsers(r.Context(), session(r))
	if err != nil {
		writeError(w, r, "admin_list_users", err)
		return
	}
	writeJSON(w, http.StatusOK, toUsers(us))
}

func (h *Handlers) adminApproveUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.Users.ApproveUser(r.Context(), session(r), id)
	if err != nil {
		writeError(w, r, "admin_approve_user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(u))
}

func (h *Handlers) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Users.DeleteUser(r.Context(), session(r), id); err != nil {
		writeError(w, r, "admin_delete_user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) adminUserTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	ts, err := h.Tasks.AdminUserTasks(r.Context(), session(r), id)
	if err != nil {
		writeError(w, r, "admin_user_tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, toTasks(ts))
}
