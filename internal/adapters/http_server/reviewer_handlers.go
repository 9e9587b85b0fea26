package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"mealsfly_review/internal/app"
	"mealsfly_review/internal/domain"
)

// multipart overhead on top of the uploader's own size limit
const maxUploadBytes = 11 << 20

func (h *Handlers) listAssignable(w http.ResponseWriter, r *http.Request) {
	q, err := assignableQuery(r)
	if err != nil {
		writeError(w, r, "list_assignable", err)
		return
	}
	out, err := h.Tasks.ListAssignable(r.Context(), session(r), q)
	if err != nil {
		writeError(w, r, "list_assignable", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignables(out))
}

func assignableQuery(r *http.Request) (app.AssignableQuery, error) {
	v := r.URL.Query()
	q := app.AssignableQuery{Search: v.Get("q")}
	num := func(k string) (float64, bool, error) {
		s := v.Get(k)
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %s must be a number", domain.ErrInvalid, k)
		}
		return f, true, nil
	}
	lat, hasLat, err := num("lat")
	if err != nil {
		return q, err
	}
	lng, hasLng, err := num("lng")
	if err != nil {
		return q, err
	}
	if hasLat != hasLng {
		return q, fmt.Errorf("%w: lat and lng must be sent together", domain.ErrInvalid)
	}
	if hasLat {
		q.Near = &domain.GeoPoint{Lat: lat, Lng: lng}
	}
	if q.RadiusKm, _, err = num("radiusKm"); err != nil {
		return q, err
	}
	return q, nil
}

func (h *Handlers) assign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "restaurantId")
	if !ok {
		return
	}
	t, err := h.Tasks.Assign(r.Context(), session(r), id)
	if err != nil {
		writeError(w, r, "assign", err)
		return
	}
	writeJSON(w, http.StatusOK, toTask(t))
}

func (h *Handlers) listPending(w http.ResponseWriter, r *http.Request) {
	ts, err := h.Tasks.ListPending(r.Context(), session(r))
	if err != nil {
		writeError(w, r, "list_pending", err)
		return
	}
	writeJSON(w, http.StatusOK, toTasks(ts))
}

func (h *Handlers) listCompleted(w http.ResponseWriter, r *http.Request) {
	ts, err := h.Tasks.ListCompleted(r.Context(), session(r))
	if err != nil {
		writeError(w, r, "list_completed", err)
		return
	}
	writeJSON(w, http.StatusOK, toTasks(ts))
}

func (h *Handlers) submitReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "taskId")
	if !ok {
		return
	}
	var req submitReviewRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.Reviews.SubmitReview(r.Context(), session(r), id, domain.ReviewImages{
		FSSAI:  req.FSSAIImage,
		Menu:   req.MenuImage,
		Banner: req.BannerImage,
	})
	if err != nil {
		writeError(w, r, "submit_review", err)
		return
	}
	writeJSON(w, http.StatusOK, toTask(t))
}

func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) {
	if h.Uploader == nil {
		writeProblem(w, http.StatusNotImplemented, "Not Implemented", "uploads are disabled")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	f, hdr, err := r.FormFile("image")
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "multipart field \"image\" is required (max 10 MB)")
		return
	}
	defer f.Close()

	ref, err := h.Uploader.Upload(r.Context(), hdr.Filename, f)
	if err != nil {
		writeError(w, r, "upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{URL: ref})
}
