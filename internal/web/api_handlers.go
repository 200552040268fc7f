package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/evcraddock/visit-desk/internal/auth"
	"github.com/evcraddock/visit-desk/internal/logging"
	"github.com/evcraddock/visit-desk/internal/review"
	"github.com/evcraddock/visit-desk/internal/visit"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeInvalidVisit = "invalid_visit"
	codeNotAllowed   = "not_allowed"
	codeNotFound     = "not_found"
	codeBadRequest   = "bad_request"
	codeInternal     = "internal"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg, code string, status int) {
	apiJSON(w, map[string]string{"error": msg, "code": code}, status)
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// apiFail maps domain errors onto status codes.
func apiFail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, visit.ErrInvalidVisit):
		apiError(w, visit.ErrInvalidVisit.Error(), codeInvalidVisit, http.StatusConflict)
	case errors.Is(err, visit.ErrTransitionNotAllowed):
		apiError(w, err.Error(), codeNotAllowed, http.StatusConflict)
	case errors.Is(err, visit.ErrNotFound), errors.Is(err, review.ErrNotFound):
		apiError(w, err.Error(), codeNotFound, http.StatusNotFound)
	default:
		slog.Error("api request failed",
			"request_id", logging.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		apiError(w, "internal error", codeInternal, http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func viewer(r *http.Request) string {
	email, _ := auth.ViewerFromContext(r.Context())
	return email
}

// parseDate accepts YYYY-MM-DD in loc or a full RFC 3339 timestamp.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// parseFilter reads the visit list query parameters.
func (s *Server) parseFilter(r *http.Request) (visit.Filter, error) {
	q := r.URL.Query()
	f := visit.Filter{Limit: visit.DefaultPageSize}

	if v := q.Get("from"); v != "" {
		t, err := parseDate(v, s.loc)
		if err != nil {
			return f, errors.New("from must be YYYY-MM-DD or RFC 3339")
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDate(v, s.loc)
		if err != nil {
			return f, errors.New("to must be YYYY-MM-DD or RFC 3339")
		}
		f.To = t
	}
	if v := q.Get("listing_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			return f, errors.New("listing_id must be a positive integer")
		}
		f.ListingID = id
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
		f.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > visit.MaxPageSize {
			return f, fmt.Errorf("limit must be 1-%d", visit.MaxPageSize)
		}
		f.Limit = n
	}
	return f, nil
}

// apiListVisits returns one page of the viewer's visits grouped by day.
func (s *Server) apiListVisits(w http.ResponseWriter, r *http.Request) {
	f, err := s.parseFilter(r)
	if err != nil {
		apiError(w, err.Error(), codeBadRequest, http.StatusBadRequest)
		return
	}

	visits, err := s.visits.ListForViewer(r.Context(), viewer(r), f)
	if err != nil {
		apiFail(w, r, err)
		return
	}

	groups := visit.GroupByDate(visits, s.loc)
	if groups == nil {
		groups = make([]visit.Group, 0)
	}
	apiJSON(w, groups, http.StatusOK)
}

// apiGetVisit returns a single visit as seen by the viewer.
func (s *Server) apiGetVisit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apiError(w, "invalid visit ID", codeBadRequest, http.StatusBadRequest)
		return
	}

	v, err := s.visits.GetForViewer(r.Context(), viewer(r), id)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, v, http.StatusOK)
}

// apiUpdateVisit applies a status change chosen from the visit's actions.
func (s *Server) apiUpdateVisit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apiError(w, "invalid visit ID", codeBadRequest, http.StatusBadRequest)
		return
	}

	var req struct {
		Status visit.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body: "+err.Error(), codeBadRequest, http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		apiError(w, "status is required", codeBadRequest, http.StatusBadRequest)
		return
	}

	v, err := s.visits.Transition(r.Context(), viewer(r), id, req.Status)
	if err != nil {
		apiFail(w, r, err)
		return
	}

	slog.Info("visit status changed",
		"request_id", logging.RequestID(r.Context()),
		"visit_id", id,
		"status", v.Status,
	)
	apiJSON(w, v, http.StatusOK)
}

// apiWriteReview attaches the visitor's review to a completed visit.
func (s *Server) apiWriteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apiError(w, "invalid visit ID", codeBadRequest, http.StatusBadRequest)
		return
	}

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", codeBadRequest, http.StatusBadRequest)
		return
	}
	if req.Rating < review.MinRating || req.Rating > review.MaxRating {
		apiError(w, "rating must be 1-5", codeBadRequest, http.StatusBadRequest)
		return
	}

	v, err := s.visits.GetForViewer(r.Context(), viewer(r), id)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	now := s.now().In(s.loc)
	if visit.ResolveReviewAction(v, now) != visit.ReviewWrite {
		apiError(w, "this visit cannot be reviewed", codeNotAllowed, http.StatusConflict)
		return
	}
	if v.Status != visit.StatusAccepted || !v.EndDate.Before(now) {
		apiError(w, "only an attended visit can be reviewed", codeNotAllowed, http.StatusConflict)
		return
	}

	rv, err := s.reviews.Add(r.Context(), id, req.Rating, req.Comment, viewer(r))
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, rv, http.StatusCreated)
}

// reviewForViewer loads a review and the visit it belongs to, hiding
// reviews on visits the viewer does not take part in.
func (s *Server) reviewForViewer(r *http.Request) (*review.Review, *visit.Visit, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, nil, err
	}

	rv, err := s.reviews.GetByID(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}

	v, err := s.visits.GetForViewer(r.Context(), viewer(r), rv.VisitID)
	if errors.Is(err, visit.ErrNotFound) {
		return nil, nil, review.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return rv, v, nil
}

// apiGetReview returns a review on one of the viewer's visits.
func (s *Server) apiGetReview(w http.ResponseWriter, r *http.Request) {
	rv, _, err := s.reviewForViewer(r)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, rv, http.StatusOK)
}

// apiDeleteReview removes the viewer's own review.
func (s *Server) apiDeleteReview(w http.ResponseWriter, r *http.Request) {
	rv, _, err := s.reviewForViewer(r)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	if rv.Author != viewer(r) {
		apiError(w, "only the author can delete a review", codeNotAllowed, http.StatusConflict)
		return
	}

	if err := s.reviews.Delete(r.Context(), rv.ID); err != nil {
		apiFail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiReplyToReview stores the listing owner's answer to a review.
func (s *Server) apiReplyToReview(w http.ResponseWriter, r *http.Request) {
	rv, v, err := s.reviewForViewer(r)
	if err != nil {
		apiFail(w, r, err)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", codeBadRequest, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		apiError(w, "text is required", codeBadRequest, http.StatusBadRequest)
		return
	}

	if visit.ResolveReviewAction(v, s.now().In(s.loc)) != visit.ReviewReply {
		apiError(w, "only the listing owner can reply", codeNotAllowed, http.StatusConflict)
		return
	}

	updated, err := s.reviews.Reply(r.Context(), rv.ID, req.Text)
	if err != nil {
		apiFail(w, r, err)
		return
	}
	apiJSON(w, updated, http.StatusOK)
}

// apiReportCategories lists the reasons a review can be reported for.
func (s *Server) apiReportCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.reviews.Categories(r.Context())
	if err != nil {
		apiFail(w, r, err)
		return
	}
	if cats == nil {
		cats = make([]review.Category, 0)
	}
	apiJSON(w, cats, http.StatusOK)
}
