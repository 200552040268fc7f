package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/evcraddock/visit-desk/internal/db"
	"github.com/evcraddock/visit-desk/internal/listing"
	"github.com/evcraddock/visit-desk/internal/review"
	"github.com/evcraddock/visit-desk/internal/visit"
)

const (
	ownerEmail   = "owner@example.com"
	visitorEmail = "buyer@example.com"
)

var testNow = time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

type apiFixture struct {
	srv          *Server
	db           *sql.DB
	listing      *listing.Listing
	ownerToken   string
	visitorToken string
	otherToken   string
}

// testAPIServer creates a server with a listing and keys for its owner, a
// visitor and an unrelated user.
func testAPIServer(t *testing.T) *apiFixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if cerr := d.Close(); cerr != nil {
			t.Errorf("close db: %v", cerr)
		}
	})

	srv := NewServer(d, Options{Now: func() time.Time { return testNow }})
	ctx := context.Background()

	l, err := listing.NewRepository(d).Add(ctx, "12 Elm St", ownerEmail)
	if err != nil {
		t.Fatalf("add listing: %v", err)
	}

	f := &apiFixture{srv: srv, db: d, listing: l}
	for email, dst := range map[string]*string{
		ownerEmail:          &f.ownerToken,
		visitorEmail:        &f.visitorToken,
		"other@example.com": &f.otherToken,
	} {
		raw, _, err := srv.apiKeys.Create(ctx, "test", email)
		if err != nil {
			t.Fatalf("create api key: %v", err)
		}
		*dst = raw
	}
	return f
}

// schedule creates a visit days from testNow with the given status.
func (f *apiFixture) schedule(t *testing.T, days int, status visit.Status) int64 {
	t.Helper()
	start := testNow.AddDate(0, 0, days)
	v, err := f.srv.visits.Schedule(context.Background(), f.listing.ID, visitorEmail, visit.RoleBuyer, start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if status != visit.StatusPending {
		if _, err := f.db.Exec("UPDATE visits SET status = ? WHERE id = ?", status, v.ID); err != nil {
			t.Fatalf("set status: %v", err)
		}
	}
	return v.ID
}

func apiRequest(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	reqBody := &bytes.Buffer{}
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}

	r := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error, body.Code
}

func decodeVisit(t *testing.T, w *httptest.ResponseRecorder) *visit.Visit {
	t.Helper()
	var v visit.Visit
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode visit: %v", err)
	}
	return &v
}

func TestHealth(t *testing.T) {
	f := testAPIServer(t)

	w := apiRequest(t, f.srv, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAPIRequiresKey(t *testing.T) {
	f := testAPIServer(t)

	w := apiRequest(t, f.srv, "GET", "/api/visits", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = apiRequest(t, f.srv, "GET", "/api/visits", "vd_invalid", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAPIUnknownRoute(t *testing.T) {
	f := testAPIServer(t)

	w := apiRequest(t, f.srv, "GET", "/api/nothing", f.ownerToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if _, code := decodeError(t, w); code != "not_found" {
		t.Errorf("code = %q, want not_found", code)
	}
}

func TestAPIListVisitsGrouped(t *testing.T) {
	f := testAPIServer(t)
	f.schedule(t, 1, visit.StatusPending)
	f.schedule(t, 1, visit.StatusAccepted)
	f.schedule(t, 3, visit.StatusPending)

	w := apiRequest(t, f.srv, "GET", "/api/visits", f.visitorToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var groups []visit.Group
	if err := json.NewDecoder(w.Body).Decode(&groups); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Date != "2026-10-17" || len(groups[0].Visits) != 2 {
		t.Errorf("first group = %s with %d visits", groups[0].Date, len(groups[0].Visits))
	}
	if groups[0].Visits[0].Role != visit.RoleBuyer {
		t.Errorf("role = %s, want BUYER", groups[0].Visits[0].Role)
	}
}

func TestAPIListVisitsEmptyForStranger(t *testing.T) {
	f := testAPIServer(t)
	f.schedule(t, 1, visit.StatusPending)

	w := apiRequest(t, f.srv, "GET", "/api/visits", f.otherToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestAPIListVisitsPaging(t *testing.T) {
	f := testAPIServer(t)
	for days := 1; days <= 5; days++ {
		f.schedule(t, days, visit.StatusPending)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"?limit=2", 2},
		{"?limit=2&offset=4", 1},
		{"?from=2026-10-19", 3},
		{"?to=2026-10-19", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := apiRequest(t, f.srv, "GET", "/api/visits"+tt.query, f.ownerToken, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			var groups []visit.Group
			if err := json.NewDecoder(w.Body).Decode(&groups); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got := visit.CountVisits(groups); got != tt.want {
				t.Errorf("got %d visits, want %d", got, tt.want)
			}
		})
	}
}

func TestAPIListVisitsBadQuery(t *testing.T) {
	f := testAPIServer(t)

	for _, q := range []string{"?limit=0", "?limit=500", "?offset=-1", "?from=yesterday", "?listing_id=abc"} {
		w := apiRequest(t, f.srv, "GET", "/api/visits"+q, f.ownerToken, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", q, w.Code, http.StatusBadRequest)
		}
	}
}

func TestAPIGetVisit(t *testing.T) {
	f := testAPIServer(t)
	id := f.schedule(t, 2, visit.StatusPending)

	w := apiRequest(t, f.srv, "GET", "/api/visits/"+itoa(id), f.ownerToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	v := decodeVisit(t, w)
	if v.Role != visit.RoleOwner || !v.IsAssetOwner {
		t.Errorf("role = %s owner = %v, want OWNER", v.Role, v.IsAssetOwner)
	}
	if len(v.Actions) != 2 || v.Actions[0] != visit.ActionApprove || v.Actions[1] != visit.ActionReject {
		t.Errorf("actions = %v, want [APPROVE REJECT]", v.Actions)
	}

	w = apiRequest(t, f.srv, "GET", "/api/visits/"+itoa(id), f.otherToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("stranger: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAPIUpdateVisit(t *testing.T) {
	f := testAPIServer(t)
	id := f.schedule(t, 2, visit.StatusPending)
	path := "/api/visits/" + itoa(id)

	w := apiRequest(t, f.srv, "PATCH", path, f.visitorToken, map[string]string{"status": "ACCEPTED"})
	if w.Code != http.StatusConflict {
		t.Fatalf("visitor approve: status = %d, want %d", w.Code, http.StatusConflict)
	}
	if _, code := decodeError(t, w); code != "not_allowed" {
		t.Errorf("code = %q, want not_allowed", code)
	}

	w = apiRequest(t, f.srv, "PATCH", path, f.ownerToken, map[string]string{"status": "ACCEPTED"})
	if w.Code != http.StatusOK {
		t.Fatalf("owner approve: status = %d, want %d", w.Code, http.StatusOK)
	}
	if v := decodeVisit(t, w); v.Status != visit.StatusAccepted {
		t.Errorf("status = %s, want ACCEPTED", v.Status)
	}
}

func TestAPIUpdateVisitBadStatus(t *testing.T) {
	f := testAPIServer(t)
	id := f.schedule(t, 2, visit.StatusPending)
	path := "/api/visits/" + itoa(id)

	for _, body := range []map[string]string{{"status": "EXPIRED"}, {"status": ""}, {}} {
		w := apiRequest(t, f.srv, "PATCH", path, f.ownerToken, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%v: status = %d, want %d", body, w.Code, http.StatusBadRequest)
		}
	}
}

func TestAPICancelRoundTrip(t *testing.T) {
	f := testAPIServer(t)
	id := f.schedule(t, 2, visit.StatusAccepted)
	path := "/api/visits/" + itoa(id)

	w := apiRequest(t, f.srv, "PATCH", path, f.visitorToken, map[string]string{"status": "CANCELLED"})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: status = %d, want %d", w.Code, http.StatusOK)
	}

	w = apiRequest(t, f.srv, "GET", path, f.visitorToken, nil)
	v := decodeVisit(t, w)
	if v.Status != visit.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", v.Status)
	}
	if len(v.Actions) != 0 {
		t.Errorf("actions = %v, want none", v.Actions)
	}
}

func TestAPIUpdateVisitInvalidListing(t *testing.T) {
	f := testAPIServer(t)
	id := f.schedule(t, 2, visit.StatusPending)

	if err := listing.NewRepository(f.db).SetActive(context.Background(), f.listing.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	w := apiRequest(t, f.srv, "PATCH", "/api/visits/"+itoa(id), f.ownerToken, map[string]string{"status": "ACCEPTED"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	msg, code := decodeError(t, w)
	if code != "invalid_visit" {
		t.Errorf("code = %q, want invalid_visit", code)
	}
	if msg != visit.ErrInvalidVisit.Error() {
		t.Errorf("error = %q, want %q", msg, visit.ErrInvalidVisit.Error())
	}
}

func TestAPIReviewLifecycle(t *testing.T) {
	f := testAPIServer(t)
	id := f.schedule(t, -1, visit.StatusAccepted)
	reviewPath := "/api/visits/" + itoa(id) + "/review"

	w := apiRequest(t, f.srv, "POST", reviewPath, f.ownerToken, map[string]interface{}{"rating": 5})
	if w.Code != http.StatusConflict {
		t.Errorf("owner review: status = %d, want %d", w.Code, http.StatusConflict)
	}

	w = apiRequest(t, f.srv, "POST", reviewPath, f.visitorToken, map[string]interface{}{"rating": 9})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad rating: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = apiRequest(t, f.srv, "POST", reviewPath, f.visitorToken, map[string]interface{}{"rating": 4, "comment": "Sunny rooms"})
	if w.Code != http.StatusCreated {
		t.Fatalf("write review: status = %d, want %d", w.Code, http.StatusCreated)
	}
	var rv review.Review
	if err := json.NewDecoder(w.Body).Decode(&rv); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if rv.Author != visitorEmail || rv.Rating != 4 {
		t.Errorf("review = %+v", rv)
	}

	w = apiRequest(t, f.srv, "POST", reviewPath, f.visitorToken, map[string]interface{}{"rating": 4})
	if w.Code != http.StatusConflict {
		t.Errorf("second review: status = %d, want %d", w.Code, http.StatusConflict)
	}

	replyPath := "/api/reviews/" + itoa(rv.ID) + "/reply"
	w = apiRequest(t, f.srv, "POST", replyPath, f.visitorToken, map[string]string{"text": "me again"})
	if w.Code != http.StatusConflict {
		t.Errorf("visitor reply: status = %d, want %d", w.Code, http.StatusConflict)
	}
	w = apiRequest(t, f.srv, "POST", replyPath, f.ownerToken, map[string]string{"text": "Thanks!"})
	if w.Code != http.StatusOK {
		t.Fatalf("owner reply: status = %d, want %d", w.Code, http.StatusOK)
	}

	w = apiRequest(t, f.srv, "GET", "/api/reviews/"+itoa(rv.ID), f.visitorToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get review: status = %d, want %d", w.Code, http.StatusOK)
	}
	var got review.Review
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if got.Reply != "Thanks!" {
		t.Errorf("reply = %q, want Thanks!", got.Reply)
	}

	w = apiRequest(t, f.srv, "GET", "/api/reviews/"+itoa(rv.ID), f.otherToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("stranger get review: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = apiRequest(t, f.srv, "DELETE", "/api/reviews/"+itoa(rv.ID), f.ownerToken, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("owner delete: status = %d, want %d", w.Code, http.StatusConflict)
	}
	w = apiRequest(t, f.srv, "DELETE", "/api/reviews/"+itoa(rv.ID), f.visitorToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("author delete: status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = apiRequest(t, f.srv, "GET", "/api/visits/"+itoa(id), f.visitorToken, nil)
	if v := decodeVisit(t, w); v.Review != nil {
		t.Error("expected review removed from visit")
	}
}

func TestAPIReviewUpcomingVisit(t *testing.T) {
	f := testAPIServer(t)
	id := f.schedule(t, 3, visit.StatusAccepted)

	w := apiRequest(t, f.srv, "POST", "/api/visits/"+itoa(id)+"/review", f.visitorToken, map[string]interface{}{"rating": 5})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestAPIReviewRequiresAttendedVisit(t *testing.T) {
	tests := []struct {
		name   string
		days   int
		status visit.Status
	}{
		{"cancelled", -2, visit.StatusCancelled},
		{"rejected", -2, visit.StatusRejected},
		{"still in progress", 0, visit.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testAPIServer(t)
			id := f.schedule(t, tt.days, tt.status)

			w := apiRequest(t, f.srv, "POST", "/api/visits/"+itoa(id)+"/review", f.visitorToken, map[string]interface{}{"rating": 5})
			if w.Code != http.StatusConflict {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
			}
			if _, code := decodeError(t, w); code != codeNotAllowed {
				t.Errorf("code = %q, want %q", code, codeNotAllowed)
			}

			w = apiRequest(t, f.srv, "GET", "/api/visits/"+itoa(id), f.visitorToken, nil)
			if v := decodeVisit(t, w); v.Review != nil {
				t.Errorf("review stored: %+v", v.Review)
			}
		})
	}
}

func TestAPIReportCategories(t *testing.T) {
	f := testAPIServer(t)

	w := apiRequest(t, f.srv, "GET", "/api/report-categories", f.visitorToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var cats []review.Category
	if err := json.NewDecoder(w.Body).Decode(&cats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cats) != 4 {
		t.Errorf("got %d categories, want 4", len(cats))
	}
}

func TestRequestIDHeader(t *testing.T) {
	f := testAPIServer(t)

	w := apiRequest(t, f.srv, "GET", "/api/report-categories", f.visitorToken, nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
