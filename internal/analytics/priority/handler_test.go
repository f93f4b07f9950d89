package priority

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinicops/internal/records"
)

func newHandlerContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}

func TestGetPriority(t *testing.T) {
	store := newMockStore()
	alertID := uuid.New()
	store.alerts[alertID] = &records.Alert{
		ID:        alertID,
		Priority:  records.AlertPriorityUrgent,
		CreatedAt: testNow.Add(-3 * time.Hour),
	}
	h := NewHandler(newTestScorer(store))

	c, rec := newHandlerContext(t, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(alertID.String())

	if err := h.GetPriority(c); err != nil {
		t.Fatalf("GetPriority failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if res.AlertID != alertID || res.Score != 45 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestGetPriorityInvalidID(t *testing.T) {
	h := NewHandler(newTestScorer(newMockStore()))
	c, _ := newHandlerContext(t, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if code := httpCode(t, h.GetPriority(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestGetPriorityNotFound(t *testing.T) {
	h := NewHandler(newTestScorer(newMockStore()))
	c, _ := newHandlerContext(t, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	if code := httpCode(t, h.GetPriority(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestScoreBatch(t *testing.T) {
	store := newMockStore()
	knownID := uuid.New()
	store.alerts[knownID] = &records.Alert{
		ID:        knownID,
		Priority:  records.AlertPriorityLow,
		CreatedAt: testNow.Add(-time.Minute),
	}
	h := NewHandler(newTestScorer(store))

	body, _ := json.Marshal(BatchRequest{AlertIDs: []uuid.UUID{knownID, uuid.New()}})
	c, rec := newHandlerContext(t, http.MethodPost, "/", string(body))

	if err := h.ScoreBatch(c); err != nil {
		t.Fatalf("ScoreBatch failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var results []*Result
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Score != 10 {
		t.Errorf("expected low-priority score 10 first, got %d", results[0].Score)
	}
	if results[1].Score != 1 {
		t.Errorf("expected fallback score 1 for the unknown alert, got %d", results[1].Score)
	}
}

func TestScoreBatchEmpty(t *testing.T) {
	h := NewHandler(newTestScorer(newMockStore()))
	c, _ := newHandlerContext(t, http.MethodPost, "/", `{"alert_ids":[]}`)

	if code := httpCode(t, h.ScoreBatch(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}
