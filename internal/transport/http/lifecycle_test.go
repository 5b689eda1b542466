package http

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"slograph/pkg/domain"
)

func TestHandleManageSLO_AcceptThenGetActiveSLO(t *testing.T) {
	h, _ := newTestHandler(domain.NewGraph())
	router := NewRouter(h)

	body := manageSLORequest{
		Action:       "accept",
		SelectedTier: "balanced",
		Rationale:    "meets current volume",
		Actor:        "alice@example.com",
	}
	buf, _ := json.Marshal(body)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/services/checkout/slo", bytes.NewReader(buf))
	router.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp manageSLOResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "active" {
		t.Errorf("expected status active, got %q", resp.Status)
	}
	if resp.ActiveSLO == nil {
		t.Fatalf("expected an active_slo in the response")
	}

	rr2 := httptest.NewRecorder()
	req2 := httptest.NewRequest("GET", "/v1/services/checkout/slo", nil)
	router.ServeHTTP(rr2, req2)

	if rr2.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr2.Code, rr2.Body.String())
	}
	var active activeSLODTO
	if err := json.Unmarshal(rr2.Body.Bytes(), &active); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if active.SelectedTier != "balanced" {
		t.Errorf("expected selected_tier balanced, got %q", active.SelectedTier)
	}
}

func TestHandleGetActiveSLO_NoneIsNotFound(t *testing.T) {
	h, _ := newTestHandler(domain.NewGraph())
	router := NewRouter(h)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/services/checkout/slo", nil)
	router.ServeHTTP(rr, req)

	if rr.Code != 404 {
		t.Fatalf("expected 404 for a service with no active SLO, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleGetAuditHistory_NewestFirst(t *testing.T) {
	h, _ := newTestHandler(domain.NewGraph())
	router := NewRouter(h)

	accept := manageSLORequest{Action: "accept", SelectedTier: "conservative", Rationale: "first pass", Actor: "alice"}
	acceptBuf, _ := json.Marshal(accept)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/v1/services/checkout/slo", bytes.NewReader(acceptBuf)))
	if rr.Code != 200 {
		t.Fatalf("accept failed: %d: %s", rr.Code, rr.Body.String())
	}

	modify := manageSLORequest{Action: "modify", SelectedTier: "balanced", Rationale: "tighten it up", Actor: "bob"}
	modifyBuf, _ := json.Marshal(modify)
	rr2 := httptest.NewRecorder()
	router.ServeHTTP(rr2, httptest.NewRequest("POST", "/v1/services/checkout/slo", bytes.NewReader(modifyBuf)))
	if rr2.Code != 200 {
		t.Fatalf("modify failed: %d: %s", rr2.Code, rr2.Body.String())
	}

	rr3 := httptest.NewRecorder()
	router.ServeHTTP(rr3, httptest.NewRequest("GET", "/v1/services/checkout/slo/audit", nil))
	if rr3.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr3.Code, rr3.Body.String())
	}

	var history auditHistoryResponse
	if err := json.Unmarshal(rr3.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if history.TotalCount != 2 {
		t.Fatalf("expected 2 audit entries, got %d", history.TotalCount)
	}
	if history.Entries[0].Action != "modify" {
		t.Errorf("expected newest entry first (modify), got %q", history.Entries[0].Action)
	}
	if history.Entries[1].Action != "accept" {
		t.Errorf("expected oldest entry last (accept), got %q", history.Entries[1].Action)
	}
}

func TestHandleManageSLO_RejectsInvalidAction(t *testing.T) {
	h, _ := newTestHandler(domain.NewGraph())
	router := NewRouter(h)

	body := manageSLORequest{Action: "approve_forever", SelectedTier: "balanced", Actor: "alice"}
	buf, _ := json.Marshal(body)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/services/checkout/slo", bytes.NewReader(buf))
	router.ServeHTTP(rr, req)

	if rr.Code != 400 {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
