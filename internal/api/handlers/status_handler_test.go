package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"collector/internal/models"
)

func TestStatusHandler_GetStatus(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	info := StatusInfo{StartedAt: started, Interval: 30 * time.Second, Workers: 5, WorkerMode: "process"}

	t.Run("before first cycle", func(t *testing.T) {
		h := NewStatusHandler(&mockStatus{}, nil, info)
		h.now = func() time.Time { return started.Add(90 * time.Second) }

		w := httptest.NewRecorder()
		h.GetStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

		var resp StatusResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.LastCycle != nil || resp.NextCycleDue != nil {
			t.Errorf("no cycle expected, got %+v", resp)
		}
		if resp.Uptime != "1m30s" || resp.Workers != 5 || resp.IntervalSeconds != 30 {
			t.Errorf("unexpected status: %+v", resp)
		}
	})

	t.Run("with last cycle", func(t *testing.T) {
		report := &models.CycleReport{CycleID: "c-1", StartedAt: started, Attempted: 3, Connected: 2, Disconnected: 1}
		h := NewStatusHandler(&mockStatus{report: report}, mockClients(4), info)

		w := httptest.NewRecorder()
		h.GetStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var resp StatusResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.LastCycle == nil || resp.LastCycle.CycleID != "c-1" || resp.LastCycle.Disconnected != 1 {
			t.Errorf("LastCycle = %+v", resp.LastCycle)
		}
		if resp.StreamClients != 4 {
			t.Errorf("StreamClients = %d", resp.StreamClients)
		}
		if resp.NextCycleDue == nil || !resp.NextCycleDue.Equal(started.Add(30*time.Second)) {
			t.Errorf("NextCycleDue = %v", resp.NextCycleDue)
		}
	})
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("Health() = %d %q", w.Code, w.Body.String())
	}
}
