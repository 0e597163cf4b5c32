package handlers

import (
	"net/http"
	"time"

	"collector/internal/models"
	"collector/pkg/utils"
)

// StatusProvider - источник итога последнего цикла
type StatusProvider interface {
	LastReport() *models.CycleReport
}

// ClientCounter - число подписчиков живого потока
type ClientCounter interface {
	ClientCount() int
}

// StatusInfo - статические сведения о процессе
type StatusInfo struct {
	StartedAt  time.Time
	Interval   time.Duration
	Workers    int
	WorkerMode string
}

// StatusResponse - ответ GET /api/v1/status
type StatusResponse struct {
	StartedAt       time.Time           `json:"started_at"`
	Uptime          string              `json:"uptime"`
	IntervalSeconds float64             `json:"interval_seconds"`
	Workers         int                 `json:"workers"`
	WorkerMode      string              `json:"worker_mode"`
	StreamClients   int                 `json:"stream_clients"`
	LastCycle       *models.CycleReport `json:"last_cycle"`
	// NextCycleDue - ориентир, не гарантия: цикл мог задержаться
	NextCycleDue *time.Time `json:"next_cycle_due,omitempty"`
}

// StatusHandler отдаёт состояние сборщика
type StatusHandler struct {
	provider StatusProvider
	clients  ClientCounter
	info     StatusInfo
	now      func() time.Time
}

// NewStatusHandler создает новый StatusHandler. clients может быть nil.
func NewStatusHandler(provider StatusProvider, clients ClientCounter, info StatusInfo) *StatusHandler {
	return &StatusHandler{provider: provider, clients: clients, info: info, now: time.Now}
}

// GetStatus возвращает итог последнего цикла и параметры пула
// GET /api/v1/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		StartedAt:       h.info.StartedAt,
		Uptime:          utils.FormatDuration(h.now().Sub(h.info.StartedAt)),
		IntervalSeconds: h.info.Interval.Seconds(),
		Workers:         h.info.Workers,
		WorkerMode:      h.info.WorkerMode,
	}
	if h.clients != nil {
		resp.StreamClients = h.clients.ClientCount()
	}
	if h.provider != nil {
		resp.LastCycle = h.provider.LastReport()
	}
	if resp.LastCycle != nil && h.info.Interval > 0 {
		due := resp.LastCycle.StartedAt.Add(h.info.Interval)
		resp.NextCycleDue = &due
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// Health - проверка живости процесса
// GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
