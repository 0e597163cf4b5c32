// Package api - операторский HTTP интерфейс сборщика.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"collector/internal/api/handlers"
	"collector/internal/api/middleware"
	"collector/pkg/utils"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Accounts  handlers.AccountReader
	Snapshots handlers.SnapshotReader
	Status    handlers.StatusProvider
	Info      handlers.StatusInfo

	// Stream - websocket-хаб; nil отключает /ws/stream
	Stream interface {
		handlers.ClientCounter
		ServeWS(w http.ResponseWriter, r *http.Request)
	}

	AllowedOrigins []string
	APIToken       string
	Log            *utils.Logger
}

// SetupRoutes настраивает все HTTP маршруты
//
// Структура маршрутов:
//
//	/healthz - живость процесса
//	/metrics - Prometheus
//	/api/v1/
//	├── GET /status - итог последнего цикла, параметры пула
//	├── GET /accounts - счета с последним состоянием
//	├── GET /accounts/{id} - один счёт
//	└── GET /accounts/{id}/snapshots - история снимков
//	/ws/stream - живой поток accountUpdate и cycleReport
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. BearerAuth (только /api/v1 и /ws)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Log))
	router.Use(middleware.Logging(deps.Log))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	router.HandleFunc("/healthz", handlers.Health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.BearerAuth(deps.APIToken))

	var clients handlers.ClientCounter
	if deps.Stream != nil {
		clients = deps.Stream
	}
	statusHandler := handlers.NewStatusHandler(deps.Status, clients, deps.Info)
	api.HandleFunc("/status", statusHandler.GetStatus).Methods("GET")

	if deps.Accounts != nil && deps.Snapshots != nil {
		accountHandler := handlers.NewAccountHandler(deps.Accounts, deps.Snapshots)
		api.HandleFunc("/accounts", accountHandler.GetAccounts).Methods("GET")
		api.HandleFunc("/accounts/{id}", accountHandler.GetAccount).Methods("GET")
		api.HandleFunc("/accounts/{id}/snapshots", accountHandler.GetSnapshots).Methods("GET")
	}

	if deps.Stream != nil {
		ws := router.PathPrefix("/ws").Subrouter()
		ws.Use(middleware.BearerAuth(deps.APIToken))
		ws.HandleFunc("/stream", deps.Stream.ServeWS).Methods("GET")
	}

	return router
}
