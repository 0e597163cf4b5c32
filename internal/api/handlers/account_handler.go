package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"collector/internal/collector"
	"collector/internal/models"
	"collector/internal/repository"
)

// AccountReader - чтение счетов
type AccountReader interface {
	List(ctx context.Context) ([]*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// SnapshotReader - чтение истории снимков
type SnapshotReader interface {
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.Snapshot, error)
}

// AccountResponse - счёт с описанием статуса. Учётных данных не содержит.
type AccountResponse struct {
	*models.Account
	StatusInfo string `json:"status_info"`
}

// AccountHandler отдаёт состояние счетов
//
// Endpoints:
// - GET /api/v1/accounts - все счета с последним состоянием
// - GET /api/v1/accounts/{id} - один счёт
// - GET /api/v1/accounts/{id}/snapshots?limit=N - история снимков, новые первыми
type AccountHandler struct {
	accounts  AccountReader
	snapshots SnapshotReader
}

// NewAccountHandler создает новый AccountHandler
func NewAccountHandler(accounts AccountReader, snapshots SnapshotReader) *AccountHandler {
	return &AccountHandler{accounts: accounts, snapshots: snapshots}
}

func toResponse(a *models.Account) AccountResponse {
	return AccountResponse{Account: a, StatusInfo: collector.StatusInfo(a.Status)}
}

// GetAccounts возвращает все счета
// GET /api/v1/accounts
func (h *AccountHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list accounts", err.Error())
		return
	}

	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toResponse(a))
	}
	respondWithJSON(w, http.StatusOK, out)
}

// GetAccount возвращает один счёт
// GET /api/v1/accounts/{id}
//
// Ответы:
// - 200 OK
// - 404 Not Found: счёт не существует
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	acc, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			respondWithError(w, http.StatusNotFound, "account not found", "")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get account", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, toResponse(acc))
}

// GetSnapshots возвращает историю снимков счёта
// GET /api/v1/accounts/{id}/snapshots?limit=N
func (h *AccountHandler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	if _, err := h.accounts.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			respondWithError(w, http.StatusNotFound, "account not found", "")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get account", err.Error())
		return
	}

	snaps, err := h.snapshots.ListByAccount(r.Context(), id, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list snapshots", err.Error())
		return
	}
	if snaps == nil {
		snaps = []*models.Snapshot{}
	}
	respondWithJSON(w, http.StatusOK, snaps)
}
