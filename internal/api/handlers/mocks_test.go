package handlers

import (
	"context"
	"errors"
	"sync"

	"collector/internal/models"
	"collector/internal/repository"
)

// ErrMockDatabase - ошибка хранилища для тестов
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock Account Store ============

// MockAccountStore мок для AccountReader и SnapshotReader
type MockAccountStore struct {
	mu        sync.RWMutex
	accounts  map[string]*models.Account
	order     []string
	snapshots map[string][]*models.Snapshot

	listErr     error
	getErr      error
	snapshotErr error

	lastLimit int
}

// NewMockAccountStore создает пустой мок
func NewMockAccountStore() *MockAccountStore {
	return &MockAccountStore{
		accounts:  make(map[string]*models.Account),
		snapshots: make(map[string][]*models.Snapshot),
	}
}

func (m *MockAccountStore) Add(acc *models.Account, snaps ...*models.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acc.ID] = acc
	m.order = append(m.order, acc.ID)
	m.snapshots[acc.ID] = append(m.snapshots[acc.ID], snaps...)
}

// SetError задаёт ошибку операции: "list", "get", "snapshots"
func (m *MockAccountStore) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch op {
	case "list":
		m.listErr = err
	case "get":
		m.getErr = err
	case "snapshots":
		m.snapshotErr = err
	}
}

func (m *MockAccountStore) List(context.Context) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*models.Account, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.accounts[id])
	}
	return out, nil
}

func (m *MockAccountStore) GetByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	acc, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return acc, nil
}

func (m *MockAccountStore) ListByAccount(_ context.Context, id string, limit int) ([]*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	return m.snapshots[id], nil
}

// ============ Mock Status Provider ============

type mockStatus struct {
	report *models.CycleReport
}

func (m *mockStatus) LastReport() *models.CycleReport { return m.report }

type mockClients int

func (m mockClients) ClientCount() int { return int(m) }
