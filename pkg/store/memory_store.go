package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bugboard/pkg/domain"
	"bugboard/pkg/report"
)

// MemoryStore keeps bugs in-process. It backs tests and local development
// with the same semantics the Postgres store has, including the unique
// constraint on the Discord message id.
type MemoryStore struct {
	mu        sync.RWMutex
	bugs      map[string]domain.Bug
	byMessage map[string]string // discord message id -> bug id
	order     []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bugs:      make(map[string]domain.Bug),
		byMessage: make(map[string]string),
	}
}

// FindByMessageID looks up a bug by its source Discord message id.
func (m *MemoryStore) FindByMessageID(_ context.Context, messageID string) (domain.Bug, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byMessage[messageID]
	if !ok {
		return domain.Bug{}, false, nil
	}
	return m.bugs[id], true, nil
}

// Create persists a new bug, enforcing message-id uniqueness.
func (m *MemoryStore) Create(_ context.Context, bug domain.Bug) (domain.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byMessage[bug.DiscordMessageID]; bug.DiscordMessageID != "" && exists {
		return domain.Bug{}, ErrDuplicateMessage
	}
	if bug.ID == "" {
		bug.ID = uuid.NewString()
	}
	if bug.CreatedAt.IsZero() {
		bug.CreatedAt = time.Now().UTC()
	}
	bug.UpdatedAt = time.Now().UTC()
	m.bugs[bug.ID] = bug
	if bug.DiscordMessageID != "" {
		m.byMessage[bug.DiscordMessageID] = bug.ID
	}
	m.order = append(m.order, bug.ID)
	return bug, nil
}

// Update merges pipeline-owned fields into an existing bug.
func (m *MemoryStore) Update(_ context.Context, id string, patch report.Patch) (domain.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bug, ok := m.bugs[id]
	if !ok {
		return domain.Bug{}, fmt.Errorf("bug %s not found", id)
	}
	if patch.SteamID != nil {
		steamID := *patch.SteamID
		bug.SteamID = &steamID
	}
	if patch.ScreenshotURL != nil {
		bug.ScreenshotURL = *patch.ScreenshotURL
	}
	if patch.ScreenshotSourceURL != nil {
		bug.ScreenshotSourceURL = *patch.ScreenshotSourceURL
	}
	bug.UpdatedAt = time.Now().UTC()
	m.bugs[id] = bug
	return bug, nil
}

// GetBug retrieves a bug by its identity.
func (m *MemoryStore) GetBug(_ context.Context, id string) (domain.Bug, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bug, ok := m.bugs[id]
	return bug, ok, nil
}

// ListBugs returns filtered bugs in reverse insertion order.
func (m *MemoryStore) ListBugs(_ context.Context, filter ListFilter) ([]domain.Bug, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]domain.Bug, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		bug, ok := m.bugs[m.order[i]]
		if !ok {
			continue
		}
		if filter.Status != "" && bug.Status != filter.Status {
			continue
		}
		if filter.Type != "" && bug.Type != filter.Type {
			continue
		}
		if filter.AssignedToID != "" && (bug.AssignedToID == nil || *bug.AssignedToID != filter.AssignedToID) {
			continue
		}
		matched = append(matched, bug)
	}

	total := int64(len(matched))
	offset := filter.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	limit := filter.Limit
	if limit <= 0 {
		limit = 150
	}
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// ListBugsBySteamID returns all bugs reported by one player.
func (m *MemoryStore) ListBugsBySteamID(_ context.Context, steamID string) ([]domain.Bug, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var bugs []domain.Bug
	for i := len(m.order) - 1; i >= 0; i-- {
		bug, ok := m.bugs[m.order[i]]
		if ok && bug.SteamID != nil && *bug.SteamID == steamID {
			bugs = append(bugs, bug)
		}
	}
	return bugs, nil
}

// StatusCounts returns how many bugs sit in each workflow status.
func (m *MemoryStore) StatusCounts(_ context.Context) (map[domain.BugStatus]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.BugStatus]int64)
	for _, bug := range m.bugs {
		counts[bug.Status]++
	}
	return counts, nil
}

// SetStatus moves a bug to another workflow status.
func (m *MemoryStore) SetStatus(_ context.Context, id string, status domain.BugStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bug, ok := m.bugs[id]
	if !ok {
		return fmt.Errorf("bug %s not found", id)
	}
	bug.Status = status
	bug.UpdatedAt = time.Now().UTC()
	m.bugs[id] = bug
	return nil
}

// DeleteBug removes a bug.
func (m *MemoryStore) DeleteBug(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bug, ok := m.bugs[id]
	if !ok {
		return nil
	}
	delete(m.bugs, id)
	delete(m.byMessage, bug.DiscordMessageID)
	filtered := m.order[:0]
	for _, item := range m.order {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.order = filtered
	return nil
}
