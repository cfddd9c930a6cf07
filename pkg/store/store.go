package store

import (
	"context"
	"errors"

	"bugboard/pkg/domain"
	"bugboard/pkg/report"
)

// ErrDuplicateMessage is returned by Create when a bug with the same Discord
// message id already exists. Two sync runs racing on the same message hit
// this through the unique constraint; the reconciler reports it as a
// per-message error rather than crashing the batch.
var ErrDuplicateMessage = errors.New("bug with this discord message id already exists")

// ListFilter narrows ListBugs. Zero values mean "no filter".
type ListFilter struct {
	Status       domain.BugStatus
	Type         domain.BugType
	AssignedToID string
	Offset       int
	Limit        int
}

// Store defines persistence for bugs. It is a superset of the reconciler's
// RecordStore so one implementation serves both the pipeline and the rest of
// the tracker.
type Store interface {
	report.RecordStore

	GetBug(ctx context.Context, id string) (domain.Bug, bool, error)
	ListBugs(ctx context.Context, filter ListFilter) ([]domain.Bug, int64, error)
	ListBugsBySteamID(ctx context.Context, steamID string) ([]domain.Bug, error)
	StatusCounts(ctx context.Context) (map[domain.BugStatus]int64, error)
	SetStatus(ctx context.Context, id string, status domain.BugStatus) error
	DeleteBug(ctx context.Context, id string) error
}
