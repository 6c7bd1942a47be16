package task

import "context"

// Repository owns the authoritative in-memory task collection for the
// current process. Create assigns the identifier, timestamp and initial
// status; validation of user input happens before a task reaches the
// repository.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, t *Task) error
	List(ctx context.Context) ([]*Task, error)
	// Reload drops the in-memory collection and re-reads it from storage.
	Reload(ctx context.Context) error
}
