package repositoryimpl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/microgig/microgig/pkg/cerr"
	"github.com/microgig/microgig/pkg/storage"
	"github.com/microgig/microgig/task"
)

const DefaultKey = "tasks.yaml"

// YAMLRepository keeps the whole task collection in memory, ordered
// newest-first, and persists it as a single YAML blob under one storage
// key on every mutation. It assumes a single writer per blob; a second
// process writing the same key wins with its last full write, which is a
// documented limitation, not a corrected one.
type YAMLRepository struct {
	storage storage.Storage
	key     string

	mu    sync.RWMutex
	tasks []*task.Task
}

// NewYAMLRepository materializes the collection from storage once. A
// missing or unparseable blob yields an empty collection, never an error.
func NewYAMLRepository(ctx context.Context, s storage.Storage, key string) *YAMLRepository {
	if key == "" {
		key = DefaultKey
	}
	r := &YAMLRepository{storage: s, key: key}
	r.tasks = r.load(ctx)
	return r
}

func (r *YAMLRepository) load(ctx context.Context) []*task.Task {
	data, err := r.storage.Read(ctx, r.key)
	if err != nil {
		return nil
	}
	var tasks []*task.Task
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		// Corrupted blob: treated as no data.
		return nil
	}
	return tasks
}

// persist writes the full collection. Callers hold r.mu.
func (r *YAMLRepository) persist(ctx context.Context) error {
	data, err := yaml.Marshal(r.tasks)
	if err != nil {
		return cerr.NewError(cerr.Internal, "storage error", fmt.Errorf("failed to marshal tasks: %w", err))
	}
	if err := r.storage.Write(ctx, r.key, data); err != nil {
		return cerr.WrapStorageWriteError("tasks", err)
	}
	return nil
}

func (r *YAMLRepository) Create(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.ID = ulid.Make().String()
	t.Status = task.StatusOpen
	t.CreatedAt = time.Now()

	// Newest first; the ordering is significant for display.
	r.tasks = append([]*task.Task{t.Clone()}, r.tasks...)
	if err := r.persist(ctx); err != nil {
		r.tasks = r.tasks[1:]
		return err
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tasks {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, "task not found", nil)
}

func (r *YAMLRepository) Update(ctx context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.tasks {
		if existing.ID == t.ID {
			r.tasks[i] = t.Clone()
			if err := r.persist(ctx); err != nil {
				r.tasks[i] = existing
				return err
			}
			return nil
		}
	}
	return cerr.NewError(cerr.NotFound, "task not found", nil)
}

func (r *YAMLRepository) List(ctx context.Context) ([]*task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]*task.Task, len(r.tasks))
	for i, t := range r.tasks {
		tasks[i] = t.Clone()
	}
	return tasks, nil
}

func (r *YAMLRepository) Reload(ctx context.Context) error {
	tasks := r.load(ctx)
	r.mu.Lock()
	r.tasks = tasks
	r.mu.Unlock()
	return nil
}
