package task

import "time"

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusPaid       Status = "paid"
)

// next holds the only legal successor per status. The lifecycle advances
// forward through the fixed sequence; nothing moves backward or skips.
var next = map[Status]Status{
	StatusOpen:       StatusInProgress,
	StatusInProgress: StatusCompleted,
	StatusCompleted:  StatusPaid,
}

func (s Status) CanTransitionTo(to Status) bool {
	return next[s] == to
}

type Category string

const (
	CategoryDesign      Category = "design"
	CategoryTranslation Category = "translation"
	CategoryTesting     Category = "testing"
	CategoryWriting     Category = "writing"
	CategoryDevelopment Category = "development"
	CategoryOther       Category = "other"
)

func Categories() []Category {
	return []Category{
		CategoryDesign,
		CategoryTranslation,
		CategoryTesting,
		CategoryWriting,
		CategoryDevelopment,
		CategoryOther,
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryDesign, CategoryTranslation, CategoryTesting,
		CategoryWriting, CategoryDevelopment, CategoryOther:
		return true
	}
	return false
}

// Task is the unit of work. Reward is a decimal string in the ledger's
// native unit. WorkerAddress, SubmissionText and TxHash are bound by the
// claim, submit and pay transitions respectively and are never set any
// other way.
type Task struct {
	ID             string     `yaml:"id"`
	Title          string     `yaml:"title"`
	Description    string     `yaml:"description"`
	Category       Category   `yaml:"category"`
	Reward         string     `yaml:"reward"`
	PosterAddress  string     `yaml:"poster_address"`
	WorkerAddress  string     `yaml:"worker_address,omitempty"`
	Deadline       *time.Time `yaml:"deadline,omitempty"`
	Status         Status     `yaml:"status"`
	CreatedAt      time.Time  `yaml:"created_at"`
	SubmissionText string     `yaml:"submission_text,omitempty"`
	TxHash         string     `yaml:"tx_hash,omitempty"`
}

func (t *Task) Clone() *Task {
	copied := *t
	if t.Deadline != nil {
		deadline := *t.Deadline
		copied.Deadline = &deadline
	}
	return &copied
}
