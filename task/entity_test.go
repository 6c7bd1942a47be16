package task

import (
	"testing"
	"time"
)

func TestCanTransitionTo(t *testing.T) {
	statuses := []Status{StatusOpen, StatusInProgress, StatusCompleted, StatusPaid}
	allowed := map[Status]Status{
		StatusOpen:       StatusInProgress,
		StatusInProgress: StatusCompleted,
		StatusCompleted:  StatusPaid,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[from] == to
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}

	if StatusPaid.CanTransitionTo(StatusOpen) {
		t.Error("paid must be terminal")
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Errorf("listed category %q reported invalid", c)
		}
	}
	for _, c := range []Category{"", "gardening", "Design"} {
		if c.Valid() {
			t.Errorf("category %q reported valid", c)
		}
	}
}

func TestCloneDetachesDeadline(t *testing.T) {
	deadline := time.Now().Add(24 * time.Hour)
	original := &Task{ID: "t1", Deadline: &deadline}

	copied := original.Clone()
	if copied.Deadline == original.Deadline {
		t.Error("Clone shares the deadline pointer with the original")
	}
	if !copied.Deadline.Equal(deadline) {
		t.Errorf("Clone changed the deadline: %v", copied.Deadline)
	}

	*copied.Deadline = deadline.Add(time.Hour)
	if !original.Deadline.Equal(deadline) {
		t.Error("mutating the clone leaked into the original")
	}
}
