package domain

import "time"

const (
	TaskToDo       = "to-do"
	TaskInProgress = "in-progress"
	TaskDone       = "done"
	TaskBlocked    = "blocked"
)

// DefaultFinishedBy is the placeholder value for unfinished tasks.
const DefaultFinishedBy = "Not finished."

// ValidTaskStatus reports whether s is an allowed task status. There is no
// transition graph; any enumerated value is accepted regardless of the
// current one.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskToDo, TaskInProgress, TaskDone, TaskBlocked:
		return true
	}
	return false
}

// Task is a board item. ProjectID is the owning project reference and is
// immutable after creation.
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	AssignedTo  []string  `json:"assignedTo"`
	CreatedAt   time.Time `json:"createdAt"`
	FinishedBy  string    `json:"finishedBy"`

	ETag string `json:"-"`
}

// TaskUpdate carries a partial update for a task record.
type TaskUpdate struct {
	ProjectID   string
	ID          string
	ETag        string
	Title       *string
	Description *string
	Status      *string
	AssignedTo  *[]string
}
