package domain

import "context"

// The store interfaces model a key-addressed collection store: single-record
// reads and conditional single-record writes are atomic, nothing spanning
// two records is. Get methods return (nil, nil) when the record is absent.
// Conditional updates return ErrConcurrencyConflict when the ETag is stale.

// UserStore persists identity records.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	InsertUser(ctx context.Context, u User) error
	UpdateUser(ctx context.Context, upd UserUpdate) error
	DeleteUser(ctx context.Context, id string) error
}

// ProjectStore persists project records.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*Project, error)
	InsertProject(ctx context.Context, p Project) error
	UpdateProject(ctx context.Context, upd ProjectUpdate) error
	DeleteProject(ctx context.Context, id string) error
}

// TaskStore persists task records. Tasks are keyed by owning project, so
// deletion addresses both ids; lookup by task id alone scans the collection.
type TaskStore interface {
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, projectID string) ([]Task, error)
	InsertTask(ctx context.Context, t Task) error
	UpdateTask(ctx context.Context, upd TaskUpdate) error
	DeleteTask(ctx context.Context, projectID, id string) error
}
