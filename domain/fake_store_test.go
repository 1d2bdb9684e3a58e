package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// fakeStore is an in-memory UserStore, ProjectStore and TaskStore with real
// ETag checks. Writes racing a stale ETag return ErrConcurrencyConflict the
// way the table store does. A mutex guards the maps because member fan-out
// runs concurrently.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]User
	projects map[string]Project
	tasks    map[string]Task

	etagSeq int

	// failUserUpdate[id] injects an unconditional error for that user's
	// UpdateUser. userConflicts injects that many conflicts before writes
	// start succeeding, projectConflicts likewise for projects.
	failUserUpdate    map[string]error
	failProjectUpdate error
	userConflicts     int
	projectConflicts  int

	lastUserUpdate    UserUpdate
	lastProjectUpdate ProjectUpdate
	lastTaskUpdate    TaskUpdate
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]User{},
		projects: map[string]Project{},
		tasks:    map[string]Task{},
	}
}

func (f *fakeStore) nextETag() string {
	f.etagSeq++
	return strconv.Itoa(f.etagSeq)
}

func (f *fakeStore) putUser(u User) User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ETag == "" {
		u.ETag = f.nextETag()
	}
	if u.Projects == nil {
		u.Projects = []string{}
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertUser(ctx context.Context, u User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[u.ID]; exists {
		return ErrConcurrencyConflict
	}
	u.ETag = f.nextETag()
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, upd UserUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failUserUpdate[upd.ID]; ok {
		return err
	}
	if f.userConflicts > 0 {
		f.userConflicts--
		return ErrConcurrencyConflict
	}
	u, ok := f.users[upd.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", upd.ID, ErrNotFound)
	}
	if upd.ETag != "" && upd.ETag != u.ETag {
		return ErrConcurrencyConflict
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.Projects != nil {
		u.Projects = *upd.Projects
	}
	u.ETag = f.nextETag()
	f.users[upd.ID] = u
	f.lastUserUpdate = upd
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) putProject(p Project) Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ETag == "" {
		p.ETag = f.nextETag()
	}
	if p.Members == nil {
		p.Members = []string{}
	}
	if p.Tasks == nil {
		p.Tasks = []string{}
	}
	f.projects[p.ID] = p
	return p
}

func (f *fakeStore) GetProject(ctx context.Context, id string) (*Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) InsertProject(ctx context.Context, p Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.projects[p.ID]; exists {
		return ErrConcurrencyConflict
	}
	p.ETag = f.nextETag()
	f.projects[p.ID] = p
	return nil
}

func (f *fakeStore) UpdateProject(ctx context.Context, upd ProjectUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failProjectUpdate != nil {
		return f.failProjectUpdate
	}
	if f.projectConflicts > 0 {
		f.projectConflicts--
		return ErrConcurrencyConflict
	}
	p, ok := f.projects[upd.ID]
	if !ok {
		return fmt.Errorf("project %s: %w", upd.ID, ErrNotFound)
	}
	if upd.ETag != "" && upd.ETag != p.ETag {
		return ErrConcurrencyConflict
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.Members != nil {
		p.Members = *upd.Members
	}
	if upd.Tasks != nil {
		p.Tasks = *upd.Tasks
	}
	p.ETag = f.nextETag()
	f.projects[upd.ID] = p
	f.lastProjectUpdate = upd
	return nil
}

func (f *fakeStore) DeleteProject(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeStore) putTask(t Task) Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ETag == "" {
		t.ETag = f.nextETag()
	}
	f.tasks[t.ID] = t
	return t
}

func (f *fakeStore) GetTask(ctx context.Context, id string) (*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Task
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertTask(ctx context.Context, t Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.tasks[t.ID]; exists {
		return ErrConcurrencyConflict
	}
	t.ETag = f.nextETag()
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, upd TaskUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[upd.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", upd.ID, ErrNotFound)
	}
	if upd.ETag != "" && upd.ETag != t.ETag {
		return ErrConcurrencyConflict
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.AssignedTo != nil {
		t.AssignedTo = *upd.AssignedTo
	}
	t.ETag = f.nextETag()
	f.tasks[upd.ID] = t
	f.lastTaskUpdate = upd
	return nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, projectID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.ProjectID != projectID {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	delete(f.tasks, id)
	return nil
}

var errStoreDown = errors.New("storage unavailable")

func ptrString(s string) *string { return &s }
