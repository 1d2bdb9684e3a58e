package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"trullo-api/domain"
)

// memStore backs the handler tests with an in-memory implementation of all
// three store interfaces, including the ETag checks the table store does.
type memStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	projects map[string]domain.Project
	tasks    map[string]domain.Task
	etagSeq  int

	failUserUpdate    map[string]error
	failProjectUpdate error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]domain.User{},
		projects: map[string]domain.Project{},
		tasks:    map[string]domain.Task{},
	}
}

func (m *memStore) nextETag() string {
	m.etagSeq++
	return strconv.Itoa(m.etagSeq)
}

func (m *memStore) putUser(u domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ETag == "" {
		u.ETag = m.nextETag()
	}
	if u.Projects == nil {
		u.Projects = []string{}
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) putProject(p domain.Project) domain.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ETag == "" {
		p.ETag = m.nextETag()
	}
	if p.Members == nil {
		p.Members = []string{}
	}
	if p.Tasks == nil {
		p.Tasks = []string{}
	}
	m.projects[p.ID] = p
	return p
}

func (m *memStore) putTask(t domain.Task) domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ETag == "" {
		t.ETag = m.nextETag()
	}
	m.tasks[t.ID] = t
	return t
}

func (m *memStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.ID]; exists {
		return domain.ErrConcurrencyConflict
	}
	u.ETag = m.nextETag()
	m.users[u.ID] = u
	return nil
}

func (m *memStore) UpdateUser(ctx context.Context, upd domain.UserUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failUserUpdate[upd.ID]; ok {
		return err
	}
	u, ok := m.users[upd.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", upd.ID, domain.ErrNotFound)
	}
	if upd.ETag != "" && upd.ETag != u.ETag {
		return domain.ErrConcurrencyConflict
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
	u.ETag = m.nextETag()
	m.users[upd.ID] = u
	return nil
}

func (m *memStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) InsertProject(ctx context.Context, p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.projects[p.ID]; exists {
		return domain.ErrConcurrencyConflict
	}
	p.ETag = m.nextETag()
	m.projects[p.ID] = p
	return nil
}

func (m *memStore) UpdateProject(ctx context.Context, upd domain.ProjectUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failProjectUpdate != nil {
		return m.failProjectUpdate
	}
	p, ok := m.projects[upd.ID]
	if !ok {
		return fmt.Errorf("project %s: %w", upd.ID, domain.ErrNotFound)
	}
	if upd.ETag != "" && upd.ETag != p.ETag {
		return domain.ErrConcurrencyConflict
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
	p.ETag = m.nextETag()
	m.projects[upd.ID] = p
	return nil
}

func (m *memStore) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	delete(m.projects, id)
	return nil
}

func (m *memStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memStore) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) InsertTask(ctx context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[t.ID]; exists {
		return domain.ErrConcurrencyConflict
	}
	t.ETag = m.nextETag()
	m.tasks[t.ID] = t
	return nil
}

func (m *memStore) UpdateTask(ctx context.Context, upd domain.TaskUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[upd.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", upd.ID, domain.ErrNotFound)
	}
	if upd.ETag != "" && upd.ETag != t.ETag {
		return domain.ErrConcurrencyConflict
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
	t.ETag = m.nextETag()
	m.tasks[upd.ID] = t
	return nil
}

func (m *memStore) DeleteTask(ctx context.Context, projectID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.ProjectID != projectID {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	delete(m.tasks, id)
	return nil
}

var errStoreDown = errors.New("storage unavailable")

// newJSONContext builds an echo context carrying a JSON body, recording
// the response in the returned recorder.
func newJSONContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withPrincipal(c echo.Context, p Principal) echo.Context {
	c.Set(principalContextKey, p)
	return c
}
