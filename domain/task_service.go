package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"
)

// TaskService owns task lifecycle and the task-project back-reference
// rules. The task record is the primary write; the owning project's task
// list is kept in sync best-effort, and a sync failure never undoes the
// primary write. The system tolerates an orphaned task over losing data.
type TaskService struct {
	tasks    TaskStore
	projects ProjectStore
}

func NewTaskService(tasks TaskStore, projects ProjectStore) *TaskService {
	return &TaskService{tasks: tasks, projects: projects}
}

// CreateTaskInput carries a task creation request.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      string
	AssignedTo  []string
}

// CreateTaskResult is the structured outcome of a task creation. When the
// back-reference push onto the parent project fails the task is already
// persisted; the failure rides along for the caller to surface.
type CreateTaskResult struct {
	Task         Task          `json:"task"`
	SyncFailures []SyncFailure `json:"syncFailures,omitempty"`
}

// Create persists a task bound to projectID and then appends its reference
// onto the parent project's task list.
func (s *TaskService) Create(ctx context.Context, projectID string, in CreateTaskInput) (*CreateTaskResult, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return nil, NewValidationError("title and description are required")
	}
	status := TaskToDo
	if in.Status != "" {
		status = strings.ToLower(in.Status)
		if !ValidTaskStatus(status) {
			return nil, NewValidationError("invalid status %q", in.Status)
		}
	}

	t := Task{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		AssignedTo:  in.AssignedTo,
		CreatedAt:   time.Now().UTC(),
		FinishedBy:  DefaultFinishedBy,
	}
	if t.AssignedTo == nil {
		t.AssignedTo = []string{}
	}
	if err := s.tasks.InsertTask(ctx, t); err != nil {
		return nil, err
	}

	res := &CreateTaskResult{Task: t}
	if err := s.pushTaskRef(ctx, projectID, t.ID); err != nil {
		log.WithFields(log.Fields{"task": t.ID, "project": projectID}).WithError(err).Error("task persisted but project back-reference push failed")
		res.SyncFailures = append(res.SyncFailures, SyncFailure{Collection: "projects", ID: projectID, Reason: err.Error()})
	}
	return res, nil
}

// Get fetches a single task.
func (s *TaskService) Get(ctx context.Context, taskID string) (*Task, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// List returns every task bound to projectID. An empty result is success
// with an empty slice, not an error.
func (s *TaskService) List(ctx context.Context, projectID string) ([]Task, error) {
	tasks, err := s.tasks.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

// EditTaskInput carries the whitelisted partial task edit. Nil fields are
// left unchanged. Unknown request keys are rejected before this point.
type EditTaskInput struct {
	Title       *string
	Description *string
	Status      *string
	AssignedTo  *[]string
}

// Edit applies the whitelisted fields to the task.
func (s *TaskService) Edit(ctx context.Context, taskID string, in EditTaskInput) (*Task, error) {
	if in.Status != nil {
		status := strings.ToLower(*in.Status)
		if !ValidTaskStatus(status) {
			return nil, NewValidationError("invalid status %q", *in.Status)
		}
		in.Status = &status
	}

	for {
		t, err := s.tasks.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, ErrNotFound
		}

		upd := TaskUpdate{
			ProjectID:   t.ProjectID,
			ID:          taskID,
			ETag:        t.ETag,
			Title:       in.Title,
			Description: in.Description,
			Status:      in.Status,
			AssignedTo:  in.AssignedTo,
		}
		if in.Title != nil {
			t.Title = *in.Title
		}
		if in.Description != nil {
			t.Description = *in.Description
		}
		if in.Status != nil {
			t.Status = *in.Status
		}
		if in.AssignedTo != nil {
			t.AssignedTo = *in.AssignedTo
		}

		err = s.tasks.UpdateTask(ctx, upd)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return nil, err
		}
	}
}

// Delete removes the task and then retracts its reference from the owning
// project's task list. When the retraction fails the task is already gone;
// the failure is reported to the caller all the same.
func (s *TaskService) Delete(ctx context.Context, taskID string) ([]SyncFailure, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}

	if err := s.tasks.DeleteTask(ctx, t.ProjectID, taskID); err != nil {
		return nil, err
	}

	if err := s.pullTaskRef(ctx, t.ProjectID, taskID); err != nil {
		log.WithFields(log.Fields{"task": taskID, "project": t.ProjectID}).WithError(err).Error("task deleted but project back-reference pull failed")
		return []SyncFailure{{Collection: "projects", ID: t.ProjectID, Reason: err.Error()}}, nil
	}
	return nil, nil
}

func (s *TaskService) pushTaskRef(ctx context.Context, projectID, taskID string) error {
	return s.mutateProjectTasks(ctx, projectID, func(tasks []string) ([]string, bool) {
		for _, id := range tasks {
			if id == taskID {
				return tasks, false
			}
		}
		return append(tasks, taskID), true
	})
}

func (s *TaskService) pullTaskRef(ctx context.Context, projectID, taskID string) error {
	return s.mutateProjectTasks(ctx, projectID, func(tasks []string) ([]string, bool) {
		out := tasks[:0]
		changed := false
		for _, id := range tasks {
			if id == taskID {
				changed = true
				continue
			}
			out = append(out, id)
		}
		return out, changed
	})
}

func (s *TaskService) mutateProjectTasks(ctx context.Context, projectID string, mutate func([]string) ([]string, bool)) error {
	for {
		p, err := s.projects.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		tasks, changed := mutate(p.Tasks)
		if !changed {
			return nil
		}
		err = s.projects.UpdateProject(ctx, ProjectUpdate{ID: projectID, ETag: p.ETag, Tasks: &tasks})
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
	}
}
