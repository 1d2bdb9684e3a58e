package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"
)

const (
	MemberAdd    = "add"
	MemberDelete = "delete"
)

// ProjectService owns project lifecycle and the project-member-task
// consistency rules. Writes that span two records run as independent
// best-effort operations; a secondary failure is collected as a
// SyncFailure, never rolled back.
type ProjectService struct {
	projects ProjectStore
	users    UserStore
	tasks    TaskStore
}

func NewProjectService(projects ProjectStore, users UserStore, tasks TaskStore) *ProjectService {
	return &ProjectService{projects: projects, users: users, tasks: tasks}
}

// CreateProjectInput carries a project creation request.
type CreateProjectInput struct {
	Title       string
	Description string
	Members     []string
}

// CreateProjectResult is the structured outcome of a project creation: the
// persisted project plus any member linkages that could not be written.
type CreateProjectResult struct {
	Project      Project       `json:"project"`
	SyncFailures []SyncFailure `json:"syncFailures,omitempty"`
}

// Create persists a new project owned by ownerID. Requested members are
// deduplicated against each other and the owner, who is always appended.
// Each member's own project list is then updated independently; a failed
// linkage is reported in the result while the project stands.
func (s *ProjectService) Create(ctx context.Context, ownerID string, in CreateProjectInput) (*CreateProjectResult, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, NewValidationError("title is required")
	}

	members := dedupeMembers(in.Members, ownerID)
	p := Project{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Status:      ProjectActive,
		CreatedBy:   ownerID,
		Members:     members,
		Tasks:       []string{},
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.projects.InsertProject(ctx, p); err != nil {
		return nil, err
	}

	failures := s.fanOutMemberLinks(ctx, p.ID, members, s.linkProjectToMember)
	log.WithFields(log.Fields{"project": p.ID, "members": len(members), "link_failures": len(failures)}).Info("project created")
	return &CreateProjectResult{Project: p, SyncFailures: failures}, nil
}

// UpdateMemberResult pairs the updated project with the outcome of the
// member-side back-reference write.
type UpdateMemberResult struct {
	Project      Project       `json:"project"`
	SyncFailures []SyncFailure `json:"syncFailures,omitempty"`
}

// UpdateMember pushes or pulls memberID on the project's member list. The
// list write is atomic on the project record; when adding, the member's own
// project list is updated best-effort afterwards. Deleting an absent member
// is a no-op, adding a present one likewise.
func (s *ProjectService) UpdateMember(ctx context.Context, projectID, memberID, action string) (*UpdateMemberResult, error) {
	if action != MemberAdd && action != MemberDelete {
		return nil, NewValidationError("invalid action %q, use %q or %q", action, MemberAdd, MemberDelete)
	}

	var p *Project
	for {
		var err error
		p, err = s.projects.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ErrNotFound
		}

		members, changed := applyMemberAction(p.Members, memberID, action)
		if !changed {
			break
		}
		err = s.projects.UpdateProject(ctx, ProjectUpdate{ID: projectID, ETag: p.ETag, Members: &members})
		if err == nil {
			p.Members = members
			break
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return nil, err
		}
	}

	res := &UpdateMemberResult{Project: *p}
	if action == MemberAdd {
		if fail := s.linkProjectToMember(ctx, projectID, memberID); fail != nil {
			res.SyncFailures = append(res.SyncFailures, *fail)
		}
	}
	return res, nil
}

// UpdateStatus sets the project status after normalizing it to lower-case.
func (s *ProjectService) UpdateStatus(ctx context.Context, projectID, status string) (*Project, error) {
	status = strings.ToLower(status)
	if !ValidProjectStatus(status) {
		return nil, NewValidationError("invalid status %q", status)
	}

	for {
		p, err := s.projects.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ErrNotFound
		}
		err = s.projects.UpdateProject(ctx, ProjectUpdate{ID: projectID, ETag: p.ETag, Status: &status})
		if err == nil {
			p.Status = status
			return p, nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return nil, err
		}
	}
}

// Delete removes the project. Only the creator may delete it; the ownership
// check runs before anything is written. Every member's project list is
// then cleaned up independently, one best-effort attempt each.
func (s *ProjectService) Delete(ctx context.Context, principalID, projectID string) ([]SyncFailure, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if p.CreatedBy != principalID {
		return nil, fmt.Errorf("only the owner can delete this project: %w", ErrNotOwner)
	}

	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		return nil, err
	}

	failures := s.fanOutMemberLinks(ctx, projectID, p.Members, s.unlinkProjectFromMember)
	log.WithFields(log.Fields{"project": projectID, "unlink_failures": len(failures)}).Info("project deleted")
	return failures, nil
}

// Get returns the project with task references expanded to full records and
// member references to username summaries. References that no longer
// resolve are skipped, keeping any accumulated inconsistency visible in the
// raw lists without failing the read.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*ProjectView, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}

	view := &ProjectView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Status:      p.Status,
		CreatedBy:   p.CreatedBy,
		Members:     make([]UserSummary, 0, len(p.Members)),
		Tasks:       make([]Task, 0, len(p.Tasks)),
		CreatedAt:   p.CreatedAt,
	}
	for _, memberID := range p.Members {
		u, err := s.users.GetUser(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			log.WithFields(log.Fields{"project": projectID, "member": memberID}).Warn("skipping dangling member reference")
			continue
		}
		view.Members = append(view.Members, UserSummary{ID: u.ID, Username: u.Username})
	}
	for _, taskID := range p.Tasks {
		t, err := s.tasks.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			log.WithFields(log.Fields{"project": projectID, "task": taskID}).Warn("skipping dangling task reference")
			continue
		}
		view.Tasks = append(view.Tasks, *t)
	}
	return view, nil
}

// fanOutMemberLinks applies op for every member concurrently. Operations
// are independent; one member's failure does not block the others.
func (s *ProjectService) fanOutMemberLinks(ctx context.Context, projectID string, members []string, op func(context.Context, string, string) *SyncFailure) []SyncFailure {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures []SyncFailure
	)
	for _, memberID := range members {
		wg.Add(1)
		go func(memberID string) {
			defer wg.Done()
			if fail := op(ctx, projectID, memberID); fail != nil {
				mu.Lock()
				failures = append(failures, *fail)
				mu.Unlock()
			}
		}(memberID)
	}
	wg.Wait()
	return failures
}

// linkProjectToMember appends projectID to the member's project list. The
// write retries only on optimistic-concurrency conflicts; any other failure
// is returned for the caller to record, never retried or rolled back.
func (s *ProjectService) linkProjectToMember(ctx context.Context, projectID, memberID string) *SyncFailure {
	err := s.mutateMemberProjects(ctx, memberID, func(projects []string) ([]string, bool) {
		for _, id := range projects {
			if id == projectID {
				return projects, false
			}
		}
		return append(projects, projectID), true
	})
	if err != nil {
		log.WithFields(log.Fields{"project": projectID, "member": memberID}).WithError(err).Error("unable to update projects property in user")
		return &SyncFailure{Collection: "users", ID: memberID, Reason: err.Error()}
	}
	return nil
}

// unlinkProjectFromMember removes projectID from the member's project list.
func (s *ProjectService) unlinkProjectFromMember(ctx context.Context, projectID, memberID string) *SyncFailure {
	err := s.mutateMemberProjects(ctx, memberID, func(projects []string) ([]string, bool) {
		out := projects[:0]
		changed := false
		for _, id := range projects {
			if id == projectID {
				changed = true
				continue
			}
			out = append(out, id)
		}
		return out, changed
	})
	if err != nil {
		log.WithFields(log.Fields{"project": projectID, "member": memberID}).WithError(err).Error("unable to retract project from user")
		return &SyncFailure{Collection: "users", ID: memberID, Reason: err.Error()}
	}
	return nil
}

func (s *ProjectService) mutateMemberProjects(ctx context.Context, memberID string, mutate func([]string) ([]string, bool)) error {
	for {
		u, err := s.users.GetUser(ctx, memberID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user %s: %w", memberID, ErrNotFound)
		}
		projects, changed := mutate(u.Projects)
		if !changed {
			return nil
		}
		err = s.users.UpdateUser(ctx, UserUpdate{ID: memberID, ETag: u.ETag, Projects: &projects})
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
	}
}

// dedupeMembers drops duplicates and the owner from the requested member
// list, then appends the owner so the creator is always a member.
func dedupeMembers(requested []string, ownerID string) []string {
	seen := map[string]struct{}{ownerID: {}}
	members := make([]string, 0, len(requested)+1)
	for _, id := range requested {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	return append(members, ownerID)
}

func applyMemberAction(members []string, memberID, action string) ([]string, bool) {
	switch action {
	case MemberAdd:
		for _, id := range members {
			if id == memberID {
				return members, false
			}
		}
		return append(append([]string{}, members...), memberID), true
	case MemberDelete:
		out := make([]string, 0, len(members))
		changed := false
		for _, id := range members {
			if id == memberID {
				changed = true
				continue
			}
			out = append(out, id)
		}
		return out, changed
	}
	return members, false
}
