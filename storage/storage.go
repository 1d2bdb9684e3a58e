package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"trullo-api/domain"
)

// Storage provides access to the users, projects and tasks tables. Each
// single-entity write is atomic; nothing spanning two entities is.
type Storage struct {
	userTable    *aztables.Client
	projectTable *aztables.Client
	taskTable    *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, usersTable, projectsTable, tasksTable string) (*Storage, error) {
	clientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &clientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		userTable:    svc.NewClient(usersTable),
		projectTable: svc.NewClient(projectsTable),
		taskTable:    svc.NewClient(tasksTable),
	}, nil
}

// translateError maps service responses onto the domain error taxonomy.
// 404 on writes becomes ErrNotFound; 409/412 become ErrConcurrencyConflict
// so services can re-read and retry.
func translateError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 404:
			return domain.ErrNotFound
		case 409, 412:
			return domain.ErrConcurrencyConflict
		}
	}
	return err
}

func getEntity(ctx context.Context, table *aztables.Client, pk, rk string) ([]byte, error) {
	resp, err := table.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	return resp.Value, nil
}

func insertEntity(ctx context.Context, table *aztables.Client, ent any) error {
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := table.AddEntity(ctx, payload, nil); err != nil {
		return translateError(err)
	}
	return nil
}

func mergeEntity(ctx context.Context, table *aztables.Client, ent any, etag string) error {
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	match := azcore.ETagAny
	if etag != "" {
		match = azcore.ETag(etag)
	}
	_, err = table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &match, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		return translateError(err)
	}
	return nil
}

func deleteEntity(ctx context.Context, table *aztables.Client, pk, rk string) error {
	if _, err := table.DeleteEntity(ctx, pk, rk, nil); err != nil {
		return translateError(err)
	}
	return nil
}

// escapeFilterValue doubles single quotes for use inside an OData filter.
func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// GetUser retrieves a user record, or (nil, nil) when absent.
func (s *Storage) GetUser(ctx context.Context, id string) (*domain.User, error) {
	data, err := getEntity(ctx, s.userTable, usersPartition, id)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeUserEntity(data)
}

// FindUserByEmail looks a user up by the stored (lower-cased) email. The
// store has no secondary index, so this is a partition filter query.
func (s *Storage) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	filter := "PartitionKey eq '" + usersPartition + "' and Email eq '" + escapeFilterValue(email) + "'"
	pager := s.userTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			return decodeUserEntity(e)
		}
	}
	return nil, nil
}

func (s *Storage) InsertUser(ctx context.Context, u domain.User) error {
	return insertEntity(ctx, s.userTable, userToEntity(u))
}

func (s *Storage) UpdateUser(ctx context.Context, upd domain.UserUpdate) error {
	ent := userUpdateEntity{
		entity:       entity{PartitionKey: usersPartition, RowKey: upd.ID},
		Username:     upd.Username,
		Email:        upd.Email,
		PasswordHash: upd.PasswordHash,
		Role:         upd.Role,
	}
	if upd.Projects != nil {
		encoded := encodeIDList(*upd.Projects)
		ent.Projects = &encoded
	}
	return mergeEntity(ctx, s.userTable, ent, upd.ETag)
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	return deleteEntity(ctx, s.userTable, usersPartition, id)
}

// GetProject retrieves a project record, or (nil, nil) when absent.
func (s *Storage) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	data, err := getEntity(ctx, s.projectTable, projectsPartition, id)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeProjectEntity(data)
}

func (s *Storage) InsertProject(ctx context.Context, p domain.Project) error {
	return insertEntity(ctx, s.projectTable, projectToEntity(p))
}

func (s *Storage) UpdateProject(ctx context.Context, upd domain.ProjectUpdate) error {
	ent := projectUpdateEntity{
		entity: entity{PartitionKey: projectsPartition, RowKey: upd.ID},
		Status: upd.Status,
	}
	if upd.Members != nil {
		encoded := encodeIDList(*upd.Members)
		ent.Members = &encoded
	}
	if upd.Tasks != nil {
		encoded := encodeIDList(*upd.Tasks)
		ent.Tasks = &encoded
	}
	return mergeEntity(ctx, s.projectTable, ent, upd.ETag)
}

func (s *Storage) DeleteProject(ctx context.Context, id string) error {
	return deleteEntity(ctx, s.projectTable, projectsPartition, id)
}

// GetTask retrieves a task by id alone. Tasks are partitioned by owning
// project, so this filters on RowKey across partitions; ListTasks is the
// cheap path when the project is known.
func (s *Storage) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	filter := "RowKey eq '" + escapeFilterValue(id) + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			return decodeTaskEntity(e)
		}
	}
	return nil, nil
}

// ListTasks retrieves all tasks bound to the project as a partition query.
func (s *Storage) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + escapeFilterValue(projectID) + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, *t)
		}
	}
	return tasks, nil
}

func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	return insertEntity(ctx, s.taskTable, taskToEntity(t))
}

func (s *Storage) UpdateTask(ctx context.Context, upd domain.TaskUpdate) error {
	ent := taskUpdateEntity{
		entity:      entity{PartitionKey: upd.ProjectID, RowKey: upd.ID},
		Title:       upd.Title,
		Description: upd.Description,
		Status:      upd.Status,
	}
	if upd.AssignedTo != nil {
		encoded := encodeIDList(*upd.AssignedTo)
		ent.AssignedTo = &encoded
	}
	return mergeEntity(ctx, s.taskTable, ent, upd.ETag)
}

func (s *Storage) DeleteTask(ctx context.Context, projectID, id string) error {
	return deleteEntity(ctx, s.taskTable, projectID, id)
}
