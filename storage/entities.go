package storage

import (
	"encoding/json"
	"time"

	"trullo-api/domain"
)

const (
	usersPartition    = "user"
	projectsPartition = "project"
)

type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	ETag         string `json:"odata.etag,omitempty"`
}

type userEntity struct {
	entity
	Username     string `json:"Username"`
	Email        string `json:"Email"`
	PasswordHash string `json:"PasswordHash"`
	SecretHash   string `json:"SecretHash"`
	Role         string `json:"Role"`
	Projects     string `json:"Projects"`
}

type userUpdateEntity struct {
	entity
	Username     *string `json:"Username,omitempty"`
	Email        *string `json:"Email,omitempty"`
	PasswordHash *string `json:"PasswordHash,omitempty"`
	Role         *string `json:"Role,omitempty"`
	Projects     *string `json:"Projects,omitempty"`
}

type projectEntity struct {
	entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Status      string `json:"Status"`
	CreatedBy   string `json:"CreatedBy"`
	Members     string `json:"Members"`
	Tasks       string `json:"Tasks"`
	CreatedAt   string `json:"CreatedAt"`
}

type projectUpdateEntity struct {
	entity
	Status  *string `json:"Status,omitempty"`
	Members *string `json:"Members,omitempty"`
	Tasks   *string `json:"Tasks,omitempty"`
}

type taskEntity struct {
	entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Status      string `json:"Status"`
	AssignedTo  string `json:"AssignedTo"`
	CreatedAt   string `json:"CreatedAt"`
	FinishedBy  string `json:"FinishedBy"`
}

type taskUpdateEntity struct {
	entity
	Title       *string `json:"Title,omitempty"`
	Description *string `json:"Description,omitempty"`
	Status      *string `json:"Status,omitempty"`
	AssignedTo  *string `json:"AssignedTo,omitempty"`
}

// Table properties are scalar, so reference lists are stored as JSON
// strings. An empty or corrupt value decodes to an empty list rather than
// failing the whole record.
func encodeIDList(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeIDList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return []string{}
	}
	return ids
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func userToEntity(u domain.User) userEntity {
	return userEntity{
		entity:       entity{PartitionKey: usersPartition, RowKey: u.ID},
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		SecretHash:   u.SecretHash,
		Role:         u.Role,
		Projects:     encodeIDList(u.Projects),
	}
}

func decodeUserEntity(data []byte) (*domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	return &domain.User{
		ID:           ent.RowKey,
		Username:     ent.Username,
		Email:        ent.Email,
		PasswordHash: ent.PasswordHash,
		SecretHash:   ent.SecretHash,
		Role:         ent.Role,
		Projects:     decodeIDList(ent.Projects),
		ETag:         ent.ETag,
	}, nil
}

func projectToEntity(p domain.Project) projectEntity {
	return projectEntity{
		entity:      entity{PartitionKey: projectsPartition, RowKey: p.ID},
		Title:       p.Title,
		Description: p.Description,
		Status:      p.Status,
		CreatedBy:   p.CreatedBy,
		Members:     encodeIDList(p.Members),
		Tasks:       encodeIDList(p.Tasks),
		CreatedAt:   encodeTime(p.CreatedAt),
	}
}

func decodeProjectEntity(data []byte) (*domain.Project, error) {
	var ent projectEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	return &domain.Project{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Status:      ent.Status,
		CreatedBy:   ent.CreatedBy,
		Members:     decodeIDList(ent.Members),
		Tasks:       decodeIDList(ent.Tasks),
		CreatedAt:   decodeTime(ent.CreatedAt),
		ETag:        ent.ETag,
	}, nil
}

func taskToEntity(t domain.Task) taskEntity {
	return taskEntity{
		entity:      entity{PartitionKey: t.ProjectID, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		AssignedTo:  encodeIDList(t.AssignedTo),
		CreatedAt:   encodeTime(t.CreatedAt),
		FinishedBy:  t.FinishedBy,
	}
}

func decodeTaskEntity(data []byte) (*domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	return &domain.Task{
		ID:          ent.RowKey,
		ProjectID:   ent.PartitionKey,
		Title:       ent.Title,
		Description: ent.Description,
		Status:      ent.Status,
		AssignedTo:  decodeIDList(ent.AssignedTo),
		CreatedAt:   decodeTime(ent.CreatedAt),
		FinishedBy:  ent.FinishedBy,
		ETag:        ent.ETag,
	}, nil
}
