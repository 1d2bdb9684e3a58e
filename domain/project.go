package domain

import "time"

const (
	ProjectActive   = "active"
	ProjectInactive = "inactive"
	ProjectDone     = "done"
)

// ValidProjectStatus reports whether s is an allowed project status.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectActive, ProjectInactive, ProjectDone:
		return true
	}
	return false
}

// Project is a board. Members holds user references, Tasks holds
// back-references to the tasks created under the project.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"createdBy"`
	Members     []string  `json:"members"`
	Tasks       []string  `json:"tasks"`
	CreatedAt   time.Time `json:"createdAt"`

	ETag string `json:"-"`
}

// ProjectView is a project with its references expanded: tasks to full
// records, members to username summaries. Dangling references are omitted.
type ProjectView struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      string        `json:"status"`
	CreatedBy   string        `json:"createdBy"`
	Members     []UserSummary `json:"members"`
	Tasks       []Task        `json:"tasks"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// ProjectUpdate carries a partial update for a project record.
type ProjectUpdate struct {
	ID      string
	ETag    string
	Status  *string
	Members *[]string
	Tasks   *[]string
}
