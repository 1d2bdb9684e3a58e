package domain

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRole reports whether s is one of the recognized user roles.
func ValidRole(s string) bool {
	return s == RoleAdmin || s == RoleUser
}

// User is an identity record. Password and secret-key hashes never leave
// the server in serialized form.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"`
	SecretHash   string   `json:"-"`
	Role         string   `json:"role"`
	Projects     []string `json:"projects"`

	// ETag is the storage concurrency token for conditional updates.
	ETag string `json:"-"`
}

// UserSummary is the member representation embedded in project views.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserUpdate carries a partial update for a user record. Nil fields are
// left unchanged. ETag guards against concurrent writers.
type UserUpdate struct {
	ID           string
	ETag         string
	Username     *string
	Email        *string
	PasswordHash *string
	Role         *string
	Projects     *[]string
}
