package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
)

// IdentityService owns credential verification and user lifecycle.
type IdentityService struct {
	users    UserStore
	hashCost int
}

// NewIdentityService creates an IdentityService. hashCost <= 0 selects the
// bcrypt default.
func NewIdentityService(users UserStore, hashCost int) *IdentityService {
	if hashCost <= 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &IdentityService{users: users, hashCost: hashCost}
}

// RegisterInput carries a registration request. Field-level bounds are
// checked by the transport layer before this point.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	SecretKey string
}

// Register stores a new identity with lower-cased username/email and
// one-way hashes of the password and secret key.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := strings.ToLower(in.Email)
	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "email", Message: "email is already registered"}}}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, err
	}
	secretHash, err := bcrypt.GenerateFromPassword([]byte(in.SecretKey), s.hashCost)
	if err != nil {
		return nil, err
	}

	u := User{
		ID:           uuid.NewString(),
		Username:     strings.ToLower(in.Username),
		Email:        email,
		PasswordHash: string(passwordHash),
		SecretHash:   string(secretHash),
		Role:         RoleUser,
		Projects:     []string{},
	}
	if err := s.users.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"user": u.ID, "email": u.Email}).Info("user registered")
	return &u, nil
}

// Login verifies the credential pair. It returns ErrNotFound when no
// identity matches the email and ErrInvalidCredential when the password
// comparison fails.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*User, error) {
	u, err := s.users.FindUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}
	return u, nil
}

// GetUser fetches a single identity record.
func (s *IdentityService) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// DeleteAccount removes the identity. Project memberships are deliberately
// not retracted here; stale member references are tolerated and skipped on
// read (see ProjectService.Get).
func (s *IdentityService) DeleteAccount(ctx context.Context, id string) error {
	return s.users.DeleteUser(ctx, id)
}

// ResetPassword replaces the stored password hash after the caller proves
// knowledge of the secret key and the account email.
func (s *IdentityService) ResetPassword(ctx context.Context, userID, newPassword, secretKey, email string) error {
	for {
		u, err := s.users.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return ErrNotFound
		}
		if err := bcrypt.CompareHashAndPassword([]byte(u.SecretHash), []byte(secretKey)); err != nil {
			return fmt.Errorf("secret key does not match: %w", ErrForbidden)
		}
		if !strings.EqualFold(email, u.Email) {
			return fmt.Errorf("email does not match: %w", ErrForbidden)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
		if err != nil {
			return err
		}
		hashStr := string(hash)
		err = s.users.UpdateUser(ctx, UserUpdate{ID: userID, ETag: u.ETag, PasswordHash: &hashStr})
		if err == nil {
			log.WithField("user", userID).Info("password reset")
			return nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
	}
}

// AdminUpdateInput carries the admin-only partial user update. Nil fields
// are left unchanged.
type AdminUpdateInput struct {
	Username *string
	Email    *string
	Password *string
	Role     *string
}

// AdminUpdate applies a whitelist-restricted update to any user record.
// Username, email and role are normalized to lower-case; a new password is
// re-hashed before storing.
func (s *IdentityService) AdminUpdate(ctx context.Context, id string, in AdminUpdateInput) (*User, error) {
	if in.Role != nil {
		role := strings.ToLower(*in.Role)
		if !ValidRole(role) {
			return nil, NewValidationError("invalid role %q", *in.Role)
		}
		in.Role = &role
	}

	for {
		u, err := s.users.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, ErrNotFound
		}

		upd := UserUpdate{ID: id, ETag: u.ETag, Role: in.Role}
		if in.Username != nil {
			name := strings.ToLower(*in.Username)
			upd.Username = &name
			u.Username = name
		}
		if in.Email != nil {
			email := strings.ToLower(*in.Email)
			upd.Email = &email
			u.Email = email
		}
		if in.Password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.hashCost)
			if err != nil {
				return nil, err
			}
			hashStr := string(hash)
			upd.PasswordHash = &hashStr
			u.PasswordHash = hashStr
		}
		if in.Role != nil {
			u.Role = *in.Role
		}

		err = s.users.UpdateUser(ctx, upd)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrConcurrencyConflict) {
			return nil, err
		}
	}
}
