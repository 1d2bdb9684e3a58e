package api

import (
	"io"
	"net/mail"
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"trullo-api/domain"
)

// requestBodyMaxSize bounds how much of a request body is read.
const requestBodyMaxSize = 1 << 20

// readBody drains the request body up to the size limit.
func readBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, requestBodyMaxSize))
}

// checkWhitelist decodes the body's top-level keys and returns the ones not
// on the allow list, compared case-insensitively.
// Runs before any field is applied, so a rejected body mutates nothing.
func checkWhitelist(body []byte, allowed ...string) ([]string, error) {
	var keys map[string]sonic.NoCopyRawMessage
	if err := sonic.ConfigStd.Unmarshal(body, &keys); err != nil {
		return nil, err
	}
	imposters := []string{}
	for key := range keys {
		ok := false
		for _, a := range allowed {
			if strings.EqualFold(key, a) {
				ok = true
				break
			}
		}
		if !ok {
			imposters = append(imposters, key)
		}
	}
	sort.Strings(imposters)
	return imposters, nil
}

func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	SecretKey string `json:"secretKey"`
}

func validateRegister(r registerRequest) []domain.FieldError {
	var fields []domain.FieldError
	if len(r.Username) < 2 {
		fields = append(fields, domain.FieldError{Field: "username", Message: "username must have at least 2 characters"})
	}
	if r.Email == "" || !validEmail(r.Email) {
		fields = append(fields, domain.FieldError{Field: "email", Message: "invalid email address"})
	}
	if len(r.Password) < 8 || len(r.Password) > 30 {
		fields = append(fields, domain.FieldError{Field: "password", Message: "password must have 8 to 30 characters"})
	}
	if len(r.SecretKey) < 2 || len(r.SecretKey) > 10 {
		fields = append(fields, domain.FieldError{Field: "secretKey", Message: "secret key must have 2 to 10 characters"})
	}
	return fields
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
	SecretKey   string `json:"secretKey"`
	Email       string `json:"email"`
}

func validateResetPassword(r resetPasswordRequest) []domain.FieldError {
	var fields []domain.FieldError
	if len(r.NewPassword) < 8 || len(r.NewPassword) > 30 {
		fields = append(fields, domain.FieldError{Field: "newPassword", Message: "new password must have 8 to 30 characters"})
	}
	if r.SecretKey == "" {
		fields = append(fields, domain.FieldError{Field: "secretKey", Message: "secret key cannot be empty"})
	}
	if r.Email == "" {
		fields = append(fields, domain.FieldError{Field: "email", Message: "email cannot be empty"})
	}
	return fields
}
