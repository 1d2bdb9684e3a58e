package api

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"trullo-api/domain"
)

type loginResponse struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AccessToken string `json:"access_token"`
}

// registerUser validates the registration body, creates the identity and
// chains straight into login so the client gets a token back immediately.
func registerUser(identity *domain.IdentityService, auth *Auth) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c.Request().Body)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		var req registerRequest
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if fields := validateRegister(req); len(fields) > 0 {
			return respondFieldErrors(c, fields)
		}

		user, err := identity.Register(c.Request().Context(), domain.RegisterInput{
			Username:  req.Username,
			Email:     req.Email,
			Password:  req.Password,
			SecretKey: req.SecretKey,
		})
		if err != nil {
			return respondDomainError(c, err)
		}

		token, err := auth.Sign(Principal{ID: user.ID, Role: user.Role})
		if err != nil {
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, "unable to create token")
		}
		return respond(c, http.StatusOK, "the user has been successfully registered and logged in", loginResponse{
			Username:    user.Username,
			Email:       user.Email,
			Role:        user.Role,
			AccessToken: token,
		})
	}
}

func logInUser(identity *domain.IdentityService, auth *Auth) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c.Request().Body)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if req.Email == "" || req.Password == "" {
			return respondError(c, http.StatusBadRequest, "email and password are required")
		}

		user, err := identity.Login(c.Request().Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return respondError(c, http.StatusNotFound, "there is no user with this email")
			}
			return respondDomainError(c, err)
		}

		token, err := auth.Sign(Principal{ID: user.ID, Role: user.Role})
		if err != nil {
			c.Logger().Error(err)
			return respondError(c, http.StatusInternalServerError, "unable to create token")
		}
		return respond(c, http.StatusOK, "user logged in successfully", loginResponse{
			Username:    user.Username,
			Email:       user.Email,
			Role:        user.Role,
			AccessToken: token,
		})
	}
}

func currentUser(identity *domain.IdentityService) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := identity.GetUser(c.Request().Context(), principalFrom(c).ID)
		if err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "user retrieved successfully", user)
	}
}

func deleteCurrentUser(identity *domain.IdentityService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := identity.DeleteAccount(c.Request().Context(), principalFrom(c).ID); err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "user deleted successfully", nil)
	}
}

// updateUser is the admin-only partial user update. The body is restricted
// to {username, email, password, role}; any other key fails the request
// before anything is written.
func updateUser(identity *domain.IdentityService) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c.Request().Body)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		imposters, err := checkWhitelist(body, "username", "email", "password", "role")
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if len(imposters) > 0 {
			return respondError(c, http.StatusBadRequest, "invalid properties: "+joinKeys(imposters))
		}

		var req struct {
			Username *string `json:"username"`
			Email    *string `json:"email"`
			Password *string `json:"password"`
			Role     *string `json:"role"`
		}
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}

		user, err := identity.AdminUpdate(c.Request().Context(), c.Param("id"), domain.AdminUpdateInput{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
			Role:     req.Role,
		})
		if err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "user updated successfully", map[string]string{
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		})
	}
}

func resetPassword(identity *domain.IdentityService) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c.Request().Body)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		var req resetPasswordRequest
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if fields := validateResetPassword(req); len(fields) > 0 {
			return respondFieldErrors(c, fields)
		}

		err = identity.ResetPassword(c.Request().Context(), principalFrom(c).ID, req.NewPassword, req.SecretKey, req.Email)
		if err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "password updated successfully", nil)
	}
}
