package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"trullo-api/domain"
)

// createProject persists a new board owned by the principal. Member
// linkage failures do not fail the request; they ride along in the
// response data so the partial outcome stays visible.
func createProject(projects *domain.ProjectService) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c.Request().Body)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		var req struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			Members     []string `json:"members"`
		}
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if req.Title == "" {
			return respondError(c, http.StatusBadRequest, "title is required")
		}

		res, err := projects.Create(c.Request().Context(), principalFrom(c).ID, domain.CreateProjectInput{
			Title:       req.Title,
			Description: req.Description,
			Members:     req.Members,
		})
		if err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "project created successfully", res)
	}
}

func updateMemberForProject(projects *domain.ProjectService) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c.Request().Body)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		var req struct {
			Member string `json:"member"`
			Action string `json:"action"`
		}
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if req.Member == "" {
			return respondError(c, http.StatusBadRequest, "member is required")
		}

		res, err := projects.UpdateMember(c.Request().Context(), c.Param("id"), req.Member, req.Action)
		if err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "members updated successfully", res)
	}
}

func updateProjectStatus(projects *domain.ProjectService) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c.Request().Body)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		var req struct {
			Status string `json:"status"`
		}
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}

		project, err := projects.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status)
		if err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "project status updated successfully", project)
	}
}

// deleteProject removes a board. Owner-only; per-member reference cleanup
// is best-effort and reported, never rolled back.
func deleteProject(projects *domain.ProjectService) echo.HandlerFunc {
	return func(c echo.Context) error {
		failures, err := projects.Delete(c.Request().Context(), principalFrom(c).ID, c.Param("id"))
		if err != nil {
			return respondDomainError(c, err)
		}
		var data any
		if len(failures) > 0 {
			data = map[string]any{"syncFailures": failures}
		}
		return respond(c, http.StatusOK, "project deleted successfully", data)
	}
}

func fetchProject(projects *domain.ProjectService) echo.HandlerFunc {
	return func(c echo.Context) error {
		view, err := projects.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "project fetched successfully", view)
	}
}
