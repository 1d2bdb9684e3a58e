package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"trullo-api/domain"
)

// createTask persists a task under the project named in the path. The task
// write commits first; when the back-reference push onto the project fails
// the task is kept and the failure is reported with a 500, matching the
// documented orphan-over-data-loss trade-off.
func createTask(tasks *domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c.Request().Body)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		var req struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			Status      string   `json:"status"`
			AssignedTo  []string `json:"assignedTo"`
		}
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}

		res, err := tasks.Create(c.Request().Context(), c.Param("id"), domain.CreateTaskInput{
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
			AssignedTo:  req.AssignedTo,
		})
		if err != nil {
			return respondDomainError(c, err)
		}
		if len(res.SyncFailures) > 0 {
			return c.JSON(http.StatusInternalServerError, envelope{
				Status:  http.StatusInternalServerError,
				Message: "task was created but the project referenced in the parameters could not be updated",
				Data:    res,
			})
		}
		return respond(c, http.StatusOK, "task was created successfully", res)
	}
}

func getTask(tasks *domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		task, err := tasks.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "task fetched successfully", task)
	}
}

// getTasksInProject lists a project's tasks. An empty project yields a 200
// with an empty array.
func getTasksInProject(tasks *domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := tasks.List(c.Request().Context(), c.Param("id"))
		if err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "tasks fetched successfully", list)
	}
}

// editTask applies a whitelist-restricted partial update. Unknown keys
// fail the request before any field is applied.
func editTask(tasks *domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := readBody(c.Request().Body)
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		imposters, err := checkWhitelist(body, "title", "description", "status", "assignedTo")
		if err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}
		if len(imposters) > 0 {
			return respondError(c, http.StatusBadRequest, "invalid properties: "+joinKeys(imposters))
		}

		var req struct {
			Title       *string   `json:"title"`
			Description *string   `json:"description"`
			Status      *string   `json:"status"`
			AssignedTo  *[]string `json:"assignedTo"`
		}
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			return respondError(c, http.StatusBadRequest, "invalid body")
		}

		task, err := tasks.Edit(c.Request().Context(), c.Param("id"), domain.EditTaskInput{
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
			AssignedTo:  req.AssignedTo,
		})
		if err != nil {
			return respondDomainError(c, err)
		}
		return respond(c, http.StatusOK, "task updated successfully", task)
	}
}

// deleteTask removes a task and retracts its project back-reference. A
// failed retraction is reported as an error even though the task record is
// already gone.
func deleteTask(tasks *domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		failures, err := tasks.Delete(c.Request().Context(), c.Param("id"))
		if err != nil {
			return respondDomainError(c, err)
		}
		if len(failures) > 0 {
			return c.JSON(http.StatusNotFound, envelope{
				Status:  http.StatusNotFound,
				Message: "task deleted but the owning project could not be updated: " + failures[0].ID,
				Data:    map[string]any{"syncFailures": failures},
			})
		}
		return respond(c, http.StatusOK, "task deleted successfully", nil)
	}
}
