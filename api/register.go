package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"trullo-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, auth *Auth, identity *domain.IdentityService, projects *domain.ProjectService, tasks *domain.TaskService, logger *log.Logger) {
	e.Use(RequestMetrics(logger))

	e.POST("/registerUser", registerUser(identity, auth))
	e.POST("/logInUser", logInUser(identity, auth))
	e.GET("/healthz", healthz())

	g := e.Group("", auth.Middleware())
	g.GET("/currentUser", currentUser(identity))
	g.DELETE("/deleteCurrentUser", deleteCurrentUser(identity))
	g.PUT("/updateUser/:id", updateUser(identity), AdminOnly())
	g.PUT("/resetPassword", resetPassword(identity))

	g.POST("/createProject", createProject(projects))
	g.PUT("/updateMemberForProject/:id", updateMemberForProject(projects))
	g.PUT("/updateProjectStatus/:id", updateProjectStatus(projects))
	g.DELETE("/deleteProject/:id", deleteProject(projects))
	g.GET("/fetchProject/:id", fetchProject(projects))

	g.POST("/createTask/:id", createTask(tasks))
	g.GET("/task/:id", getTask(tasks))
	g.GET("/getTasksInProject/:id", getTasksInProject(tasks))
	g.PUT("/editTask/:id", editTask(tasks))
	g.DELETE("/deleteTask/:id", deleteTask(tasks))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}
