package api

import (
	"net/http"
	"strings"

	"reselldash/internal/model"

	"github.com/gin-gonic/gin"
)

// handleListTasks 返回待办任务列表。
//
// GET /tasks?status=To%20Do&limit=50
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.tasks.List(c.Request.Context(), c.Query("status"), parseQueryInt(c, "limit", 0))
	if err != nil {
		s.writeStoreError(c, "list tasks", err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var t model.Task
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(t.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	if t.Status == "" {
		t.Status = model.TaskStatusTodo
	}
	if t.Priority == "" {
		t.Priority = model.TaskPriorityMedium
	}

	created, err := s.tasks.Create(c.Request.Context(), &t)
	if err != nil {
		s.writeStoreError(c, "create task", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !sanitizePatch(patch) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updates"})
		return
	}

	updated, err := s.tasks.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.writeStoreError(c, "update task", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id := c.Param("id")
	if err := s.tasks.Delete(c.Request.Context(), id); err != nil {
		s.writeStoreError(c, "delete task", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
