package api

import (
	"net/http"
	"strings"

	"reselldash/internal/model"

	"github.com/gin-gonic/gin"
)

// handleListQueries 返回已保存搜索列表。
//
// GET /queries?enabled=true
func (s *Server) handleListQueries(c *gin.Context) {
	enabledOnly := c.Query("enabled") == "true"
	queries, err := s.queries.List(c.Request.Context(), enabledOnly)
	if err != nil {
		s.writeStoreError(c, "list queries", err)
		return
	}
	if queries == nil {
		queries = []model.SavedQuery{}
	}
	c.JSON(http.StatusOK, queries)
}

func (s *Server) handleCreateQuery(c *gin.Context) {
	var sq model.SavedQuery
	if err := c.ShouldBindJSON(&sq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(sq.QueryURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query_url is required"})
		return
	}
	if strings.TrimSpace(sq.Label) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
		return
	}

	created, err := s.queries.Create(c.Request.Context(), &sq)
	if err != nil {
		s.writeStoreError(c, "create query", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleDeleteQuery(c *gin.Context) {
	id := c.Param("id")
	if err := s.queries.Delete(c.Request.Context(), id); err != nil {
		s.writeStoreError(c, "delete query", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
