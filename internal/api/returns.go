package api

import (
	"net/http"
	"strings"

	"reselldash/internal/model"

	"github.com/gin-gonic/gin"
)

// handleListReturns 返回退货工单列表。
//
// GET /returns?status=Open&limit=50
func (s *Server) handleListReturns(c *gin.Context) {
	cases, err := s.returns.List(c.Request.Context(), c.Query("status"), parseQueryInt(c, "limit", 0))
	if err != nil {
		s.writeStoreError(c, "list returns", err)
		return
	}
	if cases == nil {
		cases = []model.ReturnCase{}
	}
	c.JSON(http.StatusOK, cases)
}

func (s *Server) handleCreateReturn(c *gin.Context) {
	var rc model.ReturnCase
	if err := c.ShouldBindJSON(&rc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(rc.ItemName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_name is required"})
		return
	}

	created, err := s.returns.Create(c.Request.Context(), &rc)
	if err != nil {
		s.writeStoreError(c, "create return", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateReturn(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !sanitizePatch(patch) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updates"})
		return
	}

	updated, err := s.returns.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.writeStoreError(c, "update return", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
