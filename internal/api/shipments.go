package api

import (
	"net/http"
	"strings"

	"reselldash/internal/model"

	"github.com/gin-gonic/gin"
)

// handleListShipments 返回发货列表。
//
// GET /shipments?status=Shipped&limit=50
func (s *Server) handleListShipments(c *gin.Context) {
	shipments, err := s.shipments.List(c.Request.Context(), c.Query("status"), parseQueryInt(c, "limit", 0))
	if err != nil {
		s.writeStoreError(c, "list shipments", err)
		return
	}
	if shipments == nil {
		shipments = []model.Shipment{}
	}
	c.JSON(http.StatusOK, shipments)
}

func (s *Server) handleCreateShipment(c *gin.Context) {
	var sh model.Shipment
	if err := c.ShouldBindJSON(&sh); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(sh.ItemName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_name is required"})
		return
	}

	created, err := s.shipments.Create(c.Request.Context(), &sh)
	if err != nil {
		s.writeStoreError(c, "create shipment", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateShipment(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !sanitizePatch(patch) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updates"})
		return
	}

	updated, err := s.shipments.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.writeStoreError(c, "update shipment", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
