package api

import (
	"net/http"
	"strings"

	"reselldash/internal/model"

	"github.com/gin-gonic/gin"
)

// handleListItems 返回库存商品列表。
//
// GET /items?listing_status=Listed&category=Shoes&brand=Nike&limit=50
func (s *Server) handleListItems(c *gin.Context) {
	f := model.ItemFilter{
		ListingStatus: c.Query("listing_status"),
		Category:      c.Query("category"),
		Brand:         c.Query("brand"),
		Limit:         parseQueryInt(c, "limit", 0),
	}

	items, err := s.items.List(c.Request.Context(), f)
	if err != nil {
		s.writeStoreError(c, "list items", err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) handleGetItem(c *gin.Context) {
	item, err := s.items.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeStoreError(c, "get item", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// handleCreateItem 手工录入一件库存商品。
func (s *Server) handleCreateItem(c *gin.Context) {
	var item model.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(item.ItemName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_name is required"})
		return
	}
	if item.ListingStatus == "" {
		item.ListingStatus = model.ListingStatusDraft
	}

	created, err := s.items.Create(c.Request.Context(), &item)
	if err != nil {
		s.writeStoreError(c, "create item", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateItem(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !sanitizePatch(patch) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updates"})
		return
	}

	updated, err := s.items.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.writeStoreError(c, "update item", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteItem(c *gin.Context) {
	id := c.Param("id")
	if err := s.items.Delete(c.Request.Context(), id); err != nil {
		s.writeStoreError(c, "delete item", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// handleItemStats 返回库存统计 (按上架状态分组的数量与总利润)。
func (s *Server) handleItemStats(c *gin.Context) {
	stats, err := s.items.Stats(c.Request.Context())
	if err != nil {
		s.writeStoreError(c, "item stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
