package api

import (
	"net/http"
	"strings"

	"reselldash/internal/model"

	"github.com/gin-gonic/gin"
)

// handleListSales 返回销售记录列表。
//
// GET /sales?platform=Vinted&payout_status=Pending&limit=50
func (s *Server) handleListSales(c *gin.Context) {
	f := model.SaleFilter{
		Platform:     c.Query("platform"),
		PayoutStatus: c.Query("payout_status"),
		Limit:        parseQueryInt(c, "limit", 0),
	}

	sales, err := s.sales.List(c.Request.Context(), f)
	if err != nil {
		s.writeStoreError(c, "list sales", err)
		return
	}
	if sales == nil {
		sales = []model.Sale{}
	}
	c.JSON(http.StatusOK, sales)
}

func (s *Server) handleGetSale(c *gin.Context) {
	sale, err := s.sales.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeStoreError(c, "get sale", err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (s *Server) handleCreateSale(c *gin.Context) {
	var sale model.Sale
	if err := c.ShouldBindJSON(&sale); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(sale.ItemName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_name is required"})
		return
	}
	switch sale.PayoutStatus {
	case "":
		sale.PayoutStatus = model.PayoutPending
	case model.PayoutPending, model.PayoutPaid:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "payout_status must be Pending or Paid"})
		return
	}

	created, err := s.sales.Create(c.Request.Context(), &sale)
	if err != nil {
		s.writeStoreError(c, "create sale", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateSale(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !sanitizePatch(patch) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updates"})
		return
	}

	updated, err := s.sales.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.writeStoreError(c, "update sale", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handleSaleStats 返回销售统计 (单数、流水、总利润、平均利润)。
func (s *Server) handleSaleStats(c *gin.Context) {
	stats, err := s.sales.Stats(c.Request.Context())
	if err != nil {
		s.writeStoreError(c, "sale stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
