package api

import (
	"net/http"
	"strings"

	"reselldash/internal/model"

	"github.com/gin-gonic/gin"
)

// handleListSettings 返回全部配置项。
func (s *Server) handleListSettings(c *gin.Context) {
	settings, err := s.settings.All(c.Request.Context())
	if err != nil {
		s.writeStoreError(c, "list settings", err)
		return
	}
	if settings == nil {
		settings = []model.Setting{}
	}
	c.JSON(http.StatusOK, settings)
}

type putSettingRequest struct {
	Value       string  `json:"value"`
	Description *string `json:"description"` // 可选, 省略时保留已有说明
}

// handlePutSetting 写入单个配置项 (upsert 语义, 重复写入覆盖旧值)。
//
// PUT /settings/:key
func (s *Server) handlePutSetting(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	if req.Description != nil {
		err = s.settings.SetWithDescription(c.Request.Context(), key, req.Value, *req.Description)
	} else {
		err = s.settings.Set(c.Request.Context(), key, req.Value)
	}
	if err != nil {
		s.writeStoreError(c, "put setting", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}
