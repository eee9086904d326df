package api

import (
	"net/http"
	"strings"

	"reselldash/internal/pkg/taskqueue"

	"github.com/gin-gonic/gin"
)

// handleIntegrationStatus 返回集成开关、上次同步时间与建议同步间隔。
func (s *Server) handleIntegrationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.adapter.GetStatus(c.Request.Context()))
}

func (s *Server) handleIntegrationEnable(c *gin.Context) {
	if err := s.adapter.Enable(c.Request.Context()); err != nil {
		s.writeStoreError(c, "enable integration", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

func (s *Server) handleIntegrationDisable(c *gin.Context) {
	if err := s.adapter.Disable(c.Request.Context()); err != nil {
		s.writeStoreError(c, "disable integration", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

// handleIntegrationTest 做一次同步的市场连通性测试。
//
// API 进程没有浏览器, 测试走轻量 HTTP 探测。
func (s *Server) handleIntegrationTest(c *gin.Context) {
	result := s.adapter.TestConnection(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

// handleIntegrationLogs 返回最近的集成事件。
//
// GET /integration/logs?limit=50
func (s *Server) handleIntegrationLogs(c *gin.Context) {
	logs, err := s.logs.Recent(c.Request.Context(), parseQueryInt(c, "limit", 50))
	if err != nil {
		s.writeStoreError(c, "list integration logs", err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

type syncRequest struct {
	QueryID  string `json:"query_id"`
	QueryURL string `json:"query_url"`
	Limit    int    `json:"limit"`
}

// handleIntegrationSync 把一次手动同步投递到队列。
//
// 浏览器抓取在 syncer 进程执行, 这里只入队并立即返回。
// 请求可以直接给 query_url, 也可以只给已保存搜索的 query_id。
func (s *Server) handleIntegrationSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	queryURL := strings.TrimSpace(req.QueryURL)
	queryID := strings.TrimSpace(req.QueryID)
	limit := req.Limit

	if queryURL == "" && queryID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query_id or query_url is required"})
		return
	}

	if queryURL == "" {
		queries, err := s.queries.List(c.Request.Context(), false)
		if err != nil {
			s.writeStoreError(c, "load query", err)
			return
		}
		for _, q := range queries {
			if q.ID == queryID {
				queryURL = q.QueryURL
				if limit <= 0 {
					limit = q.Limit
				}
				break
			}
		}
		if queryURL == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "query not found"})
			return
		}
	}
	if limit <= 0 {
		limit = s.cfg.App.SyncItemsLimit
	}

	if err := s.producer.SubmitSync(c.Request.Context(), queryID, queryURL, limit, taskqueue.SourceManual); err != nil {
		s.writeStoreError(c, "enqueue sync", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "query_url": queryURL, "limit": limit})
}
