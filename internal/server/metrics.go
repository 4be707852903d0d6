package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
)

func (s *Server) GetLatestMetrics(c *gin.Context) {
	view, err := s.snapshotSvc.GetLatest(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) GetMetricsHistory(c *gin.Context) {
	granularity, err := snapshotdomain.ParseGranularity(c.Query("granularity"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	lookback, err := parseOptionalInt(c.Query("lookback"))
	if err != nil {
		AbortWithError(c, snapshotdomain.ErrInvalidLookback)
		return
	}

	rows, err := s.snapshotSvc.GetHistory(c.Request.Context(), snapshotdomain.HistoryRequest{
		CompanyID:   strings.TrimSpace(c.Param("id")),
		Granularity: granularity,
		Lookback:    lookback,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if rows == nil {
		rows = []snapshotdomain.Row{}
	}

	c.JSON(http.StatusOK, gin.H{
		"granularity": granularity,
		"data":        rows,
	})
}

func (s *Server) TriggerCapture(c *gin.Context) {
	result, err := s.snapshotSvc.Capture(c.Request.Context(), snapshotdomain.CaptureRequest{
		CompanyID: strings.TrimSpace(c.Param("id")),
		Trigger:   snapshotdomain.TriggerManual,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
