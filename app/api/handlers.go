package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aitechdaily/digest/app/database"
	"github.com/aitechdaily/digest/app/pipeline"
	"github.com/gin-gonic/gin"
)

const streamKeepAlive = 15 * time.Second

func NewHandler(runner PipelineTrigger, articles database.ArticleRepository, version string) *Handler {
	return &Handler{
		runner:   runner,
		articles: articles,
		version:  version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if progress, ok := h.runner.Tracker().Progress(); ok {
		health["pipeline"] = progress.Status
	} else {
		health["pipeline"] = "idle"
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.articles.GetStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"articles": map[string]interface{}{
			"total":         stats.Total,
			"processed":     stats.Processed,
			"last_24_hours": stats.Last24Hours,
		},
	})
}

// GetProgress returns the latest pipeline snapshot, or idle when no run has
// happened yet.
func (h *Handler) GetProgress(c *gin.Context) {
	progress, ok := h.runner.Tracker().Progress()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "idle"})
		return
	}
	c.JSON(http.StatusOK, progress)
}

// StreamProgress pushes pipeline snapshots over SSE until the client
// disconnects. A late subscriber immediately gets the current snapshot.
func (h *Handler) StreamProgress(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// Buffered so a slow client drops intermediate snapshots instead of
	// blocking the pipeline's emit path.
	updates := make(chan pipeline.Progress, 16)
	unsubscribe := h.runner.Tracker().Subscribe(func(p pipeline.Progress) {
		select {
		case updates <- p:
		default:
		}
	})
	defer unsubscribe()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case progress := <-updates:
			c.SSEvent("progress", progress)
			return true
		case <-time.After(streamKeepAlive):
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

// RunPipeline starts a full run in the background and returns immediately;
// progress is observable via the status and stream endpoints.
func (h *Handler) RunPipeline(c *gin.Context) {
	if h.runner.Tracker().Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "Pipeline already running"})
		return
	}

	go func() {
		if _, err := h.runner.RunFull(context.Background()); err != nil &&
			!errors.Is(err, pipeline.ErrRunInProgress) {
			slog.Error("Pipeline run failed", "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"started": true, "mode": "full"})
}

// RunCollection executes a collect-only run synchronously.
func (h *Handler) RunCollection(c *gin.Context) {
	result, err := h.runner.RunCollection(c.Request.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "Pipeline already running"})
			return
		}
		slog.Error("Collection run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RunWeekly executes the weekly digest run synchronously.
func (h *Handler) RunWeekly(c *gin.Context) {
	result, err := h.runner.RunWeekly(c.Request.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "Pipeline already running"})
			return
		}
		slog.Error("Weekly run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetArticles returns stored articles within an hour window, best first.
func (h *Handler) GetArticles(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hours parameter"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	articles, err := h.articles.GetRecent(hours, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"articles": articles,
		"total":    len(articles),
	})
}
