package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/logging"
	"github.com/ironsheep/plate-tools-mcp/internal/ocr"
	"github.com/ironsheep/plate-tools-mcp/internal/pipeline"
	"github.com/ironsheep/plate-tools-mcp/internal/queue"
	"github.com/ironsheep/plate-tools-mcp/internal/storage"
)

// JobQueue is the producer side of the Redis queue.
type JobQueue interface {
	Enqueue(ctx context.Context, job *queue.Job) (string, error)
	Result(ctx context.Context, jobID string) (*queue.JobResult, error)
}

// ReadingStore lists persisted readings.
type ReadingStore interface {
	RecentReadings(ctx context.Context, limit int) ([]storage.StoredReading, error)
}

// InfoProvider describes the recogniser backend.
type InfoProvider interface {
	Info() ocr.Info
}

// Config wires the HTTP handlers. Queue, Store and OCR are optional.
type Config struct {
	Pipeline     *pipeline.Pipeline
	Consolidator anpr.Options
	Queue        JobQueue
	Store        ReadingStore
	OCR          InfoProvider
	Timeout      time.Duration // per request, default 60s
	Logger       *logging.Logger
}

// NewRouter builds the gin engine.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	h := &handler{cfg: cfg, log: cfg.Logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(cfg.Logger))

	r.GET("/healthz", h.health)

	v1 := r.Group("/api/v1")
	{
		plates := v1.Group("/plates")
		plates.POST("/recognize", h.recognize)
		plates.POST("/consolidate", h.consolidate)

		jobs := v1.Group("/jobs")
		jobs.POST("", h.enqueue)
		jobs.GET("/:id", h.jobResult)

		v1.GET("/readings", h.readings)
	}
	return r
}

// requestLogger logs one line per request.
func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
