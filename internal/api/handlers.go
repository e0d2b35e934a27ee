package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/errors"
	"github.com/ironsheep/plate-tools-mcp/internal/imaging"
	"github.com/ironsheep/plate-tools-mcp/internal/logging"
	"github.com/ironsheep/plate-tools-mcp/internal/queue"
	"github.com/ironsheep/plate-tools-mcp/internal/storage"
)

type handler struct {
	cfg Config
	log *logging.Logger
}

// statusFor maps an error code onto an HTTP status.
func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrorInvalidInput, errors.ErrorImageLoadFailed:
		return http.StatusBadRequest
	case errors.ErrorOCRUnavailable:
		return http.StatusServiceUnavailable
	case errors.ErrorProcessingTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Warn("request failed", "path", c.FullPath(), "error", err)
	}
	var pe *errors.PipelineError
	if stderrors.As(err, &pe) {
		c.JSON(status, gin.H{"error": pe.ToMap()})
		return
	}
	c.JSON(status, gin.H{"error": gin.H{"message": err.Error()}})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"message": what + " is not configured"}})
}

func (h *handler) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.cfg.OCR != nil {
		body["ocr"] = h.cfg.OCR.Info()
	}
	body["queue"] = h.cfg.Queue != nil
	body["store"] = h.cfg.Store != nil
	c.JSON(http.StatusOK, body)
}

type recognizeRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
}

func (h *handler) recognize(c *gin.Context) {
	var req recognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.NewInvalidInputError(err.Error()))
		return
	}
	img, err := imaging.DecodeBase64(req.ImageBase64)
	if err != nil {
		h.fail(c, errors.NewImageLoadError("image_base64", err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.Timeout)
	defer cancel()

	plates, err := h.cfg.Pipeline.RunImage(ctx, 0, img)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.NewProcessingTimeoutError("", h.cfg.Timeout, err)
		}
		h.fail(c, err)
		return
	}
	if plates == nil {
		plates = []anpr.PlateDetection{}
	}
	c.JSON(http.StatusOK, gin.H{
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
		"plates": plates,
	})
}

type consolidateRequest struct {
	Fragments       []anpr.Fragment `json:"fragments"`
	Delimiter       *string         `json:"delimiter"`
	SortLeftToRight *bool           `json:"sort_left_to_right"`
	MinHeightRatio  *float64        `json:"min_height_ratio"`
}

func (h *handler) consolidate(c *gin.Context) {
	var req consolidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	opts := h.cfg.Consolidator
	if req.Delimiter != nil {
		opts.Delimiter = *req.Delimiter
	}
	if req.SortLeftToRight != nil {
		opts.SortLeftToRight = *req.SortLeftToRight
	}
	if req.MinHeightRatio != nil {
		opts.MinHeightRatio = *req.MinHeightRatio
	}
	if err := opts.Validate(); err != nil {
		h.fail(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	reading, ok := anpr.NewConsolidator(opts).Consolidate(req.Fragments)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "reading": reading})
}

type enqueueRequest struct {
	Images     []queue.ImageRef `json:"images" binding:"required,min=1"`
	MaxRetries int              `json:"maxRetries"`
}

func (h *handler) enqueue(c *gin.Context) {
	if h.cfg.Queue == nil {
		unavailable(c, "queue")
		return
	}
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	id, err := h.cfg.Queue.Enqueue(c.Request.Context(), &queue.Job{Images: req.Images, MaxRetries: req.MaxRetries})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (h *handler) jobResult(c *gin.Context) {
	if h.cfg.Queue == nil {
		unavailable(c, "queue")
		return
	}
	id := c.Param("id")

	res, err := h.cfg.Queue.Result(c.Request.Context(), id)
	var failed *queue.JobFailedError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "completed", "result": res})
	case stderrors.Is(err, queue.ErrResultNotReady):
		c.JSON(http.StatusAccepted, gin.H{"status": "pending", "id": id})
	case stderrors.As(err, &failed):
		c.JSON(http.StatusOK, gin.H{"status": "failed", "error": failed.Payload})
	default:
		h.fail(c, err)
	}
}

func (h *handler) readings(c *gin.Context) {
	if h.cfg.Store == nil {
		unavailable(c, "store")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 1000 {
		h.fail(c, errors.NewInvalidInputError("limit must be an integer between 1 and 1000"))
		return
	}

	readings, err := h.cfg.Store.RecentReadings(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if readings == nil {
		readings = []storage.StoredReading{}
	}
	c.JSON(http.StatusOK, gin.H{"readings": readings})
}
