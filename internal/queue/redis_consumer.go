package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/errors"
	"github.com/ironsheep/plate-tools-mcp/internal/logging"
)

// DefaultQueueName is the Redis list job ids are pushed to.
const DefaultQueueName = "plate:jobs"

// DefaultMaxRetries applies to jobs enqueued without MaxRetries.
const DefaultMaxRetries = 3

var errNoJobs = stderrors.New("no jobs available")

// Runner reads plates from a batch of images.
type Runner interface {
	Run(ctx context.Context, images []image.Image) ([][]anpr.PlateDetection, error)
}

// ResultStore persists the plates read from one image.
type ResultStore interface {
	SaveDetections(ctx context.Context, jobID, source string, plates []anpr.PlateDetection) error
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Runner            Runner
	Store             ResultStore // optional
	ProcessingTimeout int64       // milliseconds, default 60000
	Logger            *logging.Logger
}

// RedisConsumer pops job ids from a Redis list and runs them through the
// pipeline. Queue state lives in keys derived from the queue name:
//
//	<queue>             list of pending job ids
//	<queue>:data        hash of job id to Job JSON
//	<queue>:processing  set of running job ids
//	<queue>:completed   set of finished job ids
//	<queue>:failed      set of failed job ids
//	<queue>:results     hash of job id to JobResult JSON
//	<queue>:errors      hash of job id to error JSON
//	<queue>:events      pub/sub channel of status changes
type RedisConsumer struct {
	client *redis.Client
	config *RedisConsumerConfig
	keys   keys
	log    *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type keys string

func (k keys) list() string       { return string(k) }
func (k keys) data() string       { return string(k) + ":data" }
func (k keys) processing() string { return string(k) + ":processing" }
func (k keys) completed() string  { return string(k) + ":completed" }
func (k keys) failed() string     { return string(k) + ":failed" }
func (k keys) results() string    { return string(k) + ":results" }
func (k keys) errors() string     { return string(k) + ":errors" }
func (k keys) events() string     { return string(k) + ":events" }

// NewRedisConsumer connects to Redis and creates a consumer.
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c, err := newConsumer(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

func newConsumer(client *redis.Client, cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 60000
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisConsumer{
		client: client,
		config: cfg,
		keys:   keys(cfg.QueueName),
		log:    cfg.Logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	c.log.Info("starting queue consumer", "queue", c.config.QueueName, "concurrency", c.config.Concurrency)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
	return nil
}

// Stop waits for running jobs to finish and closes the Redis client.
func (c *RedisConsumer) Stop() error {
	c.log.Info("stopping queue consumer")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	c.log.Debug("worker started", "worker", id)

	for {
		select {
		case <-c.ctx.Done():
			c.log.Debug("worker stopping", "worker", id)
			return
		default:
		}

		if err := c.processNextJob(); err != nil {
			if stderrors.Is(err, errNoJobs) || c.ctx.Err() != nil {
				continue
			}
			c.log.Error("worker error", "worker", id, "error", err)
			select {
			case <-time.After(time.Second):
			case <-c.ctx.Done():
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.keys.list()).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}
	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}
	jobID := result[1]

	raw, err := c.client.HGet(c.ctx, c.keys.data(), jobID).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data for %s: %w", jobID, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		c.updateJobStatus(jobID, "failed", errors.NewInvalidInputError(fmt.Sprintf("invalid job JSON: %v", err)).WithJob(jobID).ToMap())
		return fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}
	if job.ID == "" {
		job.ID = jobID
	}

	c.updateJobStatus(job.ID, "processing", nil)
	c.log.Info("processing job", "job", job.ID, "images", len(job.Images), "attempt", job.Attempts+1)

	res, err := c.processJob(c.ctx, &job)
	if err != nil {
		c.log.Warn("job failed", "job", job.ID, "error", err)

		job.Attempts++
		if job.Attempts < job.MaxRetries && retryable(err) {
			c.requeue(c.ctx, &job)
			return nil
		}

		c.updateJobStatus(job.ID, "failed", failurePayload(job.ID, job.Attempts, err))
		return nil
	}

	c.updateJobStatus(job.ID, "completed", res)
	c.log.Info("job completed", "job", job.ID, "duration_ms", res.DurationMs)
	return nil
}

// processJob decodes the job's images, runs them with the processing
// timeout and saves the plates when a store is configured.
func (c *RedisConsumer) processJob(ctx context.Context, job *Job) (*JobResult, error) {
	start := time.Now()

	if len(job.Images) == 0 {
		return nil, errors.NewInvalidInputError("job has no images").WithJob(job.ID)
	}

	images := make([]image.Image, len(job.Images))
	for i, ref := range job.Images {
		img, err := ref.Load()
		if err != nil {
			return nil, errors.NewImageLoadError(ref.Label(i), err).WithJob(job.ID)
		}
		images[i] = img
	}

	timeout := time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	plates, err := c.config.Runner.Run(runCtx, images)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, errors.NewProcessingTimeoutError(job.ID, timeout, err)
		}
		return nil, err
	}

	res := &JobResult{
		JobID:  job.ID,
		Images: make([]ImageResult, len(plates)),
	}
	for i, p := range plates {
		source := job.Images[i].Label(i)
		res.Images[i] = ImageResult{Source: source, Plates: p}

		if c.config.Store != nil {
			if err := c.config.Store.SaveDetections(ctx, job.ID, source, p); err != nil {
				return nil, err
			}
		}
	}
	res.DurationMs = time.Since(start).Milliseconds()
	res.CompletedAt = time.Now()
	return res, nil
}

// requeue stores the updated attempt count and pushes the job back onto the
// list. The job leaves the processing set until a worker picks it up again.
func (c *RedisConsumer) requeue(ctx context.Context, job *Job) {
	updated, _ := json.Marshal(job)
	c.client.HSet(ctx, c.keys.data(), job.ID, updated)
	c.client.SRem(ctx, c.keys.processing(), job.ID)
	c.client.LPush(ctx, c.keys.list(), job.ID)
	c.log.Info("job re-queued", "job", job.ID, "attempt", job.Attempts, "max", job.MaxRetries)
}

// retryable reports whether another attempt could succeed. Bad input,
// undecodable images and a missing OCR engine fail the same way every time.
func retryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrorInvalidInput, errors.ErrorImageLoadFailed, errors.ErrorOCRUnavailable:
		return false
	}
	return true
}

// failurePayload is the JSON stored in the errors hash.
func failurePayload(jobID string, attempts int, err error) map[string]interface{} {
	var pe *errors.PipelineError
	var payload map[string]interface{}
	if stderrors.As(err, &pe) {
		payload = pe.WithJob(jobID).ToMap()
	} else {
		payload = map[string]interface{}{
			"message": err.Error(),
			"jobId":   jobID,
		}
	}
	payload["error"] = err.Error()
	payload["attempts"] = attempts
	return payload
}

// updateJobStatus moves a job between the status sets, stores its result
// or error and publishes an event.
func (c *RedisConsumer) updateJobStatus(jobID string, status string, result interface{}) {
	ctx := context.Background()

	switch status {
	case "processing":
		c.client.SAdd(ctx, c.keys.processing(), jobID)
	case "completed":
		c.client.SRem(ctx, c.keys.processing(), jobID)
		c.client.SAdd(ctx, c.keys.completed(), jobID)
		if result != nil {
			data, _ := json.Marshal(result)
			c.client.HSet(ctx, c.keys.results(), jobID, data)
		}
	case "failed":
		c.client.SRem(ctx, c.keys.processing(), jobID)
		c.client.SAdd(ctx, c.keys.failed(), jobID)
		if result != nil {
			data, _ := json.Marshal(result)
			c.client.HSet(ctx, c.keys.errors(), jobID, data)
		}
	}

	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	data, _ := json.Marshal(event)
	c.client.Publish(ctx, c.keys.events(), data)
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	waiting, err := c.client.LLen(ctx, c.keys.list()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue length: %w", err)
	}
	processing, _ := c.client.SCard(ctx, c.keys.processing()).Result()
	completed, _ := c.client.SCard(ctx, c.keys.completed()).Result()
	failed, _ := c.client.SCard(ctx, c.keys.failed()).Result()

	return map[string]int64{
		"waiting":    waiting,
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}

// Enqueue stores job under a generated id when it has none and pushes the
// id onto the queue.
func Enqueue(ctx context.Context, rdb redis.Cmdable, queueName string, job *Job) (string, error) {
	if len(job.Images) == 0 {
		return "", errors.NewInvalidInputError("job has no images")
	}
	if queueName == "" {
		queueName = DefaultQueueName
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = DefaultMaxRetries
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	k := keys(queueName)
	if _, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k.data(), job.ID, data)
		pipe.LPush(ctx, k.list(), job.ID)
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// ErrResultNotReady is returned by Client.Result while a job has no result.
var ErrResultNotReady = stderrors.New("job result not ready")

// Result fetches a completed job's result. It returns redis.Nil when the
// job has not completed.
func Result(ctx context.Context, rdb redis.Cmdable, queueName, jobID string) (*JobResult, error) {
	raw, err := rdb.HGet(ctx, keys(queueName).results(), jobID).Result()
	if err != nil {
		return nil, err
	}
	var res JobResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &res, nil
}

// Client is the producer side of a queue.
type Client struct {
	rdb       redis.Cmdable
	queueName string
}

// NewClient creates a producer for queueName on rdb.
func NewClient(rdb redis.Cmdable, queueName string) *Client {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Client{rdb: rdb, queueName: queueName}
}

// Enqueue queues job and returns its id.
func (c *Client) Enqueue(ctx context.Context, job *Job) (string, error) {
	return Enqueue(ctx, c.rdb, c.queueName, job)
}

// Result returns the job's result, ErrResultNotReady while it has none,
// or the job's error payload as an error once it has failed.
func (c *Client) Result(ctx context.Context, jobID string) (*JobResult, error) {
	res, err := Result(ctx, c.rdb, c.queueName, jobID)
	if err != redis.Nil {
		return res, err
	}
	failure, ferr := c.rdb.HGet(ctx, keys(c.queueName).errors(), jobID).Result()
	if ferr == redis.Nil {
		return nil, ErrResultNotReady
	}
	if ferr != nil {
		return nil, ferr
	}
	jf := &JobFailedError{JobID: jobID}
	if err := json.Unmarshal([]byte(failure), &jf.Payload); err != nil {
		jf.Payload = map[string]interface{}{"error": failure}
	}
	return nil, jf
}

// JobFailedError reports a job that exhausted its attempts. Payload is the
// JSON stored in the errors hash.
type JobFailedError struct {
	JobID   string
	Payload map[string]interface{}
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %v", e.JobID, e.Payload["error"])
}
