package queue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/errors"
)

type fakeRunner struct {
	plates [][]anpr.PlateDetection
	err    error
	block  bool
	got    []image.Image
}

func (r *fakeRunner) Run(ctx context.Context, images []image.Image) ([][]anpr.PlateDetection, error) {
	r.got = images
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.plates != nil {
		return r.plates, nil
	}
	return make([][]anpr.PlateDetection, len(images)), nil
}

type savedCall struct {
	jobID, source string
	plates        int
}

type fakeStore struct {
	mu    sync.Mutex
	calls []savedCall
	err   error
}

func (s *fakeStore) SaveDetections(ctx context.Context, jobID, source string, plates []anpr.PlateDetection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, savedCall{jobID, source, len(plates)})
	return nil
}

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestConsumer(t *testing.T, cfg *RedisConsumerConfig) *RedisConsumer {
	t.Helper()
	c, err := newConsumer(nil, cfg)
	if err != nil {
		t.Fatalf("newConsumer failed: %v", err)
	}
	return c
}

func TestImageRef_Load(t *testing.T) {
	data := pngBase64(t, 8, 4)

	t.Run("data", func(t *testing.T) {
		img, err := ImageRef{Data: data}.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 4 {
			t.Errorf("got bounds %v", img.Bounds())
		}
	})

	t.Run("data url", func(t *testing.T) {
		if _, err := (ImageRef{Data: "data:image/png;base64," + data}).Load(); err != nil {
			t.Errorf("Load failed: %v", err)
		}
	})

	t.Run("path", func(t *testing.T) {
		raw, _ := base64.StdEncoding.DecodeString(data)
		path := filepath.Join(t.TempDir(), "plate.png")
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		img, err := ImageRef{Path: path}.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if img.Bounds().Dx() != 8 {
			t.Errorf("got width %d, want 8", img.Bounds().Dx())
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := (ImageRef{}).Load(); err == nil {
			t.Error("expected error for empty reference")
		}
	})
}

func TestImageRef_Label(t *testing.T) {
	tests := []struct {
		ref  ImageRef
		want string
	}{
		{ImageRef{Source: "cam-1", Path: "/a.png"}, "cam-1"},
		{ImageRef{Path: "/a.png"}, "/a.png"},
		{ImageRef{Data: "xyz"}, "image-2"},
		{ImageRef{Path: "/a.png", Data: "xyz"}, "image-2"},
	}
	for _, tt := range tests {
		if got := tt.ref.Label(2); got != tt.want {
			t.Errorf("Label(%+v) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestJob_JSONFieldNames(t *testing.T) {
	job := Job{ID: "j1", Images: []ImageRef{{Path: "/x.png"}}, MaxRetries: 2}
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	json.Unmarshal(data, &m)
	for _, k := range []string{"id", "images", "createdAt", "attempts", "maxRetries"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %q in %s", k, data)
		}
	}
}

func TestNewConsumer_Defaults(t *testing.T) {
	c := newTestConsumer(t, &RedisConsumerConfig{Runner: &fakeRunner{}})
	if c.config.QueueName != DefaultQueueName {
		t.Errorf("queue: got %q", c.config.QueueName)
	}
	if c.config.Concurrency != 1 || c.config.ProcessingTimeout != 60000 {
		t.Errorf("unexpected defaults: %+v", c.config)
	}

	if _, err := newConsumer(nil, &RedisConsumerConfig{}); err == nil {
		t.Error("expected error without Runner")
	}
}

func TestKeys(t *testing.T) {
	k := keys("plate:jobs")
	tests := map[string]string{
		k.list():       "plate:jobs",
		k.data():       "plate:jobs:data",
		k.processing(): "plate:jobs:processing",
		k.completed():  "plate:jobs:completed",
		k.failed():     "plate:jobs:failed",
		k.results():    "plate:jobs:results",
		k.errors():     "plate:jobs:errors",
		k.events():     "plate:jobs:events",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestProcessJob(t *testing.T) {
	plate := anpr.PlateDetection{
		Box:        anpr.Box{XMin: 1, YMin: 1, XMax: 7, YMax: 3},
		Confidence: 0.8,
		Reading:    &anpr.Reading{Text: "AB12", Confidence: 0.9},
	}
	runner := &fakeRunner{plates: [][]anpr.PlateDetection{{plate}, nil}}
	store := &fakeStore{}
	c := newTestConsumer(t, &RedisConsumerConfig{Runner: runner, Store: store})

	data := pngBase64(t, 8, 4)
	job := &Job{ID: "job-1", Images: []ImageRef{{Source: "gate", Data: data}, {Data: data}}}

	res, err := c.processJob(context.Background(), job)
	if err != nil {
		t.Fatalf("processJob failed: %v", err)
	}
	if res.JobID != "job-1" || len(res.Images) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Images[0].Source != "gate" || res.Images[1].Source != "image-1" {
		t.Errorf("sources: %q, %q", res.Images[0].Source, res.Images[1].Source)
	}
	if len(res.Images[0].Plates) != 1 || res.Images[0].Plates[0].Reading.Text != "AB12" {
		t.Errorf("plates not carried: %+v", res.Images[0].Plates)
	}
	if len(runner.got) != 2 {
		t.Errorf("runner got %d images", len(runner.got))
	}
	want := []savedCall{{"job-1", "gate", 1}, {"job-1", "image-1", 0}}
	if fmt.Sprint(store.calls) != fmt.Sprint(want) {
		t.Errorf("store calls: got %v, want %v", store.calls, want)
	}
	if res.CompletedAt.IsZero() {
		t.Error("CompletedAt not set")
	}
}

func TestProcessJob_Errors(t *testing.T) {
	data := pngBase64(t, 4, 4)
	boom := fmt.Errorf("boom")

	tests := []struct {
		name      string
		cfg       RedisConsumerConfig
		job       Job
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{
			name:     "no images",
			cfg:      RedisConsumerConfig{Runner: &fakeRunner{}},
			job:      Job{ID: "j"},
			wantCode: errors.ErrorInvalidInput,
		},
		{
			name:     "undecodable image",
			cfg:      RedisConsumerConfig{Runner: &fakeRunner{}},
			job:      Job{ID: "j", Images: []ImageRef{{Data: "bm90IGFuIGltYWdl"}}},
			wantCode: errors.ErrorImageLoadFailed,
		},
		{
			name:      "timeout",
			cfg:       RedisConsumerConfig{Runner: &fakeRunner{block: true}, ProcessingTimeout: 20},
			job:       Job{ID: "j", Images: []ImageRef{{Data: data}}},
			wantCode:  errors.ErrorProcessingTimeout,
			retryable: true,
		},
		{
			name:     "ocr unavailable",
			cfg:      RedisConsumerConfig{Runner: &fakeRunner{err: errors.NewOCRUnavailableError("tesseract", boom)}},
			job:      Job{ID: "j", Images: []ImageRef{{Data: data}}},
			wantCode: errors.ErrorOCRUnavailable,
		},
		{
			name:      "store",
			cfg:       RedisConsumerConfig{Runner: &fakeRunner{}, Store: &fakeStore{err: errors.NewStorageError("insert", boom)}},
			job:       Job{ID: "j", Images: []ImageRef{{Data: data}}},
			wantCode:  errors.ErrorStorageFailed,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			c := newTestConsumer(t, &cfg)
			job := tt.job
			_, err := c.processJob(context.Background(), &job)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := errors.CodeOf(err); code != tt.wantCode {
				t.Errorf("code: got %q, want %q (%v)", code, tt.wantCode, err)
			}
			if retryable(err) != tt.retryable {
				t.Errorf("retryable: got %v, want %v", retryable(err), tt.retryable)
			}
		})
	}
}

func TestProcessJob_RunnerError(t *testing.T) {
	boom := fmt.Errorf("boom")
	c := newTestConsumer(t, &RedisConsumerConfig{Runner: &fakeRunner{err: boom}})
	_, err := c.processJob(context.Background(), &Job{ID: "j", Images: []ImageRef{{Data: pngBase64(t, 4, 4)}}})
	if !stderrors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
	if !retryable(err) {
		t.Error("runner errors should be retryable")
	}
}

// recordingHook captures commands instead of sending them to Redis.
type recordingHook struct {
	mu   sync.Mutex
	cmds [][]interface{}
}

func (h *recordingHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *recordingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		h.cmds = append(h.cmds, cmd.Args())
		h.mu.Unlock()
		return nil
	}
}

func (h *recordingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRequeue_LeavesProcessingSet(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	hook := &recordingHook{}
	client.AddHook(hook)

	c, err := newConsumer(client, &RedisConsumerConfig{Runner: &fakeRunner{}, QueueName: "q"})
	if err != nil {
		t.Fatalf("newConsumer failed: %v", err)
	}
	c.requeue(context.Background(), &Job{ID: "job-1", Attempts: 1, MaxRetries: 3})

	var names []string
	for _, args := range hook.cmds {
		names = append(names, fmt.Sprint(args[0], " ", args[1]))
	}
	want := []string{"hset q:data", "srem q:processing", "lpush q"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Fatalf("commands: got %v, want %v", names, want)
	}
	if hook.cmds[1][2] != "job-1" || hook.cmds[2][2] != "job-1" {
		t.Errorf("job id not passed: %v", hook.cmds)
	}
}

func TestFailurePayload(t *testing.T) {
	pe := errors.NewDetectionError(0, fmt.Errorf("boom"))
	p := failurePayload("job-9", 3, pe)
	if p["code"] != string(errors.ErrorDetectionFailed) {
		t.Errorf("code: got %v", p["code"])
	}
	if p["jobId"] != "job-9" || p["attempts"] != 3 {
		t.Errorf("unexpected payload: %v", p)
	}

	p = failurePayload("job-9", 1, fmt.Errorf("plain"))
	if p["error"] != "plain" || p["jobId"] != "job-9" {
		t.Errorf("unexpected payload: %v", p)
	}
}

func TestEnqueue_RequiresImages(t *testing.T) {
	_, err := Enqueue(context.Background(), nil, "", &Job{})
	if errors.CodeOf(err) != errors.ErrorInvalidInput {
		t.Errorf("got %v, want invalid input", err)
	}
}

func TestRedisConsumer_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	queueName := fmt.Sprintf("plate:test:%d", time.Now().UnixNano())
	store := &fakeStore{}
	c, err := NewRedisConsumer(&RedisConsumerConfig{
		RedisURL:  url,
		QueueName: queueName,
		Runner:    &fakeRunner{},
		Store:     store,
	})
	if err != nil {
		t.Fatalf("NewRedisConsumer failed: %v", err)
	}

	opt, _ := redis.ParseURL(url)
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	ctx := context.Background()
	defer rdb.Del(ctx, queueName, queueName+":data", queueName+":processing",
		queueName+":completed", queueName+":failed", queueName+":results", queueName+":errors")

	id, err := Enqueue(ctx, rdb, queueName, &Job{Images: []ImageRef{{Source: "cam", Data: pngBase64(t, 6, 6)}}})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	c.Start()
	defer c.Stop()

	client := NewClient(rdb, queueName)
	if _, err := client.Result(ctx, "missing"); err != ErrResultNotReady {
		t.Errorf("missing job: got %v, want ErrResultNotReady", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		res, err := client.Result(ctx, id)
		if err == nil {
			if res.JobID != id || len(res.Images) != 1 || res.Images[0].Source != "cam" {
				t.Errorf("unexpected result: %+v", res)
			}
			stats, err := c.GetStats(ctx)
			if err != nil {
				t.Fatalf("GetStats failed: %v", err)
			}
			if stats["completed"] != 1 {
				t.Errorf("stats: %v", stats)
			}
			return
		}
		if err != ErrResultNotReady {
			t.Fatalf("Result failed: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("job did not complete")
}

func TestNewClient_DefaultQueue(t *testing.T) {
	c := NewClient(nil, "")
	if c.queueName != DefaultQueueName {
		t.Errorf("queue: got %q", c.queueName)
	}
}

func TestJobFailedError(t *testing.T) {
	err := &JobFailedError{JobID: "j7", Payload: map[string]interface{}{"error": "DETECTION_FAILED: boom"}}
	if got := err.Error(); got != "job j7 failed: DETECTION_FAILED: boom" {
		t.Errorf("got %q", got)
	}
}
