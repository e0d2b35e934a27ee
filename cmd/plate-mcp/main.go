package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/api"
	"github.com/ironsheep/plate-tools-mcp/internal/config"
	"github.com/ironsheep/plate-tools-mcp/internal/detection"
	"github.com/ironsheep/plate-tools-mcp/internal/logging"
	"github.com/ironsheep/plate-tools-mcp/internal/ocr"
	"github.com/ironsheep/plate-tools-mcp/internal/pipeline"
	"github.com/ironsheep/plate-tools-mcp/internal/queue"
	"github.com/ironsheep/plate-tools-mcp/internal/server"
	"github.com/ironsheep/plate-tools-mcp/internal/storage"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// recogniser is what both OCR backends provide.
type recogniser interface {
	pipeline.Recogniser
	server.InfoProvider
}

func main() {
	command := ""
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "--version", "-v", "version":
		fmt.Printf("plate-tools-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		printHelp()
		return
	}

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "plate-tools-mcp: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout is for the MCP protocol.
	logger := logging.NewLogger("plate-mcp", logging.ParseLevel(cfg.LogLevel))
	logger.Debug("starting", "version", Version, "built", BuildTime, "commit", GitCommit)

	switch command {
	case "", "serve":
		err = runServer(cfg, logger)
	case "http":
		err = runHTTP(cfg, logger)
	case "worker":
		err = runWorker(cfg, logger)
	case "enqueue":
		err = runEnqueue(cfg, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		printHelp()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("plate-tools-mcp - licence plate reading over MCP")
	fmt.Println()
	fmt.Println("Usage: plate-tools-mcp [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve (default)       Run the MCP server on stdin/stdout")
	fmt.Println("  http                  Serve the REST API on PLATE_HTTP_ADDR")
	fmt.Println("  worker                Consume jobs from the Redis queue")
	fmt.Println("  enqueue <image>...    Queue one job reading the given image files")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from ./.env):")
	fmt.Println("  PLATE_MCP_LOG_LEVEL=debug       Enable debug logging")
	fmt.Println("  PLATE_OCR_BACKEND               tesseract (default) or rekognition")
	fmt.Println("  PLATE_OCR_LANGUAGE, PLATE_OCR_LEVEL, TESSDATA_PREFIX")
	fmt.Println("  AWS_REGION, AWS_CREDENTIALS_PATH")
	fmt.Println("  PLATE_DETECT_MIN_CONFIDENCE, PLATE_DETECT_EDGE_THRESHOLD, PLATE_DETECT_MAX_PLATES")
	fmt.Println("  PLATE_MERGE_DELIMITER, PLATE_SORT_LEFT_TO_RIGHT, PLATE_MIN_HEIGHT_RATIO")
	fmt.Println("  PLATE_CONCURRENCY, PLATE_PROCESSING_TIMEOUT_MS")
	fmt.Println("  REDIS_URL, PLATE_QUEUE_NAME, DATABASE_URL   (worker, enqueue, http)")
	fmt.Println("  PLATE_HTTP_ADDR                 Listen address for http (default :8080)")
}

func newRecogniser(cfg *config.Config) (recogniser, error) {
	level := ocr.ParseLevel(cfg.OCRLevel)
	switch cfg.OCRBackend {
	case config.BackendRekognition:
		return ocr.NewRekognitionRecogniser(ocr.RekognitionOptions{
			Region:          cfg.AWSRegion,
			Level:           level,
			CredentialsPath: cfg.AWSCredentialsPath,
		})
	default:
		return ocr.NewTesseractRecogniser(ocr.TesseractOptions{
			Language:       cfg.OCRLanguage,
			Level:          level,
			TessdataPrefix: cfg.TessdataPrefix,
		})
	}
}

func consolidatorOptions(cfg *config.Config) anpr.Options {
	return anpr.Options{
		Delimiter:       cfg.MergeDelimiter,
		SortLeftToRight: cfg.SortLeftToRight,
		MinHeightRatio:  cfg.MinHeightRatio,
	}
}

func newPipeline(cfg *config.Config, rec recogniser, logger *logging.Logger) (*pipeline.Pipeline, error) {
	det := detection.NewPlateDetector(detection.Options{
		EdgeThreshold: cfg.DetectEdgeThreshold,
		MinConfidence: cfg.DetectMinConfidence,
		MaxPlates:     cfg.DetectMaxPlates,
	})
	return pipeline.New(pipeline.Config{
		Detector:     det,
		Recogniser:   rec,
		Consolidator: anpr.NewConsolidator(consolidatorOptions(cfg)),
		Concurrency:  cfg.Concurrency,
		Logger:       logger.With("pipeline"),
	})
}

func runServer(cfg *config.Config, logger *logging.Logger) error {
	rec, err := newRecogniser(cfg)
	if err != nil {
		return err
	}
	if info := rec.Info(); !info.Available {
		logger.Warn("recogniser unavailable, plate_recognize will fail", "backend", info.Backend, "error", info.Error)
	}

	p, err := newPipeline(cfg, rec, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Pipeline:     p,
		OCR:          rec,
		Consolidator: consolidatorOptions(cfg),
		Timeout:      time.Duration(cfg.ProcessingTimeout) * time.Millisecond,
		Version:      Version,
		Logger:       logger.With("server"),
	})
	if err != nil {
		return err
	}
	return srv.Run()
}

func runHTTP(cfg *config.Config, logger *logging.Logger) error {
	rec, err := newRecogniser(cfg)
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, rec, logger)
	if err != nil {
		return err
	}

	apiCfg := api.Config{
		Pipeline:     p,
		Consolidator: consolidatorOptions(cfg),
		OCR:          rec,
		Timeout:      time.Duration(cfg.ProcessingTimeout) * time.Millisecond,
		Logger:       logger.With("http"),
	}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		apiCfg.Queue = queue.NewClient(rdb, cfg.QueueName)
	}
	if cfg.DatabaseURL != "" {
		db, err := storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		apiCfg.Store = db
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(apiCfg),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func runWorker(cfg *config.Config, logger *logging.Logger) error {
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}

	rec, err := newRecogniser(cfg)
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, rec, logger)
	if err != nil {
		return err
	}

	consumerCfg := &queue.RedisConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.Concurrency,
		Runner:            p,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
		Logger:            logger.With("queue"),
	}

	if cfg.DatabaseURL != "" {
		db, err := storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return err
		}
		consumerCfg.Store = db
		logger.Info("storing readings in PostgreSQL")
	}

	consumer, err := queue.NewRedisConsumer(consumerCfg)
	if err != nil {
		return err
	}
	if err := consumer.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutting down", "signal", sig.String())

	return consumer.Stop()
}

func runEnqueue(cfg *config.Config, paths []string) error {
	if err := cfg.ValidateWorker(); err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("enqueue needs at least one image path")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	job := &queue.Job{Images: make([]queue.ImageRef, len(paths))}
	for i, p := range paths {
		job.Images[i] = queue.ImageRef{Path: p}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := queue.Enqueue(ctx, rdb, cfg.QueueName, job)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}
