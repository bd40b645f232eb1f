package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/clients"
	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/common/logger"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/common/metrics"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/common/middleware"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/controllers"
	awspkg "github.com/yousufaayman/barcode-manage-cpc-sub000/pkg/aws"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/repository"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/routes"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/scanner"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/services"
)

const serviceName = "barcode-ingest"

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		logger.Initialize("development").Fatal("Failed to load configuration", zap.Error(err))
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- 1. AWS + logging ---
	var awsCfg *sdkaws.Config
	if cfg.UsesAWS() {
		c, err := awspkg.LoadAWSConfig(rootCtx, cfg.AWS)
		if err != nil {
			logger.Initialize(cfg.Env).Fatal("Failed to load AWS config", zap.Error(err))
		}
		awsCfg = &c
	}

	var cwWriter io.Writer
	var cwErr error
	if cfg.CloudWatchEnabled && awsCfg != nil {
		var w *awspkg.CloudWatchLogsClient
		if w, cwErr = awspkg.NewCloudWatchLogsClient(rootCtx, *awsCfg, cfg.CloudWatchLogGroup, serviceName); cwErr == nil {
			cwWriter = w
		}
	}
	log := logger.InitializeWithWriter(cfg.Env, cwWriter)
	defer log.Sync()
	if cwErr != nil {
		log.Warn("CloudWatch log shipping disabled", zap.Error(cwErr))
	}

	log.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("session_backend", cfg.SessionBackend),
		zap.String("print_transport", cfg.PrintTransport),
		zap.String("aws_endpoint", cfg.AWS.Endpoint),
		zap.String("aws_region", cfg.AWS.Region),
	)

	var metricsClient *awspkg.MetricsClient
	if awsCfg != nil {
		metricsClient = awspkg.NewMetricsClient(*awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}
	recorder := metrics.NewRecorder(metricsClient, serviceName)

	// --- 2. Storage ---
	var rdb *redis.Client
	if cfg.SessionBackend == BackendRedis || os.Getenv("REDIS_URL") != "" {
		rdb = connectRedis(rootCtx, cfg.RedisURL, log)
		if rdb == nil && cfg.SessionBackend == BackendRedis {
			log.Fatal("Redis is required for SESSION_BACKEND=redis")
		}
	}

	var mongoClient *mongo.Client
	var sessions repository.SessionRepository
	switch cfg.SessionBackend {
	case BackendRedis:
		sessions = repository.NewRedisSessionRepository(rdb, cfg.SessionTTL)
	case BackendDynamoDB:
		ddbClient := dynamodb.NewFromConfig(*awsCfg)
		sessions = repository.NewDynamoSessionRepository(ddbClient, cfg.DynamoTable, cfg.SessionTTL)
	case BackendMongo:
		connectCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
		mongoClient, err = mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		repo := repository.NewMongoSessionRepository(mongoClient.Database(cfg.MongoDatabase), cfg.SessionTTL)
		if err := repo.EnsureIndexes(rootCtx); err != nil {
			log.Warn("Failed to ensure session indexes", zap.Error(err))
		}
		sessions = repo
	default:
		log.Warn("Using in-memory session store; sessions are lost on restart")
		sessions = repository.NewMemorySessionRepository()
	}

	var archive repository.UploadArchive
	if cfg.S3Bucket != "" && awsCfg != nil {
		archive = repository.NewS3Archive(awspkg.NewS3Client(*awsCfg, cfg.AWS.Endpoint != ""), cfg.S3Bucket, cfg.S3Prefix)
	} else {
		disk, err := repository.NewDiskArchive(cfg.StorageDir)
		if err != nil {
			log.Fatal("Failed to prepare upload storage", zap.Error(err))
		}
		archive = disk
	}

	var jobs services.JobStore
	if rdb != nil {
		jobs = repository.NewRedisJobStore(rdb)
	}

	// --- 3. Remote store + printing ---
	store := clients.NewStoreClient(cfg.StoreURL, cfg.StoreToken, cfg.NetworkTimeout, log)

	var printers services.PrinterDirectory
	if cfg.PrintServiceURL != "" {
		printers = clients.NewPrintClient(cfg.PrintServiceURL, "", cfg.NetworkTimeout, log)
	}
	var dispatcher services.PrintDispatcher
	switch cfg.PrintTransport {
	case PrintTransportSQS:
		dispatcher = clients.NewPrintQueue(awspkg.NewSQSQueue(*awsCfg, cfg.PrintQueueURL), log)
	default:
		dispatcher = clients.NewPrintClient(cfg.PrintServiceURL, "", cfg.NetworkTimeout, log)
	}

	var events awspkg.SNSPublisher
	if cfg.EventsTopicARN != "" && awsCfg != nil {
		events = awspkg.NewSNSClient(*awsCfg)
	}

	// --- 4. Services ---
	locks := services.NewSessionLocks()
	pipeline := services.NewImportPipeline(store, services.NewRowValidator(), services.PipelineConfig{
		MaxRows:        cfg.MaxImportRows,
		CheckChunkSize: cfg.CheckChunkSize,
	}, log, recorder)
	importService := services.NewImportService(pipeline, sessions, archive, jobs, locks, 2*cfg.NetworkTimeout, log)
	coordinator := services.NewSubmissionCoordinator(store, dispatcher, printers, sessions, locks, events, services.CoordinatorConfig{
		NetworkTimeout: cfg.NetworkTimeout,
		MaxPrintCopies: cfg.MaxPrintCopies,
		EventsTopicARN: cfg.EventsTopicARN,
	}, log, recorder)
	scanService := services.NewScanService(store, cfg.NetworkTimeout, log, recorder)

	workerDone := services.StartImportWorker(rootCtx, jobs, importService, log)

	// --- 5. HTTP ---
	validator := controllers.NewRequestValidator(cfg.MaxUploadBytes)
	importController := controllers.NewImportController(importService, coordinator, validator)
	scanController := controllers.NewScanController(scanService, validator, scanner.RealClock{}, cfg.ScanQuietInterval, strings.Split(cfg.AllowedOrigins, ","))

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(metricsClient, serviceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RateLimit(middleware.NewRateLimiter(rootCtx, rate.Limit(20), 40, 10*time.Minute)))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterRoutes(r, importController, scanController)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Barcode ingest service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// --- 6. Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down barcode ingest service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.NetworkTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	stop()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("Import worker did not stop in time")
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error("Failed to close Redis", zap.Error(err))
		}
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			log.Error("Failed to disconnect MongoDB", zap.Error(err))
		}
	}

	log.Info("Barcode ingest service stopped gracefully")
}

func connectRedis(ctx context.Context, url string, log *zap.Logger) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("Failed to parse REDIS_URL, falling back to default", zap.Error(err))
		opts = &redis.Options{Addr: "redis:6379", DB: 0}
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Error("Redis is unreachable", zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	return rdb
}
