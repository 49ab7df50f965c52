package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/config"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/access"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/analytics"
	httpapi "github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http/middleware"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/api/http/routes"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/auth"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/bootstrap"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/cache"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/completion"
	defhttp "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/http"
	defservice "github.com/GoSim-25-26J-441/toolsmith-backend/internal/definitions/service"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/bundle"
	deployhttp "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/http"
	deployservice "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/service"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/logging"
	runtimehttp "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/http"
	runtimeservice "github.com/GoSim-25-26J-441/toolsmith-backend/internal/runtime/service"
	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/synth"
	synthhttp "github.com/GoSim-25-26J-441/toolsmith-backend/internal/synth/http"
)

const serviceName = "toolsmith-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.App.LogLevel, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetBase(logger)
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	store, err := bootstrap.OpenStore(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer store.Close()

	var rdb *redis.Client
	if client, err := bootstrap.OpenRedis(ctx, &cfg.Redis); err != nil {
		logger.Warn("redis unavailable; running without manifest cache and quotas", zap.Error(err))
	} else {
		rdb = client
		defer rdb.Close()
	}

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		logger.Fatal("auth setup failed", zap.Error(err))
	}

	host, fsHost, err := buildHost(ctx, cfg)
	if err != nil {
		logger.Fatal("bundle host setup failed", zap.Error(err))
	}

	events := buildEvents(ctx, cfg, logger)
	defer events.Close()

	completer := completion.NewClient(completion.NewResolver(store, cfg.Completion))

	defs := defservice.New(store)
	deploy := deployservice.New(store, host, cfg.Deploy, events)
	defs.SetDeployer(deploy)

	var quota access.Quota
	grants := access.NewCachedGrants(store, cfg.Access.EntitlementCacheTTL)
	if rdb != nil {
		quota = access.NewRedisQuota(rdb)
	}
	policy := access.NewEvaluator(grants, quota, cfg.Access.RegisteredDailyLimit)

	exec := runtimeservice.NewExecutor(store, policy, completer, events, cfg.Completion.Timeout)
	exec.SetSubmitURL(deploy.SubmitURL)
	if rdb != nil {
		manifests := cache.NewManifestCache(rdb)
		deploy.SetManifestCache(manifests)
		exec.SetManifestCache(manifests)
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RuntimeRatePerS, cfg.Server.RuntimeRateBurst)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(time.Minute, stopCleanup)
	defer close(stopCleanup)

	deps := bootstrap.RouterDeps{
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		CORSOrigins: cfg.Server.CORSOrigins,
		DB:          store,
		V1: routes.V1Deps{
			Verifier:       verifier,
			Definitions:    defhttp.New(defs),
			Deploy:         deployhttp.New(deploy),
			Synth:          synthhttp.New(synth.New(completer, defs)),
			Runtime:        runtimehttp.New(exec),
			RuntimeLimiter: limiter,
		},
	}
	if rdb != nil {
		deps.Redis = httpapi.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	if fsHost != nil {
		deps.NoRoute = deployhttp.BundleServer(fsHost, cfg.Deploy.BaseDomain)
	}
	r := bootstrap.BuildRouter(deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// submissions wait on the completion call
		WriteTimeout: cfg.Completion.Timeout + 15*time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Completion.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	if cfg.Firebase.AuthMode == "header" {
		return auth.HeaderVerifier{}, nil
	}
	client, err := auth.InitializeFirebase(ctx, &cfg.Firebase)
	if err != nil {
		return nil, err
	}
	return auth.NewFirebaseVerifier(client), nil
}

// buildHost returns the configured bundle host, plus the filesystem host
// when that is the one in use so the API can serve it directly.
func buildHost(ctx context.Context, cfg *config.Config) (bundle.Host, *bundle.FSHost, error) {
	if cfg.Deploy.BundleHost == "s3" {
		client, err := bundle.NewS3Client(ctx, &cfg.Deploy)
		if err != nil {
			return nil, nil, err
		}
		return bundle.NewS3Host(client, cfg.Deploy.S3Bucket, cfg.Deploy.S3Prefix), nil, nil
	}
	h, err := bundle.NewFSHost(cfg.Deploy.BundleDir)
	if err != nil {
		return nil, nil, err
	}
	return h, h, nil
}

func buildEvents(ctx context.Context, cfg *config.Config, logger *zap.Logger) analytics.EventWriter {
	if cfg.Analytics.ClickHouseDSN == "" {
		return analytics.NewLogWriter(logger)
	}
	w, err := analytics.NewClickHouseWriter(ctx, cfg.Analytics.ClickHouseDSN, logger)
	if err != nil {
		logger.Warn("clickhouse unavailable; logging events instead", zap.Error(err))
		return analytics.NewLogWriter(logger)
	}
	return w
}
