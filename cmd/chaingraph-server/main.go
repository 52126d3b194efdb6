// Command chaingraph-server runs the process-chain-graph HTTP API: the
// orchestrator (pkg/orchestrate) behind pkg/api, backed by the tiered
// search-store client (pkg/store) and the ambient logging/metrics/audit/
// publish layers.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cluso-security/chaingraph/pkg/api"
	"github.com/cluso-security/chaingraph/pkg/api/middleware"
	"github.com/cluso-security/chaingraph/pkg/audit"
	"github.com/cluso-security/chaingraph/pkg/config"
	"github.com/cluso-security/chaingraph/pkg/health"
	"github.com/cluso-security/chaingraph/pkg/logging"
	"github.com/cluso-security/chaingraph/pkg/metrics"
	"github.com/cluso-security/chaingraph/pkg/orchestrate"
	"github.com/cluso-security/chaingraph/pkg/publish"
	"github.com/cluso-security/chaingraph/pkg/pubsub"
	"github.com/cluso-security/chaingraph/pkg/server"
	"github.com/cluso-security/chaingraph/pkg/store"
	"github.com/cluso-security/chaingraph/pkg/store/httpstore"
	"github.com/cluso-security/chaingraph/pkg/store/s3store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults and env overrides apply regardless)")
	flag.Parse()

	logger := logging.NewDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("【main】config load failed", logging.Error(err))
		os.Exit(1)
	}

	reg := metrics.DefaultRegistry()

	searchStore, err := buildStore(cfg, logger, reg)
	if err != nil {
		logger.Error("【main】store construction failed", logging.Error(err))
		os.Exit(1)
	}

	orch := orchestrate.New(searchStore, logger)
	orch.Metrics = reg
	orch.MaxExtensionDepth = cfg.Server.MaxExtensionDepth
	if cfg.Server.MaxConcurrentHosts > 0 {
		orch.MaxConcurrentHosts = cfg.Server.MaxConcurrentHosts
	}

	srv := api.NewServer(orch)
	srv.Logger = logger
	srv.Metrics = reg
	srv.Health = buildHealthChecker(searchStore)
	srv.CORS = middleware.DefaultCORSConfig()

	if cfg.Audit.PostgresDSN != "" {
		pgSink, err := audit.NewPGSink(context.Background(), cfg.Audit.PostgresDSN)
		if err != nil {
			logger.Warn("【main】postgres audit sink unavailable, continuing with in-memory audit only", logging.Error(err))
		} else {
			srv.Audit.SetDownstream(pgSink)
		}
	}

	var broadcaster *publish.Broadcaster
	if cfg.Publish.Enabled {
		ps := pubsub.NewPubSub()
		broadcaster, err = publish.Start(cfg.Publish.Addr, ps, logger)
		if err != nil {
			logger.Error("【main】publish broadcaster failed to start", logging.Error(err))
			os.Exit(1)
		}
		srv.PubSub = ps
	}

	gracefulServer := server.NewGracefulServer(cfg.Server.Addr, srv.Handler())
	logger.Info("【main】chaingraph-server starting", logging.String("addr", cfg.Server.Addr))

	go func() {
		<-gracefulServer.ShutdownChannel()
		if broadcaster != nil {
			if err := broadcaster.Stop(); err != nil {
				logger.Warn("【main】broadcaster shutdown error", logging.Error(err))
			}
		}
	}()

	if err := gracefulServer.Start(); err != nil {
		logger.Error("【main】server exited with error", logging.Error(err))
		os.Exit(1)
	}
}

// buildStore constructs the tiered search-store client (A8): httpstore as
// primary, s3store layered on as a cold-tier fallback when a bucket is
// configured (spec §7: fall back only on StoreUnavailable/StoreQueryFailed).
func buildStore(cfg *config.Config, logger logging.Logger, reg *metrics.Registry) (store.Store, error) {
	primary := httpstore.New(cfg.Store.HTTPBaseURL, &http.Client{Timeout: 10 * time.Second})

	if cfg.Store.S3Bucket == "" {
		return primary, nil
	}

	ctx := context.Background()
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Store.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Store.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	cold := s3store.New(s3.NewFromConfig(awsCfg), cfg.Store.S3Bucket)

	if cfg.Store.ColdTierOnly {
		return cold, nil
	}
	tiered := store.NewTiered(primary, cold, logger)
	tiered.Metrics = reg
	return tiered, nil
}

// buildHealthChecker registers a readiness check that pings the search
// store and a liveness check on process memory, one check per dependency
// (pkg/health/health_checks.go's DatabaseCheck/MemoryCheck).
func buildHealthChecker(st store.Store) *health.HealthChecker {
	hc := health.NewHealthChecker()
	hc.RegisterReadinessCheck("search-store", health.DatabaseCheck(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := st.QueryAlarmsByHost(ctx, "__health_check__")
		return err
	}))
	hc.RegisterLivenessCheck("memory", health.MemoryCheck(func() (alloc, sys uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}))
	return hc
}
