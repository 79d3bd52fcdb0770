package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"intake/internal/platform/config"
	"intake/internal/platform/httpserver"
	"intake/internal/platform/logger"
	"intake/internal/platform/metrics"
	"intake/internal/platform/postgres"
	"intake/internal/platform/redis"
	"intake/internal/platform/storage"
	ratelimit "intake/internal/ratelimit/middleware"
	"intake/internal/ratelimit/store/bucket"
	"intake/internal/registration/handler"
	registrationmetrics "intake/internal/registration/metrics"
	"intake/internal/registration/models"
	"intake/internal/registration/notify"
	"intake/internal/registration/service"
	"intake/internal/registration/store/account"
	"intake/internal/registration/store/application"
	"intake/internal/registration/store/roster"
	"intake/internal/registration/store/session"
	"intake/internal/registration/token"
	httptransport "intake/internal/transport/http"
	"intake/internal/validation"
	validationmetrics "intake/internal/validation/metrics"
	"intake/internal/vision"
	id "intake/pkg/domain"
	"intake/pkg/platform/audit"
	auditmemory "intake/pkg/platform/audit/store/memory"
	auditpostgres "intake/pkg/platform/audit/store/postgres"
	"intake/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.Environment)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// infra groups the backing services selected by configuration. Nil fields
// mean the in-memory fallback is in use.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	gcs   *gcs.Client
	kafka *notify.KafkaNotifier
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.gcs != nil {
		if err := i.gcs.Close(); err != nil {
			log.Warn("close storage client", "error", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("close postgres", "error", err)
		}
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	deps := &infra{}
	defer deps.close(log)

	stores, auditStore, err := buildStores(ctx, cfg, deps, log)
	if err != nil {
		return err
	}
	if err := seedRoster(ctx, stores.Roster, cfg.RosterSeed); err != nil {
		return err
	}

	validator, err := buildValidator(ctx, cfg, log)
	if err != nil {
		return err
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(registrationmetrics.New()),
		service.WithAuditPublisher(audit.NewPublisher(auditStore)),
		service.WithSessionTTL(cfg.SessionTTL),
	}
	if deps.db != nil {
		opts = append(opts, service.WithTx(newRegistrationPostgresTx(deps.db)))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		deps.kafka, err = notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		if err := deps.kafka.EnsureTopic(ctx, 1, 1); err != nil {
			log.Warn("notification topic not ensured", "topic", cfg.Kafka.Topic, "error", err)
		}
		opts = append(opts, service.WithNotifier(deps.kafka))
	}

	tokens := token.New(cfg.TokenSigningKey)
	registration, err := service.New(stores, validator, validation.DefaultRegistry(), tokens, opts...)
	if err != nil {
		return fmt.Errorf("registration service: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Options{
		Logger:  log,
		Metrics: metrics.New(),
		Checks:  healthChecks(deps),
	}, handler.New(registration, tokens, log,
		handler.WithUploadLimit(cfg.UploadLimitBytes),
		handler.WithRateLimiter(buildRateLimiter(cfg, deps, log)),
	))

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting intake", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildStores(ctx context.Context, cfg config.Server, deps *infra, log *slog.Logger) (service.Stores, audit.Store, error) {
	var (
		stores     service.Stores
		auditStore audit.Store
	)

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores, nil, err
		}
		deps.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			return stores, nil, err
		}
		stores.Roster = roster.NewPostgres(db)
		stores.Accounts = account.NewPostgres(db)
		stores.Applications = application.NewPostgres(db)
		auditStore = auditpostgres.New(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory account stores")
		stores.Roster = roster.NewInMemory()
		stores.Accounts = account.NewInMemory()
		stores.Applications = application.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return stores, nil, err
	}
	if client != nil {
		deps.redis = client
		stores.Sessions = session.NewRedis(client.Client)
	} else {
		log.Warn("REDIS_URL not set, using in-memory session store")
		stores.Sessions = session.NewInMemory()
	}

	if cfg.StorageBucket != "" {
		var clientOpts []option.ClientOption
		if cfg.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		deps.gcs, err = gcs.NewClient(ctx, clientOpts...)
		if err != nil {
			return stores, nil, fmt.Errorf("storage client: %w", err)
		}
		blobs, err := storage.NewGCSStore(deps.gcs, cfg.StorageBucket, storage.WithLogger(log))
		if err != nil {
			return stores, nil, err
		}
		stores.Blobs = blobs
	} else {
		log.Warn("GCS_BUCKET not set, using in-memory blob store")
		stores.Blobs = storage.NewMemoryStore()
	}

	return stores, auditStore, nil
}

func buildValidator(ctx context.Context, cfg config.Server, log *slog.Logger) (*validation.Validator, error) {
	gating, err := validation.ParseGatingMode(cfg.GatingMode)
	if err != nil {
		return nil, err
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.VisionEndpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.VisionEndpoint))
	}
	google, err := vision.NewGoogleClient(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	analyzer := vision.NewGuarded(google, circuit.New("google-vision"), log)

	return validation.New(validation.DefaultRegistry(), analyzer, vision.NewPDFTextExtractor(),
		validation.WithGating(gating),
		validation.WithTimeout(cfg.VisionTimeout),
		validation.WithLogger(log),
		validation.WithMetrics(validationmetrics.New()),
		validation.WithTracer(otel.Tracer("intake/validation")),
	), nil
}

type rosterSeeder interface {
	Upsert(ctx context.Context, entry models.RosterEntry) error
}

// seedRoster upserts "nationalID=Full Name" pairs so local deployments have
// identities to register against.
func seedRoster(ctx context.Context, r service.Roster, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}
	seeder, ok := r.(rosterSeeder)
	if !ok {
		return errors.New("roster store does not support seeding")
	}
	for _, pair := range pairs {
		rawID, name, found := strings.Cut(pair, "=")
		if !found || strings.TrimSpace(name) == "" {
			return fmt.Errorf("ROSTER_SEED entry %q must be nationalID=Full Name", pair)
		}
		nationalID, err := id.ParseNationalID(rawID)
		if err != nil {
			return fmt.Errorf("ROSTER_SEED entry %q: %w", pair, err)
		}
		if err := seeder.Upsert(ctx, models.RosterEntry{NationalID: nationalID, FullName: strings.TrimSpace(name)}); err != nil {
			return fmt.Errorf("seed roster: %w", err)
		}
	}
	return nil
}

func buildRateLimiter(cfg config.Server, deps *infra, log *slog.Logger) *ratelimit.Middleware {
	var store ratelimit.BucketStore = bucket.NewInMemoryBucketStore()
	if deps.redis != nil {
		store = bucket.NewRedisBucketStore(deps.redis.Client)
	}
	return ratelimit.New(store, log, ratelimit.WithDisabled(cfg.RateLimitOff))
}

func healthChecks(deps *infra) map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if deps.db != nil {
		checks["postgres"] = deps.db.PingContext
	}
	if deps.redis != nil {
		checks["redis"] = deps.redis.Health
	}
	return checks
}
