package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Amar-Omerika/stake-limit-service/config"
	"github.com/Amar-Omerika/stake-limit-service/internal/app/dto"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/service"
	ws "github.com/Amar-Omerika/stake-limit-service/internal/handlers/websocket"
	redisrepo "github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/cache"
	"github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/queue"
	"github.com/Amar-Omerika/stake-limit-service/internal/infrastructure/storage"
)

// Processor defines the common interface for both channel and Kafka event processors
type Processor interface {
	Run(ctx context.Context) error
}

// AppContext holds all app dependencies
type AppContext struct {
	Config         *config.Config
	Log            *slog.Logger
	Evaluator      *service.StakeLimitEvaluator
	DeviceManager  *service.DeviceConfigManager
	Archive        repository.DecisionArchive
	Broadcaster    *ws.WebSocketBroadcaster
	EventProcessor Processor
	KafkaConsumer  *queue.KafkaConsumer
	KafkaProducer  *queue.KafkaProducer
	TicketCh       chan *dto.TicketDTO

	store *storage.PostgresRepository
	cache *redisrepo.RedisRepository
}

// NewApp initializes the app context with all dependencies.
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{Config: cfg, Log: log}

	// Durable stores: Postgres holds device configs and the stake ledger.
	// A failure here is fatal; the service cannot run without its source of truth.
	store, err := storage.NewPostgresRepository(storage.PostgresConfig{
		DSN:          cfg.PostgresDSN,
		MaxOpenConns: cfg.PostgresMaxOpenConns,
	})
	if err != nil {
		return nil, err
	}
	app.store = store
	log.Info("postgres store initialized")

	// Cache is best-effort: the Redis repository swallows backend faults, so
	// an unreachable Redis only costs store round trips.
	var configCache repository.ConfigCache
	redisRepo := redisrepo.NewRedisRepository(
		cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
		time.Duration(cfg.CacheTTLSeconds)*time.Second, log)
	app.cache = redisRepo
	configCache = redisRepo
	log.Info("redis cache initialized")

	// Decision archive is optional analytics; run without it if ClickHouse is down.
	clickhouseRepo, err := storage.NewClickHouseRepository(storage.ClickHouseConfig{
		Addr:     cfg.ClickhouseAddr,
		Database: cfg.ClickhouseDatabase,
		Username: cfg.ClickhouseUsername,
		Password: cfg.ClickhousePassword,
		Timeout:  cfg.ClickhouseTimeout,
	})
	if err != nil {
		log.Warn("failed to connect to ClickHouse, continuing without decision archive", slog.Any("error", err))
	} else {
		app.Archive = clickhouseRepo
		log.Info("clickhouse decision archive initialized")
	}

	app.Evaluator = service.NewStakeLimitEvaluator(store, store, configCache, log)
	app.DeviceManager = service.NewDeviceConfigManager(store, configCache, log)
	app.Broadcaster = ws.NewWebSocketBroadcaster()

	if cfg.KafkaEnabled {
		kafkaConfig := queue.KafkaConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
			BatchSize:     cfg.KafkaBatchSize,
			BatchTimeout:  cfg.KafkaBatchTimeout,
		}
		app.KafkaConsumer = queue.NewKafkaConsumer(kafkaConfig)
		app.KafkaProducer = queue.NewKafkaProducer(kafkaConfig)
		app.EventProcessor = NewKafkaEventProcessor(app.KafkaConsumer, app.Evaluator, app.Broadcaster, app.Archive, log)
		log.Info("kafka ticket ingestion initialized")
	} else {
		app.TicketCh = make(chan *dto.TicketDTO, cfg.TicketBufferSize)
		app.EventProcessor = NewEventProcessor(app.TicketCh, app.Evaluator, app.Broadcaster, app.Archive, log)
		log.Info("direct channel ticket ingestion initialized")
	}

	return app, nil
}

// Cleanup performs graceful shutdown of all components
func (a *AppContext) Cleanup(ctx context.Context) {
	if a.KafkaConsumer != nil {
		a.Log.Info("closing kafka consumer")
		if err := a.KafkaConsumer.Close(); err != nil {
			a.Log.Error("error closing kafka consumer", slog.Any("error", err))
		}
	}
	if a.KafkaProducer != nil {
		a.Log.Info("closing kafka producer")
		if err := a.KafkaProducer.Close(); err != nil {
			a.Log.Error("error closing kafka producer", slog.Any("error", err))
		}
	}
	// TicketCh is left open: producers (HTTP handlers, demo generator) may
	// still be mid-send during shutdown, and the processor exits via its
	// context rather than by channel close.
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Log.Error("error closing redis client", slog.Any("error", err))
		}
	}
	if closer, ok := a.Archive.(interface{ Close() error }); ok && closer != nil {
		if err := closer.Close(); err != nil {
			a.Log.Error("error closing decision archive", slog.Any("error", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Error("error closing postgres store", slog.Any("error", err))
		}
	}
	a.Log.Info("all resources cleaned up")
}
