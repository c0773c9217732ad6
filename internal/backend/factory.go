package backend

import (
	"context"
	"fmt"
	"log/slog"

	"cuentas/internal/amqp"
	"cuentas/internal/services"
	"cuentas/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend assembles the store for the configured backend type. When an
// AMQP URL is configured the store is decorated with mutation events; a
// broker that is down at startup downgrades to storage-only with a warning.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	service := services.NewRecordService(repo, f.connectAMQP(config))

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", config.AMQPURL != "")

	return &Result{
		Store:   service,
		Audit:   repo,
		Cleanup: service.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	store := storage.NewMemoryStore(nil)
	service := services.NewRecordService(store, f.connectAMQP(config))

	f.logger.Info("Initialized memory backend")

	return &Result{
		Store:   service,
		Audit:   store,
		Cleanup: service.Close,
	}, nil
}

func (f *DefaultFactory) connectAMQP(config Config) services.EventPublisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
