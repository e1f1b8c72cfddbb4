package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/spanner"
	"go.uber.org/zap"

	"github.com/light-bringer/scheduler-service/internal/app/scheduler/contracts"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/dispatcher"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/queries/get_event"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/queries/list_due_events"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/queries/list_events"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/repo"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/usecases/remove_events"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/usecases/schedule_event"
	"github.com/light-bringer/scheduler-service/internal/app/scheduler/usecases/set_event_status"
	"github.com/light-bringer/scheduler-service/internal/config"
	"github.com/light-bringer/scheduler-service/internal/pkg/backoff"
	"github.com/light-bringer/scheduler-service/internal/pkg/clock"
	"github.com/light-bringer/scheduler-service/internal/publisher/kafka"
	"github.com/light-bringer/scheduler-service/internal/publisher/memory"
	"github.com/light-bringer/scheduler-service/internal/publisher/redisstream"
)

// ServiceOptions holds all dependencies for the application.
type ServiceOptions struct {
	SpannerClient *spanner.Client
	Publisher     contracts.Publisher
	Dispatcher    *dispatcher.Dispatcher

	// Commands
	ScheduleEvent  *schedule_event.Interactor
	SetEventStatus *set_event_status.Interactor
	RemoveEvents   *remove_events.Interactor

	// Queries
	GetEvent      *get_event.Query
	ListDueEvents *list_due_events.Query
	ListEvents    *list_events.Query
}

// NewServiceOptions creates and wires up all application dependencies.
func NewServiceOptions(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ServiceOptions, error) {
	spannerClient, err := spanner.NewClient(ctx, cfg.SpannerDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spanner client: %w", err)
	}

	clk := clock.NewRealClock()

	store := repo.NewEventStore(spannerClient)
	index := repo.NewDueIndex(spannerClient)
	claims := repo.NewClaimManager(spannerClient, clk)
	readModel := repo.NewReadModel(spannerClient)

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		spannerClient.Close()
		return nil, err
	}

	disp := dispatcher.New(
		dispatcher.Config{
			WorkerID:       cfg.WorkerID,
			PollInterval:   cfg.PollInterval,
			BatchSize:      cfg.BatchSize,
			Concurrency:    cfg.Concurrency,
			LeaseDuration:  cfg.LeaseDuration,
			PublishTimeout: cfg.PublishTimeout,
			MaxAttempts:    cfg.MaxAttempts,
			Backoff: backoff.Config{
				BaseDelay: cfg.RetryBaseDelay,
				MaxDelay:  cfg.RetryMaxDelay,
			},
		},
		index,
		claims,
		publisher,
		clk,
		logger,
	)

	return &ServiceOptions{
		SpannerClient:  spannerClient,
		Publisher:      publisher,
		Dispatcher:     disp,
		ScheduleEvent:  schedule_event.NewInteractor(store, clk),
		SetEventStatus: set_event_status.NewInteractor(store, clk),
		RemoveEvents:   remove_events.NewInteractor(store),
		GetEvent:       get_event.NewQuery(store),
		ListDueEvents:  list_due_events.NewQuery(readModel, clk),
		ListEvents:     list_events.NewQuery(readModel),
	}, nil
}

// newPublisher selects the downstream bus adapter by configured driver.
func newPublisher(ctx context.Context, cfg *config.Config) (contracts.Publisher, error) {
	switch cfg.PublisherDriver {
	case config.DriverKafka:
		return kafka.New(kafka.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
	case config.DriverRedisStream:
		return redisstream.New(ctx, redisstream.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
		})
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown publisher driver %q", cfg.PublisherDriver)
	}
}

// Close closes all resources.
func (s *ServiceOptions) Close() {
	if s.Publisher != nil {
		_ = s.Publisher.Close()
	}
	if s.SpannerClient != nil {
		s.SpannerClient.Close()
	}
}
