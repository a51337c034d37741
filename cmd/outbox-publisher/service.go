package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/config"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
)

type outboxRepository interface {
	FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Service drains staged outbox rows to the domain events topic. Rows are
// published oldest first; a row that keeps failing is retried until it
// runs out of attempts and then left for reconciliation.
type Service struct {
	repo         outboxRepository
	pub          publisher
	logg         *logger.Logger
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(cfg config.OutboxConfig, repo outboxRepository, pub publisher, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("outbox repository is required")
	}
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := cfg.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		repo:         repo,
		pub:          pub,
		logg:         logg,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

// Run polls until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.DrainOnce(ctx); err != nil {
			s.logg.Error(ctx, "outbox drain failed", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DrainOnce publishes one batch and reports how many rows were delivered.
func (s *Service) DrainOnce(ctx context.Context) (int, error) {
	events, err := s.repo.FetchUnpublished(s.batchSize, s.maxAttempts)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if err := s.publishOne(ctx, event); err != nil {
			eventCtx := s.logg.WithFields(ctx, map[string]any{
				"event_id":   event.ID.String(),
				"event_type": string(event.EventType),
				"attempts":   event.AttemptCount + 1,
			})
			s.logg.Error(eventCtx, "publishing outbox event", err)
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				s.logg.Error(eventCtx, "marking outbox event failed", markErr)
			}
			continue
		}
		if err := s.repo.MarkPublished(event.ID); err != nil {
			// The event went out but the row stayed unpublished, so the
			// next pass will resend it. Consumers dedupe on event id.
			s.logg.Error(ctx, "marking outbox event published", err)
			continue
		}
		published++
	}
	return published, nil
}

func (s *Service) publishOne(ctx context.Context, event models.OutboxEvent) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	_, err := s.pub.Publish(pubCtx, event.Payload, map[string]string{
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
	})
	return err
}
