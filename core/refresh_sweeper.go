package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	RefreshJobID      = "integrations.refresh"
	RefreshSweepJobID = "integrations.refresh.sweep"
)

// SweepExpiringConnections enqueues one refresh job per connection whose
// oauth expiry falls inside the connection refresh window. It returns how
// many jobs were enqueued; enqueue failures stop the sweep so the scheduler
// retries the remainder on the next tick.
func (s *Service) SweepExpiringConnections(ctx context.Context) (enqueued int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["enqueued"] = enqueued
		s.observeOperation(ctx, startedAt, "sweep_expiring_connections", err, fields)
	}()

	if s == nil || s.connectionStore == nil {
		err = s.mapError(fmt.Errorf("core: connection store is not configured"))
		return 0, err
	}
	if s.jobEnqueuer == nil {
		err = s.mapError(fmt.Errorf("core: job enqueuer is not configured"))
		return 0, err
	}

	before := s.clock().Add(s.connectionRefreshWindow())
	expiring, err := s.connectionStore.ListExpiring(ctx, before)
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}

	for _, connection := range expiring {
		if connection.AuthScheme != AuthSchemeOAuth2 {
			continue
		}
		message := &JobExecutionMessage{
			JobID: RefreshJobID,
			Parameters: map[string]any{
				"connection_id":   connection.ID,
				"integration_key": connection.IntegrationKey,
			},
			IdempotencyKey: RefreshJobID + ":" + connection.ID,
			DedupPolicy:    "drop",
		}
		if enqueueErr := s.jobEnqueuer.Enqueue(ctx, message); enqueueErr != nil {
			err = s.mapError(enqueueErr)
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

// ExecuteRefreshJob runs a single queued refresh. It is the handler wired
// behind RefreshJobID on the worker side.
func (s *Service) ExecuteRefreshJob(ctx context.Context, message *JobExecutionMessage) error {
	if message == nil {
		return s.mapError(fmt.Errorf("core: refresh job message is required"))
	}
	connectionID := ""
	if raw, ok := message.Parameters["connection_id"]; ok {
		connectionID = strings.TrimSpace(fmt.Sprint(raw))
	}
	if connectionID == "" {
		return s.mapError(fmt.Errorf("core: refresh job is missing connection_id"))
	}
	_, err := s.RefreshConnection(ctx, connectionID)
	return err
}

// RefreshSweeper adapts the sweep to a queue worker loop: the sweep job
// fans out per-connection refresh jobs, and refresh jobs run the exchange.
type RefreshSweeper struct {
	service *Service
}

func NewRefreshSweeper(service *Service) *RefreshSweeper {
	return &RefreshSweeper{service: service}
}

func (w *RefreshSweeper) Execute(ctx context.Context, message *JobExecutionMessage) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("core: refresh sweeper is not configured")
	}
	if message == nil {
		return fmt.Errorf("core: refresh job message is required")
	}
	switch strings.TrimSpace(message.JobID) {
	case RefreshSweepJobID:
		_, err := w.service.SweepExpiringConnections(ctx)
		return err
	case RefreshJobID:
		return w.service.ExecuteRefreshJob(ctx, message)
	default:
		return fmt.Errorf("core: unknown refresh job %q", message.JobID)
	}
}
