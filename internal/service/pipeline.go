package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/idempotency"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// Command is one mutating request entering the pipeline.
type Command struct {
	Endpoint       string
	Actor          domain.ActorContext
	IdempotencyKey string
	PathParams     map[string]string
	Body           []byte
}

// Response is the committed or replayed outcome of a command.
type Response struct {
	Status    int
	Body      []byte
	Replay    bool
	RequestID string
	ToolName  string
}

// CommandFunc runs inside the command transaction and returns the status and response document.
type CommandFunc func(ctx context.Context, tx *CommandTx) (int, any, error)

// PipelineDependencies bundles what every command needs.
type PipelineDependencies struct {
	Store      repository.Store
	Gate       *policy.Gate
	Cache      idempotency.Cache
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Pipeline runs commands exactly once per (actor, endpoint, request id).
type Pipeline struct {
	store      repository.Store
	gate       *policy.Gate
	cache      idempotency.Cache
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      func() time.Time
	tracer     trace.Tracer
}

// NewPipeline constructs the pipeline.
func NewPipeline(deps PipelineDependencies) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{
		store:      deps.Store,
		gate:       deps.Gate,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		clock:      clock,
		tracer:     otel.Tracer(observability.TracerName),
	}
}

// Now returns the pipeline clock in UTC.
func (p *Pipeline) Now() time.Time {
	return p.clock().UTC()
}

// Execute authorizes cmd, replays a prior outcome when one exists, and otherwise runs fn
// in a transaction that also stores the outcome.
func (p *Pipeline) Execute(ctx context.Context, cmd Command, fn CommandFunc) (resp *Response, err error) {
	ctx, span := p.tracer.Start(ctx, cmd.Endpoint,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("dispatch.endpoint", cmd.Endpoint),
			attribute.String("dispatch.actor_id", cmd.Actor.ActorID),
			attribute.String("dispatch.actor_role", cmd.Actor.Role),
			attribute.String("dispatch.correlation_id", cmd.Actor.CorrelationID),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperrors.ToDomainError(err).Code)
		} else {
			span.SetAttributes(
				attribute.Bool("dispatch.replay", resp.Replay),
				attribute.Int("http.status_code", resp.Status),
			)
		}
		span.End()
	}()

	tool, err := p.gate.Authorize(cmd.Endpoint, cmd.Actor)
	if err != nil {
		return nil, err
	}
	requestID, err := idempotency.ParseKey(cmd.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("dispatch.request_id", requestID))
	hash, err := idempotency.Hash(cmd.PathParams, cmd.Body)
	if err != nil {
		switch {
		case errors.Is(err, idempotency.ErrInvalidBody):
			return nil, apperrors.NewInvalidRequest("request body must be a JSON object", nil)
		case errors.Is(err, idempotency.ErrNonCanonicalBody):
			return nil, apperrors.NewInvalidRequest("request body cannot be canonicalized", map[string]any{"reason": err.Error()})
		}
		return nil, apperrors.NewInternalError(err)
	}

	existing, err := p.lookup(ctx, cmd.Actor.ActorID, cmd.Endpoint, requestID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if existing != nil {
		return p.replay(existing, hash, tool)
	}

	var (
		committed *domain.IdempotencyRecord
		prior     *domain.IdempotencyRecord
		tx        *CommandTx
	)
	err = p.store.WithTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Idempotency.Lock(ctx, cmd.Actor.ActorID, cmd.Endpoint, requestID); err != nil {
			return err
		}
		found, err := repos.Idempotency.Get(ctx, cmd.Actor.ActorID, cmd.Endpoint, requestID)
		switch {
		case err == nil:
			prior = found
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		tx = newCommandTx(repos, cmd, requestID, tool, p.Now(), p.gate)
		status, doc, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		record := &domain.IdempotencyRecord{
			ActorID:        cmd.Actor.ActorID,
			Endpoint:       cmd.Endpoint,
			RequestID:      requestID,
			RequestHash:    hash,
			ResponseStatus: status,
			ResponseBody:   body,
			CreatedAt:      tx.Now,
		}
		if err := repos.Idempotency.Insert(ctx, record); err != nil {
			return err
		}
		committed = record
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return p.recoverDuplicate(ctx, cmd, requestID, hash, tool, err)
		}
		return nil, p.classify(cmd, err)
	}
	if prior != nil {
		return p.replay(prior, hash, tool)
	}

	p.afterCommit(ctx, *committed, tx)
	return &Response{
		Status:    committed.ResponseStatus,
		Body:      committed.ResponseBody,
		RequestID: requestID,
		ToolName:  tool,
	}, nil
}

func (p *Pipeline) lookup(ctx context.Context, actorID, endpoint, requestID string) (*domain.IdempotencyRecord, error) {
	if p.cache != nil {
		record, err := p.cache.Get(ctx, actorID, endpoint, requestID)
		if err != nil {
			p.logger.Warn("idempotency cache read failed", zap.Error(err), zap.String("endpoint", endpoint))
		} else if record != nil {
			return record, nil
		}
	}
	record, err := p.store.Repositories().Idempotency.Get(ctx, actorID, endpoint, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.populateCache(ctx, *record)
	return record, nil
}

func (p *Pipeline) replay(record *domain.IdempotencyRecord, hash, tool string) (*Response, error) {
	if record.RequestHash != hash {
		p.metrics.RecordIdempotencyConflict()
		return nil, apperrors.NewIdempotencyPayloadMismatch(record.RequestID)
	}
	p.metrics.RecordIdempotencyReplay()
	return &Response{
		Status:    record.ResponseStatus,
		Body:      record.ResponseBody,
		Replay:    true,
		RequestID: record.RequestID,
		ToolName:  tool,
	}, nil
}

// recoverDuplicate handles a racing insert of the same key by replaying the winner.
func (p *Pipeline) recoverDuplicate(ctx context.Context, cmd Command, requestID, hash, tool string, cause error) (*Response, error) {
	record, err := p.store.Repositories().Idempotency.Get(ctx, cmd.Actor.ActorID, cmd.Endpoint, requestID)
	if err != nil {
		return nil, p.classify(cmd, errors.Join(cause, err))
	}
	return p.replay(record, hash, tool)
}

func (p *Pipeline) classify(cmd Command, err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	internal := apperrors.NewInternalError(err)
	p.logger.Error("command failed",
		zap.String("endpoint", cmd.Endpoint),
		zap.String("actor_id", cmd.Actor.ActorID),
		zap.String("correlation_id", cmd.Actor.CorrelationID),
		zap.Any("reference", apperrors.ToDomainError(internal).Details["reference"]),
		zap.Error(err))
	return internal
}

func (p *Pipeline) afterCommit(ctx context.Context, record domain.IdempotencyRecord, tx *CommandTx) {
	p.populateCache(ctx, record)
	for _, t := range tx.transitions {
		from := ""
		if t.FromState != nil {
			from = string(*t.FromState)
		}
		p.metrics.RecordTransition(from, string(t.ToState))
	}
	for _, withSnapshot := range tx.dispatches {
		p.metrics.RecordDispatch(withSnapshot)
	}
	if p.dispatcher != nil {
		for _, event := range tx.events {
			if err := p.dispatcher.Publish(ctx, event); err != nil {
				p.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
			}
		}
	}
	p.logger.Info("command committed",
		zap.String("endpoint", record.Endpoint),
		zap.String("actor_id", record.ActorID),
		zap.String("request_id", record.RequestID),
		zap.String("tool_name", tx.ToolName),
		zap.String("correlation_id", tx.Command.Actor.CorrelationID),
		zap.Int("status", record.ResponseStatus),
		zap.Int("transitions", len(tx.transitions)))
}

func (p *Pipeline) populateCache(ctx context.Context, record domain.IdempotencyRecord) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Put(ctx, record); err != nil {
		p.logger.Warn("idempotency cache write failed", zap.Error(err), zap.String("endpoint", record.Endpoint))
	}
}
