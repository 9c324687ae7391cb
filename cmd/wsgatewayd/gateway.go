package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	internalerrors "github.com/nasnetconnect/gqlwsengine/internal/errors"
	"github.com/nasnetconnect/gqlwsengine/internal/graphql/protocol"
	"github.com/nasnetconnect/gqlwsengine/internal/graphql/subscription"
)

// clockTick is the event.type the ticker publishes on the bus; the demo's
// only subscription field ("clock") filters on it via subscription.Options.
const clockTick = "clock.tick"

// runClockTicker publishes one clockTick Event per interval until ctx is
// done. It stands in for whatever production event source (resource
// monitor, job queue, broker consumer) a real deployment would wire into
// the bus instead.
func runClockTicker(ctx context.Context, bus *inProcessBus, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			data, err := json.Marshal(map[string]any{
				"clock": map[string]any{"now": now.UTC().Format(time.RFC3339)},
			})
			if err != nil {
				logger.Warn("clock tick marshal failed", zap.Error(err))
				continue
			}
			bus.Publish(ctx, subscription.Event{
				Type:     clockTick,
				Priority: subscription.PriorityNormal,
				Result:   protocol.Result{Data: data},
			})
		}
	}
}

// newEchoExecutor builds the demo's Executor: it answers every one-shot
// request with its own query text, ignoring variables. Good enough to
// exercise the one-shot happy path end-to-end without a real schema.
// A blank query is rejected as a ValidationError, presented through
// internal/errors the same way a real resolver's field-level validation
// would be, instead of failing silently with a bare Go error.
func newEchoExecutor(logger *zap.Logger) protocol.Executor {
	return func(ctx context.Context, req protocol.GraphQLRequest) (protocol.Result, error) {
		if req.Query == "" {
			valErr := internalerrors.NewValidationError("query", req.Query, "query must not be empty")
			internalerrors.LogErrorCtx(ctx, logger, valErr)
			return protocol.Result{Errors: gqlerror.List{internalerrors.ToGraphQLError(ctx, valErr.ServiceError)}}, nil
		}

		data, err := json.Marshal(map[string]any{
			"echo": map[string]any{
				"query":         req.Query,
				"operationName": req.OperationName,
			},
		})
		if err != nil {
			intErr := internalerrors.NewInternalError("encode echo result", err).WithComponent("echoExecutor")
			internalerrors.LogErrorCtx(ctx, logger, intErr)
			return protocol.Result{Errors: gqlerror.List{internalerrors.ToGraphQLError(ctx, intErr.ServiceError)}}, nil
		}
		return protocol.Result{Data: data}, nil
	}
}

// clockSubscriber is the demo's only streaming field: every "subscription"
// request is treated as a subscription to clock ticks, regardless of its
// actual query text. A real Subscriber would dispatch on the selected field.
func clockSubscriber(mgr *subscription.Manager) protocol.Subscriber {
	return func(_ context.Context, _ protocol.GraphQLRequest) (protocol.SubscriptionResult, error) {
		source := mgr.Source(subscription.Options{EventTypes: []string{clockTick}})
		return protocol.SubscriptionResult{Stream: source}, nil
	}
}
