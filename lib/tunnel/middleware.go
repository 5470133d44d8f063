// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/scmtunnel/lib/clock"
)

// LoggingMiddleware logs every request with its action, request ID,
// and duration. Failures log at warn, successes at debug.
func LoggingMiddleware(logger *slog.Logger, clk clock.Clock) Middleware {
	return func(action string, next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, body []byte) (any, error) {
			started := clk.Now()
			result, err := next(ctx, body)
			elapsed := clk.Now().Sub(started)
			if err != nil {
				logger.Warn("tunnel request failed",
					"action", action,
					"request_id", RequestID(ctx),
					"duration", elapsed,
					"error", err,
				)
				return nil, err
			}
			logger.Debug("tunnel request",
				"action", action,
				"request_id", RequestID(ctx),
				"duration", elapsed,
			)
			return result, nil
		}
	}
}
