package telegram

import (
	"time"

	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
)

// Chain wraps h so that the first middleware is the outermost
func Chain(h CommandHandler, middleware ...CommandMiddleware) CommandHandler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// LoggingMiddleware logs each command with its duration; failures at warn level
func LoggingMiddleware(log *logger.Logger) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			start := time.Now()
			err := next(ctx)

			fields := []interface{}{
				"command", ctx.Command,
				"telegram_id", ctx.TelegramID,
				"chat_id", ctx.ChatID,
				"duration", time.Since(start),
			}
			if err != nil {
				log.Warnw("Command failed", append(fields, "error", err)...)
				return err
			}

			log.Debugw("Command handled", fields...)
			return nil
		}
	}
}

// RecoveryMiddleware converts a panic in a command handler into ErrInternal
func RecoveryMiddleware(log *logger.Logger) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				err = errors.Wrapf(errors.ErrInternal, "/%s handler panicked: %v", ctx.Command, r)
				log.Errorw("Recovered command panic",
					"command", ctx.Command,
					"telegram_id", ctx.TelegramID,
					"error", err,
				)
			}()

			return next(ctx)
		}
	}
}

// MetricsMiddleware reports every command outcome to record
func MetricsMiddleware(record func(command string, err error, duration time.Duration)) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			start := time.Now()
			err := next(ctx)
			record(ctx.Command, err, time.Since(start))
			return err
		}
	}
}
