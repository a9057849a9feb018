package bootstrap

import (
	"context"
	"sync"
	"time"

	redisclient "shrinkbot/internal/adapters/redis"
	"shrinkbot/internal/api"
	"shrinkbot/internal/workers"
	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
	"shrinkbot/pkg/telegram"
)

// Lifecycle manages graceful startup and shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 150 * time.Second, // a slow compression round plus upload
	}
}

// Shutdown performs coordinated cleanup of all components in the correct order:
// 1. No new webhook requests accepted
// 2. Queued updates drained, in-flight compressions finish
// 3. Workers stop
// 4. Logs and errors flushed
// 5. Redis last (sessions are saved while draining)
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	httpServer *api.Server,
	dispatcher *telegram.Dispatcher,
	workerScheduler *workers.Scheduler,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop HTTP Server (5s timeout)
	// ========================================
	log.Info("[1/7] Stopping HTTP server...")
	if httpServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := httpServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		} else {
			log.Info("✓ HTTP server stopped")
		}
		httpCancel()
	}

	// ========================================
	// Step 2: Drain update dispatcher
	// ========================================
	log.Info("[2/7] Draining update dispatcher...")
	if dispatcher != nil {
		if err := dispatcher.Stop(shutdownCtx); err != nil {
			log.Errorw("Dispatcher did not drain in time", "error", err)
		} else {
			log.Info("✓ Dispatcher drained")
		}
	}

	// ========================================
	// Step 3: Stop Background Workers
	// ========================================
	log.Info("[3/7] Stopping background workers...")
	if workerScheduler != nil {
		if err := workerScheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		} else {
			log.Info("✓ Workers stopped")
		}
	}

	// ========================================
	// Step 4: Wait for bot and server goroutines
	// ========================================
	log.Info("[4/7] Waiting for goroutines...")
	l.waitForGoroutines(wg, 5*time.Second, log)

	// ========================================
	// Step 5: Flush Error Tracker
	// ========================================
	log.Info("[5/7] Flushing error tracker...")
	l.flushErrorTracker(shutdownCtx, errorTracker, log)

	// ========================================
	// Step 6: Close Redis
	// ========================================
	log.Info("[6/7] Closing session store...")
	l.closeRedis(redisClient, log)

	// ========================================
	// Step 7: Sync Logs
	// ========================================
	log.Info("[7/7] Syncing logs...")
	log.Info("✅ Graceful shutdown complete")
	_ = logger.Sync()
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}

func (l *Lifecycle) closeRedis(redisClient *redisclient.Client, log *logger.Logger) {
	if redisClient == nil {
		log.Info("✓ In-memory store, nothing to close")
		return
	}

	if err := redisClient.Close(); err != nil {
		log.Errorw("Redis close failed", "error", err)
	} else {
		log.Info("✓ Redis connection closed")
	}
}
