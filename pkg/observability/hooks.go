// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers can register
// hooks at startup to receive events about batch runs and job-store
// operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetRunHooks(&myRunHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Run().OnChunkStart(ctx, chunkIndex, taskCount)
//	// ... process chunk ...
//	observability.Run().OnChunkComplete(ctx, chunkIndex, succeeded, failed, duration)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Run Hooks
// =============================================================================

// RunHooks receives events from the batch orchestrator.
type RunHooks interface {
	// OnRunStart fires when a run leaves idle.
	OnRunStart(ctx context.Context, runID string, totalTasks int, workers int)

	// OnProbe fires after the size probe, with the derived chunk size.
	// fallback is true when probing failed and the conservative default was
	// used instead.
	OnProbe(ctx context.Context, perDocBytes int64, chunkSize int, fallback bool)

	// Chunk events
	OnChunkStart(ctx context.Context, chunkIndex, taskCount int)
	OnChunkComplete(ctx context.Context, chunkIndex, succeeded, failed int, duration time.Duration)

	// OnExport fires when a chunk archive is delivered.
	OnExport(ctx context.Context, name string, size int, err error)

	// OnRunComplete fires when the run reaches a terminal state.
	OnRunComplete(ctx context.Context, runID string, succeeded, failed int, cancelled bool, duration time.Duration)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from job and history store operations.
type StoreHooks interface {
	// OnStoreGet records a lookup and whether it hit.
	OnStoreGet(ctx context.Context, store string, hit bool)

	// OnStoreSet records a write.
	OnStoreSet(ctx context.Context, store string)

	// OnStoreError records a backend failure.
	OnStoreError(ctx context.Context, store string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRunHooks is a no-op implementation of RunHooks.
type NoopRunHooks struct{}

func (NoopRunHooks) OnRunStart(context.Context, string, int, int)                        {}
func (NoopRunHooks) OnProbe(context.Context, int64, int, bool)                           {}
func (NoopRunHooks) OnChunkStart(context.Context, int, int)                              {}
func (NoopRunHooks) OnChunkComplete(context.Context, int, int, int, time.Duration)       {}
func (NoopRunHooks) OnExport(context.Context, string, int, error)                        {}
func (NoopRunHooks) OnRunComplete(context.Context, string, int, int, bool, time.Duration) {
}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnStoreGet(context.Context, string, bool)    {}
func (NoopStoreHooks) OnStoreSet(context.Context, string)          {}
func (NoopStoreHooks) OnStoreError(context.Context, string, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	runHooks   RunHooks   = NoopRunHooks{}
	storeHooks StoreHooks = NoopStoreHooks{}
	hooksMu    sync.RWMutex
)

// SetRunHooks registers custom run hooks.
// This should be called once at application startup before any runs.
func SetRunHooks(h RunHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		runHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
// This should be called once at application startup before any store operations.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// Run returns the registered run hooks.
func Run() RunHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return runHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	runHooks = NoopRunHooks{}
	storeHooks = NoopStoreHooks{}
}
