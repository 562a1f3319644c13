/*
Package log provides structured logging for the fisherman using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("indexer")                 │          │
	│  │  - .With().Uint64("block_height", h)        │          │
	│  │  - .With().Str("file_key", k)               │          │
	│  │  - .With().Str("tick_class", "incomplete")  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "indexer",                  │          │
	│  │    "time": "2026-07-31T10:30:00Z",         │          │
	│  │    "message": "block committed"              │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF block committed component=indexer │       │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all fisherman packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - Further context (block height, file key, provider ID, tick class) is
    layered on with zerolog's own .With() chain at the call site, rather
    than a dedicated helper per field

# Usage

Initializing the Logger:

	import "github.com/moonsong-labs/fisherman/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("indexer caught up to finalized head")
	log.Debug("submitting deleteFiles extrinsic")
	log.Warn("forest root changed underneath proof build, retrying")
	log.Error("chain RPC call failed")
	log.Fatal("cannot start without an event store") // Exits process

Structured Logging:

	log.Logger.Info().
		Uint64("block_height", head).
		Int("events_applied", n).
		Msg("block committed")

Component Loggers:

	indexerLog := log.WithComponent("indexer")
	indexerLog.Info().Msg("starting indexer loop")
	indexerLog.Debug().Uint64("block_height", height).Msg("applying block")

	fishermanLog := log.WithComponent("fisherman").
		With().Str("tick_class", "user").Logger()
	fishermanLog.Info().Msg("tick started")
	fishermanLog.Error().Err(err).Msg("tick failed")

# Integration Points

This package integrates with:

  - pkg/indexer: Logs block ingestion and event dispatch
  - pkg/fisherman: Logs scheduler ticks and batch submission
  - cmd/fisherman: Logs process lifecycle

pkg/chainrpc and pkg/store do not log; they return errors to their callers.

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() (the error message only; no stack trace is recorded)
  - Include context (block height, file key, provider ID)

Don't:
  - Log private keys, mnemonics, or envelope IKM
  - Use Debug level in production
  - Log inside the per-chunk envelope loop (use sampling if needed)
  - Concatenate strings (use .Str, .Uint64)
*/
package log
