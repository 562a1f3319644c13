/*
Package health provides health check mechanisms for monitoring the liveness
of the fisherman's external dependencies: the chain RPC endpoint, the event
store, and the forest-proof provider.

This package implements two checker types, HTTP and TCP, behind a common
Checker interface. The metrics collector (see pkg/metrics) uses them to back
the /health and /ready endpoints exposed by cmd/fisherman, probing the
forest-proof provider over HTTP and, when db_url is a postgres:// or
postgresql:// DSN, the database host over TCP. Test suites use the same fakes, via pkg/testsupport's
FakeChainServer.PauseRPC and PausableStore.PauseDB, to exercise the indexer
and fisherman loops' recovery paths after a simulated outage.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Type() CheckType                                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┐
	    ▼           ▼
	┌────────┐  ┌──────┐
	│  HTTP  │  │ TCP  │
	│Checker │  │Checker│
	└────────┘  └──────┘
	     │          │
	     ▼          ▼
	  GET /      Connect
	  health       :port

# Health Check Flow

 1. Process starts a Status per dependency with NewStatus.
 2. On every collector tick (every 15 seconds): run the checker and call
    Status.Update with the result.
 3. If ConsecutiveFailures >= Retries, Status.Healthy flips to false and the
    readiness endpoint starts reporting not-ready for that dependency.
 4. A single success resets ConsecutiveFailures and flips Healthy back on.

# HTTP Health Checks

Used for the forest-proof provider, which exposes a plain HTTP endpoint:

	Check Type: HTTP
	Configuration:
	├── URL: http://proof-provider:8090/health
	├── Method: GET, POST, HEAD
	├── Headers: Custom HTTP headers
	├── Expected Status: 200-399 (configurable)
	└── Timeout: 10 seconds by default (the collector's probe sets 5 seconds)

# TCP Health Checks

Used for the Postgres backend when db_url is a postgres:// or postgresql://
DSN, since it has no HTTP surface of its own:

	Check Type: TCP
	Configuration:
	├── Address: db-host:5432
	└── Timeout: 5 seconds by default (the collector's probe sets 3 seconds)

Neither checker type talks to the chain RPC endpoint directly — chain
liveness is registered reactively by cmd/fisherman (RegisterComponent once
the dial succeeds; a failed dial aborts startup) and exposed on the same /ready endpoint alongside
these checkers.
*/
package health
