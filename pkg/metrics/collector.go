package metrics

import (
	"context"
	"net/url"
	"time"

	"github.com/moonsong-labs/fisherman/pkg/health"
	"github.com/moonsong-labs/fisherman/pkg/store"
)

// Collector periodically samples the event store and republishes gauges
// that aren't naturally updated inline by the indexer/fisherman loops. It
// also actively probes the forest-proof provider and, when db_url is a
// postgres:// or postgresql:// DSN, the database host — the two dependencies that otherwise only
// get marked unhealthy reactively, when a call against them fails outright.
type Collector struct {
	store      store.Store
	proofProbe *health.HTTPChecker
	proofState *health.Status
	dbProbe    *health.TCPChecker
	dbState    *health.Status
	probeCfg   health.Config
	stopCh     chan struct{}
}

// NewCollector creates a new metrics collector over the given store. If
// proofProviderURL is non-empty, the collector also probes "<url>/health" on
// each tick and republishes the result as the "proof_provider" component. If
// dbURL is a postgres:// DSN, the collector additionally probes plain TCP
// reachability of its host and republishes it as the "db" component —
// sqlite has no network surface to probe this way. Both probes debounce
// through health.Status: a component only flips unhealthy after
// probeCfg.Retries consecutive failures, so one dropped probe doesn't flap
// the readiness endpoint.
func NewCollector(st store.Store, proofProviderURL, dbURL string) *Collector {
	c := &Collector{
		store:    st,
		probeCfg: health.DefaultConfig(),
		stopCh:   make(chan struct{}),
	}
	if proofProviderURL != "" {
		c.proofProbe = health.NewHTTPChecker(proofProviderURL + "/health").WithTimeout(5 * time.Second)
		c.proofState = health.NewStatus()
	}
	if addr, ok := postgresTCPAddr(dbURL); ok {
		c.dbProbe = health.NewTCPChecker(addr).WithTimeout(3 * time.Second)
		c.dbState = health.NewStatus()
	}
	return c
}

// postgresTCPAddr extracts a host:port suitable for a raw TCP dial from a
// postgres:// or postgresql:// DSN, defaulting to port 5432 when absent.
// Any other scheme (sqlite://) reports ok=false.
func postgresTCPAddr(dsn string) (string, bool) {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", false
	}
	if u.Port() != "" {
		return u.Host, true
	}
	return u.Hostname() + ":5432", true
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	height, err := c.store.LastIndexedBlock(ctx)
	if err == nil {
		IndexerLastIndexedBlock.Set(float64(height))
	}

	for _, class := range []string{"user", "incomplete"} {
		n, err := c.store.CountPendingIntents(ctx, class)
		if err == nil {
			PendingIntents.WithLabelValues(class).Set(float64(n))
		}
	}

	if c.proofProbe != nil {
		result := c.proofProbe.Check(ctx)
		c.proofState.Update(result, c.probeCfg)
		UpdateComponent("proof_provider", c.proofState.Healthy, result.Message)
	}

	if c.dbProbe != nil {
		result := c.dbProbe.Check(ctx)
		c.dbState.Update(result, c.probeCfg)
		UpdateComponent("db", c.dbState.Healthy, result.Message)
	}
}
