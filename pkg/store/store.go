// Package store provides the fisherman's relational event store: ACID
// persistence of indexed blocks, files, buckets, provider associations, and
// deletion intents, behind a driver-agnostic Store interface.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"           // postgres driver, registered via database/sql
	_ "github.com/mattn/go-sqlite3" // sqlite driver, registered via database/sql

	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// Store is the persistence surface the Indexer and Fisherman share. The
// Indexer is the sole writer of block-progress and event-driven rows; the
// Fisherman is the sole writer of DeletionIntent status transitions.
type Store interface {
	// WithTx runs fn inside a single ACID transaction. If fn returns an
	// error the transaction is rolled back; otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx *Tx) error) error

	// LastIndexedBlock returns the height most recently committed by the
	// Indexer, or 0 if the store is empty.
	LastIndexedBlock(ctx context.Context) (uint64, error)

	// PendingIntents returns every pending deletion intent of the given
	// class, oldest first. It does not check whether the intent's target
	// association still exists.
	PendingIntents(ctx context.Context, class types.IntentClass) ([]types.DeletionIntent, error)

	// CountPendingIntents returns the number of pending intents of class,
	// used by the metrics collector to populate a gauge.
	CountPendingIntents(ctx context.Context, class string) (int, error)

	// FileAssociations returns the providers currently storing file.
	FileAssociations(ctx context.Context, file types.FileKey) ([]types.ProviderFileAssociation, error)

	// DeletionSignature returns file's stored user deletion signature, or
	// nil if none has been recorded yet.
	DeletionSignature(ctx context.Context, file types.FileKey) ([]byte, error)

	// ForestRoot returns the last-known forest root recorded for provider.
	ForestRoot(ctx context.Context, provider types.ProviderID) (types.ForestRoot, error)

	// Close releases underlying connections.
	Close() error
}

// Tx is a handle to the transaction passed into event handlers and intent
// mutators; it exposes only the operations those callers need, keeping the
// write surface narrow and auditable.
type Tx struct {
	tx     *sql.Tx
	driver string
}

func newTx(sqlTx *sql.Tx, driver string) *Tx { return &Tx{tx: sqlTx, driver: driver} }

// exec, queryRow, and query are what every handler in tx_handlers.go calls
// instead of the underlying *sql.Tx directly: every statement in this
// package is written with sqlite/mysql-style "?" placeholders, and these
// three rewrite them to postgres's "$1","$2",... form when the Tx was
// opened against a postgres store (lib/pq does not accept "?").
func (t *Tx) exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(rewritePlaceholders(query, t.driver), args...)
}

func (t *Tx) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRow(rewritePlaceholders(query, t.driver), args...)
}

func (t *Tx) query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.Query(rewritePlaceholders(query, t.driver), args...)
}

// rewritePlaceholders rewrites every "?" in query into postgres's numbered
// "$1", "$2", ... form when driver is "postgres"; every other driver's
// statements pass through unchanged. This is the only dialect difference
// between sqlite and postgres that query text itself needs to account for
// (schema-level differences are handled separately by rewriteForDriver).
func rewritePlaceholders(query, driver string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// sqlStore implements Store over database/sql, with the SQL dialect chosen
// by the scheme of the dsn passed to New ("sqlite://" or "postgres://").
type sqlStore struct {
	db     *sql.DB
	driver string
}

// New opens a Store for dsn. Recognized schemes are "sqlite" (embedded,
// default) and "postgres" (via lib/pq).
func New(ctx context.Context, dsn string) (Store, error) {
	driver, source, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, ferr.New(ferr.Fatal, "store.New", fmt.Errorf("opening %s store: %w", driver, err))
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, ferr.New(ferr.Transient, "store.New", fmt.Errorf("pinging %s store: %w", driver, err))
	}
	if driver == "sqlite3" {
		// the SQLite driver does not support concurrent writers; a single
		// connection avoids "database is locked" under our two writer
		// loops (indexer, fisherman) sharing one process.
		db.SetMaxOpenConns(1)
	}

	s := &sqlStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func parseDSN(dsn string) (driver, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	default:
		return "", "", ferr.Invalid("store.parseDSN", "unrecognized db_url scheme in %q", dsn)
	}
}

func (s *sqlStore) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ferr.New(ferr.Transient, "store.WithTx", err)
	}

	if err := fn(newTx(sqlTx, s.driver)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return ferr.New(ferr.Transient, "store.WithTx", fmt.Errorf("%w (rollback also failed: %v)", err, rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return ferr.New(ferr.Transient, "store.WithTx", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// queryRow and query are the sqlStore-level counterparts of Tx.queryRow/
// Tx.query: every method below is written with "?" placeholders and relies
// on these to rewrite them for postgres.
func (s *sqlStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, rewritePlaceholders(query, s.driver), args...)
}

func (s *sqlStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, rewritePlaceholders(query, s.driver), args...)
}

func (s *sqlStore) LastIndexedBlock(ctx context.Context) (uint64, error) {
	var height uint64
	err := s.queryRow(ctx, `SELECT last_indexed_block FROM service_state WHERE id = 1`).Scan(&height)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, ferr.New(ferr.Transient, "store.LastIndexedBlock", err)
	}
	return height, nil
}

func (s *sqlStore) CountPendingIntents(ctx context.Context, class string) (int, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM deletion_intent WHERE class = ? AND status = 'pending'`, class,
	).Scan(&n)
	if err != nil {
		return 0, ferr.New(ferr.Transient, "store.CountPendingIntents", err)
	}
	return n, nil
}

func (s *sqlStore) PendingIntents(ctx context.Context, class types.IntentClass) ([]types.DeletionIntent, error) {
	rows, err := s.query(ctx,
		`SELECT id, class, file_key, bucket_id, provider_id, provider_kind, status, created_at_block
		   FROM deletion_intent
		  WHERE class = ? AND status = 'pending'
		  ORDER BY id ASC`, string(class),
	)
	if err != nil {
		return nil, ferr.New(ferr.Transient, "store.PendingIntents", err)
	}
	defer rows.Close()

	var out []types.DeletionIntent
	for rows.Next() {
		var (
			di         types.DeletionIntent
			fileKey    []byte
			bucketID   []byte
			providerID []byte
			class      string
			kind       string
			status     string
		)
		if err := rows.Scan(&di.ID, &class, &fileKey, &bucketID, &providerID, &kind, &status, &di.CreatedAtBlock); err != nil {
			return nil, ferr.New(ferr.Transient, "store.PendingIntents", err)
		}
		di.Class = types.IntentClass(class)
		di.Kind = types.ProviderKind(kind)
		di.Status = types.IntentStatus(status)
		copy(di.File[:], fileKey)
		copy(di.Bucket[:], bucketID)
		if len(providerID) == 32 {
			var p types.ProviderID
			copy(p[:], providerID)
			di.Provider = &p
		}
		out = append(out, di)
	}
	return out, rows.Err()
}

func (s *sqlStore) FileAssociations(ctx context.Context, file types.FileKey) ([]types.ProviderFileAssociation, error) {
	var out []types.ProviderFileAssociation
	for _, table := range []struct {
		name string
		kind types.ProviderKind
	}{
		{"bsp_file", types.ProviderKindBSP},
		{"msp_file", types.ProviderKindMSP},
	} {
		rows, err := s.query(ctx,
			fmt.Sprintf(`SELECT provider_id, stored_since FROM %s WHERE file_key = ?`, table.name),
			file[:],
		)
		if err != nil {
			return nil, ferr.New(ferr.Transient, "store.FileAssociations", err)
		}
		for rows.Next() {
			var providerID []byte
			var assoc types.ProviderFileAssociation
			if err := rows.Scan(&providerID, &assoc.StoredSince); err != nil {
				rows.Close()
				return nil, ferr.New(ferr.Transient, "store.FileAssociations", err)
			}
			copy(assoc.Provider[:], providerID)
			assoc.Kind = table.kind
			assoc.File = file
			out = append(out, assoc)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, ferr.New(ferr.Transient, "store.FileAssociations", err)
		}
		rows.Close()
	}
	return out, nil
}

func (s *sqlStore) DeletionSignature(ctx context.Context, file types.FileKey) ([]byte, error) {
	var sig []byte
	err := s.queryRow(ctx, `SELECT deletion_signature FROM file WHERE file_key = ?`, file[:]).Scan(&sig)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, ferr.New(ferr.Transient, "store.DeletionSignature", err)
	}
	return sig, nil
}

func (s *sqlStore) ForestRoot(ctx context.Context, provider types.ProviderID) (types.ForestRoot, error) {
	var root []byte
	err := s.queryRow(ctx,
		`SELECT forest_root FROM bsp WHERE id = ?
		 UNION ALL
		 SELECT forest_root FROM msp WHERE id = ?`,
		provider[:], provider[:],
	).Scan(&root)
	var fr types.ForestRoot
	if err == sql.ErrNoRows {
		return fr, ferr.Invalid("store.ForestRoot", "unknown provider %x", provider)
	}
	if err != nil {
		return fr, ferr.New(ferr.Transient, "store.ForestRoot", err)
	}
	copy(fr[:], root)
	return fr, nil
}

func (s *sqlStore) Close() error { return s.db.Close() }
