package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parthchandak02/ibkr-cloud-run/internal/core/trade"
	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"

	_ "modernc.org/sqlite"
)

var _ trade.Journal = (*Store)(nil)

const (
	maxStoreBytes  int64   = 256 << 20 // 256 MiB
	evictPct       float64 = 0.10      // evict oldest 10% of rows
	vacuumInterval         = 10        // incremental vacuum every N evictions
)

// Store persists one row per trade outcome in a FIFO SQLite database
// capped at ~256 MiB. Oldest 10% of rows are evicted when the budget is
// exceeded.
type Store struct {
	db           *sql.DB
	mu           sync.Mutex
	cachedSize   int64
	rowCount     int64
	evictCounter int
}

func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	var avMode int
	if err := db.QueryRow(`PRAGMA auto_vacuum`).Scan(&avMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("read auto_vacuum: %w", err)
	}
	if avMode != 2 {
		if _, err := db.Exec(`PRAGMA auto_vacuum = INCREMENTAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("set auto_vacuum: %w", err)
		}
		if _, err := db.Exec(`VACUUM`); err != nil {
			telemetry.Warnf("journal: VACUUM to enable auto_vacuum failed: %v", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}

	var size int64
	db.QueryRow(`SELECT COALESCE(page_count * page_size, 0) FROM pragma_page_count(), pragma_page_size()`).Scan(&size)
	var rowCount int64
	db.QueryRow(`SELECT COUNT(*) FROM executions`).Scan(&rowCount)

	telemetry.Plainf("journal: opened %s  size=%d  rows=%d", path, size, rowCount)
	return &Store{db: db, cachedSize: size, rowCount: rowCount}, nil
}

const schema = `CREATE TABLE IF NOT EXISTS executions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id    TEXT    NOT NULL,
	symbol      TEXT    NOT NULL,
	action      TEXT    NOT NULL,
	quantity    INTEGER NOT NULL,
	mode        TEXT    NOT NULL,
	conid       TEXT,
	exchange    TEXT,
	order_id    TEXT,
	client_ref  TEXT,
	message     TEXT    NOT NULL,
	dry_run     INTEGER NOT NULL,
	overall     TEXT    NOT NULL,
	executed_at TEXT    NOT NULL
)`

// Entry is one journaled trade outcome, as served by GET /executions.
type Entry struct {
	ID         int64  `json:"id"`
	BatchID    string `json:"batch_id"`
	Symbol     string `json:"symbol"`
	Action     string `json:"action"`
	Quantity   int    `json:"quantity"`
	Mode       string `json:"mode"`
	ConID      string `json:"conid,omitempty"`
	Exchange   string `json:"exchange,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	ClientRef  string `json:"client_ref,omitempty"`
	Message    string `json:"message"`
	DryRun     bool   `json:"dry_run"`
	Overall    string `json:"overall"`
	ExecutedAt string `json:"executed_at"`
}

// AppendBatch stores one row per outcome in the batch.
func (s *Store) AppendBatch(batch trade.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range batch.Outcomes {
		var conid, exchange any
		if o.Contract != nil {
			conid = o.Contract.ConID
			exchange = o.Contract.Exchange
		}
		_, err := s.db.Exec(
			`INSERT INTO executions (
				batch_id, symbol, action, quantity, mode,
				conid, exchange, order_id, client_ref,
				message, dry_run, overall, executed_at
			) VALUES (?,?,?,?,?, ?,?,?,?, ?,?,?,?)`,
			batch.ID, o.Intent.Symbol, string(o.Intent.Action), o.Intent.Quantity, string(o.Mode),
			conid, exchange, nullable(o.OrderID), nullable(o.ClientRef),
			o.Message, batch.DryRun, string(batch.Overall),
			o.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert execution: %w", err)
		}
		s.rowCount++
	}

	s.refreshSize()
	if s.cachedSize > maxStoreBytes {
		s.evict()
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, batch_id, symbol, action, quantity, mode,
			conid, exchange, order_id, client_ref,
			message, dry_run, overall, executed_at
		 FROM executions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                                   Entry
			conid, exchange, orderID, clientRef sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Symbol, &e.Action, &e.Quantity, &e.Mode,
			&conid, &exchange, &orderID, &clientRef,
			&e.Message, &e.DryRun, &e.Overall, &e.ExecutedAt,
		); err != nil {
			return nil, err
		}
		e.ConID = conid.String
		e.Exchange = exchange.String
		e.OrderID = orderID.String
		e.ClientRef = clientRef.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// refreshSize re-reads the database file size from SQLite pragmas.
// Must be called with s.mu held.
func (s *Store) refreshSize() {
	var size int64
	row := s.db.QueryRow(`SELECT COALESCE(page_count * page_size, 0) FROM pragma_page_count(), pragma_page_size()`)
	if err := row.Scan(&size); err == nil {
		s.cachedSize = size
	}
}

// evict deletes the oldest 10% of rows by count.
// Must be called with s.mu held.
func (s *Store) evict() {
	toDelete := int64(float64(s.rowCount) * evictPct)
	if toDelete < 1 {
		toDelete = 1
	}

	res, err := s.db.Exec(
		`DELETE FROM executions WHERE id IN (
			SELECT id FROM executions ORDER BY id ASC LIMIT ?
		)`, toDelete,
	)
	if err != nil {
		telemetry.Warnf("journal evict: %v", err)
		return
	}

	deleted, _ := res.RowsAffected()
	s.rowCount -= deleted
	s.evictCounter++

	telemetry.Infof("journal: evicted %d rows (target %d)", deleted, toDelete)

	if s.evictCounter%vacuumInterval == 0 {
		s.db.Exec(`PRAGMA incremental_vacuum`)
	}

	s.refreshSize()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
