// Package sqlitestore is the durable persistence.Store backend: WAL journal
// mode for crash-safe concurrent reads during a write, SHA-256 checksums
// stored alongside each JSON blob and verified on load, and
// sql.LevelSerializable transactions around every snapshot, cache-funds and
// fees-owed write so a save can never interleave with itself. botKey is an explicit row key so one database
// file can back several bots.
package sqlitestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"gridbot/internal/engerrors"
	"gridbot/internal/gridcore"
	"gridbot/internal/persistence"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS grid_snapshots (
	bot_key    TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	checksum   TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cache_funds (
	bot_key TEXT PRIMARY KEY,
	buy     TEXT NOT NULL,
	sell    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS fees_owed (
	bot_key TEXT NOT NULL,
	side    TEXT NOT NULL,
	amount  TEXT NOT NULL,
	PRIMARY KEY (bot_key, side)
);
CREATE TABLE IF NOT EXISTS regeneration_triggers (
	bot_key TEXT PRIMARY KEY
);
`

// Store is the SQLite-backed persistence.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at dsn, enables WAL
// journaling, and applies the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, engerrors.New(engerrors.PersistenceTransient, "sqlitestore: open failed: "+err.Error())
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, engerrors.New(engerrors.PersistenceTransient, "sqlitestore: enabling WAL failed: "+err.Error())
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, engerrors.New(engerrors.PersistenceTransient, "sqlitestore: schema migration failed: "+err.Error())
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (s *Store) LoadGridSnapshot(ctx context.Context, botKey string) (*persistence.Snapshot, error) {
	var payload []byte
	var sum string
	err := s.db.QueryRowContext(ctx, `SELECT payload, checksum FROM grid_snapshots WHERE bot_key = ?`, botKey).Scan(&payload, &sum)
	if err == sql.ErrNoRows {
		return nil, engerrors.New(engerrors.PersistenceTransient, "sqlitestore: no snapshot for "+botKey)
	}
	if err != nil {
		return nil, engerrors.New(engerrors.PersistenceTransient, "sqlitestore: load failed: "+err.Error())
	}
	if checksum(payload) != sum {
		return nil, engerrors.New(engerrors.IndexCorruption, "sqlitestore: checksum mismatch for "+botKey)
	}
	var snap persistence.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, engerrors.New(engerrors.IndexCorruption, "sqlitestore: malformed snapshot for "+botKey)
	}
	return &snap, nil
}

func (s *Store) SaveGridSnapshot(ctx context.Context, botKey string, snap *persistence.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return engerrors.New(engerrors.BadInput, "sqlitestore: marshal failed: "+err.Error())
	}
	// Round-trip validation catches a malformed Decimal or any other field
	// that marshals but won't unmarshal back, before it ever hits disk.
	var roundTrip persistence.Snapshot
	if err := json.Unmarshal(payload, &roundTrip); err != nil {
		return engerrors.New(engerrors.BadInput, "sqlitestore: snapshot failed round-trip validation: "+err.Error())
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return engerrors.New(engerrors.PersistenceTransient, "sqlitestore: begin tx failed: "+err.Error())
	}
	defer tx.Rollback()

	sum := checksum(payload)
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO grid_snapshots (bot_key, payload, checksum, updated_at) VALUES (?, ?, ?, ?)`,
		botKey, payload, sum, snap.UpdatedAtUnix,
	)
	if err != nil {
		return engerrors.New(engerrors.PersistenceTransient, "sqlitestore: save failed: "+err.Error())
	}
	if err := tx.Commit(); err != nil {
		return engerrors.New(engerrors.PersistenceTransient, "sqlitestore: commit failed: "+err.Error())
	}
	return nil
}

func (s *Store) LoadCacheFunds(ctx context.Context, botKey string) (persistence.CacheFunds, error) {
	var buyStr, sellStr string
	err := s.db.QueryRowContext(ctx, `SELECT buy, sell FROM cache_funds WHERE bot_key = ?`, botKey).Scan(&buyStr, &sellStr)
	if err == sql.ErrNoRows {
		return persistence.CacheFunds{Buy: decimal.Zero, Sell: decimal.Zero}, nil
	}
	if err != nil {
		return persistence.CacheFunds{}, engerrors.New(engerrors.PersistenceTransient, "sqlitestore: load cache funds failed: "+err.Error())
	}
	buy, err1 := decimal.NewFromString(buyStr)
	sell, err2 := decimal.NewFromString(sellStr)
	if err1 != nil || err2 != nil {
		return persistence.CacheFunds{}, engerrors.New(engerrors.IndexCorruption, "sqlitestore: malformed cache funds for "+botKey)
	}
	return persistence.CacheFunds{Buy: buy, Sell: sell}, nil
}

func (s *Store) UpdateCacheFunds(ctx context.Context, botKey string, funds persistence.CacheFunds) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return engerrors.New(engerrors.PersistenceTransient, "sqlitestore: begin tx failed: "+err.Error())
	}
	defer tx.Rollback()

	// The existing row is read inside the same transaction, but the value is
	// not used: the INSERT OR REPLACE below overwrites the row with funds.
	var existsBuy string
	_ = tx.QueryRowContext(ctx, `SELECT buy FROM cache_funds WHERE bot_key = ?`, botKey).Scan(&existsBuy)

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_funds (bot_key, buy, sell) VALUES (?, ?, ?)`,
		botKey, funds.Buy.String(), funds.Sell.String(),
	)
	if err != nil {
		return engerrors.New(engerrors.PersistenceTransient, "sqlitestore: update cache funds failed: "+err.Error())
	}
	return tx.Commit()
}

func (s *Store) LoadFeesOwed(ctx context.Context, botKey string) (map[gridcore.Side]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT side, amount FROM fees_owed WHERE bot_key = ?`, botKey)
	if err != nil {
		return nil, engerrors.New(engerrors.PersistenceTransient, "sqlitestore: load fees owed failed: "+err.Error())
	}
	defer rows.Close()

	out := map[gridcore.Side]decimal.Decimal{}
	for rows.Next() {
		var side, amountStr string
		if err := rows.Scan(&side, &amountStr); err != nil {
			return nil, engerrors.New(engerrors.PersistenceTransient, "sqlitestore: scan fees owed failed: "+err.Error())
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, engerrors.New(engerrors.IndexCorruption, "sqlitestore: malformed fee amount for "+botKey)
		}
		out[gridcore.Side(side)] = amount
	}
	return out, rows.Err()
}

func (s *Store) UpdateFeesOwed(ctx context.Context, botKey string, fees map[gridcore.Side]decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return engerrors.New(engerrors.PersistenceTransient, "sqlitestore: begin tx failed: "+err.Error())
	}
	defer tx.Rollback()

	for side, amount := range fees {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO fees_owed (bot_key, side, amount) VALUES (?, ?, ?)`,
			botKey, string(side), amount.String(),
		)
		if err != nil {
			return engerrors.New(engerrors.PersistenceTransient, "sqlitestore: update fees owed failed: "+err.Error())
		}
	}
	return tx.Commit()
}

func (s *Store) HasRegenerationTrigger(ctx context.Context, botKey string) (bool, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT bot_key FROM regeneration_triggers WHERE bot_key = ?`, botKey).Scan(&key)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, engerrors.New(engerrors.PersistenceTransient, "sqlitestore: trigger lookup failed: "+err.Error())
	}
	return true, nil
}

func (s *Store) ClearRegenerationTrigger(ctx context.Context, botKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM regeneration_triggers WHERE bot_key = ?`, botKey)
	if err != nil {
		return engerrors.New(engerrors.PersistenceTransient, "sqlitestore: clear trigger failed: "+err.Error())
	}
	return nil
}

// SetRegenerationTrigger mirrors dropping a recalculate.<botKey>.trigger
// marker file: an operator or an external tool wants the next cycle to
// regenerate the grid immediately.
func (s *Store) SetRegenerationTrigger(ctx context.Context, botKey string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO regeneration_triggers (bot_key) VALUES (?)`, botKey)
	if err != nil {
		return fmt.Errorf("sqlitestore: set trigger: %w", err)
	}
	return nil
}
