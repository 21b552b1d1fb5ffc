// Package persistence stores save slots in SQLite.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/engine"
	"github.com/talgya/carbon-monster/internal/land"
	"github.com/talgya/carbon-monster/internal/turn"
)

// Slots is the number of save slots. Slot 0 is the autosave.
const (
	Slots        = 5
	AutosaveSlot = 0
)

var (
	ErrInvalidSlot  = errors.New("invalid save slot")
	ErrSlotEmpty    = errors.New("save slot is empty")
	ErrIncompatible = errors.New("incompatible save version")
)

// DB wraps a SQLite connection for save storage.
type DB struct {
	conn *sqlx.DB
	now  func() time.Time
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		slot INTEGER PRIMARY KEY,
		version TEXT NOT NULL,
		game_id TEXT NOT NULL,
		seed INTEGER NOT NULL,
		saved_at INTEGER NOT NULL,
		turn INTEGER NOT NULL,
		year INTEGER NOT NULL,
		money INTEGER NOT NULL,
		finished INTEGER NOT NULL,
		reason TEXT NOT NULL,
		world_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lands (
		slot INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		owner TEXT NOT NULL,
		owner_name TEXT NOT NULL,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		emission_coeff REAL NOT NULL,
		cost INTEGER NOT NULL,
		description TEXT NOT NULL,
		grid_row INTEGER NOT NULL,
		grid_col INTEGER NOT NULL,
		zone TEXT NOT NULL,
		PRIMARY KEY (slot, idx)
	);

	CREATE TABLE IF NOT EXISTS audits (
		slot INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		turn INTEGER NOT NULL,
		emission INTEGER NOT NULL,
		chargeable INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		amount INTEGER NOT NULL,
		message TEXT NOT NULL,
		PRIMARY KEY (slot, seq)
	);

	CREATE TABLE IF NOT EXISTS achievements (
		slot INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL,
		PRIMARY KEY (slot, seq)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slot INTEGER NOT NULL,
		turn INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS game_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_slot ON events(slot);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func checkSlot(slot int) error {
	if slot < 0 || slot >= Slots {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}

type saveRow struct {
	Slot      int    `db:"slot"`
	Version   string `db:"version"`
	GameID    string `db:"game_id"`
	Seed      int64  `db:"seed"`
	SavedAt   int64  `db:"saved_at"`
	Turn      int    `db:"turn"`
	Year      int    `db:"year"`
	Money     int    `db:"money"`
	Over      bool   `db:"finished"`
	Reason    string `db:"reason"`
	WorldJSON string `db:"world_json"`
}

type landRow struct {
	Index         int     `db:"idx"`
	Owner         string  `db:"owner"`
	OwnerName     string  `db:"owner_name"`
	Type          string  `db:"type"`
	Name          string  `db:"name"`
	EmissionCoeff float64 `db:"emission_coeff"`
	Cost          int     `db:"cost"`
	Description   string  `db:"description"`
	Row           int     `db:"grid_row"`
	Col           int     `db:"grid_col"`
	Zone          string  `db:"zone"`
}

type auditRow struct {
	Turn       int    `db:"turn"`
	Emission   int    `db:"emission"`
	Chargeable int    `db:"chargeable"`
	Outcome    string `db:"outcome"`
	Amount     int    `db:"amount"`
	Message    string `db:"message"`
}

// Save writes a full game into slot, replacing whatever was there.
func (db *DB) Save(slot int, s engine.SaveState) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	worldJSON, err := json.Marshal(s.World)
	if err != nil {
		return fmt.Errorf("encode world: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := clearSlot(tx, slot); err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT INTO saves
		(slot, version, game_id, seed, saved_at, turn, year, money, finished, reason, world_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		slot, s.Version, s.GameID, s.Seed, db.now().UnixMilli(),
		s.World.Turn, s.World.Year, s.World.Money, s.Over, s.Reason, string(worldJSON),
	)
	if err != nil {
		return fmt.Errorf("insert save: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO lands
		(slot, idx, owner, owner_name, type, name, emission_coeff, cost, description, grid_row, grid_col, zone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, l := range s.Lands {
		_, err := stmt.Exec(slot, l.Index, l.Owner, l.OwnerName, l.Type, l.Name,
			l.EmissionCoeff, l.Cost, l.Description, l.Row, l.Col, l.Zone)
		if err != nil {
			return fmt.Errorf("insert land %d: %w", l.Index, err)
		}
	}

	for i, a := range s.Audits {
		_, err := tx.Exec(`INSERT INTO audits
			(slot, seq, turn, emission, chargeable, outcome, amount, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			slot, i, a.Turn, a.Emission, a.Chargeable, a.Result.Outcome, a.Result.Amount, a.Result.Message)
		if err != nil {
			return fmt.Errorf("insert audit %d: %w", i, err)
		}
	}

	for i, id := range s.Achievements {
		if _, err := tx.Exec("INSERT INTO achievements (slot, seq, id) VALUES (?, ?, ?)", slot, i, id); err != nil {
			return fmt.Errorf("insert achievement %s: %w", id, err)
		}
	}

	for _, e := range s.Events {
		_, err := tx.Exec(
			"INSERT INTO events (slot, turn, description, category) VALUES (?, ?, ?, ?)",
			slot, e.Turn, e.Description, e.Category,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("game saved", "slot", slot, "game", s.GameID, "turn", s.World.Turn)
	return nil
}

func clearSlot(tx *sqlx.Tx, slot int) error {
	for _, table := range []string{"saves", "lands", "audits", "achievements", "events"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE slot = ?", slot); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Load reads the game in slot.
func (db *DB) Load(slot int) (engine.SaveState, error) {
	if err := checkSlot(slot); err != nil {
		return engine.SaveState{}, err
	}

	var row saveRow
	err := db.conn.Get(&row, "SELECT * FROM saves WHERE slot = ?", slot)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.SaveState{}, fmt.Errorf("slot %d: %w", slot, ErrSlotEmpty)
	}
	if err != nil {
		return engine.SaveState{}, fmt.Errorf("load save: %w", err)
	}
	if row.Version != engine.SaveVersion {
		return engine.SaveState{}, fmt.Errorf("slot %d has %q: %w", slot, row.Version, ErrIncompatible)
	}

	s := engine.SaveState{
		Version: row.Version,
		GameID:  row.GameID,
		Seed:    row.Seed,
		Over:    row.Over,
		Reason:  row.Reason,
	}
	if err := json.Unmarshal([]byte(row.WorldJSON), &s.World); err != nil {
		return engine.SaveState{}, fmt.Errorf("decode world: %w", err)
	}

	var lands []landRow
	if err := db.conn.Select(&lands, `SELECT idx, owner, owner_name, type, name, emission_coeff,
		cost, description, grid_row, grid_col, zone FROM lands WHERE slot = ? ORDER BY idx`, slot); err != nil {
		return engine.SaveState{}, fmt.Errorf("load lands: %w", err)
	}
	for _, l := range lands {
		s.Lands = append(s.Lands, land.Land{
			Index:         l.Index,
			Owner:         config.OwnerID(l.Owner),
			OwnerName:     l.OwnerName,
			Type:          config.LandTypeID(l.Type),
			Name:          l.Name,
			EmissionCoeff: l.EmissionCoeff,
			Cost:          l.Cost,
			Description:   l.Description,
			Row:           l.Row,
			Col:           l.Col,
			Zone:          config.OwnerID(l.Zone),
		})
	}

	var audits []auditRow
	if err := db.conn.Select(&audits, `SELECT turn, emission, chargeable, outcome, amount, message
		FROM audits WHERE slot = ? ORDER BY seq`, slot); err != nil {
		return engine.SaveState{}, fmt.Errorf("load audits: %w", err)
	}
	for _, a := range audits {
		s.Audits = append(s.Audits, turn.AuditRecord{
			Turn:       a.Turn,
			Emission:   a.Emission,
			Chargeable: a.Chargeable,
			Result: turn.AuditResult{
				Turn:    a.Turn,
				Outcome: turn.AuditOutcome(a.Outcome),
				Amount:  a.Amount,
				Message: a.Message,
			},
		})
	}

	if err := db.conn.Select(&s.Achievements,
		"SELECT id FROM achievements WHERE slot = ? ORDER BY seq", slot); err != nil {
		return engine.SaveState{}, fmt.Errorf("load achievements: %w", err)
	}

	if err := db.conn.Select(&s.Events,
		"SELECT turn, description, category FROM events WHERE slot = ? ORDER BY id", slot); err != nil {
		return engine.SaveState{}, fmt.Errorf("load events: %w", err)
	}

	return s, nil
}

// SaveInfo describes one slot without loading it.
type SaveInfo struct {
	Slot      int       `json:"slot"`
	Exists    bool      `json:"exists"`
	Autosave  bool      `json:"autosave"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Turn      int       `json:"turn,omitempty"`
	Year      int       `json:"year,omitempty"`
	Money     int       `json:"money,omitempty"`
	GameID    string    `json:"game_id,omitempty"`
}

// List describes every slot in order.
func (db *DB) List() ([]SaveInfo, error) {
	var rows []saveRow
	if err := db.conn.Select(&rows, "SELECT * FROM saves ORDER BY slot"); err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	out := make([]SaveInfo, Slots)
	for i := range out {
		out[i] = SaveInfo{Slot: i, Autosave: i == AutosaveSlot}
	}
	for _, r := range rows {
		if checkSlot(r.Slot) != nil {
			continue
		}
		out[r.Slot] = SaveInfo{
			Slot:      r.Slot,
			Exists:    true,
			Autosave:  r.Slot == AutosaveSlot,
			Timestamp: time.UnixMilli(r.SavedAt),
			Turn:      r.Turn,
			Year:      r.Year,
			Money:     r.Money,
			GameID:    r.GameID,
		}
	}
	return out, nil
}

// Delete empties slot. Deleting an empty slot is not an error.
func (db *DB) Delete(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := clearSlot(tx, slot); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveGame writes g to slot.
func (db *DB) SaveGame(slot int, g *engine.Game) error {
	if err := db.Save(slot, g.Save()); err != nil {
		return fmt.Errorf("save slot %d: %w", slot, err)
	}
	return nil
}

// LoadGame restores the game in slot.
func (db *DB) LoadGame(slot int, tables *config.Tables) (*engine.Game, error) {
	s, err := db.Load(slot)
	if err != nil {
		return nil, err
	}
	return engine.Load(tables, s)
}

// RecentEvents returns the most recent events saved in slot, newest first.
func (db *DB) RecentEvents(slot, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT turn, description, category FROM events WHERE slot = ? ORDER BY id DESC LIMIT ?",
		slot, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in game metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO game_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM game_meta WHERE key = ?", key)
	return value, err
}
