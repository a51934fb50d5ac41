package beaker

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/beakerflow/beaker/engine/record"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tableNamePattern restricts beaker names to safe SQL identifiers, since
// table names cannot be parameterized through gorm's placeholder binding.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent double-quotes a SQL identifier already validated against
// tableNamePattern, so no internal quote characters can occur.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

// DurableDB wraps the single embedded database file shared by every durable
// beaker in a pipeline, as spec.md §6 requires ("one embedded single-file
// database per pipeline"). It owns table creation and the one-transaction-
// per-processed-record discipline.
type DurableDB struct {
	gdb *gorm.DB
}

// OpenDurableDB opens (or creates) the pipeline's embedded database using
// the given gorm dialector-backed connection. Callers typically pass
// glebarez/sqlite's Open(path) result.
func OpenDurableDB(gdb *gorm.DB) (*DurableDB, error) {
	// WAL journaling lets readers proceed while a writer holds the
	// transaction open, matching spec.md §6's durability requirement.
	if err := gdb.Exec(`PRAGMA journal_mode=WAL`).Error; err != nil {
		return nil, fmt.Errorf("durable db: set journal mode: %w", err)
	}
	if err := gdb.Exec(`PRAGMA foreign_keys=ON`).Error; err != nil {
		return nil, fmt.Errorf("durable db: enable foreign keys: %w", err)
	}
	if err := gdb.Exec(`
		CREATE TABLE IF NOT EXISTS _seeds (
			name TEXT NOT NULL,
			beaker_name TEXT NOT NULL,
			num_items INTEGER NOT NULL,
			imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`).Error; err != nil {
		return nil, fmt.Errorf("durable db: create _seeds table: %w", err)
	}
	return &DurableDB{gdb: gdb}, nil
}

// Beaker returns (creating the backing table if necessary) the durable
// Store for the named beaker.
func (d *DurableDB) Beaker(ctx context.Context, name string, schema Schema) (*DurableStore, error) {
	if !tableNamePattern.MatchString(name) {
		return nil, fmt.Errorf("durable db: invalid beaker name %q", name)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		uuid TEXT PRIMARY KEY,
		data JSON NOT NULL,
		seq INTEGER
	)`, quoteIdent(name))
	if err := d.gdb.WithContext(ctx).Exec(ddl).Error; err != nil {
		return nil, fmt.Errorf("durable db: create table %q: %w", name, err)
	}
	return &DurableStore{db: d, name: name, schema: schema}, nil
}

// DB exposes the underlying *gorm.DB for callers (the seed manager's audit
// log, the CLI's ad hoc inspection commands) that need raw access.
func (d *DurableDB) DB() *gorm.DB { return d.gdb }

// beakerRow is the generic row shape every durable beaker table shares:
// (uuid TEXT PRIMARY KEY, data JSON).
type beakerRow struct {
	UUID string `gorm:"column:uuid"`
	Data string `gorm:"column:data"`
	Seq  int64  `gorm:"column:seq"`
}

// DurableStore is the Store implementation backed by one table of a shared
// DurableDB.
type DurableStore struct {
	db     *DurableDB
	name   string
	schema Schema
}

func (s *DurableStore) Name() string    { return s.name }
func (s *DurableStore) Variant() Variant { return Durable }
func (s *DurableStore) Schema() Schema  { return s.schema }

func (s *DurableStore) table(ctx context.Context) *gorm.DB {
	return s.db.gdb.WithContext(ctx).Table(quoteIdent(s.name))
}

func (s *DurableStore) Add(ctx context.Context, payload json.RawMessage, id record.ID) (record.ID, error) {
	if err := s.schema.Validate(payload); err != nil {
		return record.Empty, &ValidationError{Beaker: s.name, Cause: err}
	}
	if !id.Valid() {
		id = record.New()
	}

	var next int64
	if err := s.table(ctx).Select("COALESCE(MAX(seq), 0) + 1").Scan(&next).Error; err != nil {
		return record.Empty, fmt.Errorf("durable beaker %q: next seq: %w", s.name, err)
	}

	row := beakerRow{UUID: id.String(), Data: string(payload), Seq: next}
	if err := s.table(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return record.Empty, &DuplicateError{Beaker: s.name, ID: id}
		}
		return record.Empty, fmt.Errorf("durable beaker %q: insert: %w", s.name, err)
	}
	return id, nil
}

func (s *DurableStore) Get(ctx context.Context, id record.ID) (json.RawMessage, error) {
	var row beakerRow
	err := s.table(ctx).Where("uuid = ?", id.String()).Take(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, &NotFoundError{Beaker: s.name, ID: id}
		}
		return nil, fmt.Errorf("durable beaker %q: get: %w", s.name, err)
	}
	return json.RawMessage(row.Data), nil
}

func (s *DurableStore) Items(ctx context.Context) iter.Seq2[record.ID, json.RawMessage] {
	return func(yield func(record.ID, json.RawMessage) bool) {
		rows, err := s.allRows(ctx)
		if err != nil {
			return
		}
		for _, row := range rows {
			if !yield(record.ID(row.UUID), json.RawMessage(row.Data)) {
				return
			}
		}
	}
}

func (s *DurableStore) allRows(ctx context.Context) ([]beakerRow, error) {
	var rows []beakerRow
	if err := s.table(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("durable beaker %q: items: %w", s.name, err)
	}
	return rows, nil
}

func (s *DurableStore) IDSet(ctx context.Context) (map[record.ID]struct{}, error) {
	var uuids []string
	if err := s.table(ctx).Pluck("uuid", &uuids).Error; err != nil {
		return nil, fmt.Errorf("durable beaker %q: id_set: %w", s.name, err)
	}
	out := make(map[record.ID]struct{}, len(uuids))
	for _, u := range uuids {
		out[record.ID(u)] = struct{}{}
	}
	return out, nil
}

func (s *DurableStore) Len(ctx context.Context) (int, error) {
	var n int64
	if err := s.table(ctx).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("durable beaker %q: len: %w", s.name, err)
	}
	return int(n), nil
}

func (s *DurableStore) Reset(ctx context.Context) error {
	if err := s.table(ctx).Where("1 = 1").Delete(&beakerRow{}).Error; err != nil {
		return fmt.Errorf("durable beaker %q: reset: %w", s.name, err)
	}
	return nil
}

// durableTx implements Tx for one gorm transaction shared by all beakers
// participating in a single edge-task commit.
type durableTx struct {
	gdb    *gorm.DB
	ctx    context.Context
	nextSq map[string]int64
}

func (t *durableTx) Put(ctx context.Context, beakerName string, id record.ID, payload json.RawMessage) error {
	if !tableNamePattern.MatchString(beakerName) {
		return fmt.Errorf("durable tx: invalid beaker name %q", beakerName)
	}
	seq, ok := t.nextSq[beakerName]
	if !ok {
		if err := t.gdb.Table(quoteIdent(beakerName)).
			Select("COALESCE(MAX(seq), 0)").Scan(&seq).Error; err != nil {
			return fmt.Errorf("durable tx: next seq for %q: %w", beakerName, err)
		}
	}
	seq++
	t.nextSq[beakerName] = seq

	row := beakerRow{UUID: id.String(), Data: string(payload), Seq: seq}
	res := t.gdb.Table(quoteIdent(beakerName)).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "seq"}),
		}).
		Create(&row)
	if res.Error != nil {
		return fmt.Errorf("durable tx: put %q/%s: %w", beakerName, id, res.Error)
	}
	return nil
}

// WithTx opens one database transaction covering every beaker named, runs
// fn, and commits or rolls back as a unit. This is the transaction spec.md
// §4.1 describes: "writes within a single edge-task are grouped in one
// transaction ... if the task fails, the transaction is discarded."
func (d *DurableDB) WithTx(ctx context.Context, _ []string, fn func(ctx context.Context, tx Tx) error) error {
	return d.gdb.WithContext(ctx).Transaction(func(gdb *gorm.DB) error {
		tx := &durableTx{gdb: gdb, ctx: ctx, nextSq: make(map[string]int64)}
		return fn(ctx, tx)
	})
}

func isNotFound(err error) bool {
	return err == gorm.ErrRecordNotFound
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
