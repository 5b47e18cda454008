package source

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentic-research/lens/internal/model"
	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

const rootID = 1

// Option configures a SQLiteModel.
type Option func(*sqliteOptions)

type sqliteOptions struct {
	columns int
	logger  *slog.Logger
}

// WithColumns sets the top-level column count used when the database is
// created. Existing databases keep their layout.
func WithColumns(n int) Option {
	return func(o *sqliteOptions) { o.columns = n }
}

// WithLogger sets the logger SQLite failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(o *sqliteOptions) { o.logger = l }
}

// SQLiteModel is a hierarchical table persisted in SQLite. It implements the
// same contract as MemoryModel: owners are parent row ids, rows are ordered
// by a per-parent position column that insertions and removals renumber.
//
// Cell values are stored as JSON, so they come back as the JSON types
// (string, int64, float64, bool, []any, map[string]any, nil).
//
// Model methods cannot return errors; SQLite failures are logged and
// reported as absence or false.
type SQLiteModel struct {
	model.Notifier

	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLiteModel opens (creating if needed) a model database at path.
// ":memory:" works because the model uses a single connection.
func OpenSQLiteModel(path string, opts ...Option) (*SQLiteModel, error) {
	o := sqliteOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: transactions and reads never interleave, and an
	// in-memory database is not split across connections.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS nodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			parent_id INTEGER NOT NULL,
			pos INTEGER NOT NULL,
			ncols INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS nodes_parent_pos ON nodes(parent_id, pos);
		CREATE TABLE IF NOT EXISTS cells (
			node_id INTEGER NOT NULL,
			col INTEGER NOT NULL,
			role INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (node_id, col, role)
		);
		CREATE TABLE IF NOT EXISTS headers (
			section INTEGER NOT NULL,
			role INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (section, role)
		);
	`)
	if err != nil {
		_ = db.Close() // ignore close error
		return nil, fmt.Errorf("create model tables: %w", err)
	}

	if _, err := db.Exec("INSERT OR IGNORE INTO nodes (id, parent_id, pos, ncols) VALUES (?, 0, 0, ?)", rootID, o.columns); err != nil {
		_ = db.Close() // ignore close error
		return nil, fmt.Errorf("create root row: %w", err)
	}

	return &SQLiteModel{db: db, path: path, logger: o.logger}, nil
}

// Close closes the database connection.
func (m *SQLiteModel) Close() error {
	return m.db.Close()
}

// Path returns the database path the model was opened with.
func (m *SQLiteModel) Path() string { return m.path }

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

func (m *SQLiteModel) fail(op string, err error) {
	m.logger.Warn("sqlite model operation failed", "op", op, "err", err)
}

func rowCount(q querier, parentID int64) (int, error) {
	var n int
	err := q.QueryRow("SELECT count(*) FROM nodes WHERE parent_id = ?", parentID).Scan(&n)
	return n, err
}

func columnCount(q querier, id int64) (int, error) {
	var n int
	err := q.QueryRow("SELECT ncols FROM nodes WHERE id = ?", id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, err
}

// rowID resolves a valid index to the id of its row.
func rowID(q querier, idx model.Index) (int64, error) {
	owner := int64(idx.Owner())
	ncols, err := columnCount(q, owner)
	if err != nil {
		return 0, err
	}
	if idx.Column() < 0 || idx.Column() >= ncols || idx.Row() < 0 {
		return 0, ErrNotFound
	}
	var id int64
	err = q.QueryRow("SELECT id FROM nodes WHERE parent_id = ? AND pos = ?", owner, idx.Row()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// containerID resolves a parent index to the id whose children it addresses.
func containerID(q querier, parent model.Index) (int64, error) {
	if !parent.Valid() {
		return rootID, nil
	}
	if parent.Column() != 0 {
		return 0, ErrNotFound
	}
	return rowID(q, parent)
}

func (m *SQLiteModel) Index(row, column int, parent model.Index) model.Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	pid, err := containerID(m.db, parent)
	if err != nil {
		return model.Root
	}
	rows, err := rowCount(m.db, pid)
	if err != nil {
		m.fail("index", err)
		return model.Root
	}
	cols, err := columnCount(m.db, pid)
	if err != nil || row < 0 || row >= rows || column < 0 || column >= cols {
		return model.Root
	}
	return model.NewIndex(row, column, model.Owner(pid))
}

func (m *SQLiteModel) Parent(child model.Index) model.Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	return parentIndex(m.db, int64(child.Owner()), child.Valid())
}

// parentIndex returns the index addressing row id as a parent.
func parentIndex(q querier, id int64, valid bool) model.Index {
	if !valid || id == rootID {
		return model.Root
	}
	var parentID int64
	var pos int
	if err := q.QueryRow("SELECT parent_id, pos FROM nodes WHERE id = ?", id).Scan(&parentID, &pos); err != nil {
		return model.Root
	}
	return model.NewIndex(pos, 0, model.Owner(parentID))
}

func (m *SQLiteModel) RowCount(parent model.Index) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	pid, err := containerID(m.db, parent)
	if err != nil {
		return 0
	}
	n, err := rowCount(m.db, pid)
	if err != nil {
		m.fail("row_count", err)
		return 0
	}
	return n
}

func (m *SQLiteModel) ColumnCount(parent model.Index) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	pid, err := containerID(m.db, parent)
	if err != nil {
		return 0
	}
	n, err := columnCount(m.db, pid)
	if err != nil {
		return 0
	}
	return n
}

func (m *SQLiteModel) Data(idx model.Index, role model.Role) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := rowID(m.db, idx)
	if err != nil {
		return nil, false
	}
	var raw string
	err = m.db.QueryRow("SELECT value FROM cells WHERE node_id = ? AND col = ? AND role = ?",
		id, idx.Column(), canonicalRole(role)).Scan(&raw)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			m.fail("data", err)
		}
		return nil, false
	}
	v, err := oj.ParseString(raw)
	if err != nil {
		m.fail("data", fmt.Errorf("decode cell %d/%d: %w", id, idx.Column(), err))
		return nil, false
	}
	return v, true
}

func (m *SQLiteModel) SetData(idx model.Index, value any, role model.Role) bool {
	m.mu.Lock()
	id, err := rowID(m.db, idx)
	if err != nil {
		m.mu.Unlock()
		return false
	}
	_, err = m.db.Exec("INSERT OR REPLACE INTO cells (node_id, col, role, value) VALUES (?, ?, ?, ?)",
		id, idx.Column(), canonicalRole(role), oj.JSON(value))
	parent := parentIndex(m.db, int64(idx.Owner()), true)
	m.mu.Unlock()
	if err != nil {
		m.fail("set_data", err)
		return false
	}

	m.Notify(model.Mutation{Kind: model.Changed, Parent: parent, Start: idx.Row(), Count: 1})
	return true
}

func (m *SQLiteModel) Flags(idx model.Index) model.Flags {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := rowID(m.db, idx); err != nil {
		return model.FlagsNone
	}
	return model.FlagSelectable | model.FlagEditable | model.FlagEnabled
}

func (m *SQLiteModel) HeaderData(section int, orientation model.Orientation, role model.Role) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if orientation == model.Vertical {
		n, err := rowCount(m.db, rootID)
		if err != nil || section < 0 || section >= n {
			return nil, false
		}
		return section + 1, true
	}
	var raw string
	err := m.db.QueryRow("SELECT value FROM headers WHERE section = ? AND role = ?", section, canonicalRole(role)).Scan(&raw)
	if err != nil {
		return nil, false
	}
	v, err := oj.ParseString(raw)
	if err != nil {
		return nil, false
	}
	return v, true
}

// SetHeaderData sets a horizontal header label of the top-level grid.
func (m *SQLiteModel) SetHeaderData(section int, orientation model.Orientation, value any, role model.Role) bool {
	m.mu.Lock()
	cols, err := columnCount(m.db, rootID)
	if err != nil || orientation != model.Horizontal || section < 0 || section >= cols {
		m.mu.Unlock()
		return false
	}
	_, err = m.db.Exec("INSERT OR REPLACE INTO headers (section, role, value) VALUES (?, ?, ?)",
		section, canonicalRole(role), oj.JSON(value))
	m.mu.Unlock()
	if err != nil {
		m.fail("set_header_data", err)
		return false
	}

	m.Notify(model.Mutation{Kind: model.Changed, Orientation: model.Horizontal, Parent: model.Root, Start: section, Count: 1})
	return true
}

// mutate runs fn in a transaction under the model lock.
func (m *SQLiteModel) mutate(op string, fn func(tx *sql.Tx) (bool, error)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.Begin()
	if err != nil {
		m.fail(op, err)
		return false
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	ok, err := fn(tx)
	if err != nil {
		m.fail(op, err)
		return false
	}
	if !ok {
		return false
	}
	if err := tx.Commit(); err != nil {
		m.fail(op, err)
		return false
	}
	return true
}

// subtree selects the ids of rows [start, end) under a parent and all of
// their descendants.
const subtree = `WITH RECURSIVE sub(id) AS (
	SELECT id FROM nodes WHERE parent_id = ? AND pos >= ? AND pos < ?
	UNION ALL
	SELECT n.id FROM nodes n JOIN sub ON n.parent_id = sub.id
)`

func (m *SQLiteModel) InsertRows(row, count int, parent model.Index) bool {
	ok := m.mutate("insert_rows", func(tx *sql.Tx) (bool, error) {
		pid, err := containerID(tx, parent)
		if err != nil {
			return false, nil
		}
		n, err := rowCount(tx, pid)
		if err != nil {
			return false, err
		}
		if count <= 0 || row < 0 || row > n {
			return false, nil
		}
		ncols, err := columnCount(tx, pid)
		if err != nil {
			return false, err
		}
		if _, err := tx.Exec("UPDATE nodes SET pos = pos + ? WHERE parent_id = ? AND pos >= ?", count, pid, row); err != nil {
			return false, fmt.Errorf("shift rows: %w", err)
		}
		for i := 0; i < count; i++ {
			if _, err := tx.Exec("INSERT INTO nodes (parent_id, pos, ncols) VALUES (?, ?, ?)", pid, row+i, ncols); err != nil {
				return false, fmt.Errorf("insert row %d: %w", row+i, err)
			}
		}
		return true, nil
	})
	if ok {
		m.Notify(model.Mutation{Kind: model.Shifted, Parent: parent, Start: row, Count: count})
	}
	return ok
}

func (m *SQLiteModel) RemoveRows(row, count int, parent model.Index) bool {
	ok := m.mutate("remove_rows", func(tx *sql.Tx) (bool, error) {
		pid, err := containerID(tx, parent)
		if err != nil {
			return false, nil
		}
		n, err := rowCount(tx, pid)
		if err != nil {
			return false, err
		}
		if count <= 0 || row < 0 || row+count > n {
			return false, nil
		}
		end := row + count
		if _, err := tx.Exec(subtree+" DELETE FROM cells WHERE node_id IN (SELECT id FROM sub)", pid, row, end); err != nil {
			return false, fmt.Errorf("delete cells: %w", err)
		}
		if _, err := tx.Exec(subtree+" DELETE FROM nodes WHERE id IN (SELECT id FROM sub)", pid, row, end); err != nil {
			return false, fmt.Errorf("delete rows: %w", err)
		}
		if _, err := tx.Exec("UPDATE nodes SET pos = pos - ? WHERE parent_id = ? AND pos >= ?", count, pid, end); err != nil {
			return false, fmt.Errorf("shift rows: %w", err)
		}
		return true, nil
	})
	if ok {
		m.Notify(model.Mutation{Kind: model.Shifted, Parent: parent, Start: row, Count: -count})
	}
	return ok
}

// shiftCells moves the cells (and, for the root, headers) at columns >= from
// by delta. Columns are first parked at negative values so the primary keys
// never collide mid-update.
func shiftCells(tx *sql.Tx, pid int64, from, delta int) error {
	if _, err := tx.Exec(`UPDATE cells SET col = -(col + ?) - 1
		WHERE col >= ? AND node_id IN (SELECT id FROM nodes WHERE parent_id = ?)`, delta, from, pid); err != nil {
		return fmt.Errorf("park cells: %w", err)
	}
	if _, err := tx.Exec(`UPDATE cells SET col = -col - 1
		WHERE col < 0 AND node_id IN (SELECT id FROM nodes WHERE parent_id = ?)`, pid); err != nil {
		return fmt.Errorf("unpark cells: %w", err)
	}
	if pid != rootID {
		return nil
	}
	if _, err := tx.Exec("UPDATE headers SET section = -(section + ?) - 1 WHERE section >= ?", delta, from); err != nil {
		return fmt.Errorf("park headers: %w", err)
	}
	if _, err := tx.Exec("UPDATE headers SET section = -section - 1 WHERE section < 0"); err != nil {
		return fmt.Errorf("unpark headers: %w", err)
	}
	return nil
}

func (m *SQLiteModel) InsertColumns(column, count int, parent model.Index) bool {
	ok := m.mutate("insert_columns", func(tx *sql.Tx) (bool, error) {
		pid, err := containerID(tx, parent)
		if err != nil {
			return false, nil
		}
		ncols, err := columnCount(tx, pid)
		if err != nil {
			return false, err
		}
		if count <= 0 || column < 0 || column > ncols {
			return false, nil
		}
		if err := shiftCells(tx, pid, column, count); err != nil {
			return false, err
		}
		if _, err := tx.Exec("UPDATE nodes SET ncols = ncols + ? WHERE id = ?", count, pid); err != nil {
			return false, fmt.Errorf("grow columns: %w", err)
		}
		return true, nil
	})
	if ok {
		m.Notify(model.Mutation{Kind: model.Shifted, Orientation: model.Horizontal, Parent: parent, Start: column, Count: count})
	}
	return ok
}

func (m *SQLiteModel) RemoveColumns(column, count int, parent model.Index) bool {
	ok := m.mutate("remove_columns", func(tx *sql.Tx) (bool, error) {
		pid, err := containerID(tx, parent)
		if err != nil {
			return false, nil
		}
		ncols, err := columnCount(tx, pid)
		if err != nil {
			return false, err
		}
		end := column + count
		if count <= 0 || column < 0 || end > ncols {
			return false, nil
		}
		if _, err := tx.Exec(`DELETE FROM cells WHERE col >= ? AND col < ?
			AND node_id IN (SELECT id FROM nodes WHERE parent_id = ?)`, column, end, pid); err != nil {
			return false, fmt.Errorf("delete cells: %w", err)
		}
		if pid == rootID {
			if _, err := tx.Exec("DELETE FROM headers WHERE section >= ? AND section < ?", column, end); err != nil {
				return false, fmt.Errorf("delete headers: %w", err)
			}
		}
		if err := shiftCells(tx, pid, end, -count); err != nil {
			return false, err
		}
		if _, err := tx.Exec("UPDATE nodes SET ncols = ncols - ? WHERE id = ?", count, pid); err != nil {
			return false, fmt.Errorf("shrink columns: %w", err)
		}
		return true, nil
	})
	if ok {
		m.Notify(model.Mutation{Kind: model.Shifted, Orientation: model.Horizontal, Parent: parent, Start: column, Count: -count})
	}
	return ok
}

// Reset removes every row, keeping the column layout and headers.
func (m *SQLiteModel) Reset() error {
	m.mu.Lock()
	_, err := m.db.Exec("DELETE FROM cells")
	if err == nil {
		_, err = m.db.Exec("DELETE FROM nodes WHERE id != ?", rootID)
	}
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("reset model: %w", err)
	}
	m.Notify(model.Mutation{Kind: model.Reset})
	return nil
}

var _ model.Model = (*SQLiteModel)(nil)
