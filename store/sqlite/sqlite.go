/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (brood.Store, brood.TxStore)
  using SQLite. In production, the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  flocks:            Top-level aggregates carrying the feed_on_hand ledger
  barns:             Flock subdivisions owning the week grid
  weeks:             8 per barn, unique on (barn_id, week_no)
  day_logs:          Leaf records, unique on (week_id, age)
  provision_entries: Signed feed-delivery history per flock
  treatments:        Care-product catalog (referenced by day logs)
  diseases:          Disease catalog
  barn_diseases:     Barn-to-disease cross-reference rows

LEDGER MAINTENANCE:
  feed_on_hand is NOT a database-computed value. It is moved only by
  store-evaluated increments (feed_on_hand = feed_on_hand + ?) or
  recomputed as a fresh aggregate, always inside the same transaction
  as the row mutation that caused the movement.

CONCURRENCY:
  The database is opened with WAL and foreign keys on, a busy timeout,
  and a bounded connection pool. Writers serialize on SQLite's own
  locking; a lock timeout surfaces as brood.ErrResourceUnavailable
  rather than queuing without bound.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

USAGE:
  store, err := sqlite.New("./data/brood.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - brood/store.go: Interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gallus/brood-engine/brood"
)

// DefaultPoolSize bounds the connection pool when the caller does not
// override it.
const DefaultPoolSize = 4

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements brood.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

// txStore is a transaction-scoped brood.Store handed to WithTx closures.
type txStore struct {
	queries
}

// New creates a SQLite store with the given database path and a bounded
// connection pool. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return NewWithPool(dbPath, DefaultPoolSize)
}

// NewWithPool creates a SQLite store with an explicit pool bound.
func NewWithPool(dbPath string, poolSize int) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if poolSize < 1 {
		poolSize = 1
	}
	// Every pooled connection to ":memory:" would open its own empty
	// database, so in-memory stores are pinned to a single connection.
	if dbPath == ":memory:" {
		poolSize = 1
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	store := &Store{queries: queries{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Top-level aggregates; feed_on_hand is the application-maintained ledger
	CREATE TABLE IF NOT EXISTS flocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		arrival_date TEXT NOT NULL,
		chick_count INTEGER NOT NULL,
		notes TEXT,
		feed_on_hand REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS barns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		flock_id INTEGER NOT NULL,
		barn_no TEXT NOT NULL,
		breed TEXT NOT NULL,
		chick_count INTEGER NOT NULL,
		FOREIGN KEY (flock_id) REFERENCES flocks(id) ON DELETE CASCADE,
		UNIQUE(flock_id, barn_no)
	);

	CREATE INDEX IF NOT EXISTS idx_barns_flock_id ON barns(flock_id);

	CREATE TABLE IF NOT EXISTS weeks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		barn_id INTEGER NOT NULL,
		week_no INTEGER NOT NULL CHECK (week_no BETWEEN 1 AND 8),
		weight REAL,
		FOREIGN KEY (barn_id) REFERENCES barns(id) ON DELETE CASCADE,
		UNIQUE(barn_id, week_no)
	);

	CREATE INDEX IF NOT EXISTS idx_weeks_barn_id ON weeks(barn_id);

	CREATE TABLE IF NOT EXISTS treatments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		unit TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS day_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		week_id INTEGER NOT NULL,
		age INTEGER NOT NULL CHECK (age > 0),
		deaths_daily INTEGER,
		deaths_total INTEGER,
		feed_daily REAL,
		feed_total REAL,
		treatment_id INTEGER,
		treatment_dose TEXT,
		analyses TEXT,
		remarks TEXT,
		FOREIGN KEY (week_id) REFERENCES weeks(id) ON DELETE CASCADE,
		FOREIGN KEY (treatment_id) REFERENCES treatments(id) ON DELETE SET NULL,
		UNIQUE(week_id, age)
	);

	CREATE INDEX IF NOT EXISTS idx_day_logs_week_id ON day_logs(week_id);
	CREATE INDEX IF NOT EXISTS idx_day_logs_treatment_id ON day_logs(treatment_id);

	CREATE TABLE IF NOT EXISTS provision_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		flock_id INTEGER NOT NULL,
		quantity_kg REAL NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (flock_id) REFERENCES flocks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_provision_entries_flock_id ON provision_entries(flock_id);

	CREATE TABLE IF NOT EXISTS diseases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS barn_diseases (
		barn_id INTEGER NOT NULL,
		disease_id INTEGER NOT NULL,
		FOREIGN KEY (barn_id) REFERENCES barns(id) ON DELETE CASCADE,
		FOREIGN KEY (disease_id) REFERENCES diseases(id) ON DELETE CASCADE,
		UNIQUE(barn_id, disease_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION BOUNDARY (brood.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(brood.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreErr("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: queries{db: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// queries holds every data operation, parameterized over *sql.DB or
// *sql.Tx so the same implementations serve both scopes.
type queries struct {
	db DBTX
}

// =============================================================================
// FLOCKS
// =============================================================================

// InsertFlock creates a flock row with a zero ledger.
func (q queries) InsertFlock(ctx context.Context, f brood.Flock) (*brood.Flock, error) {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO flocks (name, arrival_date, chick_count, notes, feed_on_hand, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		f.Name, f.ArrivalDate, f.ChickCount, nullStringPtr(f.Notes), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, wrapStoreErr("insert flock", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStoreErr("insert flock", err)
	}
	f.ID = id
	f.FeedOnHand = 0
	f.CreatedAt = now
	return &f, nil
}

// GetFlock returns a flock by id, or nil when absent.
func (q queries) GetFlock(ctx context.Context, id int64) (*brood.Flock, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, arrival_date, chick_count, notes, feed_on_hand, created_at
		FROM flocks WHERE id = ?`, id)

	f, err := scanFlock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr("get flock", err)
	}
	return &f, nil
}

// ListFlocks returns all flocks, most recent first.
func (q queries) ListFlocks(ctx context.Context) ([]brood.Flock, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, arrival_date, chick_count, notes, feed_on_hand, created_at
		FROM flocks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, wrapStoreErr("list flocks", err)
	}
	defer rows.Close()

	var flocks []brood.Flock
	for rows.Next() {
		f, err := scanFlock(rows)
		if err != nil {
			return nil, wrapStoreErr("scan flock", err)
		}
		flocks = append(flocks, f)
	}
	return flocks, rows.Err()
}

func scanFlock(sc scanner) (brood.Flock, error) {
	var (
		f         brood.Flock
		notes     sql.NullString
		createdAt string
	)
	err := sc.Scan(&f.ID, &f.Name, &f.ArrivalDate, &f.ChickCount, &notes, &f.FeedOnHand, &createdAt)
	if err != nil {
		return f, err
	}
	f.Notes = stringPtr(notes)
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return f, nil
}

// =============================================================================
// BARNS
// =============================================================================

// InsertBarn creates a barn after validating the owning flock exists.
func (q queries) InsertBarn(ctx context.Context, b brood.Barn) (*brood.Barn, error) {
	if err := q.requireRow(ctx, "flocks", "flock", b.FlockID); err != nil {
		return nil, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO barns (flock_id, barn_no, breed, chick_count)
		VALUES (?, ?, ?, ?)`,
		b.FlockID, b.BarnNo, b.Breed, b.ChickCount,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, &brood.DuplicateError{Entity: "barn", Key: fmt.Sprintf("flock=%d barn_no=%s", b.FlockID, b.BarnNo)}
		}
		return nil, wrapStoreErr("insert barn", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStoreErr("insert barn", err)
	}
	b.ID = id
	return &b, nil
}

// GetBarn returns a barn by id, or nil when absent.
func (q queries) GetBarn(ctx context.Context, id int64) (*brood.Barn, error) {
	var b brood.Barn
	err := q.db.QueryRowContext(ctx, `
		SELECT id, flock_id, barn_no, breed, chick_count FROM barns WHERE id = ?`, id,
	).Scan(&b.ID, &b.FlockID, &b.BarnNo, &b.Breed, &b.ChickCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr("get barn", err)
	}
	return &b, nil
}

// ListBarns returns a flock's barns ordered by barn number.
func (q queries) ListBarns(ctx context.Context, flockID int64) ([]brood.Barn, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, flock_id, barn_no, breed, chick_count
		FROM barns WHERE flock_id = ? ORDER BY barn_no`, flockID)
	if err != nil {
		return nil, wrapStoreErr("list barns", err)
	}
	defer rows.Close()

	var barns []brood.Barn
	for rows.Next() {
		var b brood.Barn
		if err := rows.Scan(&b.ID, &b.FlockID, &b.BarnNo, &b.Breed, &b.ChickCount); err != nil {
			return nil, wrapStoreErr("scan barn", err)
		}
		barns = append(barns, b)
	}
	return barns, rows.Err()
}

// =============================================================================
// WEEKS
// =============================================================================

// CreateWeek inserts a week after validating the barn exists. A
// natural-key collision surfaces as a DuplicateError.
func (q queries) CreateWeek(ctx context.Context, barnID int64, weekNo int) (*brood.Week, error) {
	if err := q.requireRow(ctx, "barns", "barn", barnID); err != nil {
		return nil, err
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO weeks (barn_id, week_no) VALUES (?, ?)`, barnID, weekNo)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, &brood.DuplicateError{Entity: "week", Key: fmt.Sprintf("barn=%d week_no=%d", barnID, weekNo)}
		}
		return nil, wrapStoreErr("create week", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStoreErr("create week", err)
	}
	return &brood.Week{ID: id, BarnID: barnID, WeekNo: weekNo}, nil
}

// EnsureWeek is the materializer's idempotent insert: a conflict on
// (barn_id, week_no) is a no-op and the surviving row is returned.
func (q queries) EnsureWeek(ctx context.Context, barnID int64, weekNo int) (*brood.Week, error) {
	if err := q.requireRow(ctx, "barns", "barn", barnID); err != nil {
		return nil, err
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO weeks (barn_id, week_no) VALUES (?, ?)
		ON CONFLICT(barn_id, week_no) DO NOTHING`, barnID, weekNo)
	if err != nil {
		return nil, wrapStoreErr("ensure week", err)
	}

	var w brood.Week
	var weight sql.NullFloat64
	err = q.db.QueryRowContext(ctx,
		`SELECT id, barn_id, week_no, weight FROM weeks WHERE barn_id = ? AND week_no = ?`,
		barnID, weekNo,
	).Scan(&w.ID, &w.BarnID, &w.WeekNo, &weight)
	if err != nil {
		return nil, wrapStoreErr("ensure week", err)
	}
	w.Weight = floatPtr(weight)
	return &w, nil
}

// GetWeek returns a week by id, or nil when absent.
func (q queries) GetWeek(ctx context.Context, id int64) (*brood.Week, error) {
	var w brood.Week
	var weight sql.NullFloat64
	err := q.db.QueryRowContext(ctx,
		`SELECT id, barn_id, week_no, weight FROM weeks WHERE id = ?`, id,
	).Scan(&w.ID, &w.BarnID, &w.WeekNo, &weight)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr("get week", err)
	}
	w.Weight = floatPtr(weight)
	return &w, nil
}

// ListWeeks returns a barn's weeks ordered by week number.
func (q queries) ListWeeks(ctx context.Context, barnID int64) ([]brood.Week, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, barn_id, week_no, weight FROM weeks WHERE barn_id = ? ORDER BY week_no`, barnID)
	if err != nil {
		return nil, wrapStoreErr("list weeks", err)
	}
	defer rows.Close()

	var weeks []brood.Week
	for rows.Next() {
		var w brood.Week
		var weight sql.NullFloat64
		if err := rows.Scan(&w.ID, &w.BarnID, &w.WeekNo, &weight); err != nil {
			return nil, wrapStoreErr("scan week", err)
		}
		w.Weight = floatPtr(weight)
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

// SetWeekWeight updates the week's average weight; nil clears it.
func (q queries) SetWeekWeight(ctx context.Context, weekID int64, weight *float64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE weeks SET weight = ? WHERE id = ?`, nullFloatPtr(weight), weekID)
	if err != nil {
		return wrapStoreErr("set week weight", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("set week weight", err)
	}
	if n == 0 {
		return &brood.NotFoundError{Entity: "week", ID: weekID}
	}
	return nil
}

// =============================================================================
// DAY LOGS
// =============================================================================

const dayLogColumns = `
	d.id, d.week_id, d.age, d.deaths_daily, d.deaths_total,
	d.feed_daily, d.feed_total, d.treatment_id, t.name,
	d.treatment_dose, d.analyses, d.remarks`

// CreateDayLog inserts a day log after validating the owning week
// exists. A collision on (week_id, age) surfaces as a DuplicateError.
func (q queries) CreateDayLog(ctx context.Context, d brood.DayLog) (*brood.DayLog, error) {
	if err := q.requireRow(ctx, "weeks", "week", d.WeekID); err != nil {
		return nil, err
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO day_logs (week_id, age, deaths_daily, deaths_total, feed_daily,
			feed_total, treatment_id, treatment_dose, analyses, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.WeekID, d.Age,
		nullInt64Ptr(d.DeathsDaily), nullInt64Ptr(d.DeathsTotal),
		nullFloatPtr(d.FeedDaily), nullFloatPtr(d.FeedTotal),
		nullInt64Ptr(d.TreatmentID), nullStringPtr(d.TreatmentDose),
		nullStringPtr(d.Analyses), nullStringPtr(d.Remarks),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, &brood.DuplicateError{Entity: "day log", Key: fmt.Sprintf("week=%d age=%d", d.WeekID, d.Age)}
		}
		return nil, wrapStoreErr("create day log", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStoreErr("create day log", err)
	}
	d.ID = id
	return &d, nil
}

// UpdateDayLog rewrites a persisted day log in place by surrogate id.
// The natural key (week_id, age) never changes.
func (q queries) UpdateDayLog(ctx context.Context, d brood.DayLog) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE day_logs SET deaths_daily = ?, deaths_total = ?, feed_daily = ?,
			feed_total = ?, treatment_id = ?, treatment_dose = ?, analyses = ?, remarks = ?
		WHERE id = ?`,
		nullInt64Ptr(d.DeathsDaily), nullInt64Ptr(d.DeathsTotal),
		nullFloatPtr(d.FeedDaily), nullFloatPtr(d.FeedTotal),
		nullInt64Ptr(d.TreatmentID), nullStringPtr(d.TreatmentDose),
		nullStringPtr(d.Analyses), nullStringPtr(d.Remarks),
		d.ID,
	)
	if err != nil {
		return wrapStoreErr("update day log", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("update day log", err)
	}
	if n == 0 {
		return &brood.NotFoundError{Entity: "day log", ID: d.ID}
	}
	return nil
}

// FindDayLog resolves the natural key (week_id, age), or nil when no
// row was ever persisted at that address.
func (q queries) FindDayLog(ctx context.Context, weekID int64, age int) (*brood.DayLog, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+dayLogColumns+`
		FROM day_logs d
		LEFT JOIN treatments t ON t.id = d.treatment_id
		WHERE d.week_id = ? AND d.age = ?`, weekID, age)

	d, err := scanDayLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr("find day log", err)
	}
	return &d, nil
}

// ListDayLogs returns a week's persisted day logs ordered by age.
func (q queries) ListDayLogs(ctx context.Context, weekID int64) ([]brood.DayLog, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+dayLogColumns+`
		FROM day_logs d
		LEFT JOIN treatments t ON t.id = d.treatment_id
		WHERE d.week_id = ? ORDER BY d.age`, weekID)
	if err != nil {
		return nil, wrapStoreErr("list day logs", err)
	}
	defer rows.Close()

	var logs []brood.DayLog
	for rows.Next() {
		d, err := scanDayLog(rows)
		if err != nil {
			return nil, wrapStoreErr("scan day log", err)
		}
		logs = append(logs, d)
	}
	return logs, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDayLog(sc scanner) (brood.DayLog, error) {
	var (
		d             brood.DayLog
		deathsDaily   sql.NullInt64
		deathsTotal   sql.NullInt64
		feedDaily     sql.NullFloat64
		feedTotal     sql.NullFloat64
		treatmentID   sql.NullInt64
		treatmentName sql.NullString
		treatmentDose sql.NullString
		analyses      sql.NullString
		remarks       sql.NullString
	)
	err := sc.Scan(&d.ID, &d.WeekID, &d.Age, &deathsDaily, &deathsTotal,
		&feedDaily, &feedTotal, &treatmentID, &treatmentName,
		&treatmentDose, &analyses, &remarks)
	if err != nil {
		return d, err
	}
	d.DeathsDaily = int64Ptr(deathsDaily)
	d.DeathsTotal = int64Ptr(deathsTotal)
	d.FeedDaily = floatPtr(feedDaily)
	d.FeedTotal = floatPtr(feedTotal)
	d.TreatmentID = int64Ptr(treatmentID)
	d.TreatmentName = stringPtr(treatmentName)
	d.TreatmentDose = stringPtr(treatmentDose)
	d.Analyses = stringPtr(analyses)
	d.Remarks = stringPtr(remarks)
	return d, nil
}

// =============================================================================
// LEDGER (brood.LedgerStore)
// =============================================================================

// AdjustFeed moves the flock's ledger by deltaKg with a store-evaluated
// increment, so concurrent writers cannot lose updates.
func (q queries) AdjustFeed(ctx context.Context, flockID int64, deltaKg float64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE flocks SET feed_on_hand = feed_on_hand + ? WHERE id = ?`, deltaKg, flockID)
	if err != nil {
		return wrapStoreErr("adjust feed ledger", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("adjust feed ledger", err)
	}
	if n == 0 {
		return &brood.NotFoundError{Entity: "flock", ID: flockID}
	}
	return nil
}

// ResetFeed zeroes the ledger.
func (q queries) ResetFeed(ctx context.Context, flockID int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE flocks SET feed_on_hand = 0 WHERE id = ?`, flockID)
	if err != nil {
		return wrapStoreErr("reset feed ledger", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("reset feed ledger", err)
	}
	if n == 0 {
		return &brood.NotFoundError{Entity: "flock", ID: flockID}
	}
	return nil
}

// RecomputeFeed rewrites feed_on_hand as a fresh aggregate: the sum of
// provision entries minus the sack-to-kg converted sum of all remaining
// day-level feed consumption under the flock.
func (q queries) RecomputeFeed(ctx context.Context, flockID int64) (float64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE flocks SET feed_on_hand =
			COALESCE((SELECT SUM(quantity_kg) FROM provision_entries WHERE flock_id = ?), 0)
			- ? * COALESCE((SELECT SUM(d.feed_daily)
				FROM day_logs d
				JOIN weeks w ON w.id = d.week_id
				JOIN barns b ON b.id = w.barn_id
				WHERE b.flock_id = ?), 0)
		WHERE id = ?`,
		flockID, float64(brood.KgPerSack), flockID, flockID,
	)
	if err != nil {
		return 0, wrapStoreErr("recompute feed ledger", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStoreErr("recompute feed ledger", err)
	}
	if n == 0 {
		return 0, &brood.NotFoundError{Entity: "flock", ID: flockID}
	}
	return q.FeedOnHand(ctx, flockID)
}

// FeedOnHand reads the ledger value.
func (q queries) FeedOnHand(ctx context.Context, flockID int64) (float64, error) {
	var v float64
	err := q.db.QueryRowContext(ctx,
		`SELECT feed_on_hand FROM flocks WHERE id = ?`, flockID).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, &brood.NotFoundError{Entity: "flock", ID: flockID}
	}
	if err != nil {
		return 0, wrapStoreErr("read feed ledger", err)
	}
	return v, nil
}

// =============================================================================
// PROVISION ENTRIES (brood.ProvisionStore)
// =============================================================================

// InsertProvision appends a signed feed-delivery record.
func (q queries) InsertProvision(ctx context.Context, p brood.ProvisionEntry) (*brood.ProvisionEntry, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO provision_entries (flock_id, quantity_kg, created_at)
		VALUES (?, ?, ?)`,
		p.FlockID, p.QuantityKg, p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, wrapStoreErr("insert provision entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStoreErr("insert provision entry", err)
	}
	p.ID = id
	return &p, nil
}

// GetProvision returns a provision entry by id, or nil when absent.
func (q queries) GetProvision(ctx context.Context, id int64) (*brood.ProvisionEntry, error) {
	var p brood.ProvisionEntry
	var createdAt string
	err := q.db.QueryRowContext(ctx,
		`SELECT id, flock_id, quantity_kg, created_at FROM provision_entries WHERE id = ?`, id,
	).Scan(&p.ID, &p.FlockID, &p.QuantityKg, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr("get provision entry", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// UpdateProvision rewrites an entry's flock and quantity.
func (q queries) UpdateProvision(ctx context.Context, p brood.ProvisionEntry) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE provision_entries SET flock_id = ?, quantity_kg = ? WHERE id = ?`,
		p.FlockID, p.QuantityKg, p.ID)
	if err != nil {
		return wrapStoreErr("update provision entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("update provision entry", err)
	}
	if n == 0 {
		return &brood.NotFoundError{Entity: "provision entry", ID: p.ID}
	}
	return nil
}

// DeleteProvision removes a single entry.
func (q queries) DeleteProvision(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM provision_entries WHERE id = ?`, id)
	if err != nil {
		return wrapStoreErr("delete provision entry", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStoreErr("delete provision entry", err)
	}
	if n == 0 {
		return &brood.NotFoundError{Entity: "provision entry", ID: id}
	}
	return nil
}

// ListProvisions returns a flock's entries, most recent first.
func (q queries) ListProvisions(ctx context.Context, flockID int64) ([]brood.ProvisionEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, flock_id, quantity_kg, created_at
		FROM provision_entries WHERE flock_id = ?
		ORDER BY created_at DESC, id DESC`, flockID)
	if err != nil {
		return nil, wrapStoreErr("list provision entries", err)
	}
	defer rows.Close()

	var entries []brood.ProvisionEntry
	for rows.Next() {
		var p brood.ProvisionEntry
		var createdAt string
		if err := rows.Scan(&p.ID, &p.FlockID, &p.QuantityKg, &createdAt); err != nil {
			return nil, wrapStoreErr("scan provision entry", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

// DeleteProvisionsByFlock removes a flock's whole history.
func (q queries) DeleteProvisionsByFlock(ctx context.Context, flockID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM provision_entries WHERE flock_id = ?`, flockID)
	if err != nil {
		return wrapStoreErr("delete provision entries", err)
	}
	return nil
}

// =============================================================================
// CASCADE DELETES (brood.CascadeStore)
// =============================================================================

// WeekIDsByBarn resolves the week ids under a barn.
func (q queries) WeekIDsByBarn(ctx context.Context, barnID int64) ([]int64, error) {
	return q.idList(ctx, `SELECT id FROM weeks WHERE barn_id = ?`, barnID)
}

// BarnIDsByFlock resolves the barn ids under a flock.
func (q queries) BarnIDsByFlock(ctx context.Context, flockID int64) ([]int64, error) {
	return q.idList(ctx, `SELECT id FROM barns WHERE flock_id = ?`, flockID)
}

func (q queries) idList(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, wrapStoreErr("resolve ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapStoreErr("resolve ids", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDayLogsByWeeks removes all day logs under the given weeks and
// returns the number of rows deleted.
func (q queries) DeleteDayLogsByWeeks(ctx context.Context, weekIDs []int64) (int64, error) {
	if len(weekIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(weekIDs)), ",")
	args := make([]any, len(weekIDs))
	for i, id := range weekIDs {
		args[i] = id
	}
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM day_logs WHERE week_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, wrapStoreErr("delete day logs", err)
	}
	return res.RowsAffected()
}

// DeleteWeeksByBarn removes all weeks under a barn.
func (q queries) DeleteWeeksByBarn(ctx context.Context, barnID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM weeks WHERE barn_id = ?`, barnID)
	if err != nil {
		return wrapStoreErr("delete weeks", err)
	}
	return nil
}

// DeleteBarnDiseaseLinks removes a barn's disease cross-reference rows.
func (q queries) DeleteBarnDiseaseLinks(ctx context.Context, barnID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM barn_diseases WHERE barn_id = ?`, barnID)
	if err != nil {
		return wrapStoreErr("delete barn disease links", err)
	}
	return nil
}

// DeleteBarn removes the barn row, reporting whether it existed.
func (q queries) DeleteBarn(ctx context.Context, barnID int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM barns WHERE id = ?`, barnID)
	if err != nil {
		return false, wrapStoreErr("delete barn", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapStoreErr("delete barn", err)
	}
	return n > 0, nil
}

// DeleteFlock removes the flock row, reporting whether it existed.
func (q queries) DeleteFlock(ctx context.Context, flockID int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM flocks WHERE id = ?`, flockID)
	if err != nil {
		return false, wrapStoreErr("delete flock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapStoreErr("delete flock", err)
	}
	return n > 0, nil
}

// =============================================================================
// CATALOGS
// =============================================================================

// TreatmentExists checks a care-product catalog reference.
func (q queries) TreatmentExists(ctx context.Context, id int64) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM treatments WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, wrapStoreErr("check treatment", err)
	}
	return count > 0, nil
}

// InsertTreatment adds a care product to the catalog.
func (q queries) InsertTreatment(ctx context.Context, t brood.Treatment) (*brood.Treatment, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO treatments (name, unit, created_at) VALUES (?, ?, ?)`,
		t.Name, t.Unit, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, &brood.DuplicateError{Entity: "treatment", Key: t.Name}
		}
		return nil, wrapStoreErr("insert treatment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStoreErr("insert treatment", err)
	}
	t.ID = id
	return &t, nil
}

// ListTreatments returns the catalog ordered by name.
func (q queries) ListTreatments(ctx context.Context) ([]brood.Treatment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, unit FROM treatments ORDER BY name`)
	if err != nil {
		return nil, wrapStoreErr("list treatments", err)
	}
	defer rows.Close()

	var treatments []brood.Treatment
	for rows.Next() {
		var t brood.Treatment
		if err := rows.Scan(&t.ID, &t.Name, &t.Unit); err != nil {
			return nil, wrapStoreErr("scan treatment", err)
		}
		treatments = append(treatments, t)
	}
	return treatments, rows.Err()
}

// InsertDisease adds a disease to the catalog.
func (q queries) InsertDisease(ctx context.Context, d brood.Disease) (*brood.Disease, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO diseases (name, created_at) VALUES (?, ?)`,
		d.Name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, &brood.DuplicateError{Entity: "disease", Key: d.Name}
		}
		return nil, wrapStoreErr("insert disease", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStoreErr("insert disease", err)
	}
	d.ID = id
	return &d, nil
}

// ListDiseases returns the catalog ordered by name.
func (q queries) ListDiseases(ctx context.Context) ([]brood.Disease, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name FROM diseases ORDER BY name`)
	if err != nil {
		return nil, wrapStoreErr("list diseases", err)
	}
	defer rows.Close()

	var diseases []brood.Disease
	for rows.Next() {
		var d brood.Disease
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, wrapStoreErr("scan disease", err)
		}
		diseases = append(diseases, d)
	}
	return diseases, rows.Err()
}

// LinkBarnDisease records a disease incident on a barn. Relinking the
// same pair is a no-op.
func (q queries) LinkBarnDisease(ctx context.Context, barnID, diseaseID int64) error {
	if err := q.requireRow(ctx, "barns", "barn", barnID); err != nil {
		return err
	}
	if err := q.requireRow(ctx, "diseases", "disease", diseaseID); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO barn_diseases (barn_id, disease_id) VALUES (?, ?)`,
		barnID, diseaseID)
	if err != nil {
		return wrapStoreErr("link barn disease", err)
	}
	return nil
}

// ListBarnDiseases returns the diseases recorded on a barn.
func (q queries) ListBarnDiseases(ctx context.Context, barnID int64) ([]brood.Disease, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT d.id, d.name FROM diseases d
		JOIN barn_diseases bd ON bd.disease_id = d.id
		WHERE bd.barn_id = ? ORDER BY d.name`, barnID)
	if err != nil {
		return nil, wrapStoreErr("list barn diseases", err)
	}
	defer rows.Close()

	var diseases []brood.Disease
	for rows.Next() {
		var d brood.Disease
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, wrapStoreErr("scan disease", err)
		}
		diseases = append(diseases, d)
	}
	return diseases, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// requireRow validates a foreign key before an insert, inside the same
// transaction scope as the insert that follows.
func (q queries) requireRow(ctx context.Context, table, entity string, id int64) error {
	var count int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return wrapStoreErr("check "+entity, err)
	}
	if count == 0 {
		return &brood.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func wrapStoreErr(op string, err error) error {
	if isBusyError(err) {
		return fmt.Errorf("%s: %w", op, brood.ErrResourceUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloatPtr(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
