/*
Package sqlite provides a SQLite-backed implementation of school.Store.

PURPOSE:
  Production persistence for the school engine. The same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  students / classes / subjects        Directory
  fee_categories / transport_routes    Fee definitions
  bills / bill_items                   Billing documents + line items
  payments                             Payment documents
  ledger_entries                       Append-only running-balance ledger
  exams / exam_details                 Examination structure
  results / overall_results            Per-subject marks and rollups

DATABASE-ENFORCED INVARIANTS:
  - bills(number) PRIMARY KEY              bill-number uniqueness
  - bills(student_id, month) UNIQUE        one bill per student per month
  - payments(student_id, number) UNIQUE    per-student payment numbering
  - exam_details(exam_id, subject_id, class_id) UNIQUE
  - results PK (student_id, exam_detail_id)
  - overall_results PK (student_id, exam_id)
  Unique violations are mapped back onto the school error taxonomy, so
  the engines' optimistic pre-checks have a hard backstop.

APPEND-ONLY ENFORCEMENT:
  ledger_entries has INSERT and SELECT paths only; no UPDATE or DELETE
  statements exist for it. Seq is the AUTOINCREMENT primary key, giving
  the insertion order used to break transaction-date ties.

MONEY:
  Monetary values are stored as decimal strings (TEXT), never floats.

TRANSACTIONS:
  WithTx runs fn against a session bound to one sql.Tx; fn returning an
  error rolls the whole unit back. Units of work are also serialized on
  a process-level mutex; combined with WAL and a busy timeout this keeps
  SQLite's single-writer model out of the engines' way.

USAGE:
  st, err := sqlite.New("./school.db")   // ":memory:" for in-memory
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - school/store.go: Interface definitions
  - school/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/campusworks/school-engine/school"
)

// Store implements school.Store on SQLite.
type Store struct {
	session
	db *sql.DB
	mu sync.Mutex // serializes WithTx units of work
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	store := &Store{session: session{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Directory
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		class_id TEXT NOT NULL,
		section TEXT NOT NULL DEFAULT '',
		roll_no INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id);

	CREATE TABLE IF NOT EXISTS classes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		class_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_subjects_name ON subjects(name);

	-- Fee definitions
	CREATE TABLE IF NOT EXISTS fee_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		class_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fee_categories_class ON fee_categories(class_id);

	CREATE TABLE IF NOT EXISTS transport_routes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		fare TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Billing
	CREATE TABLE IF NOT EXISTS bills (
		number TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		month TEXT NOT NULL,
		route_id TEXT NOT NULL DEFAULT '',
		transport_fee TEXT NOT NULL,
		remarks TEXT NOT NULL DEFAULT '',
		subtotal TEXT NOT NULL,
		discount TEXT NOT NULL,
		total TEXT NOT NULL,
		date TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(student_id, month)
	);
	CREATE INDEX IF NOT EXISTS idx_bills_student ON bills(student_id);

	CREATE TABLE IF NOT EXISTS bill_items (
		bill_number TEXT NOT NULL,
		position INTEGER NOT NULL,
		category_id TEXT NOT NULL,
		category_name TEXT NOT NULL,
		scholarship INTEGER NOT NULL DEFAULT 0,
		amount TEXT NOT NULL,
		PRIMARY KEY(bill_number, position)
	);

	-- Payments (numbers are sequential per student)
	CREATE TABLE IF NOT EXISTS payments (
		number TEXT NOT NULL,
		student_id TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		remarks TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(student_id, number)
	);
	CREATE INDEX IF NOT EXISTS idx_payments_student ON payments(student_id);

	-- Append-only ledger. seq (AUTOINCREMENT) is the insertion order.
	CREATE TABLE IF NOT EXISTS ledger_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		student_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		document_number TEXT NOT NULL,
		month TEXT NOT NULL DEFAULT '',
		remarks TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		balance TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_student_date
		ON ledger_entries(student_id, transaction_date, seq);

	-- Exams
	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		timetable_published INTEGER NOT NULL DEFAULT 0,
		results_published INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_details (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		class_id TEXT NOT NULL,
		full_marks REAL NOT NULL,
		pass_marks REAL NOT NULL,
		schedule_at TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(exam_id, subject_id, class_id)
	);
	CREATE INDEX IF NOT EXISTS idx_exam_details_exam ON exam_details(exam_id);

	-- Marks and rollups
	CREATE TABLE IF NOT EXISTS results (
		student_id TEXT NOT NULL,
		exam_detail_id TEXT NOT NULL,
		exam_id TEXT NOT NULL,
		class_id TEXT NOT NULL,
		practical REAL NOT NULL,
		theory REAL NOT NULL,
		total REAL NOT NULL,
		full_marks REAL NOT NULL,
		percentage REAL NOT NULL,
		gpa REAL NOT NULL,
		grade TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY(student_id, exam_detail_id)
	);
	CREATE INDEX IF NOT EXISTS idx_results_student_exam ON results(student_id, exam_id);

	CREATE TABLE IF NOT EXISTS overall_results (
		student_id TEXT NOT NULL,
		exam_id TEXT NOT NULL,
		class_id TEXT NOT NULL,
		student_name TEXT NOT NULL,
		total_marks REAL NOT NULL,
		full_marks REAL NOT NULL,
		percentage REAL NOT NULL,
		gpa REAL NOT NULL,
		grade TEXT NOT NULL,
		rank INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY(student_id, exam_id)
	);
	CREATE INDEX IF NOT EXISTS idx_overall_class_exam ON overall_results(exam_id, class_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. Any error from fn
// rolls back every write made inside the unit of work.
func (s *Store) WithTx(ctx context.Context, fn func(school.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{session{q: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit failed: %v", school.ErrIntegrity, err)
	}
	return nil
}

// txStore is a session bound to an open transaction. A nested WithTx
// joins the current transaction instead of opening a new one.
type txStore struct {
	session
}

func (t *txStore) WithTx(_ context.Context, fn func(school.Store) error) error {
	return fn(t)
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session implements every school.Store method except WithTx against a
// dbtx, so the same code path serves plain and transactional access.
type session struct {
	q dbtx
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s session) CreateStudent(ctx context.Context, st school.Student) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO students (id, name, class_id, section, roll_no, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.ClassID, st.Section, st.RollNo, formatTime(st.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}
	return nil
}

func (s session) GetStudent(ctx context.Context, id school.StudentID) (*school.Student, error) {
	var st school.Student
	var createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, class_id, section, roll_no, created_at FROM students WHERE id = ?`, id).
		Scan(&st.ID, &st.Name, &st.ClassID, &st.Section, &st.RollNo, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	st.CreatedAt = parseTime(createdAt)
	return &st, nil
}

func (s session) ListStudents(ctx context.Context) ([]school.Student, error) {
	return s.queryStudents(ctx,
		`SELECT id, name, class_id, section, roll_no, created_at FROM students ORDER BY name, id`)
}

func (s session) StudentsByClass(ctx context.Context, classID school.ClassID) ([]school.Student, error) {
	return s.queryStudents(ctx,
		`SELECT id, name, class_id, section, roll_no, created_at FROM students WHERE class_id = ? ORDER BY name, id`,
		classID)
}

func (s session) queryStudents(ctx context.Context, query string, args ...any) ([]school.Student, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var out []school.Student
	for rows.Next() {
		var st school.Student
		var createdAt string
		if err := rows.Scan(&st.ID, &st.Name, &st.ClassID, &st.Section, &st.RollNo, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		st.CreatedAt = parseTime(createdAt)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s session) CreateClass(ctx context.Context, c school.ClassRoom) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO classes (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create class: %w", err)
	}
	return nil
}

func (s session) GetClass(ctx context.Context, id school.ClassID) (*school.ClassRoom, error) {
	var c school.ClassRoom
	var createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM classes WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (s session) ListClasses(ctx context.Context) ([]school.ClassRoom, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, created_at FROM classes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	var out []school.ClassRoom
	for rows.Next() {
		var c school.ClassRoom
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s session) CreateSubject(ctx context.Context, sub school.Subject) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO subjects (id, name, class_id, created_at) VALUES (?, ?, ?, ?)`,
		sub.ID, sub.Name, sub.ClassID, formatTime(sub.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create subject: %w", err)
	}
	return nil
}

func (s session) GetSubject(ctx context.Context, id school.SubjectID) (*school.Subject, error) {
	var sub school.Subject
	var createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, class_id, created_at FROM subjects WHERE id = ?`, id).
		Scan(&sub.ID, &sub.Name, &sub.ClassID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	sub.CreatedAt = parseTime(createdAt)
	return &sub, nil
}

func (s session) ListSubjects(ctx context.Context) ([]school.Subject, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, class_id, created_at FROM subjects ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	defer rows.Close()

	var out []school.Subject
	for rows.Next() {
		var sub school.Subject
		var createdAt string
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.ClassID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		sub.CreatedAt = parseTime(createdAt)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s session) SubjectClassesByName(ctx context.Context, name string) ([]school.ClassID, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT DISTINCT class_id FROM subjects WHERE name = ? AND class_id != '' ORDER BY class_id`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query subject classes: %w", err)
	}
	defer rows.Close()

	var out []school.ClassID
	for rows.Next() {
		var id school.ClassID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan class id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s session) CreateFeeCategory(ctx context.Context, c school.FeeCategory) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO fee_categories (id, name, class_id, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.ClassID, c.Amount.String(), formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create fee category: %w", err)
	}
	return nil
}

func (s session) GetFeeCategory(ctx context.Context, id school.CategoryID) (*school.FeeCategory, error) {
	var c school.FeeCategory
	var amount, createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, class_id, amount, created_at FROM fee_categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.ClassID, &amount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fee category: %w", err)
	}
	c.Amount, err = school.ParseMoney(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: fee category %s amount: %v", school.ErrIntegrity, id, err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func (s session) ListFeeCategories(ctx context.Context) ([]school.FeeCategory, error) {
	return s.queryFeeCategories(ctx,
		`SELECT id, name, class_id, amount, created_at FROM fee_categories ORDER BY name, id`)
}

func (s session) FeeCategoriesByClass(ctx context.Context, classID school.ClassID) ([]school.FeeCategory, error) {
	return s.queryFeeCategories(ctx,
		`SELECT id, name, class_id, amount, created_at FROM fee_categories WHERE class_id = ? ORDER BY name, id`,
		classID)
}

func (s session) queryFeeCategories(ctx context.Context, query string, args ...any) ([]school.FeeCategory, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee categories: %w", err)
	}
	defer rows.Close()

	var out []school.FeeCategory
	for rows.Next() {
		var c school.FeeCategory
		var amount, createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.ClassID, &amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan fee category: %w", err)
		}
		if c.Amount, err = school.ParseMoney(amount); err != nil {
			return nil, fmt.Errorf("%w: fee category %s amount: %v", school.ErrIntegrity, c.ID, err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s session) CreateTransportRoute(ctx context.Context, r school.TransportRoute) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO transport_routes (id, name, fare, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.Name, r.Fare.String(), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create transport route: %w", err)
	}
	return nil
}

func (s session) GetTransportRoute(ctx context.Context, id school.RouteID) (*school.TransportRoute, error) {
	var r school.TransportRoute
	var fare, createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, fare, created_at FROM transport_routes WHERE id = ?`, id).
		Scan(&r.ID, &r.Name, &fare, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transport route: %w", err)
	}
	if r.Fare, err = school.ParseMoney(fare); err != nil {
		return nil, fmt.Errorf("%w: route %s fare: %v", school.ErrIntegrity, id, err)
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func (s session) ListTransportRoutes(ctx context.Context) ([]school.TransportRoute, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, fare, created_at FROM transport_routes ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transport routes: %w", err)
	}
	defer rows.Close()

	var out []school.TransportRoute
	for rows.Next() {
		var r school.TransportRoute
		var fare, createdAt string
		if err := rows.Scan(&r.ID, &r.Name, &fare, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transport route: %w", err)
		}
		if r.Fare, err = school.ParseMoney(fare); err != nil {
			return nil, fmt.Errorf("%w: route %s fare: %v", school.ErrIntegrity, r.ID, err)
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// BILLING
// =============================================================================

func (s session) CreateBill(ctx context.Context, b school.Bill) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bills
		(number, student_id, month, route_id, transport_fee, remarks, subtotal, discount, total, date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Number, b.StudentID, b.Month, string(b.RouteID), b.TransportFee.String(), b.Remarks,
		b.Subtotal.String(), b.Discount.String(), b.Total.String(),
		formatTime(b.Date), b.CreatedBy, formatTime(b.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "bills.student_id") {
				return &school.DuplicateBillError{StudentID: b.StudentID, Month: b.Month}
			}
			return school.ErrNumberingExhausted
		}
		return fmt.Errorf("failed to create bill: %w", err)
	}

	for i, item := range b.Items {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO bill_items (bill_number, position, category_id, category_name, scholarship, amount)
			VALUES (?, ?, ?, ?, ?, ?)`,
			b.Number, i, item.CategoryID, item.CategoryName, boolToInt(item.Scholarship), item.Amount.String())
		if err != nil {
			return fmt.Errorf("failed to create bill item: %w", err)
		}
	}
	return nil
}

const billColumns = `number, student_id, month, route_id, transport_fee, remarks, subtotal, discount, total, date, created_by, created_at`

func (s session) GetBillByNumber(ctx context.Context, number string) (*school.Bill, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+billColumns+` FROM bills WHERE number = ?`, number)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill: %w", err)
	}
	bills, err := collectBills(rows)
	if err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, school.ErrBillNotFound
	}

	items, err := s.billItems(ctx, bills[0].Number)
	if err != nil {
		return nil, err
	}
	bills[0].Items = items
	return &bills[0], nil
}

func (s session) BillsForStudent(ctx context.Context, studentID school.StudentID) ([]school.Bill, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+billColumns+` FROM bills WHERE student_id = ? ORDER BY month`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	bills, err := collectBills(rows)
	if err != nil {
		return nil, err
	}

	for i := range bills {
		items, err := s.billItems(ctx, bills[i].Number)
		if err != nil {
			return nil, err
		}
		bills[i].Items = items
	}
	return bills, nil
}

func collectBills(rows *sql.Rows) ([]school.Bill, error) {
	defer rows.Close()

	var out []school.Bill
	for rows.Next() {
		var b school.Bill
		var routeID, transportFee, subtotal, discount, total, date, createdAt string
		if err := rows.Scan(&b.Number, &b.StudentID, &b.Month, &routeID, &transportFee, &b.Remarks,
			&subtotal, &discount, &total, &date, &b.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		b.RouteID = school.RouteID(routeID)
		var err error
		if b.TransportFee, err = school.ParseMoney(transportFee); err != nil {
			return nil, fmt.Errorf("%w: bill %s transport fee: %v", school.ErrIntegrity, b.Number, err)
		}
		if b.Subtotal, err = school.ParseMoney(subtotal); err != nil {
			return nil, fmt.Errorf("%w: bill %s subtotal: %v", school.ErrIntegrity, b.Number, err)
		}
		if b.Discount, err = school.ParseMoney(discount); err != nil {
			return nil, fmt.Errorf("%w: bill %s discount: %v", school.ErrIntegrity, b.Number, err)
		}
		if b.Total, err = school.ParseMoney(total); err != nil {
			return nil, fmt.Errorf("%w: bill %s total: %v", school.ErrIntegrity, b.Number, err)
		}
		b.Date = parseTime(date)
		b.CreatedAt = parseTime(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s session) billItems(ctx context.Context, number string) ([]school.BillItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT category_id, category_name, scholarship, amount
		FROM bill_items WHERE bill_number = ? ORDER BY position`, number)
	if err != nil {
		return nil, fmt.Errorf("failed to query bill items: %w", err)
	}
	defer rows.Close()

	var items []school.BillItem
	for rows.Next() {
		var item school.BillItem
		var scholarship int
		var amount string
		if err := rows.Scan(&item.CategoryID, &item.CategoryName, &scholarship, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan bill item: %w", err)
		}
		item.Scholarship = scholarship != 0
		if item.Amount, err = school.ParseMoney(amount); err != nil {
			return nil, fmt.Errorf("%w: bill %s item amount: %v", school.ErrIntegrity, number, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s session) BillExists(ctx context.Context, studentID school.StudentID, month school.BillMonth) (bool, error) {
	var count int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bills WHERE student_id = ? AND month = ?`, studentID, month).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check bill existence: %w", err)
	}
	return count > 0, nil
}

func (s session) CountBills(ctx context.Context) (int, error) {
	var count int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bills: %w", err)
	}
	return count, nil
}

func (s session) BillNumberTaken(ctx context.Context, number string) (bool, error) {
	var count int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bills WHERE number = ?`, number).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check bill number: %w", err)
	}
	return count > 0, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s session) CreatePayment(ctx context.Context, p school.Payment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO payments (number, student_id, amount_paid, remarks, date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Number, p.StudentID, p.AmountPaid.String(), p.Remarks,
		formatTime(p.Date), p.CreatedBy, formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return school.ErrNumberingExhausted
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (s session) PaymentsForStudent(ctx context.Context, studentID school.StudentID) ([]school.Payment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT number, student_id, amount_paid, remarks, date, created_by, created_at
		FROM payments WHERE student_id = ? ORDER BY date, number`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []school.Payment
	for rows.Next() {
		var p school.Payment
		var amount, date, createdAt string
		if err := rows.Scan(&p.Number, &p.StudentID, &amount, &p.Remarks, &date, &p.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.AmountPaid, err = school.ParseMoney(amount); err != nil {
			return nil, fmt.Errorf("%w: payment %s amount: %v", school.ErrIntegrity, p.Number, err)
		}
		p.Date = parseTime(date)
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s session) CountPayments(ctx context.Context, studentID school.StudentID) (int, error) {
	var count int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE student_id = ?`, studentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

func (s session) PaymentNumberTaken(ctx context.Context, studentID school.StudentID, number string) (bool, error) {
	var count int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE student_id = ? AND number = ?`, studentID, number).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check payment number: %w", err)
	}
	return count > 0, nil
}

// =============================================================================
// LEDGER (append-only)
// =============================================================================

func (s session) AppendLedgerEntry(ctx context.Context, e school.LedgerEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(id, student_id, kind, document_number, month, remarks, amount, balance, transaction_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StudentID, e.Kind, e.DocumentNumber, e.Month, e.Remarks,
		e.Amount.String(), e.Balance.String(), formatTime(e.TransactionDate), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

const ledgerColumns = `seq, id, student_id, kind, document_number, month, remarks, amount, balance, transaction_date, created_at`

func (s session) LatestLedgerEntry(ctx context.Context, studentID school.StudentID) (*school.LedgerEntry, error) {
	entries, err := s.queryLedger(ctx, `
		SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE student_id = ?
		ORDER BY transaction_date DESC, seq DESC LIMIT 1`, studentID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s session) LedgerEntries(ctx context.Context, studentID school.StudentID) ([]school.LedgerEntry, error) {
	return s.queryLedger(ctx, `
		SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE student_id = ?
		ORDER BY transaction_date ASC, seq ASC`, studentID)
}

func (s session) queryLedger(ctx context.Context, query string, args ...any) ([]school.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []school.LedgerEntry
	for rows.Next() {
		var e school.LedgerEntry
		var kind, amount, balance, txDate, createdAt string
		if err := rows.Scan(&e.Seq, &e.ID, &e.StudentID, &kind, &e.DocumentNumber,
			&e.Month, &e.Remarks, &amount, &balance, &txDate, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Kind = school.EntryKind(kind)
		if e.Amount, err = school.ParseMoney(amount); err != nil {
			return nil, fmt.Errorf("%w: ledger entry %s amount: %v", school.ErrIntegrity, e.ID, err)
		}
		if e.Balance, err = school.ParseMoney(balance); err != nil {
			return nil, fmt.Errorf("%w: ledger entry %s balance: %v", school.ErrIntegrity, e.ID, err)
		}
		e.TransactionDate = parseTime(txDate)
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// EXAMS
// =============================================================================

func (s session) CreateExam(ctx context.Context, e school.Exam) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO exams (id, name, timetable_published, results_published, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Name, boolToInt(e.TimetablePublished), boolToInt(e.ResultsPublished), formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	return nil
}

func (s session) GetExam(ctx context.Context, id school.ExamID) (*school.Exam, error) {
	var e school.Exam
	var timetable, results int
	var createdAt string
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, timetable_published, results_published, created_at FROM exams WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &timetable, &results, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	e.TimetablePublished = timetable != 0
	e.ResultsPublished = results != 0
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

func (s session) ListExams(ctx context.Context) ([]school.Exam, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, timetable_published, results_published, created_at FROM exams ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query exams: %w", err)
	}
	defer rows.Close()

	var out []school.Exam
	for rows.Next() {
		var e school.Exam
		var timetable, results int
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Name, &timetable, &results, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan exam: %w", err)
		}
		e.TimetablePublished = timetable != 0
		e.ResultsPublished = results != 0
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s session) UpdateExam(ctx context.Context, e school.Exam) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE exams SET name = ?, timetable_published = ?, results_published = ? WHERE id = ?`,
		e.Name, boolToInt(e.TimetablePublished), boolToInt(e.ResultsPublished), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return school.ErrExamNotFound
	}
	return nil
}

func (s session) CreateExamDetail(ctx context.Context, d school.ExamDetail) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO exam_details
		(id, exam_id, subject_id, class_id, full_marks, pass_marks, schedule_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ExamID, d.SubjectID, d.ClassID, d.FullMarks, d.PassMarks,
		formatTime(d.ScheduleAt), d.CreatedBy, formatTime(d.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return school.ErrDuplicateExamDetail
		}
		return fmt.Errorf("failed to create exam detail: %w", err)
	}
	return nil
}

const examDetailColumns = `id, exam_id, subject_id, class_id, full_marks, pass_marks, schedule_at, created_by, created_at`

func (s session) GetExamDetail(ctx context.Context, id school.ExamDetailID) (*school.ExamDetail, error) {
	var d school.ExamDetail
	var scheduleAt, createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT `+examDetailColumns+` FROM exam_details WHERE id = ?`, id).
		Scan(&d.ID, &d.ExamID, &d.SubjectID, &d.ClassID, &d.FullMarks, &d.PassMarks,
			&scheduleAt, &d.CreatedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrExamDetailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exam detail: %w", err)
	}
	d.ScheduleAt = parseTime(scheduleAt)
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

func (s session) ExamDetailExists(ctx context.Context, examID school.ExamID, subjectID school.SubjectID, classID school.ClassID) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM exam_details WHERE exam_id = ? AND subject_id = ? AND class_id = ?`,
		examID, subjectID, classID).Scan(&count)
	return count > 0, err
}

func (s session) ExamDetailsForExam(ctx context.Context, examID school.ExamID) ([]school.ExamDetail, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+examDetailColumns+` FROM exam_details WHERE exam_id = ? ORDER BY schedule_at, id`, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exam details: %w", err)
	}
	defer rows.Close()

	var out []school.ExamDetail
	for rows.Next() {
		var d school.ExamDetail
		var scheduleAt, createdAt string
		if err := rows.Scan(&d.ID, &d.ExamID, &d.SubjectID, &d.ClassID, &d.FullMarks, &d.PassMarks,
			&scheduleAt, &d.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan exam detail: %w", err)
		}
		d.ScheduleAt = parseTime(scheduleAt)
		d.CreatedAt = parseTime(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// =============================================================================
// RESULTS
// =============================================================================

func (s session) SaveResult(ctx context.Context, r school.StudentResult) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO results
		(student_id, exam_detail_id, exam_id, class_id, practical, theory, total, full_marks, percentage, gpa, grade, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, exam_detail_id) DO UPDATE SET
			practical = excluded.practical,
			theory = excluded.theory,
			total = excluded.total,
			full_marks = excluded.full_marks,
			percentage = excluded.percentage,
			gpa = excluded.gpa,
			grade = excluded.grade,
			updated_at = excluded.updated_at`,
		r.StudentID, r.ExamDetailID, r.ExamID, r.ClassID, r.Practical, r.Theory,
		r.Total, r.FullMarks, r.Percentage, r.GPA, r.Grade, formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

const resultColumns = `student_id, exam_detail_id, exam_id, class_id, practical, theory, total, full_marks, percentage, gpa, grade, updated_at`

func (s session) GetResult(ctx context.Context, studentID school.StudentID, detailID school.ExamDetailID) (*school.StudentResult, error) {
	var r school.StudentResult
	var updatedAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE student_id = ? AND exam_detail_id = ?`,
		studentID, detailID).
		Scan(&r.StudentID, &r.ExamDetailID, &r.ExamID, &r.ClassID, &r.Practical, &r.Theory,
			&r.Total, &r.FullMarks, &r.Percentage, &r.GPA, &r.Grade, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func (s session) ResultsForStudentExam(ctx context.Context, studentID school.StudentID, examID school.ExamID) ([]school.StudentResult, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+resultColumns+` FROM results
		WHERE student_id = ? AND exam_id = ? ORDER BY exam_detail_id`, studentID, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []school.StudentResult
	for rows.Next() {
		var r school.StudentResult
		var updatedAt string
		if err := rows.Scan(&r.StudentID, &r.ExamDetailID, &r.ExamID, &r.ClassID, &r.Practical, &r.Theory,
			&r.Total, &r.FullMarks, &r.Percentage, &r.GPA, &r.Grade, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.UpdatedAt = parseTime(updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s session) SaveOverallResult(ctx context.Context, r school.StudentOverallResult) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO overall_results
		(student_id, exam_id, class_id, student_name, total_marks, full_marks, percentage, gpa, grade, rank, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, exam_id) DO UPDATE SET
			class_id = excluded.class_id,
			student_name = excluded.student_name,
			total_marks = excluded.total_marks,
			full_marks = excluded.full_marks,
			percentage = excluded.percentage,
			gpa = excluded.gpa,
			grade = excluded.grade,
			rank = excluded.rank,
			updated_at = excluded.updated_at`,
		r.StudentID, r.ExamID, r.ClassID, r.StudentName, r.TotalMarks, r.FullMarks,
		r.Percentage, r.GPA, r.Grade, r.Rank, formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save overall result: %w", err)
	}
	return nil
}

const overallColumns = `student_id, exam_id, class_id, student_name, total_marks, full_marks, percentage, gpa, grade, rank, updated_at`

func (s session) GetOverallResult(ctx context.Context, studentID school.StudentID, examID school.ExamID) (*school.StudentOverallResult, error) {
	var r school.StudentOverallResult
	var updatedAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT `+overallColumns+` FROM overall_results WHERE student_id = ? AND exam_id = ?`,
		studentID, examID).
		Scan(&r.StudentID, &r.ExamID, &r.ClassID, &r.StudentName, &r.TotalMarks, &r.FullMarks,
			&r.Percentage, &r.GPA, &r.Grade, &r.Rank, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get overall result: %w", err)
	}
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func (s session) OverallResultsForClassExam(ctx context.Context, examID school.ExamID, classID school.ClassID) ([]school.StudentOverallResult, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+overallColumns+` FROM overall_results WHERE exam_id = ? AND class_id = ?`,
		examID, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall results: %w", err)
	}
	defer rows.Close()

	var out []school.StudentOverallResult
	for rows.Next() {
		var r school.StudentOverallResult
		var updatedAt string
		if err := rows.Scan(&r.StudentID, &r.ExamID, &r.ClassID, &r.StudentName, &r.TotalMarks, &r.FullMarks,
			&r.Percentage, &r.GPA, &r.Grade, &r.Rank, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan overall result: %w", err)
		}
		r.UpdatedAt = parseTime(updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ school.Store = (*Store)(nil)
var _ school.Store = (*txStore)(nil)
