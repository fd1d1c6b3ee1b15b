/*
Package sqlite provides the SQLite-backed implementation of the billing
storage interfaces.

PURPOSE:
  Implements billing.Store and billing.TxStore over database/sql. In
  production the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  packages:             billing terms templates
  enrollments:          student subscriptions with cached derived balances
  payment_schedules:    installment rows (the mutable status projection)
  payment_transactions: immutable ledger of all money movement
  student_numbers:      per-year sequence claims

APPEND-ONLY ENFORCEMENT:
  payment_transactions has no UPDATE and no DELETE statement anywhere in
  this package. Corrections happen via ADJUSTMENT/REFUND rows.

DANGLING SCHEDULE REFERENCES:
  payment_transactions.payment_schedule_id deliberately carries NO foreign
  key: schedule regeneration deletes and reinserts payment_schedules rows
  wholesale, and transactions recorded against the old rows keep their now
  dangling reference. Inherited behavior, preserved on purpose.

MONEY AND DATES:
  Money is stored as decimal TEXT (never REAL); calendar dates as
  "2006-01-02"; timestamps as RFC3339.

CONCURRENCY:
  sync.RWMutex guards the connection. WithTx and AllocateStudentSequence
  hold the write lock for their whole duration, which is the mutual
  exclusion the student-number contract requires. The transactional view
  handed to WithTx callbacks runs against the open *sql.Tx without
  re-locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/tuition.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := billing.NewLedgerEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/store.go: interface definitions
  - billing/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/brightpath/tuition-engine/billing"
)

// Store implements billing.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time, and a ":memory:" database exists
	// per connection. A single pooled connection serves both constraints.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS packages (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		total_fee TEXT NOT NULL,
		downpayment_percent TEXT NOT NULL,
		installment_months INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		package_id TEXT,
		enrollment_date TEXT NOT NULL,
		total_fee TEXT NOT NULL,
		downpayment_percent TEXT NOT NULL,
		installment_months INTEGER NOT NULL,
		downpayment_amount TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_student
		ON enrollments(student_id);

	CREATE TABLE IF NOT EXISTS payment_schedules (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
		installment_no INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'UNPAID',
		paid_at TEXT,
		payment_method TEXT,
		receipt_no TEXT,
		UNIQUE(enrollment_id, installment_no)
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_enrollment
		ON payment_schedules(enrollment_id, installment_no);

	-- Hot path: the outstanding-schedule scan in application order, plus
	-- the overdue updater's status/due_date filter.
	CREATE INDEX IF NOT EXISTS idx_schedules_status_due
		ON payment_schedules(status, due_date);

	-- Immutable ledger. payment_schedule_id has no foreign key: schedule
	-- regeneration replaces rows and old references stay dangling.
	CREATE TABLE IF NOT EXISTS payment_transactions (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
		payment_schedule_id TEXT,
		amount TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		payment_method TEXT,
		reference_no TEXT,
		remarks TEXT,
		actor_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_enrollment
		ON payment_transactions(enrollment_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_schedule
		ON payment_transactions(payment_schedule_id)
		WHERE payment_schedule_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS student_numbers (
		year INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (year, seq)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

func (s *Store) SaveEnrollment(ctx context.Context, e billing.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEnrollment(ctx, s.db, e)
}

func saveEnrollment(ctx context.Context, db dbtx, e billing.Enrollment) error {
	query := `
		INSERT INTO enrollments
		(id, student_id, package_id, enrollment_date, total_fee, downpayment_percent,
		 installment_months, downpayment_amount, remaining_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			downpayment_amount = excluded.downpayment_amount,
			remaining_balance = excluded.remaining_balance
	`

	_, err := db.ExecContext(ctx, query,
		e.ID,
		e.StudentID,
		nullString(e.PackageID),
		e.EnrollmentDate.String(),
		e.TotalFee.Value.String(),
		e.DownpaymentPercent.String(),
		e.InstallmentMonths,
		e.DownpaymentAmount.Value.String(),
		e.RemainingBalance.Value.String(),
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}
	return nil
}

func (s *Store) GetEnrollment(ctx context.Context, id string) (billing.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEnrollment(ctx, s.db, id)
}

func getEnrollment(ctx context.Context, db dbtx, id string) (billing.Enrollment, error) {
	query := `
		SELECT id, student_id, package_id, enrollment_date, total_fee,
		       downpayment_percent, installment_months, downpayment_amount,
		       remaining_balance, created_at
		FROM enrollments WHERE id = ?
	`

	var (
		e                         billing.Enrollment
		packageID                 sql.NullString
		enrollmentDate, createdAt string
		totalFee, pct             string
		downpayment, balance      string
	)

	err := db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.StudentID, &packageID, &enrollmentDate, &totalFee,
		&pct, &e.InstallmentMonths, &downpayment, &balance, &createdAt,
	)
	if err == sql.ErrNoRows {
		return billing.Enrollment{}, &billing.NotFoundError{Kind: "enrollment", ID: id}
	}
	if err != nil {
		return billing.Enrollment{}, fmt.Errorf("failed to get enrollment: %w", err)
	}

	e.PackageID = packageID.String
	e.EnrollmentDate, _ = billing.ParseDate(enrollmentDate)
	e.TotalFee = parseMoney(totalFee)
	e.DownpaymentPercent = parseDecimal(pct)
	e.DownpaymentAmount = parseMoney(downpayment)
	e.RemainingBalance = parseMoney(balance)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

// ListEnrollments returns all enrollments, newest first.
func (s *Store) ListEnrollments(ctx context.Context) ([]billing.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM enrollments ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	enrollments := make([]billing.Enrollment, 0, len(ids))
	for _, id := range ids {
		e, err := getEnrollment(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, nil
}

// =============================================================================
// PAYMENT SCHEDULES
// =============================================================================

func (s *Store) ReplaceSchedules(ctx context.Context, enrollmentID string, schedules []billing.PaymentSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceSchedules(ctx, tx, enrollmentID, schedules); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceSchedules(ctx context.Context, db dbtx, enrollmentID string, schedules []billing.PaymentSchedule) error {
	if _, err := db.ExecContext(ctx,
		"DELETE FROM payment_schedules WHERE enrollment_id = ?", enrollmentID,
	); err != nil {
		return fmt.Errorf("failed to delete schedules: %w", err)
	}

	query := `
		INSERT INTO payment_schedules
		(id, enrollment_id, installment_no, due_date, amount_due, status,
		 paid_at, payment_method, receipt_no)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, sched := range schedules {
		_, err := db.ExecContext(ctx, query,
			sched.ID,
			sched.EnrollmentID,
			sched.InstallmentNo,
			sched.DueDate.String(),
			sched.AmountDue.Value.String(),
			string(sched.Status),
			nullTime(sched.PaidAt),
			nullString(sched.PaymentMethod),
			nullString(sched.ReceiptNo),
		)
		if err != nil {
			return fmt.Errorf("failed to insert schedule: %w", err)
		}
	}
	return nil
}

const scheduleColumns = `
	id, enrollment_id, installment_no, due_date, amount_due, status,
	paid_at, payment_method, receipt_no
`

func (s *Store) SchedulesByEnrollment(ctx context.Context, enrollmentID string) ([]billing.PaymentSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return schedulesByEnrollment(ctx, s.db, enrollmentID)
}

func schedulesByEnrollment(ctx context.Context, db dbtx, enrollmentID string) ([]billing.PaymentSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM payment_schedules
		WHERE enrollment_id = ?
		ORDER BY installment_no ASC
	`
	return querySchedules(ctx, db, query, enrollmentID)
}

func (s *Store) OutstandingSchedules(ctx context.Context, enrollmentID string) ([]billing.PaymentSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return outstandingSchedules(ctx, s.db, enrollmentID)
}

func outstandingSchedules(ctx context.Context, db dbtx, enrollmentID string) ([]billing.PaymentSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM payment_schedules
		WHERE enrollment_id = ? AND status IN ('UNPAID', 'OVERDUE')
		ORDER BY due_date ASC, installment_no ASC
	`
	return querySchedules(ctx, db, query, enrollmentID)
}

func (s *Store) GetSchedule(ctx context.Context, id string) (billing.PaymentSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSchedule(ctx, s.db, id)
}

func getSchedule(ctx context.Context, db dbtx, id string) (billing.PaymentSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM payment_schedules WHERE id = ?
	`
	scheds, err := querySchedules(ctx, db, query, id)
	if err != nil {
		return billing.PaymentSchedule{}, err
	}
	if len(scheds) == 0 {
		return billing.PaymentSchedule{}, &billing.NotFoundError{Kind: "schedule", ID: id}
	}
	return scheds[0], nil
}

func (s *Store) UpdateScheduleStatus(ctx context.Context, sched billing.PaymentSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateScheduleStatus(ctx, s.db, sched)
}

func updateScheduleStatus(ctx context.Context, db dbtx, sched billing.PaymentSchedule) error {
	query := `
		UPDATE payment_schedules
		SET status = ?, paid_at = ?, payment_method = ?, receipt_no = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		string(sched.Status),
		nullTime(sched.PaidAt),
		nullString(sched.PaymentMethod),
		nullString(sched.ReceiptNo),
		sched.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &billing.NotFoundError{Kind: "schedule", ID: sched.ID}
	}
	return nil
}

func (s *Store) UnpaidDueBefore(ctx context.Context, day billing.Date) ([]billing.PaymentSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unpaidDueBefore(ctx, s.db, day)
}

func unpaidDueBefore(ctx context.Context, db dbtx, day billing.Date) ([]billing.PaymentSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM payment_schedules
		WHERE status = 'UNPAID' AND due_date < ?
		ORDER BY due_date ASC, installment_no ASC
	`
	return querySchedules(ctx, db, query, day.String())
}

func querySchedules(ctx context.Context, db dbtx, query string, args ...any) ([]billing.PaymentSchedule, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []billing.PaymentSchedule
	for rows.Next() {
		var (
			sched                      billing.PaymentSchedule
			dueDate, amountDue, status string
			paidAt, method, receiptNo  sql.NullString
		)
		if err := rows.Scan(
			&sched.ID, &sched.EnrollmentID, &sched.InstallmentNo,
			&dueDate, &amountDue, &status, &paidAt, &method, &receiptNo,
		); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		sched.DueDate, _ = billing.ParseDate(dueDate)
		sched.AmountDue = parseMoney(amountDue)
		sched.Status = billing.ScheduleStatus(status)
		if paidAt.Valid {
			t, err := time.Parse(time.RFC3339, paidAt.String)
			if err == nil {
				sched.PaidAt = &t
			}
		}
		sched.PaymentMethod = method.String
		sched.ReceiptNo = receiptNo.String

		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

// =============================================================================
// PAYMENT TRANSACTIONS (append-only)
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx billing.PaymentTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, db dbtx, tx billing.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions
		(id, enrollment_id, payment_schedule_id, amount, tx_type,
		 transaction_date, payment_method, reference_no, remarks, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.EnrollmentID,
		nullString(tx.ScheduleID),
		tx.Amount.Value.String(),
		string(tx.Type),
		tx.TransactionDate.String(),
		nullString(tx.PaymentMethod),
		nullString(tx.ReferenceNo),
		nullString(tx.Remarks),
		nullString(tx.ActorID),
		tx.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

const transactionColumns = `
	id, enrollment_id, payment_schedule_id, amount, tx_type,
	transaction_date, payment_method, reference_no, remarks, actor_id, created_at
`

func (s *Store) TransactionsByEnrollment(ctx context.Context, enrollmentID string) ([]billing.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionsByEnrollment(ctx, s.db, enrollmentID)
}

func transactionsByEnrollment(ctx context.Context, db dbtx, enrollmentID string) ([]billing.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE enrollment_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return queryTransactions(ctx, db, query, enrollmentID)
}

func (s *Store) TransactionsBySchedule(ctx context.Context, scheduleID string) ([]billing.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionsBySchedule(ctx, s.db, scheduleID)
}

func transactionsBySchedule(ctx context.Context, db dbtx, scheduleID string) ([]billing.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE payment_schedule_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return queryTransactions(ctx, db, query, scheduleID)
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]billing.PaymentTransaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []billing.PaymentTransaction
	for rows.Next() {
		var (
			tx                                  billing.PaymentTransaction
			scheduleID                          sql.NullString
			amount, txType, txDate, createdAt   string
			method, referenceNo, remarks, actor sql.NullString
		)
		if err := rows.Scan(
			&tx.ID, &tx.EnrollmentID, &scheduleID, &amount, &txType,
			&txDate, &method, &referenceNo, &remarks, &actor, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		tx.ScheduleID = scheduleID.String
		tx.Amount = parseMoney(amount)
		tx.Type = billing.TransactionType(txType)
		tx.TransactionDate, _ = billing.ParseDate(txDate)
		tx.PaymentMethod = method.String
		tx.ReferenceNo = referenceNo.String
		tx.Remarks = remarks.String
		tx.ActorID = actor.String
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// STUDENT NUMBERS
// =============================================================================

// AllocateStudentSequence performs the read-increment-write under the
// store's write lock and a single database transaction, so two concurrent
// callers can never observe the same maximum.
func (s *Store) AllocateStudentSequence(ctx context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	seq, err := allocateStudentSequence(ctx, tx, year)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return seq, nil
}

func allocateStudentSequence(ctx context.Context, db dbtx, year int) (int, error) {
	var max int
	err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM student_numbers WHERE year = ?", year,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read student sequence: %w", err)
	}

	seq := max + 1
	_, err = db.ExecContext(ctx,
		"INSERT INTO student_numbers (year, seq, created_at) VALUES (?, ?, ?)",
		year, seq, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, billing.ErrDuplicateStudentNumber
		}
		return 0, fmt.Errorf("failed to claim student sequence: %w", err)
	}
	return seq, nil
}

// =============================================================================
// PACKAGES
// =============================================================================

func (s *Store) SavePackage(ctx context.Context, p billing.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO packages
		(id, name, total_fee, downpayment_percent, installment_months, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			total_fee = excluded.total_fee,
			downpayment_percent = excluded.downpayment_percent,
			installment_months = excluded.installment_months
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name,
		p.TotalFee.Value.String(),
		p.DownpaymentPercent.String(),
		p.InstallmentMonths,
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save package: %w", err)
	}
	return nil
}

func (s *Store) GetPackage(ctx context.Context, id string) (billing.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p                   billing.Package
		fee, pct, createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, total_fee, downpayment_percent, installment_months, created_at
		FROM packages WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &fee, &pct, &p.InstallmentMonths, &createdAt)
	if err == sql.ErrNoRows {
		return billing.Package{}, &billing.NotFoundError{Kind: "package", ID: id}
	}
	if err != nil {
		return billing.Package{}, fmt.Errorf("failed to get package: %w", err)
	}

	p.TotalFee = parseMoney(fee)
	p.DownpaymentPercent = parseDecimal(pct)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

func (s *Store) ListPackages(ctx context.Context) ([]billing.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, total_fee, downpayment_percent, installment_months, created_at
		FROM packages ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var packages []billing.Package
	for rows.Next() {
		var (
			p                   billing.Package
			fee, pct, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &fee, &pct, &p.InstallmentMonths, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		p.TotalFee = parseMoney(fee)
		p.DownpaymentPercent = parseDecimal(pct)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		packages = append(packages, p)
	}
	return packages, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (billing.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. Any error from fn rolls
// the whole transaction back.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore is the view handed to WithTx callbacks. It routes every operation
// through the open *sql.Tx and must not take the store lock (the caller
// already holds it).
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveEnrollment(ctx context.Context, e billing.Enrollment) error {
	return saveEnrollment(ctx, ts.tx, e)
}

func (ts *txStore) GetEnrollment(ctx context.Context, id string) (billing.Enrollment, error) {
	return getEnrollment(ctx, ts.tx, id)
}

func (ts *txStore) ReplaceSchedules(ctx context.Context, enrollmentID string, schedules []billing.PaymentSchedule) error {
	return replaceSchedules(ctx, ts.tx, enrollmentID, schedules)
}

func (ts *txStore) SchedulesByEnrollment(ctx context.Context, enrollmentID string) ([]billing.PaymentSchedule, error) {
	return schedulesByEnrollment(ctx, ts.tx, enrollmentID)
}

func (ts *txStore) OutstandingSchedules(ctx context.Context, enrollmentID string) ([]billing.PaymentSchedule, error) {
	return outstandingSchedules(ctx, ts.tx, enrollmentID)
}

func (ts *txStore) GetSchedule(ctx context.Context, id string) (billing.PaymentSchedule, error) {
	return getSchedule(ctx, ts.tx, id)
}

func (ts *txStore) UpdateScheduleStatus(ctx context.Context, sched billing.PaymentSchedule) error {
	return updateScheduleStatus(ctx, ts.tx, sched)
}

func (ts *txStore) UnpaidDueBefore(ctx context.Context, day billing.Date) ([]billing.PaymentSchedule, error) {
	return unpaidDueBefore(ctx, ts.tx, day)
}

func (ts *txStore) AppendTransaction(ctx context.Context, tx billing.PaymentTransaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) TransactionsByEnrollment(ctx context.Context, enrollmentID string) ([]billing.PaymentTransaction, error) {
	return transactionsByEnrollment(ctx, ts.tx, enrollmentID)
}

func (ts *txStore) TransactionsBySchedule(ctx context.Context, scheduleID string) ([]billing.PaymentTransaction, error) {
	return transactionsBySchedule(ctx, ts.tx, scheduleID)
}

func (ts *txStore) AllocateStudentSequence(ctx context.Context, year int) (int, error) {
	return allocateStudentSequence(ctx, ts.tx, year)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseMoney(s string) billing.Money {
	return billing.Money{Value: parseDecimal(s)}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
