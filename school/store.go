/*
store.go - Persistence interfaces for the school engine

PURPOSE:
  Defines the interface between the engines and the database. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  DirectoryStore: Students, classes, subjects, fee definitions
  FinanceStore:   Bills, payments, append-only ledger
  ExamStore:      Exams, exam details, results, overall results
  Store:          All of the above plus WithTx for atomic units of work

APPEND-ONLY CONTRACT:
  The ledger surface is append-only: AppendLedgerEntry exists, no update
  or delete of ledger entries does. Balance correctness relies on it.

ATOMIC UNITS OF WORK:
  WithTx(fn) executes fn against a transactional view of the store.
  If fn returns an error, every write inside it is rolled back. The
  billing, payment and grading engines run their whole multi-row write
  (source record + ledger entry, or result + rollup + rank updates)
  inside a single WithTx call - either every row commits or none does.

IMPLEMENTATIONS:
  - school/store/memory.go: In-memory implementation for tests/dev
  - store/sqlite/sqlite.go:  Production SQLite

SEE ALSO:
  - finance/: Engines driving FinanceStore
  - exams/:   Engines driving ExamStore
*/
package school

import "context"

// =============================================================================
// DIRECTORY STORE - Students, academic structure, fee definitions
// =============================================================================

type DirectoryStore interface {
	CreateStudent(ctx context.Context, s Student) error
	GetStudent(ctx context.Context, id StudentID) (*Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	StudentsByClass(ctx context.Context, classID ClassID) ([]Student, error)

	CreateClass(ctx context.Context, c ClassRoom) error
	GetClass(ctx context.Context, id ClassID) (*ClassRoom, error)
	ListClasses(ctx context.Context) ([]ClassRoom, error)

	CreateSubject(ctx context.Context, s Subject) error
	GetSubject(ctx context.Context, id SubjectID) (*Subject, error)
	ListSubjects(ctx context.Context) ([]Subject, error)
	// SubjectClassesByName returns the distinct classes that have a subject
	// with this name. Used to derive an exam detail's class when the caller
	// does not name one: exactly one class is required.
	SubjectClassesByName(ctx context.Context, name string) ([]ClassID, error)

	CreateFeeCategory(ctx context.Context, c FeeCategory) error
	GetFeeCategory(ctx context.Context, id CategoryID) (*FeeCategory, error)
	ListFeeCategories(ctx context.Context) ([]FeeCategory, error)
	FeeCategoriesByClass(ctx context.Context, classID ClassID) ([]FeeCategory, error)

	CreateTransportRoute(ctx context.Context, r TransportRoute) error
	GetTransportRoute(ctx context.Context, id RouteID) (*TransportRoute, error)
	ListTransportRoutes(ctx context.Context) ([]TransportRoute, error)
}

// =============================================================================
// FINANCE STORE - Bills, payments, ledger
// =============================================================================

type FinanceStore interface {
	CreateBill(ctx context.Context, b Bill) error
	GetBillByNumber(ctx context.Context, number string) (*Bill, error)
	BillsForStudent(ctx context.Context, studentID StudentID) ([]Bill, error)
	// BillExists reports whether a bill exists for (student, month).
	BillExists(ctx context.Context, studentID StudentID, month BillMonth) (bool, error)
	// CountBills returns the global bill count (bill numbering scope).
	CountBills(ctx context.Context) (int, error)
	BillNumberTaken(ctx context.Context, number string) (bool, error)

	CreatePayment(ctx context.Context, p Payment) error
	PaymentsForStudent(ctx context.Context, studentID StudentID) ([]Payment, error)
	// CountPayments returns the payment count for one student
	// (payment numbering scope is per student).
	CountPayments(ctx context.Context, studentID StudentID) (int, error)
	PaymentNumberTaken(ctx context.Context, studentID StudentID, number string) (bool, error)

	// AppendLedgerEntry persists a ledger entry. The store assigns Seq.
	// This is the ONLY ledger write operation.
	AppendLedgerEntry(ctx context.Context, e LedgerEntry) error
	// LatestLedgerEntry returns the entry with the latest transaction date
	// for the student (ties broken by insertion order), or nil if none.
	LatestLedgerEntry(ctx context.Context, studentID StudentID) (*LedgerEntry, error)
	// LedgerEntries returns all entries for a student ordered by
	// (TransactionDate, Seq) ascending.
	LedgerEntries(ctx context.Context, studentID StudentID) ([]LedgerEntry, error)
}

// =============================================================================
// EXAM STORE - Exams, details, results, rollups
// =============================================================================

type ExamStore interface {
	CreateExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id ExamID) (*Exam, error)
	ListExams(ctx context.Context) ([]Exam, error)
	// UpdateExam persists publication flag changes.
	UpdateExam(ctx context.Context, e Exam) error

	CreateExamDetail(ctx context.Context, d ExamDetail) error
	GetExamDetail(ctx context.Context, id ExamDetailID) (*ExamDetail, error)
	ExamDetailExists(ctx context.Context, examID ExamID, subjectID SubjectID, classID ClassID) (bool, error)
	ExamDetailsForExam(ctx context.Context, examID ExamID) ([]ExamDetail, error)

	// SaveResult upserts a result keyed by (StudentID, ExamDetailID).
	SaveResult(ctx context.Context, r StudentResult) error
	GetResult(ctx context.Context, studentID StudentID, detailID ExamDetailID) (*StudentResult, error)
	// ResultsForStudentExam returns all subject results for (student, exam).
	ResultsForStudentExam(ctx context.Context, studentID StudentID, examID ExamID) ([]StudentResult, error)

	// SaveOverallResult upserts a rollup keyed by (StudentID, ExamID).
	SaveOverallResult(ctx context.Context, r StudentOverallResult) error
	GetOverallResult(ctx context.Context, studentID StudentID, examID ExamID) (*StudentOverallResult, error)
	// OverallResultsForClassExam returns every rollup for the class+exam,
	// in no particular order; the ranking engine sorts.
	OverallResultsForClassExam(ctx context.Context, examID ExamID, classID ClassID) ([]StudentOverallResult, error)
}

// =============================================================================
// STORE - Full persistence surface with atomic units of work
// =============================================================================

// Store is the complete persistence surface.
type Store interface {
	DirectoryStore
	FinanceStore
	ExamStore

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
