/*
Package store provides an in-memory school.Store implementation.

PURPOSE:
  Backing store for tests and development. Mirrors the semantics of the
  SQLite store: uniqueness checks, ledger ordering by (transaction date,
  insertion order), and all-or-nothing WithTx via snapshot + rollback.

TRANSACTION MODEL:
  WithTx serializes all units of work on a dedicated mutex, snapshots the
  full state, runs fn, and restores the snapshot if fn fails. Engines
  perform every mutation through WithTx, so mutations are serialized and
  a failed unit of work leaves no partial state behind.

SEE ALSO:
  - school/store.go: Interface definitions
  - store/sqlite/sqlite.go: Production implementation
*/
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes WithTx units of work

	state memoryState
}

type memoryState struct {
	students   map[school.StudentID]school.Student
	classes    map[school.ClassID]school.ClassRoom
	subjects   map[school.SubjectID]school.Subject
	categories map[school.CategoryID]school.FeeCategory
	routes     map[school.RouteID]school.TransportRoute

	bills    map[string]school.Bill // keyed by bill number
	payments []school.Payment
	ledger   map[school.StudentID][]school.LedgerEntry // append order
	seq      int64

	exams   map[school.ExamID]school.Exam
	details map[school.ExamDetailID]school.ExamDetail
	results map[resultKey]school.StudentResult
	overall map[overallKey]school.StudentOverallResult
}

type resultKey struct {
	StudentID school.StudentID
	DetailID  school.ExamDetailID
}

type overallKey struct {
	StudentID school.StudentID
	ExamID    school.ExamID
}

func NewMemory() *Memory {
	return &Memory{state: newMemoryState()}
}

func newMemoryState() memoryState {
	return memoryState{
		students:   make(map[school.StudentID]school.Student),
		classes:    make(map[school.ClassID]school.ClassRoom),
		subjects:   make(map[school.SubjectID]school.Subject),
		categories: make(map[school.CategoryID]school.FeeCategory),
		routes:     make(map[school.RouteID]school.TransportRoute),
		bills:      make(map[string]school.Bill),
		ledger:     make(map[school.StudentID][]school.LedgerEntry),
		exams:      make(map[school.ExamID]school.Exam),
		details:    make(map[school.ExamDetailID]school.ExamDetail),
		results:    make(map[resultKey]school.StudentResult),
		overall:    make(map[overallKey]school.StudentOverallResult),
	}
}

var _ school.Store = (*Memory)(nil)

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) CreateStudent(_ context.Context, s school.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.students[s.ID] = s
	return nil
}

func (m *Memory) GetStudent(_ context.Context, id school.StudentID) (*school.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.state.students[id]
	if !ok {
		return nil, school.ErrStudentNotFound
	}
	return &s, nil
}

func (m *Memory) ListStudents(_ context.Context) ([]school.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]school.Student, 0, len(m.state.students))
	for _, s := range m.state.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) StudentsByClass(_ context.Context, classID school.ClassID) ([]school.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []school.Student
	for _, s := range m.state.students {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateClass(_ context.Context, c school.ClassRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.classes[c.ID] = c
	return nil
}

func (m *Memory) GetClass(_ context.Context, id school.ClassID) (*school.ClassRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.state.classes[id]
	if !ok {
		return nil, school.ErrClassNotFound
	}
	return &c, nil
}

func (m *Memory) ListClasses(_ context.Context) ([]school.ClassRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]school.ClassRoom, 0, len(m.state.classes))
	for _, c := range m.state.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateSubject(_ context.Context, s school.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.subjects[s.ID] = s
	return nil
}

func (m *Memory) GetSubject(_ context.Context, id school.SubjectID) (*school.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.state.subjects[id]
	if !ok {
		return nil, school.ErrSubjectNotFound
	}
	return &s, nil
}

func (m *Memory) ListSubjects(_ context.Context) ([]school.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]school.Subject, 0, len(m.state.subjects))
	for _, s := range m.state.subjects {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SubjectClassesByName(_ context.Context, name string) ([]school.ClassID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[school.ClassID]bool)
	var out []school.ClassID
	for _, s := range m.state.subjects {
		if s.Name == name && s.ClassID != "" && !seen[s.ClassID] {
			seen[s.ClassID] = true
			out = append(out, s.ClassID)
		}
	}
	return out, nil
}

func (m *Memory) CreateFeeCategory(_ context.Context, c school.FeeCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.categories[c.ID] = c
	return nil
}

func (m *Memory) GetFeeCategory(_ context.Context, id school.CategoryID) (*school.FeeCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.state.categories[id]
	if !ok {
		return nil, school.ErrCategoryNotFound
	}
	return &c, nil
}

func (m *Memory) ListFeeCategories(_ context.Context) ([]school.FeeCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]school.FeeCategory, 0, len(m.state.categories))
	for _, c := range m.state.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) FeeCategoriesByClass(_ context.Context, classID school.ClassID) ([]school.FeeCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []school.FeeCategory
	for _, c := range m.state.categories {
		if c.ClassID == classID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateTransportRoute(_ context.Context, r school.TransportRoute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.routes[r.ID] = r
	return nil
}

func (m *Memory) GetTransportRoute(_ context.Context, id school.RouteID) (*school.TransportRoute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.state.routes[id]
	if !ok {
		return nil, school.ErrRouteNotFound
	}
	return &r, nil
}

func (m *Memory) ListTransportRoutes(_ context.Context) ([]school.TransportRoute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]school.TransportRoute, 0, len(m.state.routes))
	for _, r := range m.state.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// FINANCE
// =============================================================================

func (m *Memory) CreateBill(_ context.Context, b school.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.state.bills[b.Number]; exists {
		return school.ErrNumberingExhausted
	}
	for _, existing := range m.state.bills {
		if existing.StudentID == b.StudentID && existing.Month == b.Month {
			return &school.DuplicateBillError{StudentID: b.StudentID, Month: b.Month}
		}
	}
	b.Items = append([]school.BillItem(nil), b.Items...)
	m.state.bills[b.Number] = b
	return nil
}

func (m *Memory) GetBillByNumber(_ context.Context, number string) (*school.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.state.bills[number]
	if !ok {
		return nil, school.ErrBillNotFound
	}
	b.Items = append([]school.BillItem(nil), b.Items...)
	return &b, nil
}

func (m *Memory) BillsForStudent(_ context.Context, studentID school.StudentID) ([]school.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []school.Bill
	for _, b := range m.state.bills {
		if b.StudentID == studentID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (m *Memory) BillExists(_ context.Context, studentID school.StudentID, month school.BillMonth) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.state.bills {
		if b.StudentID == studentID && b.Month == month {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CountBills(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.bills), nil
}

func (m *Memory) BillNumberTaken(_ context.Context, number string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, taken := m.state.bills[number]
	return taken, nil
}

func (m *Memory) CreatePayment(_ context.Context, p school.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.payments = append(m.state.payments, p)
	return nil
}

func (m *Memory) PaymentsForStudent(_ context.Context, studentID school.StudentID) ([]school.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []school.Payment
	for _, p := range m.state.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) CountPayments(_ context.Context, studentID school.StudentID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.state.payments {
		if p.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) PaymentNumberTaken(_ context.Context, studentID school.StudentID, number string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.state.payments {
		if p.StudentID == studentID && p.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) AppendLedgerEntry(_ context.Context, e school.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.seq++
	e.Seq = m.state.seq
	m.state.ledger[e.StudentID] = append(m.state.ledger[e.StudentID], e)
	return nil
}

func (m *Memory) LatestLedgerEntry(_ context.Context, studentID school.StudentID) (*school.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.sortedLedger(studentID)
	if len(entries) == 0 {
		return nil, nil
	}
	latest := entries[len(entries)-1]
	return &latest, nil
}

func (m *Memory) LedgerEntries(_ context.Context, studentID school.StudentID) ([]school.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedLedger(studentID), nil
}

// sortedLedger returns a copy ordered by (TransactionDate, Seq). Callers
// must hold at least a read lock.
func (m *Memory) sortedLedger(studentID school.StudentID) []school.LedgerEntry {
	entries := append([]school.LedgerEntry(nil), m.state.ledger[studentID]...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TransactionDate.Equal(entries[j].TransactionDate) {
			return entries[i].Seq < entries[j].Seq
		}
		return entries[i].TransactionDate.Before(entries[j].TransactionDate)
	})
	return entries
}

// =============================================================================
// EXAMS
// =============================================================================

func (m *Memory) CreateExam(_ context.Context, e school.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.exams[e.ID] = e
	return nil
}

func (m *Memory) GetExam(_ context.Context, id school.ExamID) (*school.Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.state.exams[id]
	if !ok {
		return nil, school.ErrExamNotFound
	}
	return &e, nil
}

func (m *Memory) ListExams(_ context.Context) ([]school.Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]school.Exam, 0, len(m.state.exams))
	for _, e := range m.state.exams {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) UpdateExam(_ context.Context, e school.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.exams[e.ID]; !ok {
		return school.ErrExamNotFound
	}
	m.state.exams[e.ID] = e
	return nil
}

func (m *Memory) CreateExamDetail(_ context.Context, d school.ExamDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.state.details {
		if existing.ExamID == d.ExamID && existing.SubjectID == d.SubjectID && existing.ClassID == d.ClassID {
			return school.ErrDuplicateExamDetail
		}
	}
	m.state.details[d.ID] = d
	return nil
}

func (m *Memory) GetExamDetail(_ context.Context, id school.ExamDetailID) (*school.ExamDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.state.details[id]
	if !ok {
		return nil, school.ErrExamDetailNotFound
	}
	return &d, nil
}

func (m *Memory) ExamDetailExists(_ context.Context, examID school.ExamID, subjectID school.SubjectID, classID school.ClassID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.state.details {
		if d.ExamID == examID && d.SubjectID == subjectID && d.ClassID == classID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ExamDetailsForExam(_ context.Context, examID school.ExamID) ([]school.ExamDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []school.ExamDetail
	for _, d := range m.state.details {
		if d.ExamID == examID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduleAt.Before(out[j].ScheduleAt) })
	return out, nil
}

func (m *Memory) SaveResult(_ context.Context, r school.StudentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.results[resultKey{r.StudentID, r.ExamDetailID}] = r
	return nil
}

func (m *Memory) GetResult(_ context.Context, studentID school.StudentID, detailID school.ExamDetailID) (*school.StudentResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.state.results[resultKey{studentID, detailID}]
	if !ok {
		return nil, school.ErrResultNotFound
	}
	return &r, nil
}

func (m *Memory) ResultsForStudentExam(_ context.Context, studentID school.StudentID, examID school.ExamID) ([]school.StudentResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []school.StudentResult
	for _, r := range m.state.results {
		if r.StudentID == studentID && r.ExamID == examID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExamDetailID < out[j].ExamDetailID })
	return out, nil
}

func (m *Memory) SaveOverallResult(_ context.Context, r school.StudentOverallResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.overall[overallKey{r.StudentID, r.ExamID}] = r
	return nil
}

func (m *Memory) GetOverallResult(_ context.Context, studentID school.StudentID, examID school.ExamID) (*school.StudentOverallResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.state.overall[overallKey{studentID, examID}]
	if !ok {
		return nil, school.ErrResultNotFound
	}
	return &r, nil
}

func (m *Memory) OverallResultsForClassExam(_ context.Context, examID school.ExamID, classID school.ClassID) ([]school.StudentOverallResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []school.StudentOverallResult
	for _, r := range m.state.overall {
		if r.ExamID == examID && r.ClassID == classID {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback
// =============================================================================

// WithTx executes fn as an all-or-nothing unit of work. Units of work are
// serialized on txMu; on error the pre-transaction snapshot is restored,
// so a failed unit leaves no partial state.
func (m *Memory) WithTx(_ context.Context, fn func(school.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		students:   make(map[school.StudentID]school.Student, len(s.students)),
		classes:    make(map[school.ClassID]school.ClassRoom, len(s.classes)),
		subjects:   make(map[school.SubjectID]school.Subject, len(s.subjects)),
		categories: make(map[school.CategoryID]school.FeeCategory, len(s.categories)),
		routes:     make(map[school.RouteID]school.TransportRoute, len(s.routes)),
		bills:      make(map[string]school.Bill, len(s.bills)),
		payments:   append([]school.Payment(nil), s.payments...),
		ledger:     make(map[school.StudentID][]school.LedgerEntry, len(s.ledger)),
		seq:        s.seq,
		exams:      make(map[school.ExamID]school.Exam, len(s.exams)),
		details:    make(map[school.ExamDetailID]school.ExamDetail, len(s.details)),
		results:    make(map[resultKey]school.StudentResult, len(s.results)),
		overall:    make(map[overallKey]school.StudentOverallResult, len(s.overall)),
	}
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.classes {
		c.classes[k] = v
	}
	for k, v := range s.subjects {
		c.subjects[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.routes {
		c.routes[k] = v
	}
	for k, v := range s.bills {
		v.Items = append([]school.BillItem(nil), v.Items...)
		c.bills[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = append([]school.LedgerEntry(nil), v...)
	}
	for k, v := range s.exams {
		c.exams[k] = v
	}
	for k, v := range s.details {
		c.details[k] = v
	}
	for k, v := range s.results {
		c.results[k] = v
	}
	for k, v := range s.overall {
		c.overall[k] = v
	}
	return c
}
