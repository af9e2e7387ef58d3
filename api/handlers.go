/*
handlers.go - HTTP API handlers for the school engine

PURPOSE:
  Exposes the finance and exams engines via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Directory:
    POST/GET /api/students, /api/classes, /api/subjects
    POST/GET /api/fee-categories, /api/transport-routes
    GET      /api/students/{id}/ledger   Ledger statement

  Finance:
    POST /api/bills             Create bill -> {bill, ledger_entry}
    GET  /api/bills/{number}
    POST /api/payments          Record payment -> {payment, ledger_entry}

  Exams:
    POST/GET /api/exams
    POST     /api/exams/{id}/publish
    POST     /api/exam-details
    POST/PUT /api/results       Record/correct marks -> {result, overall, updated_ranks}
    GET      /api/exams/{id}/classes/{classID}/rankings

  Scenarios:
    GET  /api/scenarios         List demo scenarios
    POST /api/scenarios/load    Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator tags on request structs)
  3. Call domain logic (finance/exams engines or store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Conflict (duplicate bill/result, numbering exhaustion, unpublished)
  - 422: Invariant violation (marks exceed full marks, ambiguous class)
  - 500: Integrity failures, internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public;
  authentication is expected from a fronting gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campusworks/school-engine/exams"
	"github.com/campusworks/school-engine/finance"
	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   school.Store
	Finance *finance.Engine
	Exams   *exams.Engine

	validate *validator.Validate

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler over the given store.
func NewHandler(store school.Store) *Handler {
	return &Handler{
		Store:    store,
		Finance:  finance.NewEngine(store),
		Exams:    exams.NewEngine(store),
		validate: validator.New(),
	}
}

// decode parses and validates a JSON request body into dst.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return school.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := h.validate.Struct(dst); err != nil {
		if fields, ok := err.(validator.ValidationErrors); ok && len(fields) > 0 {
			return school.NewValidationError(fields[0].Field(), "failed "+fields[0].Tag()+" check")
		}
		return school.NewValidationError("body", err.Error())
	}
	return nil
}

// parseDate parses an optional YYYY-MM-DD field; empty means now.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, school.NewValidationError("date", "use YYYY-MM-DD")
	}
	return t, nil
}

// parseMoneyField parses an optional decimal-string field; empty means zero.
func parseMoneyField(field, s string) (school.Money, error) {
	if s == "" {
		return school.ZeroMoney(), nil
	}
	m, err := school.ParseMoney(s)
	if err != nil {
		return school.ZeroMoney(), school.NewValidationError(field, "invalid decimal amount")
	}
	return m, nil
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// ListStudents returns all students.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Store.ListStudents(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = toStudentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStudent returns a single student.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := school.StudentID(chi.URLParam(r, "id"))

	student, err := h.Store.GetStudent(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStudentDTO(*student))
}

// CreateStudent creates a new student.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	if _, err := h.Store.GetClass(r.Context(), school.ClassID(req.ClassID)); err != nil {
		writeDomainError(w, err)
		return
	}

	student := school.Student{
		ID:        school.StudentID(orNewID(req.ID)),
		Name:      req.Name,
		ClassID:   school.ClassID(req.ClassID),
		Section:   req.Section,
		RollNo:    req.RollNo,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateStudent(r.Context(), student); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStudentDTO(student))
}

// ListClasses returns all classes.
func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.Store.ListClasses(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ClassDTO, len(classes))
	for i, c := range classes {
		dtos[i] = ClassDTO{ID: string(c.ID), Name: c.Name, CreatedAt: c.CreatedAt.Format(time.RFC3339)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClass creates a new class.
func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	c := school.ClassRoom{
		ID:        school.ClassID(orNewID(req.ID)),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateClass(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ClassDTO{ID: string(c.ID), Name: c.Name})
}

// ListSubjects returns all subjects.
func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.Store.ListSubjects(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]SubjectDTO, len(subjects))
	for i, s := range subjects {
		dtos[i] = SubjectDTO{ID: string(s.ID), Name: s.Name, ClassID: string(s.ClassID), CreatedAt: s.CreatedAt.Format(time.RFC3339)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSubject creates a new subject in a class.
func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req CreateSubjectRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	if _, err := h.Store.GetClass(r.Context(), school.ClassID(req.ClassID)); err != nil {
		writeDomainError(w, err)
		return
	}

	s := school.Subject{
		ID:        school.SubjectID(orNewID(req.ID)),
		Name:      req.Name,
		ClassID:   school.ClassID(req.ClassID),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateSubject(r.Context(), s); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SubjectDTO{ID: string(s.ID), Name: s.Name, ClassID: string(s.ClassID)})
}

// ListFeeCategories returns all fee categories.
func (h *Handler) ListFeeCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Store.ListFeeCategories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]FeeCategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = FeeCategoryDTO{
			ID:        string(c.ID),
			Name:      c.Name,
			ClassID:   string(c.ClassID),
			Amount:    c.Amount.String(),
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFeeCategory defines a new class-scoped fee amount.
func (h *Handler) CreateFeeCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateFeeCategoryRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	amount, err := parseMoneyField("amount", req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if amount.IsNegative() {
		writeDomainError(w, school.NewValidationError("amount", "must not be negative"))
		return
	}
	if _, err := h.Store.GetClass(r.Context(), school.ClassID(req.ClassID)); err != nil {
		writeDomainError(w, err)
		return
	}

	c := school.FeeCategory{
		ID:        school.CategoryID(orNewID(req.ID)),
		Name:      req.Name,
		ClassID:   school.ClassID(req.ClassID),
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateFeeCategory(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FeeCategoryDTO{
		ID: string(c.ID), Name: c.Name, ClassID: string(c.ClassID), Amount: c.Amount.String(),
	})
}

// ListTransportRoutes returns all transport routes.
func (h *Handler) ListTransportRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.Store.ListTransportRoutes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransportRouteDTO, len(routes))
	for i, rt := range routes {
		dtos[i] = TransportRouteDTO{
			ID:        string(rt.ID),
			Name:      rt.Name,
			Fare:      rt.Fare.String(),
			CreatedAt: rt.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTransportRoute defines a new route with a fare.
func (h *Handler) CreateTransportRoute(w http.ResponseWriter, r *http.Request) {
	var req CreateTransportRouteRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	fare, err := parseMoneyField("fare", req.Fare)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if fare.IsNegative() {
		writeDomainError(w, school.NewValidationError("fare", "must not be negative"))
		return
	}

	rt := school.TransportRoute{
		ID:        school.RouteID(orNewID(req.ID)),
		Name:      req.Name,
		Fare:      fare,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateTransportRoute(r.Context(), rt); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, TransportRouteDTO{ID: string(rt.ID), Name: rt.Name, Fare: rt.Fare.String()})
}

// =============================================================================
// FINANCE HANDLERS
// =============================================================================

// CreateBill creates a bill and its ledger entry atomically.
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	discount, err := parseMoneyField("discount", req.Discount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	lines := make([]finance.BillLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = finance.BillLine{
			CategoryID:  school.CategoryID(l.CategoryID),
			Scholarship: l.Scholarship,
		}
	}

	receipt, err := h.Finance.CreateBill(r.Context(), finance.CreateBillInput{
		StudentID: school.StudentID(req.StudentID),
		Month:     school.BillMonth(req.Month),
		Lines:     lines,
		RouteID:   school.RouteID(req.RouteID),
		Discount:  discount,
		Remarks:   req.Remarks,
		Date:      date,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, BillReceiptDTO{
		Bill:        toBillDTO(receipt.Bill),
		LedgerEntry: toLedgerEntryDTO(receipt.Entry),
	})
}

// GetBill returns one bill by its document number.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	bill, err := h.Store.GetBillByNumber(r.Context(), number)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTO(*bill))
}

// CreatePayment records a payment and its ledger entry atomically.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	amount, err := parseMoneyField("amount", req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	receipt, err := h.Finance.CreatePayment(r.Context(), finance.CreatePaymentInput{
		StudentID:  school.StudentID(req.StudentID),
		AmountPaid: amount,
		Remarks:    req.Remarks,
		Date:       date,
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, PaymentReceiptDTO{
		Payment:     toPaymentDTO(receipt.Payment),
		LedgerEntry: toLedgerEntryDTO(receipt.Entry),
	})
}

// GetLedger returns a student's full ledger statement in chronological
// order with running balances.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	studentID := school.StudentID(chi.URLParam(r, "id"))

	lines, err := h.Finance.Statement(r.Context(), studentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := StatementDTO{
		StudentID: string(studentID),
		Lines:     make([]StatementLineDTO, len(lines)),
		Balance:   school.ZeroMoney().String(),
	}
	for i, l := range lines {
		dto.Lines[i] = toStatementLineDTO(l)
	}
	if len(lines) > 0 {
		dto.Balance = lines[len(lines)-1].RunningBalance.String()
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// EXAM HANDLERS
// =============================================================================

// ListExams returns all exams.
func (h *Handler) ListExams(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListExams(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ExamDTO, len(list))
	for i, e := range list {
		dtos[i] = toExamDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateExam creates a new exam with both publication flags off.
func (h *Handler) CreateExam(w http.ResponseWriter, r *http.Request) {
	var req CreateExamRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	exam, err := h.Exams.CreateExam(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExamDTO(*exam))
}

// PublishExam toggles timetable/results publication independently.
func (h *Handler) PublishExam(w http.ResponseWriter, r *http.Request) {
	examID := school.ExamID(chi.URLParam(r, "id"))

	var req PublishExamRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Timetable == nil && req.Results == nil {
		writeDomainError(w, school.NewValidationError("body", "nothing to publish"))
		return
	}

	exam, err := h.Exams.SetPublication(r.Context(), examID, req.Timetable, req.Results)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExamDTO(*exam))
}

// CreateExamDetail pairs an exam with a subject for a class.
func (h *Handler) CreateExamDetail(w http.ResponseWriter, r *http.Request) {
	var req CreateExamDetailRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	scheduleAt := time.Now().UTC()
	if req.ScheduleAt != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduleAt)
		if err != nil {
			writeDomainError(w, school.NewValidationError("schedule_at", "use RFC3339"))
			return
		}
		scheduleAt = t
	}

	detail, err := h.Exams.CreateExamDetail(r.Context(), exams.CreateExamDetailInput{
		ExamID:     school.ExamID(req.ExamID),
		SubjectID:  school.SubjectID(req.SubjectID),
		ClassID:    school.ClassID(req.ClassID),
		FullMarks:  req.FullMarks,
		PassMarks:  req.PassMarks,
		ScheduleAt: scheduleAt,
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExamDetailDTO(*detail))
}

// RecordResult records marks for a new (student, exam detail) pair.
func (h *Handler) RecordResult(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, r, false)
}

// UpdateResult corrects marks for an existing (student, exam detail) pair.
func (h *Handler) UpdateResult(w http.ResponseWriter, r *http.Request) {
	h.writeResult(w, r, true)
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, update bool) {
	var req RecordResultRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	in := exams.RecordResultInput{
		StudentID:    school.StudentID(req.StudentID),
		ExamDetailID: school.ExamDetailID(req.ExamDetailID),
		Practical:    req.Practical,
		Theory:       req.Theory,
	}

	var outcome *exams.ResultOutcome
	var err error
	if update {
		outcome, err = h.Exams.UpdateResult(r.Context(), in)
	} else {
		outcome, err = h.Exams.RecordResult(r.Context(), in)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if update {
		status = http.StatusOK
	}
	writeJSON(w, status, ResultOutcomeDTO{
		Result:       toResultDTO(outcome.Result),
		Overall:      toOverallResultDTO(outcome.Overall),
		UpdatedRanks: toRankRowDTOs(outcome.UpdatedRanks),
	})
}

// GetRankings returns the ordered class ranking for a published exam.
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	examID := school.ExamID(chi.URLParam(r, "id"))
	classID := school.ClassID(chi.URLParam(r, "classID"))

	rows, err := h.Exams.Rankings(r.Context(), examID, classID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRankRowDTOs(rows))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error category to an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case school.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case school.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case school.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case school.IsInvariantViolation(err):
		writeError(w, http.StatusUnprocessableEntity, "Invariant violation", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return school.NewID()
}
