/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Amounts travel as decimal strings ("530.00"), never floats. Parsing
  happens at the boundary; everything past it is decimal-backed.

VALIDATION:
  Request structs carry validator tags; handlers run them through a
  shared validator instance before touching domain logic.

SEE ALSO:
  - handlers.go: Uses these types
  - school/records.go: The domain records these mirror
*/
package api

import (
	"time"

	"github.com/campusworks/school-engine/exams"
	"github.com/campusworks/school-engine/finance"
	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// DIRECTORY TYPES
// =============================================================================

// StudentDTO represents a student in API responses.
type StudentDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ClassID   string `json:"class_id"`
	Section   string `json:"section,omitempty"`
	RollNo    int    `json:"roll_no,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateStudentRequest is the request to create a student.
type CreateStudentRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name" validate:"required"`
	ClassID string `json:"class_id" validate:"required"`
	Section string `json:"section,omitempty"`
	RollNo  int    `json:"roll_no,omitempty" validate:"gte=0"`
}

// ClassDTO represents a class in API responses.
type ClassDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateClassRequest is the request to create a class.
type CreateClassRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
}

// SubjectDTO represents a subject in API responses.
type SubjectDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ClassID   string `json:"class_id"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateSubjectRequest is the request to create a subject.
type CreateSubjectRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name" validate:"required"`
	ClassID string `json:"class_id" validate:"required"`
}

// FeeCategoryDTO represents a fee category in API responses.
type FeeCategoryDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ClassID   string `json:"class_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateFeeCategoryRequest is the request to define a fee category.
type CreateFeeCategoryRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name" validate:"required"`
	ClassID string `json:"class_id" validate:"required"`
	Amount  string `json:"amount" validate:"required"`
}

// TransportRouteDTO represents a transport route in API responses.
type TransportRouteDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Fare      string `json:"fare"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateTransportRouteRequest is the request to define a transport route.
type CreateTransportRouteRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
	Fare string `json:"fare" validate:"required"`
}

// =============================================================================
// BILLING TYPES
// =============================================================================

// BillLineRequest selects one fee category for a bill.
type BillLineRequest struct {
	CategoryID  string `json:"category_id" validate:"required"`
	Scholarship bool   `json:"scholarship,omitempty"`
}

// CreateBillRequest is the request to create a bill.
type CreateBillRequest struct {
	StudentID string            `json:"student_id" validate:"required"`
	Month     string            `json:"month" validate:"required"`
	Lines     []BillLineRequest `json:"lines" validate:"omitempty,dive"`
	RouteID   string            `json:"route_id,omitempty"`
	Discount  string            `json:"discount,omitempty"`
	Remarks   string            `json:"remarks,omitempty"`
	Date      string            `json:"date,omitempty"` // YYYY-MM-DD, default today
	CreatedBy string            `json:"created_by,omitempty"`
}

// BillItemDTO is one line of a bill.
type BillItemDTO struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Scholarship  bool   `json:"scholarship"`
	Amount       string `json:"amount"`
}

// BillDTO represents a bill in API responses.
type BillDTO struct {
	Number       string        `json:"number"`
	StudentID    string        `json:"student_id"`
	Month        string        `json:"month"`
	Items        []BillItemDTO `json:"items"`
	RouteID      string        `json:"route_id,omitempty"`
	TransportFee string        `json:"transport_fee"`
	Remarks      string        `json:"remarks,omitempty"`
	Subtotal     string        `json:"subtotal"`
	Discount     string        `json:"discount"`
	Total        string        `json:"total"`
	Date         string        `json:"date"`
	CreatedBy    string        `json:"created_by,omitempty"`
}

// CreatePaymentRequest is the request to record a payment.
type CreatePaymentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Remarks   string `json:"remarks,omitempty"`
	Date      string `json:"date,omitempty"` // YYYY-MM-DD, default today
	CreatedBy string `json:"created_by,omitempty"`
}

// PaymentDTO represents a payment in API responses.
type PaymentDTO struct {
	Number    string `json:"number"`
	StudentID string `json:"student_id"`
	Amount    string `json:"amount"`
	Remarks   string `json:"remarks,omitempty"`
	Date      string `json:"date"`
	CreatedBy string `json:"created_by,omitempty"`
}

// LedgerEntryDTO represents one ledger entry.
type LedgerEntryDTO struct {
	Kind            string `json:"kind"`
	DocumentNumber  string `json:"document_number"`
	Month           string `json:"month,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
	Amount          string `json:"amount"`
	Balance         string `json:"balance"`
	TransactionDate string `json:"transaction_date"`
}

// BillReceiptDTO is the response to a bill creation.
type BillReceiptDTO struct {
	Bill        BillDTO        `json:"bill"`
	LedgerEntry LedgerEntryDTO `json:"ledger_entry"`
}

// PaymentReceiptDTO is the response to a payment creation.
type PaymentReceiptDTO struct {
	Payment     PaymentDTO     `json:"payment"`
	LedgerEntry LedgerEntryDTO `json:"ledger_entry"`
}

// StatementLineDTO is one row of a student's ledger statement.
type StatementLineDTO struct {
	Kind            string `json:"kind"`
	ReferenceNumber string `json:"reference_number"`
	Month           string `json:"month,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
	Date            string `json:"date"`
	Amount          string `json:"amount"`
	RunningBalance  string `json:"running_balance"`
}

// StatementDTO is a student's full ledger statement.
type StatementDTO struct {
	StudentID string             `json:"student_id"`
	Lines     []StatementLineDTO `json:"lines"`
	Balance   string             `json:"balance"` // running balance after the last line
}

// =============================================================================
// EXAM TYPES
// =============================================================================

// ExamDTO represents an exam in API responses.
type ExamDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	TimetablePublished bool   `json:"timetable_published"`
	ResultsPublished   bool   `json:"results_published"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// CreateExamRequest is the request to create an exam.
type CreateExamRequest struct {
	Name string `json:"name" validate:"required"`
}

// PublishExamRequest toggles the two publication flags independently.
// Omitted fields are left unchanged.
type PublishExamRequest struct {
	Timetable *bool `json:"timetable,omitempty"`
	Results   *bool `json:"results,omitempty"`
}

// CreateExamDetailRequest is the request to pair an exam with a subject.
type CreateExamDetailRequest struct {
	ExamID     string  `json:"exam_id" validate:"required"`
	SubjectID  string  `json:"subject_id" validate:"required"`
	ClassID    string  `json:"class_id,omitempty"` // derived from subject when empty
	FullMarks  float64 `json:"full_marks" validate:"gt=0"`
	PassMarks  float64 `json:"pass_marks" validate:"gte=0"`
	ScheduleAt string  `json:"schedule_at,omitempty"` // RFC3339
	CreatedBy  string  `json:"created_by,omitempty"`
}

// ExamDetailDTO represents an exam detail in API responses.
type ExamDetailDTO struct {
	ID         string  `json:"id"`
	ExamID     string  `json:"exam_id"`
	SubjectID  string  `json:"subject_id"`
	ClassID    string  `json:"class_id"`
	FullMarks  float64 `json:"full_marks"`
	PassMarks  float64 `json:"pass_marks"`
	ScheduleAt string  `json:"schedule_at"`
}

// RecordResultRequest is the request to record (or correct) marks.
// Missing practical/theory components default to 0.
type RecordResultRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	ExamDetailID string  `json:"exam_detail_id" validate:"required"`
	Practical    float64 `json:"practical" validate:"gte=0"`
	Theory       float64 `json:"theory" validate:"gte=0"`
}

// ResultDTO represents one subject result.
type ResultDTO struct {
	StudentID    string  `json:"student_id"`
	ExamDetailID string  `json:"exam_detail_id"`
	Practical    float64 `json:"practical"`
	Theory       float64 `json:"theory"`
	Total        float64 `json:"total"`
	FullMarks    float64 `json:"full_marks"`
	Percentage   float64 `json:"percentage"`
	GPA          float64 `json:"gpa"`
	Grade        string  `json:"grade"`
}

// OverallResultDTO represents a per-(student, exam) rollup.
type OverallResultDTO struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	ExamID      string  `json:"exam_id"`
	ClassID     string  `json:"class_id"`
	TotalMarks  float64 `json:"total_marks"`
	FullMarks   float64 `json:"full_marks"`
	Percentage  float64 `json:"percentage"`
	GPA         float64 `json:"gpa"`
	Grade       string  `json:"grade"`
	Rank        int     `json:"rank"`
}

// RankRowDTO is one row of a class ranking.
type RankRowDTO struct {
	Rank        int     `json:"rank"`
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	TotalMarks  float64 `json:"total_marks"`
	FullMarks   float64 `json:"full_marks"`
	Percentage  float64 `json:"percentage"`
	GPA         float64 `json:"gpa"`
	Grade       string  `json:"grade"`
}

// ResultOutcomeDTO is the response to a result write: the persisted
// result, the recomputed rollup, and every rank row the class-wide
// recomputation touched.
type ResultOutcomeDTO struct {
	Result       ResultDTO        `json:"result"`
	Overall      OverallResultDTO `json:"overall"`
	UpdatedRanks []RankRowDTO     `json:"updated_ranks"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toStudentDTO(s school.Student) StudentDTO {
	return StudentDTO{
		ID:        string(s.ID),
		Name:      s.Name,
		ClassID:   string(s.ClassID),
		Section:   s.Section,
		RollNo:    s.RollNo,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func toBillDTO(b school.Bill) BillDTO {
	items := make([]BillItemDTO, len(b.Items))
	for i, item := range b.Items {
		items[i] = BillItemDTO{
			CategoryID:   string(item.CategoryID),
			CategoryName: item.CategoryName,
			Scholarship:  item.Scholarship,
			Amount:       item.Amount.String(),
		}
	}
	return BillDTO{
		Number:       b.Number,
		StudentID:    string(b.StudentID),
		Month:        b.Month.String(),
		Items:        items,
		RouteID:      string(b.RouteID),
		TransportFee: b.TransportFee.String(),
		Remarks:      b.Remarks,
		Subtotal:     b.Subtotal.String(),
		Discount:     b.Discount.String(),
		Total:        b.Total.String(),
		Date:         b.Date.Format("2006-01-02"),
		CreatedBy:    b.CreatedBy,
	}
}

func toPaymentDTO(p school.Payment) PaymentDTO {
	return PaymentDTO{
		Number:    p.Number,
		StudentID: string(p.StudentID),
		Amount:    p.AmountPaid.String(),
		Remarks:   p.Remarks,
		Date:      p.Date.Format("2006-01-02"),
		CreatedBy: p.CreatedBy,
	}
}

func toLedgerEntryDTO(e school.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		Kind:            string(e.Kind),
		DocumentNumber:  e.DocumentNumber,
		Month:           e.Month.String(),
		Remarks:         e.Remarks,
		Amount:          e.Amount.String(),
		Balance:         e.Balance.String(),
		TransactionDate: e.TransactionDate.Format("2006-01-02"),
	}
}

func toStatementLineDTO(l finance.StatementLine) StatementLineDTO {
	return StatementLineDTO{
		Kind:            string(l.Kind),
		ReferenceNumber: l.ReferenceNumber,
		Month:           l.Month.String(),
		Remarks:         l.Remarks,
		Date:            l.Date.Format("2006-01-02"),
		Amount:          l.Amount.String(),
		RunningBalance:  l.RunningBalance.String(),
	}
}

func toExamDTO(e school.Exam) ExamDTO {
	return ExamDTO{
		ID:                 string(e.ID),
		Name:               e.Name,
		TimetablePublished: e.TimetablePublished,
		ResultsPublished:   e.ResultsPublished,
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
	}
}

func toExamDetailDTO(d school.ExamDetail) ExamDetailDTO {
	return ExamDetailDTO{
		ID:         string(d.ID),
		ExamID:     string(d.ExamID),
		SubjectID:  string(d.SubjectID),
		ClassID:    string(d.ClassID),
		FullMarks:  d.FullMarks,
		PassMarks:  d.PassMarks,
		ScheduleAt: d.ScheduleAt.Format(time.RFC3339),
	}
}

func toResultDTO(r school.StudentResult) ResultDTO {
	return ResultDTO{
		StudentID:    string(r.StudentID),
		ExamDetailID: string(r.ExamDetailID),
		Practical:    r.Practical,
		Theory:       r.Theory,
		Total:        r.Total,
		FullMarks:    r.FullMarks,
		Percentage:   r.Percentage,
		GPA:          r.GPA,
		Grade:        r.Grade,
	}
}

func toOverallResultDTO(r school.StudentOverallResult) OverallResultDTO {
	return OverallResultDTO{
		StudentID:   string(r.StudentID),
		StudentName: r.StudentName,
		ExamID:      string(r.ExamID),
		ClassID:     string(r.ClassID),
		TotalMarks:  r.TotalMarks,
		FullMarks:   r.FullMarks,
		Percentage:  r.Percentage,
		GPA:         r.GPA,
		Grade:       r.Grade,
		Rank:        r.Rank,
	}
}

func toRankRowDTO(r exams.RankRow) RankRowDTO {
	return RankRowDTO{
		Rank:        r.Rank,
		StudentID:   string(r.StudentID),
		StudentName: r.StudentName,
		TotalMarks:  r.TotalMarks,
		FullMarks:   r.FullMarks,
		Percentage:  r.Percentage,
		GPA:         r.GPA,
		Grade:       r.Grade,
	}
}

func toRankRowDTOs(rows []exams.RankRow) []RankRowDTO {
	dtos := make([]RankRowDTO, len(rows))
	for i, r := range rows {
		dtos[i] = toRankRowDTO(r)
	}
	return dtos
}
