/*
scenarios.go - Demo scenario datasets and loaders

PURPOSE:
  Named, self-contained demo datasets for development and manual testing.
  Each scenario builds a small school (classes, students, fees), then
  drives the finance and exams engines through realistic operations so
  the resulting database shows real ledgers, rollups and rankings.

SCENARIOS:
  fresh-term     Directory + fee schedule only, no transactions
  billing-cycle  Two months of bills and partial payments per student
  exam-season    A published exam with results, rollups and class ranks

LOADING:
  Scenarios are additive: they assume an empty database and fail with a
  conflict error when re-applied. Use a fresh database file (or the
  in-memory store) between loads.

SEE ALSO:
  - factory/dataset.go: JSON dataset parser/loader the scenarios build on
  - handlers.go: writeJSON/writeDomainError helpers
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/campusworks/school-engine/exams"
	"github.com/campusworks/school-engine/factory"
	"github.com/campusworks/school-engine/finance"
	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ID          string
	Name        string
	Description string
	Load        func(ctx context.Context, h *Handler) error
}

var scenarios = []scenario{
	{
		ID:          "fresh-term",
		Name:        "Fresh Term",
		Description: "Classes, students, subjects and fee schedule with no transactions yet.",
		Load:        loadFreshTerm,
	},
	{
		ID:          "billing-cycle",
		Name:        "Billing Cycle",
		Description: "Two months of bills with scholarships, transport fees and partial payments.",
		Load:        loadBillingCycle,
	},
	{
		ID:          "exam-season",
		Name:        "Exam Season",
		Description: "A published exam with recorded results, rollups and class rankings including ties.",
		Load:        loadExamSeason,
	},
}

// baseDataset is the school structure shared by every scenario.
const baseDataset = `{
  "classes": [
    {"id": "grade-5", "name": "Grade 5"}
  ],
  "students": [
    {"id": "s-anita",  "name": "Anita",  "class": "grade-5", "section": "A", "roll_no": 1},
    {"id": "s-bikash", "name": "Bikash", "class": "grade-5", "section": "A", "roll_no": 2},
    {"id": "s-chandra","name": "Chandra","class": "grade-5", "section": "B", "roll_no": 3},
    {"id": "s-deepa",  "name": "Deepa",  "class": "grade-5", "section": "B", "roll_no": 4}
  ],
  "subjects": [
    {"id": "sub-math-5",    "name": "Mathematics", "class": "grade-5"},
    {"id": "sub-science-5", "name": "Science",     "class": "grade-5"}
  ],
  "fee_categories": [
    {"id": "fee-tuition-5", "name": "Tuition",  "class": "grade-5", "amount": "500"},
    {"id": "fee-library-5", "name": "Library",  "class": "grade-5", "amount": "50"},
    {"id": "fee-sports-5",  "name": "Sports",   "class": "grade-5", "amount": "30"}
  ],
  "transport_routes": [
    {"id": "route-north", "name": "North Loop", "fare": "50"}
  ],
  "exams": [
    {
      "id": "exam-t1", "name": "First Term",
      "details": [
        {"subject": "sub-math-5",    "full_marks": 100, "pass_marks": 40, "schedule_at": "2026-04-10T09:00:00Z"},
        {"subject": "sub-science-5", "full_marks": 100, "pass_marks": 40, "schedule_at": "2026-04-12T09:00:00Z"}
      ]
    }
  ]
}`

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadBase(ctx context.Context, h *Handler) error {
	ds, err := factory.ParseDataset([]byte(baseDataset))
	if err != nil {
		return fmt.Errorf("base dataset: %w", err)
	}
	return factory.Load(ctx, h.Store, ds)
}

func loadFreshTerm(ctx context.Context, h *Handler) error {
	return loadBase(ctx, h)
}

func loadBillingCycle(ctx context.Context, h *Handler) error {
	if err := loadBase(ctx, h); err != nil {
		return err
	}

	allFees := []finance.BillLine{
		{CategoryID: "fee-tuition-5"},
		{CategoryID: "fee-library-5"},
		{CategoryID: "fee-sports-5"},
	}
	scholarshipFees := []finance.BillLine{
		{CategoryID: "fee-tuition-5", Scholarship: true},
		{CategoryID: "fee-library-5"},
		{CategoryID: "fee-sports-5"},
	}
	april := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	may := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	type billing struct {
		student school.StudentID
		lines   []finance.BillLine
		route   school.RouteID
		paid    string // decimal paid per month, "" = no payment
	}
	plan := []billing{
		{student: "s-anita", lines: allFees, route: "route-north", paid: "630"},
		{student: "s-bikash", lines: allFees, paid: "300"},
		{student: "s-chandra", lines: scholarshipFees, paid: "80"},
		{student: "s-deepa", lines: allFees, route: "route-north", paid: ""},
	}

	for _, month := range []struct {
		m    school.BillMonth
		date time.Time
	}{{"2026-04", april}, {"2026-05", may}} {
		for _, b := range plan {
			if _, err := h.Finance.CreateBill(ctx, finance.CreateBillInput{
				StudentID: b.student,
				Month:     month.m,
				Lines:     b.lines,
				RouteID:   b.route,
				Date:      month.date,
				CreatedBy: "demo",
			}); err != nil {
				return fmt.Errorf("bill %s %s: %w", b.student, month.m, err)
			}
			if b.paid == "" {
				continue
			}
			amount, err := school.ParseMoney(b.paid)
			if err != nil {
				return err
			}
			if _, err := h.Finance.CreatePayment(ctx, finance.CreatePaymentInput{
				StudentID:  b.student,
				AmountPaid: amount,
				Remarks:    "monthly payment",
				Date:       month.date.AddDate(0, 0, 10),
				CreatedBy:  "demo",
			}); err != nil {
				return fmt.Errorf("payment %s %s: %w", b.student, month.m, err)
			}
		}
	}
	return nil
}

func loadExamSeason(ctx context.Context, h *Handler) error {
	if err := loadBase(ctx, h); err != nil {
		return err
	}

	details, err := h.Store.ExamDetailsForExam(ctx, "exam-t1")
	if err != nil {
		return err
	}
	byKind := map[school.SubjectID]school.ExamDetailID{}
	for _, d := range details {
		byKind[d.SubjectID] = d.ID
	}

	// Anita and Bikash tie on total marks; Deepa trails.
	marks := []struct {
		student            school.StudentID
		mathP, mathT       float64
		scienceP, scienceT float64
	}{
		{"s-anita", 20, 65, 15, 60},
		{"s-bikash", 25, 60, 20, 55},
		{"s-chandra", 18, 57, 22, 58},
		{"s-deepa", 10, 45, 12, 40},
	}
	for _, m := range marks {
		if _, err := h.Exams.RecordResult(ctx, exams.RecordResultInput{
			StudentID:    m.student,
			ExamDetailID: byKind["sub-math-5"],
			Practical:    m.mathP,
			Theory:       m.mathT,
		}); err != nil {
			return fmt.Errorf("math result %s: %w", m.student, err)
		}
		if _, err := h.Exams.RecordResult(ctx, exams.RecordResultInput{
			StudentID:    m.student,
			ExamDetailID: byKind["sub-science-5"],
			Practical:    m.scienceP,
			Theory:       m.scienceT,
		}); err != nil {
			return fmt.Errorf("science result %s: %w", m.student, err)
		}
	}

	published := true
	if _, err := h.Exams.SetPublication(ctx, "exam-t1", &published, &published); err != nil {
		return fmt.Errorf("publish exam: %w", err)
	}
	return nil
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the last loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": h.currentScenario})
}

// LoadScenario loads a named demo scenario into the store.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	for _, s := range scenarios {
		if s.ID != req.ScenarioID {
			continue
		}
		if err := s.Load(r.Context(), h); err != nil {
			writeDomainError(w, err)
			return
		}
		h.currentScenario = s.ID
		writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": s.ID})
		return
	}
	writeError(w, http.StatusNotFound, "Unknown scenario", nil)
}
