/*
Package factory provides JSON to Go dataset conversion and seeding.

PURPOSE:
  Converts JSON dataset definitions (classes, students, subjects, fee
  categories, transport routes, exams) into domain structs and loads
  them into a store. This enables school setup without code changes -
  administrators can define the academic structure in JSON, and the
  factory creates the proper Go structs.

WHY JSON?
  - Non-developers can author the school structure
  - Easy integration with an admin UI
  - Version control for fee schedules
  - One format for demo data, tests and real onboarding

JSON SCHEMA:
  {
    "classes": [
      {"id": "grade-5", "name": "Grade 5"}
    ],
    "students": [
      {"id": "s-alice", "name": "Alice", "class": "grade-5", "section": "A", "roll_no": 1}
    ],
    "subjects": [
      {"id": "sub-math-5", "name": "Mathematics", "class": "grade-5"}
    ],
    "fee_categories": [
      {"id": "fee-tuition-5", "name": "Tuition", "class": "grade-5", "amount": "500"}
    ],
    "transport_routes": [
      {"id": "route-north", "name": "North Loop", "fare": "50"}
    ],
    "exams": [
      {
        "id": "exam-t1", "name": "First Term",
        "details": [
          {"subject": "sub-math-5", "full_marks": 100, "pass_marks": 40, "schedule_at": "2026-04-10T09:00:00Z"}
        ]
      }
    ]
  }

KEY FEATURES:
  - Validates references (students to classes, details to subjects)
  - Generates IDs when omitted
  - Money amounts are decimal strings, parsed exactly
  - Idempotent-friendly: Load fails fast on the first conflict

USAGE:
  ds, err := factory.ParseDataset(jsonBytes)
  if err != nil { ... }
  if err := factory.Load(ctx, store, ds); err != nil { ... }

SEE ALSO:
  - school/types.go: Domain struct definitions
  - api/scenarios.go: Built-in demo dataset using this factory
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// DatasetJSON is the JSON representation of a school dataset.
type DatasetJSON struct {
	Classes         []ClassJSON   `json:"classes,omitempty"`
	Students        []StudentJSON `json:"students,omitempty"`
	Subjects        []SubjectJSON `json:"subjects,omitempty"`
	FeeCategories   []FeeJSON     `json:"fee_categories,omitempty"`
	TransportRoutes []RouteJSON   `json:"transport_routes,omitempty"`
	Exams           []ExamJSON    `json:"exams,omitempty"`
}

type ClassJSON struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type StudentJSON struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Class   string `json:"class"` // class id
	Section string `json:"section,omitempty"`
	RollNo  int    `json:"roll_no,omitempty"`
}

type SubjectJSON struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

type FeeJSON struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Class  string `json:"class"`
	Amount string `json:"amount"` // decimal string
}

type RouteJSON struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Fare string `json:"fare"` // decimal string
}

type ExamJSON struct {
	ID      string           `json:"id,omitempty"`
	Name    string           `json:"name"`
	Details []ExamDetailJSON `json:"details,omitempty"`
}

type ExamDetailJSON struct {
	Subject    string  `json:"subject"` // subject id
	Class      string  `json:"class,omitempty"`
	FullMarks  float64 `json:"full_marks"`
	PassMarks  float64 `json:"pass_marks"`
	ScheduleAt string  `json:"schedule_at,omitempty"` // RFC3339
}

// =============================================================================
// PARSING
// =============================================================================

// ParseDataset parses JSON bytes into a validated DatasetJSON.
func ParseDataset(data []byte) (*DatasetJSON, error) {
	var ds DatasetJSON
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}
	if err := validate(&ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

func validate(ds *DatasetJSON) error {
	classes := map[string]bool{}
	for i, c := range ds.Classes {
		if c.Name == "" {
			return fmt.Errorf("classes[%d]: name is required", i)
		}
		if c.ID != "" {
			classes[c.ID] = true
		}
	}

	for i, st := range ds.Students {
		if st.Name == "" {
			return fmt.Errorf("students[%d]: name is required", i)
		}
		if st.Class == "" {
			return fmt.Errorf("students[%d] (%s): class is required", i, st.Name)
		}
		if len(classes) > 0 && !classes[st.Class] {
			return fmt.Errorf("students[%d] (%s): unknown class %q", i, st.Name, st.Class)
		}
	}

	subjects := map[string]bool{}
	for i, sub := range ds.Subjects {
		if sub.Name == "" {
			return fmt.Errorf("subjects[%d]: name is required", i)
		}
		if sub.Class == "" {
			return fmt.Errorf("subjects[%d] (%s): class is required", i, sub.Name)
		}
		if sub.ID != "" {
			subjects[sub.ID] = true
		}
	}

	for i, f := range ds.FeeCategories {
		if f.Name == "" {
			return fmt.Errorf("fee_categories[%d]: name is required", i)
		}
		if _, err := school.ParseMoney(f.Amount); err != nil {
			return fmt.Errorf("fee_categories[%d] (%s): %w", i, f.Name, err)
		}
	}

	for i, r := range ds.TransportRoutes {
		if r.Name == "" {
			return fmt.Errorf("transport_routes[%d]: name is required", i)
		}
		if _, err := school.ParseMoney(r.Fare); err != nil {
			return fmt.Errorf("transport_routes[%d] (%s): %w", i, r.Name, err)
		}
	}

	for i, e := range ds.Exams {
		if e.Name == "" {
			return fmt.Errorf("exams[%d]: name is required", i)
		}
		for j, d := range e.Details {
			if d.Subject == "" {
				return fmt.Errorf("exams[%d].details[%d]: subject is required", i, j)
			}
			if len(subjects) > 0 && !subjects[d.Subject] {
				return fmt.Errorf("exams[%d].details[%d]: unknown subject %q", i, j, d.Subject)
			}
			if d.FullMarks <= 0 {
				return fmt.Errorf("exams[%d].details[%d]: full_marks must be positive", i, j)
			}
			if d.PassMarks < 0 || d.PassMarks > d.FullMarks {
				return fmt.Errorf("exams[%d].details[%d]: pass_marks out of range", i, j)
			}
			if d.ScheduleAt != "" {
				if _, err := time.Parse(time.RFC3339, d.ScheduleAt); err != nil {
					return fmt.Errorf("exams[%d].details[%d]: invalid schedule_at: %w", i, j, err)
				}
			}
		}
	}
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load writes a parsed dataset into the store. The whole load runs in one
// unit of work: a bad row rolls back everything already inserted.
func Load(ctx context.Context, store school.Store, ds *DatasetJSON) error {
	now := time.Now().UTC()

	return store.WithTx(ctx, func(tx school.Store) error {
		for _, c := range ds.Classes {
			if err := tx.CreateClass(ctx, school.ClassRoom{
				ID:        school.ClassID(orNewID(c.ID)),
				Name:      c.Name,
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("class %q: %w", c.Name, err)
			}
		}

		for _, st := range ds.Students {
			if err := tx.CreateStudent(ctx, school.Student{
				ID:        school.StudentID(orNewID(st.ID)),
				Name:      st.Name,
				ClassID:   school.ClassID(st.Class),
				Section:   st.Section,
				RollNo:    st.RollNo,
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("student %q: %w", st.Name, err)
			}
		}

		for _, sub := range ds.Subjects {
			if err := tx.CreateSubject(ctx, school.Subject{
				ID:        school.SubjectID(orNewID(sub.ID)),
				Name:      sub.Name,
				ClassID:   school.ClassID(sub.Class),
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("subject %q: %w", sub.Name, err)
			}
		}

		for _, f := range ds.FeeCategories {
			amount, err := school.ParseMoney(f.Amount)
			if err != nil {
				return fmt.Errorf("fee category %q: %w", f.Name, err)
			}
			if err := tx.CreateFeeCategory(ctx, school.FeeCategory{
				ID:        school.CategoryID(orNewID(f.ID)),
				Name:      f.Name,
				ClassID:   school.ClassID(f.Class),
				Amount:    amount,
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("fee category %q: %w", f.Name, err)
			}
		}

		for _, r := range ds.TransportRoutes {
			fare, err := school.ParseMoney(r.Fare)
			if err != nil {
				return fmt.Errorf("transport route %q: %w", r.Name, err)
			}
			if err := tx.CreateTransportRoute(ctx, school.TransportRoute{
				ID:        school.RouteID(orNewID(r.ID)),
				Name:      r.Name,
				Fare:      fare,
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("transport route %q: %w", r.Name, err)
			}
		}

		for _, e := range ds.Exams {
			examID := school.ExamID(orNewID(e.ID))
			if err := tx.CreateExam(ctx, school.Exam{
				ID:        examID,
				Name:      e.Name,
				CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("exam %q: %w", e.Name, err)
			}

			for _, d := range e.Details {
				subject, err := tx.GetSubject(ctx, school.SubjectID(d.Subject))
				if err != nil {
					return fmt.Errorf("exam %q detail: %w", e.Name, err)
				}
				classID := subject.ClassID
				if d.Class != "" {
					classID = school.ClassID(d.Class)
				}
				scheduleAt := now
				if d.ScheduleAt != "" {
					scheduleAt, _ = time.Parse(time.RFC3339, d.ScheduleAt)
				}
				if err := tx.CreateExamDetail(ctx, school.ExamDetail{
					ID:         school.ExamDetailID(school.NewID()),
					ExamID:     examID,
					SubjectID:  subject.ID,
					ClassID:    classID,
					FullMarks:  d.FullMarks,
					PassMarks:  d.PassMarks,
					ScheduleAt: scheduleAt,
					CreatedAt:  now,
				}); err != nil {
					return fmt.Errorf("exam %q detail %q: %w", e.Name, subject.Name, err)
				}
			}
		}
		return nil
	})
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return school.NewID()
}
