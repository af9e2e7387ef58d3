package factory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/school-engine/factory"
	"github.com/campusworks/school-engine/school"
	"github.com/campusworks/school-engine/school/store"
)

const validDataset = `{
  "classes": [
    {"id": "grade-5", "name": "Grade 5"}
  ],
  "students": [
    {"id": "s-anita", "name": "Anita", "class": "grade-5", "section": "A", "roll_no": 1},
    {"name": "Bikash", "class": "grade-5"}
  ],
  "subjects": [
    {"id": "sub-math-5", "name": "Mathematics", "class": "grade-5"}
  ],
  "fee_categories": [
    {"id": "fee-tuition-5", "name": "Tuition", "class": "grade-5", "amount": "500.50"}
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
}`

// =============================================================================
// PARSING TESTS
// =============================================================================

func TestParseDataset_Valid(t *testing.T) {
	ds, err := factory.ParseDataset([]byte(validDataset))
	require.NoError(t, err)

	assert.Len(t, ds.Classes, 1)
	assert.Len(t, ds.Students, 2)
	assert.Len(t, ds.Exams, 1)
	require.Len(t, ds.Exams[0].Details, 1)
	assert.Equal(t, 100.0, ds.Exams[0].Details[0].FullMarks)
}

func TestParseDataset_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		json    string
		wantErr string
	}{
		{"malformed json", `{`, "parse dataset JSON"},
		{"student without name", `{"students": [{"class": "grade-5"}]}`, "name is required"},
		{"student without class", `{"students": [{"name": "Anita"}]}`, "class is required"},
		{"student in unknown class",
			`{"classes": [{"id": "grade-5", "name": "Grade 5"}], "students": [{"name": "Anita", "class": "grade-9"}]}`,
			"unknown class"},
		{"bad fee amount", `{"fee_categories": [{"name": "Tuition", "class": "g", "amount": "lots"}]}`, "invalid money value"},
		{"bad route fare", `{"transport_routes": [{"name": "North", "fare": ""}]}`, "invalid money value"},
		{"exam detail unknown subject",
			`{"subjects": [{"id": "sub-a", "name": "A", "class": "g"}], "exams": [{"name": "T1", "details": [{"subject": "sub-b", "full_marks": 100}]}]}`,
			"unknown subject"},
		{"exam detail zero full marks",
			`{"exams": [{"name": "T1", "details": [{"subject": "sub-a", "full_marks": 0}]}]}`,
			"full_marks must be positive"},
		{"exam detail pass above full",
			`{"exams": [{"name": "T1", "details": [{"subject": "sub-a", "full_marks": 50, "pass_marks": 60}]}]}`,
			"pass_marks out of range"},
		{"exam detail bad schedule",
			`{"exams": [{"name": "T1", "details": [{"subject": "sub-a", "full_marks": 50, "schedule_at": "tomorrow"}]}]}`,
			"invalid schedule_at"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := factory.ParseDataset([]byte(tc.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// =============================================================================
// LOADING TESTS
// =============================================================================

func TestLoad_WritesEverything(t *testing.T) {
	ds, err := factory.ParseDataset([]byte(validDataset))
	require.NoError(t, err)

	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, factory.Load(ctx, st, ds))

	student, err := st.GetStudent(ctx, "s-anita")
	require.NoError(t, err)
	assert.Equal(t, "Anita", student.Name)
	assert.Equal(t, school.ClassID("grade-5"), student.ClassID)

	students, err := st.ListStudents(ctx)
	require.NoError(t, err)
	assert.Len(t, students, 2, "omitted IDs are generated")

	fee, err := st.GetFeeCategory(ctx, "fee-tuition-5")
	require.NoError(t, err)
	assert.Equal(t, "500.5", fee.Amount.String())

	details, err := st.ExamDetailsForExam(ctx, "exam-t1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, school.ClassID("grade-5"), details[0].ClassID, "class derived from subject")
	assert.Equal(t, 40.0, details[0].PassMarks)
}

func TestLoad_DuplicateExamDetail_RollsBack(t *testing.T) {
	// GIVEN: A dataset whose exam repeats the same subject detail
	// WHEN: Loading it
	// THEN: The load fails and nothing survives, not even the classes

	const dup = `{
	  "classes": [{"id": "grade-5", "name": "Grade 5"}],
	  "subjects": [{"id": "sub-math-5", "name": "Mathematics", "class": "grade-5"}],
	  "exams": [
	    {"id": "exam-t1", "name": "First Term", "details": [
	      {"subject": "sub-math-5", "full_marks": 100},
	      {"subject": "sub-math-5", "full_marks": 100}
	    ]}
	  ]
	}`

	ds, err := factory.ParseDataset([]byte(dup))
	require.NoError(t, err)

	st := store.NewMemory()
	ctx := context.Background()
	err = factory.Load(ctx, st, ds)
	require.Error(t, err)

	_, err = st.GetClass(ctx, "grade-5")
	assert.True(t, school.IsNotFound(err), "partial load must roll back")
}
