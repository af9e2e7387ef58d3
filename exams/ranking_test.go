package exams_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/school-engine/exams"
	"github.com/campusworks/school-engine/school"
)

// =============================================================================
// RANK ASSIGNMENT TESTS
// =============================================================================

// recordMath records a math theory mark for one student.
func recordMath(t *testing.T, eng *exams.Engine, studentID school.StudentID, marks float64) {
	t.Helper()
	_, err := eng.RecordResult(context.Background(), exams.RecordResultInput{
		StudentID:    studentID,
		ExamDetailID: "det-math",
		Theory:       marks,
	})
	require.NoError(t, err)
}

func publishResults(t *testing.T, eng *exams.Engine) {
	t.Helper()
	yes := true
	_, err := eng.SetPublication(context.Background(), "exam-t1", nil, &yes)
	require.NoError(t, err)
}

func TestRankings_TiedTotalsLeaveGaps(t *testing.T) {
	// GIVEN: Totals 80, 80, 75, 75 across the class
	// WHEN: Reading the ranking
	// THEN: Ranks are 1, 1, 3, 3 - equal totals share the rank of their
	//       first position and the next distinct total takes its 1-based
	//       position, leaving a gap at 2

	eng, _ := newTestExamEngine(t)

	recordMath(t, eng, "stu-anita", 80)
	recordMath(t, eng, "stu-bikash", 80)
	recordMath(t, eng, "stu-chandra", 75)
	recordMath(t, eng, "stu-deepa", 75)
	publishResults(t, eng)

	rows, err := eng.Rankings(context.Background(), "exam-t1", "grade-5")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	wantNames := []string{"Anita", "Bikash", "Chandra", "Deepa"}
	wantRanks := []int{1, 1, 3, 3}
	for i, row := range rows {
		assert.Equal(t, wantNames[i], row.StudentName, "row %d name", i)
		assert.Equal(t, wantRanks[i], row.Rank, "row %d rank", i)
	}
}

func TestRankings_ThreeWayTieThenNext(t *testing.T) {
	// Totals 90, 90, 90, 70 rank 1, 1, 1, 4.

	eng, _ := newTestExamEngine(t)

	recordMath(t, eng, "stu-anita", 90)
	recordMath(t, eng, "stu-bikash", 90)
	recordMath(t, eng, "stu-chandra", 90)
	recordMath(t, eng, "stu-deepa", 70)
	publishResults(t, eng)

	rows, err := eng.Rankings(context.Background(), "exam-t1", "grade-5")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []int{1, 1, 1, 4}, []int{rows[0].Rank, rows[1].Rank, rows[2].Rank, rows[3].Rank})
}

func TestRankings_DistinctTotalsRankSequentially(t *testing.T) {
	eng, _ := newTestExamEngine(t)

	recordMath(t, eng, "stu-anita", 95)
	recordMath(t, eng, "stu-bikash", 82)
	recordMath(t, eng, "stu-chandra", 77)
	publishResults(t, eng)

	rows, err := eng.Rankings(context.Background(), "exam-t1", "grade-5")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Rank)
	}
	assert.Equal(t, "Anita", rows[0].StudentName)
	assert.Equal(t, "Chandra", rows[2].StudentName)
}

func TestRankings_TiesOrderedByNameForDeterminism(t *testing.T) {
	// Name ordering inside a tie is presentational only; both students
	// carry the same rank.

	eng, _ := newTestExamEngine(t)

	recordMath(t, eng, "stu-deepa", 88)
	recordMath(t, eng, "stu-anita", 88)
	publishResults(t, eng)

	rows, err := eng.Rankings(context.Background(), "exam-t1", "grade-5")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Anita", rows[0].StudentName)
	assert.Equal(t, "Deepa", rows[1].StudentName)
	assert.Equal(t, rows[0].Rank, rows[1].Rank)
}

// =============================================================================
// CASCADE TESTS
// =============================================================================

func TestRecordResult_ReranksWholeClass(t *testing.T) {
	// GIVEN: Anita leads with 80 over Bikash's 70
	// WHEN: Chandra scores 85
	// THEN: The write's outcome already carries everyone's new rank

	eng, st := newTestExamEngine(t)
	ctx := context.Background()

	recordMath(t, eng, "stu-anita", 80)
	recordMath(t, eng, "stu-bikash", 70)

	outcome, err := eng.RecordResult(ctx, exams.RecordResultInput{
		StudentID: "stu-chandra", ExamDetailID: "det-math", Theory: 85,
	})
	require.NoError(t, err)

	require.Len(t, outcome.UpdatedRanks, 3)
	byName := map[string]int{}
	for _, row := range outcome.UpdatedRanks {
		byName[row.StudentName] = row.Rank
	}
	assert.Equal(t, 1, byName["Chandra"])
	assert.Equal(t, 2, byName["Anita"])
	assert.Equal(t, 3, byName["Bikash"])
	assert.Equal(t, 1, outcome.Overall.Rank)

	// Displaced students' rollups were re-persisted with their new rank.
	anita, err := st.GetOverallResult(ctx, "stu-anita", "exam-t1")
	require.NoError(t, err)
	assert.Equal(t, 2, anita.Rank)
}

func TestUpdateResult_RerankAfterCorrection(t *testing.T) {
	// GIVEN: Anita 80 ranked above Bikash 70
	// WHEN: Bikash's mark is corrected to 95
	// THEN: The ranking flips

	eng, st := newTestExamEngine(t)
	ctx := context.Background()

	recordMath(t, eng, "stu-anita", 80)
	recordMath(t, eng, "stu-bikash", 70)

	_, err := eng.UpdateResult(ctx, exams.RecordResultInput{
		StudentID: "stu-bikash", ExamDetailID: "det-math", Theory: 95,
	})
	require.NoError(t, err)

	bikash, err := st.GetOverallResult(ctx, "stu-bikash", "exam-t1")
	require.NoError(t, err)
	assert.Equal(t, 1, bikash.Rank)
	anita, err := st.GetOverallResult(ctx, "stu-anita", "exam-t1")
	require.NoError(t, err)
	assert.Equal(t, 2, anita.Rank)
}

// =============================================================================
// PUBLICATION GATING TESTS
// =============================================================================

func TestRankings_UnpublishedResults_Gated(t *testing.T) {
	// GIVEN: Results recorded but the exam's results flag is off
	// WHEN: Reading the ranking
	// THEN: Rejected; publishing opens the gate, unpublishing closes it

	eng, _ := newTestExamEngine(t)
	ctx := context.Background()

	recordMath(t, eng, "stu-anita", 80)

	_, err := eng.Rankings(ctx, "exam-t1", "grade-5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, school.ErrResultsNotPublished))

	publishResults(t, eng)
	rows, err := eng.Rankings(ctx, "exam-t1", "grade-5")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	no := false
	_, err = eng.SetPublication(ctx, "exam-t1", nil, &no)
	require.NoError(t, err)
	_, err = eng.Rankings(ctx, "exam-t1", "grade-5")
	assert.True(t, errors.Is(err, school.ErrResultsNotPublished))
}

func TestRankings_WritesNotGatedByPublication(t *testing.T) {
	// Publication only gates reads; recording results against a published
	// exam still works and reranks.

	eng, _ := newTestExamEngine(t)

	publishResults(t, eng)
	recordMath(t, eng, "stu-anita", 80)

	rows, err := eng.Rankings(context.Background(), "exam-t1", "grade-5")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRankings_UnknownExamOrClass_NotFound(t *testing.T) {
	eng, _ := newTestExamEngine(t)
	ctx := context.Background()

	_, err := eng.Rankings(ctx, "exam-ghost", "grade-5")
	require.Error(t, err)
	assert.True(t, school.IsNotFound(err))

	publishResults(t, eng)
	_, err = eng.Rankings(ctx, "exam-t1", "grade-ghost")
	require.Error(t, err)
	assert.True(t, school.IsNotFound(err))
}
