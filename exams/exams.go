/*
exams.go - Exam and exam-detail management

PURPOSE:
  Creating exams, pairing them with subjects (exam details), and the two
  independent publication flags: the timetable flag gates schedule
  visibility, the results flag gates result/ranking visibility. Neither
  flag affects writes.

CLASS DERIVATION:
  An exam detail's class is derived from its subject when not given
  explicitly. Derivation requires the subject's name to map to exactly
  one class; zero or multiple candidate classes reject the call.
*/
package exams

import (
	"context"
	"time"

	"github.com/campusworks/school-engine/school"
)

// CreateExam creates a named examination event with both publication
// flags off.
func (e *Engine) CreateExam(ctx context.Context, name string) (*school.Exam, error) {
	if name == "" {
		return nil, school.NewValidationError("name", "is required")
	}
	exam := school.Exam{
		ID:        school.ExamID(school.NewID()),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateExam(ctx, exam); err != nil {
		return nil, err
	}
	return &exam, nil
}

// SetPublication updates the publication flags. A nil flag is left
// unchanged.
func (e *Engine) SetPublication(ctx context.Context, examID school.ExamID, timetable, results *bool) (*school.Exam, error) {
	exam, err := e.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if timetable != nil {
		exam.TimetablePublished = *timetable
	}
	if results != nil {
		exam.ResultsPublished = *results
	}
	if err := e.store.UpdateExam(ctx, *exam); err != nil {
		return nil, err
	}
	return exam, nil
}

// CreateExamDetail pairs an exam with a subject for a class, deriving
// the class from the subject when none is given. Unique per
// (exam, subject, class).
func (e *Engine) CreateExamDetail(ctx context.Context, in CreateExamDetailInput) (*school.ExamDetail, error) {
	if in.FullMarks <= 0 {
		return nil, school.NewValidationError("full_marks", "must be positive")
	}
	if in.PassMarks < 0 || in.PassMarks > in.FullMarks {
		return nil, school.NewValidationError("pass_marks", "must be between 0 and full marks")
	}

	if _, err := e.store.GetExam(ctx, in.ExamID); err != nil {
		return nil, err
	}
	subject, err := e.store.GetSubject(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}

	classID := in.ClassID
	if classID == "" {
		classes, err := e.store.SubjectClassesByName(ctx, subject.Name)
		if err != nil {
			return nil, err
		}
		if len(classes) != 1 {
			return nil, school.ErrAmbiguousClass
		}
		classID = classes[0]
	}
	if _, err := e.store.GetClass(ctx, classID); err != nil {
		return nil, err
	}

	exists, err := e.store.ExamDetailExists(ctx, in.ExamID, in.SubjectID, classID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, school.ErrDuplicateExamDetail
	}

	detail := school.ExamDetail{
		ID:         school.ExamDetailID(school.NewID()),
		ExamID:     in.ExamID,
		SubjectID:  in.SubjectID,
		ClassID:    classID,
		FullMarks:  in.FullMarks,
		PassMarks:  in.PassMarks,
		ScheduleAt: in.ScheduleAt,
		CreatedBy:  in.CreatedBy,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.CreateExamDetail(ctx, detail); err != nil {
		return nil, err
	}
	return &detail, nil
}
