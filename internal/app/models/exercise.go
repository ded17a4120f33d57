package models

import "time"

// Exercise review states
const (
	ExerciseUnreviewed = "unreviewed"
	ExerciseApproved   = "approved"
	ExerciseRejected   = "rejected"
)

// Exercise is a file a student uploaded for review
type Exercise struct {
	ID         int64      `db:"id"`
	CourseID   int64      `db:"course_id"`
	StudentID  int64      `db:"student_id"`
	FilePath   string     `db:"file_path"`
	FileName   string     `db:"file_name"`
	Feedback   string     `db:"feedback"`
	Approved   *bool      `db:"approved"`
	ReviewerID *int64     `db:"reviewer_id"`
	UploadedAt time.Time  `db:"uploaded_at"`
	ReviewedAt *time.Time `db:"reviewed_at"`
}

// Reviewed reports whether a reviewer has set the approval flag
func (e *Exercise) Reviewed() bool {
	return e.Approved != nil
}

// Status returns the review state name
func (e *Exercise) Status() string {
	switch {
	case e.Approved == nil:
		return ExerciseUnreviewed
	case *e.Approved:
		return ExerciseApproved
	default:
		return ExerciseRejected
	}
}

// ExerciseDetail is an exercise joined with the uploading student
type ExerciseDetail struct {
	Exercise
	Student PersonName `db:"student"`
}
