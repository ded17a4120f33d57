package dto

import (
	"time"

	"github.com/itsbooking/portal/internal/app/models"
)

// ReviewExerciseRequest sets the feedback and approval of an exercise
type ReviewExerciseRequest struct {
	Feedback string `json:"feedback" binding:"max=1500"`
	Approved *bool  `json:"approved" binding:"required"`
}

// ExerciseResponse is the public view of an exercise
type ExerciseResponse struct {
	ID         int64      `json:"id"`
	CourseID   int64      `json:"courseId"`
	StudentID  int64      `json:"studentId"`
	Student    string     `json:"student"`
	FileName   string     `json:"fileName"`
	Feedback   string     `json:"feedback"`
	Status     string     `json:"status"`
	Approved   *bool      `json:"approved"`
	ReviewerID *int64     `json:"reviewerId,omitempty"`
	UploadedAt time.Time  `json:"uploadedAt"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
}

// NewExerciseResponse converts a joined exercise row
func NewExerciseResponse(e *models.ExerciseDetail) ExerciseResponse {
	return ExerciseResponse{
		ID:         e.ID,
		CourseID:   e.CourseID,
		StudentID:  e.StudentID,
		Student:    e.Student.DisplayName(),
		FileName:   e.FileName,
		Feedback:   e.Feedback,
		Status:     e.Status(),
		Approved:   e.Approved,
		ReviewerID: e.ReviewerID,
		UploadedAt: e.UploadedAt,
		ReviewedAt: e.ReviewedAt,
	}
}

// NewExerciseResponses converts a list of joined exercise rows
func NewExerciseResponses(rows []models.ExerciseDetail) []ExerciseResponse {
	out := make([]ExerciseResponse, 0, len(rows))
	for i := range rows {
		out = append(out, NewExerciseResponse(&rows[i]))
	}
	return out
}
