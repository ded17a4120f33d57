package dto

import (
	"time"

	"github.com/itsbooking/portal/internal/app/models"
)

// CreateAnnouncementRequest is the body of a new announcement
type CreateAnnouncementRequest struct {
	Title   string `json:"title" binding:"required,max=45"`
	Content string `json:"content" binding:"required,max=1500"`
}

// CreateCommentRequest is the body of a new comment
type CreateCommentRequest struct {
	Content string `json:"content" binding:"required,max=500"`
}

// AnnouncementResponse is the public view of an announcement
type AnnouncementResponse struct {
	ID           int64             `json:"id"`
	CourseID     int64             `json:"courseId"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`
	AuthorID     int64             `json:"authorId"`
	Author       string            `json:"author"`
	CommentCount int               `json:"commentCount"`
	CreatedAt    time.Time         `json:"createdAt"`
	Comments     []CommentResponse `json:"comments,omitempty"`
}

// CommentResponse is the public view of a comment
type CommentResponse struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"authorId"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAnnouncementResponse converts a joined announcement row
func NewAnnouncementResponse(a *models.AnnouncementDetail) AnnouncementResponse {
	return AnnouncementResponse{
		ID:           a.ID,
		CourseID:     a.CourseID,
		Title:        a.Title,
		Content:      a.Content,
		AuthorID:     a.AuthorID,
		Author:       a.Author.DisplayName(),
		CommentCount: a.CommentCount,
		CreatedAt:    a.CreatedAt,
	}
}

// NewAnnouncementResponses converts a list of joined announcement rows
func NewAnnouncementResponses(rows []models.AnnouncementDetail) []AnnouncementResponse {
	out := make([]AnnouncementResponse, 0, len(rows))
	for i := range rows {
		out = append(out, NewAnnouncementResponse(&rows[i]))
	}
	return out
}

// NewCommentResponse converts a joined comment row
func NewCommentResponse(c *models.CommentDetail) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		AuthorID:  c.AuthorID,
		Author:    c.Author.DisplayName(),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}
