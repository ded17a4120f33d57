package models

import "time"

// Announcement is a course bulletin post written by the coordinator
type Announcement struct {
	ID        int64     `db:"id"`
	CourseID  int64     `db:"course_id"`
	AuthorID  int64     `db:"author_id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// Comment is a reply to an announcement
type Comment struct {
	ID             int64     `db:"id"`
	AnnouncementID int64     `db:"announcement_id"`
	AuthorID       int64     `db:"author_id"`
	Content        string    `db:"content"`
	CreatedAt      time.Time `db:"created_at"`
}

// AnnouncementDetail is an announcement joined with its author
type AnnouncementDetail struct {
	Announcement
	Author       PersonName `db:"author"`
	CommentCount int        `db:"comment_count"`
}

// CommentDetail is a comment joined with its author
type CommentDetail struct {
	Comment
	Author PersonName `db:"author"`
}
