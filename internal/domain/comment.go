package domain

import "time"

// Comment is a note left by a user on a post.
type Comment struct {
	ID        int64
	PostID    int64
	AuthorID  int64
	Author    UserSummary
	Body      string
	CreatedAt time.Time
}
