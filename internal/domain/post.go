package domain

import (
	"time"

	"github.com/samber/lo"
)

// Post is a published blog entry addressed publicly by its slug.
type Post struct {
	ID               int64
	Slug             string
	Title            string
	Body             string
	AuthorID         int64
	Author           UserSummary
	FeaturedImageKey string
	Views            int64
	Likes            []int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LikedBy reports whether userID is in the post's like set.
func (p *Post) LikedBy(userID int64) bool {
	return lo.Contains(p.Likes, userID)
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps Offset far from int overflow.
	MaxPage         = 1_000_000
)

// PostQuery selects a page of posts, newest first.
type PostQuery struct {
	Page     int
	Limit    int
	AuthorID int64
}

// Normalize clamps paging values into their accepted ranges.
func (q PostQuery) Normalize() PostQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}

// Offset is the number of rows skipped before the requested page.
func (q PostQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// PostPage is one page of a post listing.
type PostPage struct {
	Posts []Post
	Page  int
	Limit int
	Total int64
	Pages int
}

// NewPostPage computes the page count for total rows at the query's page size.
func NewPostPage(posts []Post, q PostQuery, total int64) *PostPage {
	pages := 0
	if q.Limit > 0 {
		pages = int((total + int64(q.Limit) - 1) / int64(q.Limit))
	}
	if posts == nil {
		posts = []Post{}
	}
	return &PostPage{
		Posts: posts,
		Page:  q.Page,
		Limit: q.Limit,
		Total: total,
		Pages: pages,
	}
}
