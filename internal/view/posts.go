package view

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Post type ids as the dump defines them.
const (
	postTypeQuestion = 1
	postTypeAnswer   = 2
)

// PostQuery selects and orders a page of posts.
type PostQuery struct {
	Page     int    // 1-based; values < 1 clamp to 1
	Limit    int    // page size; clamps to [1, 100], default 20
	Search   string // substring match on title or body
	PostType string // "questions", "answers", or "" for both
	Sort     string // "recent" (default), "score", "views"
}

func (q *PostQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}

// PostSummary is one listing row.
type PostSummary struct {
	ID           int64     `json:"id"`
	PostTypeID   int64     `json:"post_type_id"`
	Title        string    `json:"title"`
	Score        int64     `json:"score"`
	ViewCount    int64     `json:"view_count"`
	AnswerCount  int64     `json:"answer_count"`
	CreationDate time.Time `json:"creation_date"`
	OwnerUserID  *int64    `json:"owner_user_id,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	BodyPreview  string    `json:"body_preview"`
}

// PostPage is one page of a post listing.
type PostPage struct {
	Posts      []PostSummary `json:"posts"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

// BrowsePosts returns a filtered, sorted page of posts with a total count
// for pagination.
func (s *Store) BrowsePosts(ctx context.Context, q PostQuery) (*PostPage, error) {
	q.normalize()

	where := []string{"site = ?"}
	args := []any{s.site}

	if q.Search != "" {
		where = append(where, "(title LIKE ? OR body LIKE ?)")
		pat := "%" + q.Search + "%"
		args = append(args, pat, pat)
	}
	switch q.PostType {
	case "questions":
		where = append(where, "post_type_id = ?")
		args = append(args, postTypeQuestion)
	case "answers":
		where = append(where, "post_type_id = ?")
		args = append(args, postTypeAnswer)
	}

	var order string
	switch q.Sort {
	case "score":
		order = "score DESC"
	case "views":
		order = "view_count DESC"
	default:
		order = "creation_date DESC"
	}

	cond := strings.Join(where, " AND ")

	page := &PostPage{Page: q.Page}
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM posts WHERE "+cond, args...).Scan(&page.Total)
	if err != nil {
		return nil, fmt.Errorf("view: count posts: %w", err)
	}
	page.TotalPages = int((page.Total + int64(q.Limit) - 1) / int64(q.Limit))

	query := `SELECT id, post_type_id, title, score, view_count, answer_count,
		creation_date, owner_user_id, tags, body
		FROM posts WHERE ` + cond + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("view: browse posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p       PostSummary
			title   sql.NullString
			views   sql.NullInt64
			created sql.NullString
			owner   sql.NullInt64
			tagStr  sql.NullString
			body    sql.NullString
		)
		err := rows.Scan(&p.ID, &p.PostTypeID, &title, &p.Score, &views,
			&p.AnswerCount, &created, &owner, &tagStr, &body)
		if err != nil {
			return nil, fmt.Errorf("view: browse posts: %w", err)
		}
		p.Title = title.String
		if p.Title == "" {
			p.Title = "No title"
		}
		p.ViewCount = views.Int64
		if t, ok := parseStoredTime(created); ok {
			p.CreationDate = t
		}
		if owner.Valid {
			p.OwnerUserID = &owner.Int64
		}
		p.Tags = splitTags(tagStr.String)
		p.BodyPreview = preview(body.String)
		page.Posts = append(page.Posts, p)
	}
	return page, rows.Err()
}

// PostDetail is a post with its answers and comments resolved.
type PostDetail struct {
	ID           int64     `json:"id"`
	PostTypeID   int64     `json:"post_type_id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Score        int64     `json:"score"`
	ViewCount    int64     `json:"view_count"`
	CreationDate time.Time `json:"creation_date"`
	OwnerUserID  *int64    `json:"owner_user_id,omitempty"`
	OwnerName    string    `json:"owner_name"`
	Tags         []string  `json:"tags,omitempty"`
	AnswerCount  int64     `json:"answer_count"`
	CommentCount int64     `json:"comment_count"`
	Answers      []Answer  `json:"answers,omitempty"`
	Comments     []Comment `json:"comments,omitempty"`
}

// Answer is one answer beneath a question, best score first.
type Answer struct {
	ID           int64     `json:"id"`
	Body         string    `json:"body"`
	Score        int64     `json:"score"`
	CreationDate time.Time `json:"creation_date"`
	OwnerUserID  *int64    `json:"owner_user_id,omitempty"`
	OwnerName    string    `json:"owner_name"`
	Accepted     bool      `json:"accepted"`
}

// Comment is one comment on a post, oldest first.
type Comment struct {
	ID           int64     `json:"id"`
	Text         string    `json:"text"`
	Score        int64     `json:"score"`
	CreationDate time.Time `json:"creation_date"`
	UserID       *int64    `json:"user_id,omitempty"`
	UserName     string    `json:"user_name"`
}

// PostDetail loads one post by id with owner name, answers (for questions),
// and comments. Returns ErrNotFound if the id does not exist on this site.
func (s *Store) PostDetail(ctx context.Context, id int64) (*PostDetail, error) {
	var (
		p        PostDetail
		accepted sql.NullInt64
		title    sql.NullString
		body     sql.NullString
		views    sql.NullInt64
		created  sql.NullString
		owner    sql.NullInt64
		ownerNm  sql.NullString
		tagStr   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.post_type_id, p.accepted_answer_id, p.title, p.body,
			p.score, p.view_count, p.creation_date, p.owner_user_id,
			p.tags, p.answer_count, p.comment_count, u.display_name
		FROM posts p
		LEFT JOIN users u ON u.site = p.site AND u.id = p.owner_user_id
		WHERE p.site = ? AND p.id = ?`,
		s.site, id).Scan(&p.ID, &p.PostTypeID, &accepted, &title, &body,
		&p.Score, &views, &created, &owner, &tagStr, &p.AnswerCount,
		&p.CommentCount, &ownerNm)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("view: post %d: %w", id, err)
	}

	p.Title = title.String
	if p.Title == "" {
		p.Title = "No title"
	}
	p.Body = body.String
	p.ViewCount = views.Int64
	if t, ok := parseStoredTime(created); ok {
		p.CreationDate = t
	}
	if owner.Valid {
		p.OwnerUserID = &owner.Int64
	}
	p.OwnerName = displayName(ownerNm)
	p.Tags = splitTags(tagStr.String)

	if p.PostTypeID == postTypeQuestion {
		if p.Answers, err = s.answers(ctx, id, accepted); err != nil {
			return nil, err
		}
	}
	if p.Comments, err = s.comments(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) answers(ctx context.Context, questionID int64, accepted sql.NullInt64) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.body, p.score, p.creation_date, p.owner_user_id, u.display_name
		FROM posts p
		LEFT JOIN users u ON u.site = p.site AND u.id = p.owner_user_id
		WHERE p.site = ? AND p.parent_id = ? AND p.post_type_id = ?
		ORDER BY p.score DESC, p.creation_date ASC`,
		s.site, questionID, postTypeAnswer)
	if err != nil {
		return nil, fmt.Errorf("view: answers for %d: %w", questionID, err)
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var (
			a       Answer
			body    sql.NullString
			created sql.NullString
			owner   sql.NullInt64
			name    sql.NullString
		)
		if err := rows.Scan(&a.ID, &body, &a.Score, &created, &owner, &name); err != nil {
			return nil, fmt.Errorf("view: answers for %d: %w", questionID, err)
		}
		a.Body = body.String
		if t, ok := parseStoredTime(created); ok {
			a.CreationDate = t
		}
		if owner.Valid {
			a.OwnerUserID = &owner.Int64
		}
		a.OwnerName = displayName(name)
		a.Accepted = accepted.Valid && a.ID == accepted.Int64
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) comments(ctx context.Context, postID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.text, c.score, c.creation_date, c.user_id, u.display_name
		FROM comments c
		LEFT JOIN users u ON u.site = c.site AND u.id = c.user_id
		WHERE c.site = ? AND c.post_id = ?
		ORDER BY c.creation_date ASC`,
		s.site, postID)
	if err != nil {
		return nil, fmt.Errorf("view: comments for %d: %w", postID, err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var (
			c       Comment
			text    sql.NullString
			created sql.NullString
			user    sql.NullInt64
			name    sql.NullString
		)
		if err := rows.Scan(&c.ID, &text, &c.Score, &created, &user, &name); err != nil {
			return nil, fmt.Errorf("view: comments for %d: %w", postID, err)
		}
		c.Text = text.String
		if t, ok := parseStoredTime(created); ok {
			c.CreationDate = t
		}
		if user.Valid {
			c.UserID = &user.Int64
		}
		c.UserName = displayName(name)
		out = append(out, c)
	}
	return out, rows.Err()
}

func displayName(v sql.NullString) string {
	if v.Valid && v.String != "" {
		return v.String
	}
	return "Unknown User"
}
