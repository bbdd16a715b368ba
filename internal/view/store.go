// Package view serves site-scoped read queries over an imported store:
// overview stats, post/user browsing, a post detail page, and the analytics
// rollups. Queries use ? placeholders and RFC 3339 text timestamps, matching
// the SQLite backend this layer reads from.
package view

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a detail lookup matches no row.
var ErrNotFound = errors.New("view: not found")

// Store answers read queries for one site.
type Store struct {
	db   *sql.DB
	site string
}

// New binds a store to one site. All queries it runs are scoped to that
// site; ids from other sites are invisible.
func New(db *sql.DB, site string) *Store {
	return &Store{db: db, site: site}
}

// Site returns the site this store is bound to.
func (s *Store) Site() string { return s.site }

// TagCount is a tag with its question count.
type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Overview is the home-page statistics block.
type Overview struct {
	TotalPosts     int64      `json:"total_posts"`
	TotalQuestions int64      `json:"total_questions"`
	TotalAnswers   int64      `json:"total_answers"`
	TotalUsers     int64      `json:"total_users"`
	TotalComments  int64      `json:"total_comments"`
	LatestActivity *time.Time `json:"latest_activity,omitempty"`
	TopTags        []TagCount `json:"top_tags"`
}

// Overview gathers the site's headline counts, latest post date, and the
// ten most used tags.
func (s *Store) Overview(ctx context.Context) (*Overview, error) {
	var o Overview

	counts := []struct {
		dst   *int64
		query string
	}{
		{&o.TotalPosts, `SELECT COUNT(*) FROM posts WHERE site = ?`},
		{&o.TotalQuestions, `SELECT COUNT(*) FROM posts WHERE site = ? AND post_type_id = 1`},
		{&o.TotalAnswers, `SELECT COUNT(*) FROM posts WHERE site = ? AND post_type_id = 2`},
		{&o.TotalUsers, `SELECT COUNT(*) FROM users WHERE site = ?`},
		{&o.TotalComments, `SELECT COUNT(*) FROM comments WHERE site = ?`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, s.site).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("view: overview count: %w", err)
		}
	}

	var latest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT creation_date FROM posts WHERE site = ? ORDER BY creation_date DESC LIMIT 1`,
		s.site).Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("view: latest activity: %w", err)
	}
	if t, ok := parseStoredTime(latest); ok {
		o.LatestActivity = &t
	}

	o.TopTags, err = s.topTags(ctx, 10)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) topTags(ctx context.Context, limit int) ([]TagCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_name, count FROM tags WHERE site = ? ORDER BY count DESC LIMIT ?`,
		s.site, limit)
	if err != nil {
		return nil, fmt.Errorf("view: top tags: %w", err)
	}
	defer rows.Close()

	var tags []TagCount
	for rows.Next() {
		var t TagCount
		if err := rows.Scan(&t.Name, &t.Count); err != nil {
			return nil, fmt.Errorf("view: top tags: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// SearchTags returns tags matching a substring, most used first; with an
// empty search it returns the most used tags overall. Feeds autocomplete.
func (s *Store) SearchTags(ctx context.Context, search string, limit int) ([]TagCount, error) {
	if limit <= 0 {
		limit = 20
	}
	if search == "" {
		return s.topTags(ctx, limit)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_name, count FROM tags WHERE site = ? AND tag_name LIKE ? ORDER BY count DESC LIMIT ?`,
		s.site, "%"+search+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("view: search tags: %w", err)
	}
	defer rows.Close()

	var tags []TagCount
	for rows.Next() {
		var t TagCount
		if err := rows.Scan(&t.Name, &t.Count); err != nil {
			return nil, fmt.Errorf("view: search tags: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// parseStoredTime decodes the RFC 3339 text form timestamps are stored in.
func parseStoredTime(v sql.NullString) (time.Time, bool) {
	if !v.Valid || v.String == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, v.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
