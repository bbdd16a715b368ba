package view

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UserQuery selects and orders a page of users.
type UserQuery struct {
	Page   int    // 1-based; values < 1 clamp to 1
	Limit  int    // page size; clamps to [1, 100], default 20
	Search string // substring match on display name
	Sort   string // "reputation" (default), "recent", "name"
}

func (q *UserQuery) normalize() {
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

// UserSummary is one user listing row.
type UserSummary struct {
	ID           int64     `json:"id"`
	DisplayName  string    `json:"display_name"`
	Reputation   int64     `json:"reputation"`
	CreationDate time.Time `json:"creation_date"`
	Location     string    `json:"location,omitempty"`
	Views        int64     `json:"views"`
	UpVotes      int64     `json:"up_votes"`
	DownVotes    int64     `json:"down_votes"`
}

// UserPage is one page of a user listing.
type UserPage struct {
	Users      []UserSummary `json:"users"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

// BrowseUsers returns a filtered, sorted page of users with a total count
// for pagination.
func (s *Store) BrowseUsers(ctx context.Context, q UserQuery) (*UserPage, error) {
	q.normalize()

	cond := "site = ?"
	args := []any{s.site}
	if q.Search != "" {
		cond += " AND display_name LIKE ?"
		args = append(args, "%"+q.Search+"%")
	}

	var order string
	switch q.Sort {
	case "recent":
		order = "creation_date DESC"
	case "name":
		order = "display_name ASC"
	default:
		order = "reputation DESC"
	}

	page := &UserPage{Page: q.Page}
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&page.Total)
	if err != nil {
		return nil, fmt.Errorf("view: count users: %w", err)
	}
	page.TotalPages = int((page.Total + int64(q.Limit) - 1) / int64(q.Limit))

	query := `SELECT id, display_name, reputation, creation_date,
		location, views, up_votes, down_votes
		FROM users WHERE ` + cond + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("view: browse users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u        UserSummary
			name     sql.NullString
			created  sql.NullString
			location sql.NullString
		)
		err := rows.Scan(&u.ID, &name, &u.Reputation, &created, &location,
			&u.Views, &u.UpVotes, &u.DownVotes)
		if err != nil {
			return nil, fmt.Errorf("view: browse users: %w", err)
		}
		u.DisplayName = name.String
		if t, ok := parseStoredTime(created); ok {
			u.CreationDate = t
		}
		u.Location = location.String
		page.Users = append(page.Users, u)
	}
	return page, rows.Err()
}
