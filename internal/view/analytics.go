package view

import (
	"context"
	"database/sql"
	"fmt"
)

// MonthCount is the number of questions created in one month form "YYYY-MM".
type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// UserRep is a top-user row in the analytics rollup.
type UserRep struct {
	DisplayName string `json:"display_name"`
	Reputation  int64  `json:"reputation"`
	UpVotes     int64  `json:"up_votes"`
	DownVotes   int64  `json:"down_votes"`
}

// ScoreBucket is one band of the question score distribution.
type ScoreBucket struct {
	Range string `json:"range"`
	Count int64  `json:"count"`
}

// Analytics is the dashboard payload.
type Analytics struct {
	QuestionsPerMonth []MonthCount  `json:"questions_per_month"`
	TopUsers          []UserRep     `json:"top_users"`
	PopularTags       []TagCount    `json:"popular_tags"`
	ScoreDistribution []ScoreBucket `json:"score_distribution"`
}

// Analytics computes the dashboard rollups: questions per month, the ten
// highest-reputation users, the fifteen most used tags, and the question
// score distribution in fixed bands.
func (s *Store) Analytics(ctx context.Context) (*Analytics, error) {
	var a Analytics

	// creation_date is stored as RFC 3339 text, so the month prefix is a
	// plain substring.
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(creation_date, 1, 7) AS month, COUNT(*)
		FROM posts
		WHERE site = ? AND post_type_id = ? AND creation_date IS NOT NULL
		GROUP BY month
		ORDER BY month`,
		s.site, postTypeQuestion)
	if err != nil {
		return nil, fmt.Errorf("view: questions per month: %w", err)
	}
	if err := scanRows(rows, func(r *sql.Rows) error {
		var m MonthCount
		if err := r.Scan(&m.Month, &m.Count); err != nil {
			return err
		}
		a.QuestionsPerMonth = append(a.QuestionsPerMonth, m)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("view: questions per month: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT display_name, reputation, up_votes, down_votes
		FROM users
		WHERE site = ?
		ORDER BY reputation DESC
		LIMIT 10`,
		s.site)
	if err != nil {
		return nil, fmt.Errorf("view: top users: %w", err)
	}
	if err := scanRows(rows, func(r *sql.Rows) error {
		var (
			u    UserRep
			name sql.NullString
		)
		if err := r.Scan(&name, &u.Reputation, &u.UpVotes, &u.DownVotes); err != nil {
			return err
		}
		u.DisplayName = name.String
		a.TopUsers = append(a.TopUsers, u)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("view: top users: %w", err)
	}

	a.PopularTags, err = s.topTags(ctx, 15)
	if err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT bucket, COUNT(*)
		FROM (
			SELECT
				CASE
					WHEN score < 0 THEN 'Negative'
					WHEN score = 0 THEN 'Zero'
					WHEN score BETWEEN 1 AND 5 THEN '1-5'
					WHEN score BETWEEN 6 AND 10 THEN '6-10'
					WHEN score BETWEEN 11 AND 20 THEN '11-20'
					ELSE '20+'
				END AS bucket,
				CASE
					WHEN score < 0 THEN 1
					WHEN score = 0 THEN 2
					WHEN score BETWEEN 1 AND 5 THEN 3
					WHEN score BETWEEN 6 AND 10 THEN 4
					WHEN score BETWEEN 11 AND 20 THEN 5
					ELSE 6
				END AS ord
			FROM posts
			WHERE site = ? AND post_type_id = ?
		)
		GROUP BY bucket, ord
		ORDER BY ord`,
		s.site, postTypeQuestion)
	if err != nil {
		return nil, fmt.Errorf("view: score distribution: %w", err)
	}
	if err := scanRows(rows, func(r *sql.Rows) error {
		var b ScoreBucket
		if err := r.Scan(&b.Range, &b.Count); err != nil {
			return err
		}
		a.ScoreDistribution = append(a.ScoreDistribution, b)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("view: score distribution: %w", err)
	}

	return &a, nil
}

func scanRows(rows *sql.Rows, scan func(*sql.Rows) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
