// Package normalize converts raw dump attributes into typed records.
//
// Policy (record-level errors never abort a file):
//   - Required identity fields (Id, and PostId on comments/votes) missing or
//     non-numeric: the record is skipped and counted.
//   - Required timestamps (CreationDate, badge Date) missing or unparseable:
//     skipped and counted.
//   - Optional integers: NULL when the column is nullable, 0 for counters.
//   - Text passes through as the parser delivered it (already XML-unescaped);
//     sanitization is a presentation concern, not an import concern.
package normalize

import (
	"fmt"
	"strconv"
	"time"

	"stackslice/internal/dump"
	"stackslice/internal/sexml"
)

// SkipError marks a record that cannot be imported. It is absorbed and
// counted by the orchestrator, never propagated as a file failure.
type SkipError struct {
	Field  string
	Value  string
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skip record: %s=%q: %s", e.Field, e.Value, e.Reason)
}

// Record normalizes one raw row for the given entity. A returned *SkipError
// means the record is dropped; any other error is a programming bug.
func Record(e dump.Entity, row *sexml.Row) (dump.Record, error) {
	switch e {
	case dump.Posts:
		return post(row.Attrs)
	case dump.Users:
		return user(row.Attrs)
	case dump.Comments:
		return comment(row.Attrs)
	case dump.Votes:
		return vote(row.Attrs)
	case dump.Tags:
		return tag(row.Attrs)
	case dump.Badges:
		return badge(row.Attrs)
	}
	return nil, fmt.Errorf("normalize: unknown entity %v", e)
}

func post(a map[string]string) (dump.Record, error) {
	id, err := reqInt(a, "Id")
	if err != nil {
		return nil, err
	}
	created, err := reqTime(a, "CreationDate")
	if err != nil {
		return nil, err
	}
	return &dump.Post{
		ID:               id,
		PostTypeID:       intOrZero(a, "PostTypeId"),
		AcceptedAnswerID: optInt(a, "AcceptedAnswerId"),
		CreationDate:     created,
		Score:            intOrZero(a, "Score"),
		ViewCount:        optInt(a, "ViewCount"),
		Body:             a["Body"],
		OwnerUserID:      optInt(a, "OwnerUserId"),
		LastEditorUserID: optInt(a, "LastEditorUserId"),
		LastEditDate:     optTime(a, "LastEditDate"),
		LastActivityDate: optTime(a, "LastActivityDate"),
		Title:            optStr(a, "Title"),
		Tags:             optStr(a, "Tags"),
		AnswerCount:      intOrZero(a, "AnswerCount"),
		CommentCount:     intOrZero(a, "CommentCount"),
		ContentLicense:   optStr(a, "ContentLicense"),
		ParentID:         optInt(a, "ParentId"),
		ClosedDate:       optTime(a, "ClosedDate"),
	}, nil
}

func user(a map[string]string) (dump.Record, error) {
	id, err := reqInt(a, "Id")
	if err != nil {
		return nil, err
	}
	created, err := reqTime(a, "CreationDate")
	if err != nil {
		return nil, err
	}
	return &dump.User{
		ID:              id,
		Reputation:      intOrZero(a, "Reputation"),
		CreationDate:    created,
		DisplayName:     a["DisplayName"],
		LastAccessDate:  optTime(a, "LastAccessDate"),
		WebsiteURL:      optStr(a, "WebsiteUrl"),
		Location:        optStr(a, "Location"),
		AboutMe:         optStr(a, "AboutMe"),
		Views:           intOrZero(a, "Views"),
		UpVotes:         intOrZero(a, "UpVotes"),
		DownVotes:       intOrZero(a, "DownVotes"),
		ProfileImageURL: optStr(a, "ProfileImageUrl"),
		EmailHash:       optStr(a, "EmailHash"),
		AccountID:       optInt(a, "AccountId"),
	}, nil
}

func comment(a map[string]string) (dump.Record, error) {
	id, err := reqInt(a, "Id")
	if err != nil {
		return nil, err
	}
	postID, err := reqInt(a, "PostId")
	if err != nil {
		return nil, err
	}
	created, err := reqTime(a, "CreationDate")
	if err != nil {
		return nil, err
	}
	return &dump.Comment{
		ID:              id,
		PostID:          postID,
		Score:           intOrZero(a, "Score"),
		Text:            a["Text"],
		CreationDate:    created,
		UserDisplayName: optStr(a, "UserDisplayName"),
		UserID:          optInt(a, "UserId"),
		ContentLicense:  optStr(a, "ContentLicense"),
	}, nil
}

func vote(a map[string]string) (dump.Record, error) {
	id, err := reqInt(a, "Id")
	if err != nil {
		return nil, err
	}
	postID, err := reqInt(a, "PostId")
	if err != nil {
		return nil, err
	}
	created, err := reqTime(a, "CreationDate")
	if err != nil {
		return nil, err
	}
	return &dump.Vote{
		ID:           id,
		PostID:       postID,
		VoteTypeID:   intOrZero(a, "VoteTypeId"),
		CreationDate: created,
		UserID:       optInt(a, "UserId"),
		BountyAmount: optInt(a, "BountyAmount"),
	}, nil
}

func tag(a map[string]string) (dump.Record, error) {
	id, err := reqInt(a, "Id")
	if err != nil {
		return nil, err
	}
	return &dump.Tag{
		ID:            id,
		TagName:       a["TagName"],
		Count:         intOrZero(a, "Count"),
		ExcerptPostID: optInt(a, "ExcerptPostId"),
		WikiPostID:    optInt(a, "WikiPostId"),
	}, nil
}

func badge(a map[string]string) (dump.Record, error) {
	id, err := reqInt(a, "Id")
	if err != nil {
		return nil, err
	}
	date, err := reqTime(a, "Date")
	if err != nil {
		return nil, err
	}
	return &dump.Badge{
		ID:       id,
		UserID:   intOrZero(a, "UserId"),
		Name:     a["Name"],
		Date:     date,
		Class:    intOrZero(a, "Class"),
		TagBased: a["TagBased"] == "True" || a["TagBased"] == "true",
	}, nil
}

// Dump timestamps are a fixed ISO-like local-less format with millisecond
// precision ("2008-07-31T21:42:52.667"). Older archives occasionally omit
// the fraction; RFC3339 is accepted as a last resort.
var timeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseTime parses a dump timestamp. Dump times carry no zone and are UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if layout == time.RFC3339 {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
			continue
		}
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}

func reqInt(a map[string]string, field string) (int64, error) {
	s, ok := a[field]
	if !ok || s == "" {
		return 0, &SkipError{Field: field, Reason: "required field absent"}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &SkipError{Field: field, Value: s, Reason: "not an integer"}
	}
	return v, nil
}

func reqTime(a map[string]string, field string) (time.Time, error) {
	s, ok := a[field]
	if !ok || s == "" {
		return time.Time{}, &SkipError{Field: field, Reason: "required timestamp absent"}
	}
	ts, err := ParseTime(s)
	if err != nil {
		return time.Time{}, &SkipError{Field: field, Value: s, Reason: "unparseable timestamp"}
	}
	return ts, nil
}

func intOrZero(a map[string]string, field string) int64 {
	v, err := strconv.ParseInt(a[field], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func optInt(a map[string]string, field string) *int64 {
	s, ok := a[field]
	if !ok || s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func optStr(a map[string]string, field string) *string {
	s, ok := a[field]
	if !ok {
		return nil
	}
	return &s
}

func optTime(a map[string]string, field string) *time.Time {
	s, ok := a[field]
	if !ok || s == "" {
		return nil
	}
	ts, err := ParseTime(s)
	if err != nil {
		return nil
	}
	return &ts
}
