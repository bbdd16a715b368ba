package normalize

import (
	"errors"
	"testing"
	"time"

	"stackslice/internal/dump"
	"stackslice/internal/sexml"
)

func rowWith(attrs map[string]string) *sexml.Row {
	return &sexml.Row{Attrs: attrs, N: 1}
}

func TestRecord_Post(t *testing.T) {
	rec, err := Record(dump.Posts, rowWith(map[string]string{
		"Id":               "42",
		"PostTypeId":       "1",
		"CreationDate":     "2008-07-31T21:42:52.667",
		"Score":            "12",
		"ViewCount":        "300",
		"Body":             "<p>body</p>",
		"OwnerUserId":      "9",
		"Title":            "a question",
		"Tags":             "|go|sql|",
		"AnswerCount":      "3",
		"CommentCount":     "2",
		"ClosedDate":       "2010-01-02T03:04:05",
		"AcceptedAnswerId": "77",
	}))
	if err != nil {
		t.Fatalf("Record() err=%v, want nil", err)
	}
	p, ok := rec.(*dump.Post)
	if !ok {
		t.Fatalf("record type=%T, want *dump.Post", rec)
	}

	if p.ID != 42 || p.PostTypeID != 1 || p.Score != 12 {
		t.Fatalf("post={ID:%d Type:%d Score:%d}, want {42 1 12}", p.ID, p.PostTypeID, p.Score)
	}
	want := time.Date(2008, 7, 31, 21, 42, 52, 667_000_000, time.UTC)
	if !p.CreationDate.Equal(want) {
		t.Fatalf("CreationDate=%v, want %v", p.CreationDate, want)
	}
	if p.ViewCount == nil || *p.ViewCount != 300 {
		t.Fatalf("ViewCount=%v, want 300", p.ViewCount)
	}
	if p.AcceptedAnswerID == nil || *p.AcceptedAnswerID != 77 {
		t.Fatalf("AcceptedAnswerID=%v, want 77", p.AcceptedAnswerID)
	}
	if p.Title == nil || *p.Title != "a question" {
		t.Fatalf("Title=%v, want set", p.Title)
	}
	if p.LastEditDate != nil || p.ParentID != nil || p.ContentLicense != nil {
		t.Fatalf("absent optionals must be nil: edit=%v parent=%v license=%v",
			p.LastEditDate, p.ParentID, p.ContentLicense)
	}
	if p.ClosedDate == nil {
		t.Fatalf("ClosedDate=nil, want parsed")
	}
}

func TestRecord_SkipPolicy(t *testing.T) {
	// Records missing required identity or timestamp fields are skipped via
	// *SkipError, never imported and never fatal for the file.
	tests := []struct {
		name      string
		entity    dump.Entity
		attrs     map[string]string
		wantField string
	}{
		{
			name:      "post_missing_id",
			entity:    dump.Posts,
			attrs:     map[string]string{"CreationDate": "2008-07-31T21:42:52.667"},
			wantField: "Id",
		},
		{
			name:      "post_id_not_numeric",
			entity:    dump.Posts,
			attrs:     map[string]string{"Id": "abc", "CreationDate": "2008-07-31T21:42:52.667"},
			wantField: "Id",
		},
		{
			name:      "post_missing_creation_date",
			entity:    dump.Posts,
			attrs:     map[string]string{"Id": "1"},
			wantField: "CreationDate",
		},
		{
			name:      "post_bad_creation_date",
			entity:    dump.Posts,
			attrs:     map[string]string{"Id": "1", "CreationDate": "last tuesday"},
			wantField: "CreationDate",
		},
		{
			name:      "user_missing_creation_date",
			entity:    dump.Users,
			attrs:     map[string]string{"Id": "1", "DisplayName": "x"},
			wantField: "CreationDate",
		},
		{
			name:      "comment_missing_post_id",
			entity:    dump.Comments,
			attrs:     map[string]string{"Id": "1", "CreationDate": "2008-07-31T21:42:52.667"},
			wantField: "PostId",
		},
		{
			name:      "vote_missing_post_id",
			entity:    dump.Votes,
			attrs:     map[string]string{"Id": "1", "CreationDate": "2008-07-31T21:42:52.667"},
			wantField: "PostId",
		},
		{
			name:      "tag_missing_id",
			entity:    dump.Tags,
			attrs:     map[string]string{"TagName": "go"},
			wantField: "Id",
		},
		{
			name:      "badge_missing_date",
			entity:    dump.Badges,
			attrs:     map[string]string{"Id": "1", "Name": "Teacher"},
			wantField: "Date",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec, err := Record(tc.entity, rowWith(tc.attrs))
			if rec != nil {
				t.Fatalf("record=%v, want nil", rec)
			}
			var skip *SkipError
			if !errors.As(err, &skip) {
				t.Fatalf("err=%v, want *SkipError", err)
			}
			if skip.Field != tc.wantField {
				t.Fatalf("SkipError.Field=%q, want %q", skip.Field, tc.wantField)
			}
		})
	}
}

func TestRecord_CounterDefaultsToZero(t *testing.T) {
	// Counter-style attributes absent from the source load as 0, not NULL.
	rec, err := Record(dump.Users, rowWith(map[string]string{
		"Id":           "5",
		"CreationDate": "2008-07-31T21:42:52.667",
		"DisplayName":  "jane",
	}))
	if err != nil {
		t.Fatalf("Record() err=%v, want nil", err)
	}
	u := rec.(*dump.User)
	if u.Reputation != 0 || u.Views != 0 || u.UpVotes != 0 || u.DownVotes != 0 {
		t.Fatalf("counters={rep:%d views:%d up:%d down:%d}, want zeros",
			u.Reputation, u.Views, u.UpVotes, u.DownVotes)
	}
	if u.Location != nil || u.AboutMe != nil || u.AccountID != nil {
		t.Fatalf("absent optionals must be nil")
	}
}

func TestRecord_BadgeTagBased(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"True", true},
		{"true", true},
		{"False", false},
		{"", false},
	}
	for _, tc := range tests {
		rec, err := Record(dump.Badges, rowWith(map[string]string{
			"Id":       "1",
			"Date":     "2009-09-30T07:30:00.000",
			"TagBased": tc.value,
		}))
		if err != nil {
			t.Fatalf("Record(TagBased=%q) err=%v", tc.value, err)
		}
		if got := rec.(*dump.Badge).TagBased; got != tc.want {
			t.Fatalf("TagBased(%q)=%t, want %t", tc.value, got, tc.want)
		}
	}
}

func TestRecord_MalformedOptionalIntIsNull(t *testing.T) {
	// A malformed optional integer must not fail or skip the record; the
	// column simply loads as NULL.
	rec, err := Record(dump.Posts, rowWith(map[string]string{
		"Id":           "1",
		"CreationDate": "2008-07-31T21:42:52.667",
		"ViewCount":    "not-a-number",
	}))
	if err != nil {
		t.Fatalf("Record() err=%v, want nil", err)
	}
	if vc := rec.(*dump.Post).ViewCount; vc != nil {
		t.Fatalf("ViewCount=%v, want nil", vc)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{
			name: "millisecond_precision",
			in:   "2008-07-31T21:42:52.667",
			want: time.Date(2008, 7, 31, 21, 42, 52, 667_000_000, time.UTC),
		},
		{
			name: "no_fraction",
			in:   "2008-07-31T21:42:52",
			want: time.Date(2008, 7, 31, 21, 42, 52, 0, time.UTC),
		},
		{
			name: "rfc3339_fallback",
			in:   "2008-07-31T21:42:52Z",
			want: time.Date(2008, 7, 31, 21, 42, 52, 0, time.UTC),
		},
		{name: "garbage", in: "yesterday", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "date_only", in: "2008-07-31", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTime(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseTime(%q) err=nil, want error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTime(%q) err=%v", tc.in, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("ParseTime(%q)=%v, want %v", tc.in, got, tc.want)
			}
			if got.Location() != time.UTC {
				t.Fatalf("ParseTime(%q) location=%v, want UTC", tc.in, got.Location())
			}
		})
	}
}

func TestRecord_ValuesAlignWithColumns(t *testing.T) {
	// Every record type must emit exactly one value per declared column.
	for _, e := range dump.ImportOrder {
		attrs := map[string]string{
			"Id":           "1",
			"PostId":       "2",
			"CreationDate": "2008-07-31T21:42:52.667",
			"Date":         "2008-07-31T21:42:52.667",
		}
		rec, err := Record(e, rowWith(attrs))
		if err != nil {
			t.Fatalf("Record(%v) err=%v", e, err)
		}
		cols := rec.Columns()
		vals := rec.Values("softwareengineering")
		if len(cols) != len(vals) {
			t.Fatalf("%v: columns=%d values=%d, want equal", e, len(cols), len(vals))
		}
		if cols[0] != "site" || vals[0] != "softwareengineering" {
			t.Fatalf("%v: first column=%q value=%v, want site binding", e, cols[0], vals[0])
		}
	}
}
