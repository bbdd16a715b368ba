package dump

import "time"

// Record is a fully normalized dump row ready for loading. Values must be
// aligned with Columns; the site tag is supplied at load time because a
// record is site-agnostic until the orchestrator binds it.
type Record interface {
	Table() string
	Columns() []string
	Values(site string) []any
}

// Nullable fields are pointers; a nil pointer loads as SQL NULL.
// Non-pointer integers default to 0 when the source attribute is absent,
// matching the dump convention for counters.

type Post struct {
	ID               int64
	PostTypeID       int64
	AcceptedAnswerID *int64
	CreationDate     time.Time
	Score            int64
	ViewCount        *int64
	Body             string
	OwnerUserID      *int64
	LastEditorUserID *int64
	LastEditDate     *time.Time
	LastActivityDate *time.Time
	Title            *string
	Tags             *string
	AnswerCount      int64
	CommentCount     int64
	ContentLicense   *string
	ParentID         *int64
	ClosedDate       *time.Time
}

func (*Post) Table() string { return "posts" }

func (*Post) Columns() []string {
	return []string{
		"site", "id", "post_type_id", "accepted_answer_id", "creation_date",
		"score", "view_count", "body", "owner_user_id", "last_editor_user_id",
		"last_edit_date", "last_activity_date", "title", "tags",
		"answer_count", "comment_count", "content_license", "parent_id",
		"closed_date",
	}
}

func (p *Post) Values(site string) []any {
	return []any{
		site, p.ID, p.PostTypeID, optInt(p.AcceptedAnswerID), p.CreationDate,
		p.Score, optInt(p.ViewCount), p.Body, optInt(p.OwnerUserID),
		optInt(p.LastEditorUserID), optTime(p.LastEditDate),
		optTime(p.LastActivityDate), optStr(p.Title), optStr(p.Tags),
		p.AnswerCount, p.CommentCount, optStr(p.ContentLicense),
		optInt(p.ParentID), optTime(p.ClosedDate),
	}
}

type User struct {
	ID              int64
	Reputation      int64
	CreationDate    time.Time
	DisplayName     string
	LastAccessDate  *time.Time
	WebsiteURL      *string
	Location        *string
	AboutMe         *string
	Views           int64
	UpVotes         int64
	DownVotes       int64
	ProfileImageURL *string
	EmailHash       *string
	AccountID       *int64
}

func (*User) Table() string { return "users" }

func (*User) Columns() []string {
	return []string{
		"site", "id", "reputation", "creation_date", "display_name",
		"last_access_date", "website_url", "location", "about_me", "views",
		"up_votes", "down_votes", "profile_image_url", "email_hash",
		"account_id",
	}
}

func (u *User) Values(site string) []any {
	return []any{
		site, u.ID, u.Reputation, u.CreationDate, u.DisplayName,
		optTime(u.LastAccessDate), optStr(u.WebsiteURL), optStr(u.Location),
		optStr(u.AboutMe), u.Views, u.UpVotes, u.DownVotes,
		optStr(u.ProfileImageURL), optStr(u.EmailHash), optInt(u.AccountID),
	}
}

type Comment struct {
	ID              int64
	PostID          int64
	Score           int64
	Text            string
	CreationDate    time.Time
	UserDisplayName *string
	UserID          *int64
	ContentLicense  *string
}

func (*Comment) Table() string { return "comments" }

func (*Comment) Columns() []string {
	return []string{
		"site", "id", "post_id", "score", "text", "creation_date",
		"user_display_name", "user_id", "content_license",
	}
}

func (c *Comment) Values(site string) []any {
	return []any{
		site, c.ID, c.PostID, c.Score, c.Text, c.CreationDate,
		optStr(c.UserDisplayName), optInt(c.UserID), optStr(c.ContentLicense),
	}
}

type Vote struct {
	ID           int64
	PostID       int64
	VoteTypeID   int64
	CreationDate time.Time
	UserID       *int64
	BountyAmount *int64
}

func (*Vote) Table() string { return "votes" }

func (*Vote) Columns() []string {
	return []string{
		"site", "id", "post_id", "vote_type_id", "creation_date", "user_id",
		"bounty_amount",
	}
}

func (v *Vote) Values(site string) []any {
	return []any{
		site, v.ID, v.PostID, v.VoteTypeID, v.CreationDate,
		optInt(v.UserID), optInt(v.BountyAmount),
	}
}

type Tag struct {
	ID            int64
	TagName       string
	Count         int64
	ExcerptPostID *int64
	WikiPostID    *int64
}

func (*Tag) Table() string { return "tags" }

func (*Tag) Columns() []string {
	return []string{
		"site", "id", "tag_name", "count", "excerpt_post_id", "wiki_post_id",
	}
}

func (t *Tag) Values(site string) []any {
	return []any{
		site, t.ID, t.TagName, t.Count, optInt(t.ExcerptPostID),
		optInt(t.WikiPostID),
	}
}

type Badge struct {
	ID       int64
	UserID   int64
	Name     string
	Date     time.Time
	Class    int64
	TagBased bool
}

func (*Badge) Table() string { return "badges" }

func (*Badge) Columns() []string {
	return []string{"site", "id", "user_id", "name", "date", "class", "tag_based"}
}

func (b *Badge) Values(site string) []any {
	return []any{site, b.ID, b.UserID, b.Name, b.Date, b.Class, b.TagBased}
}

// optInt/optStr/optTime widen a nil pointer to an untyped nil so the
// database driver binds NULL instead of a typed nil pointer.
func optInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func optStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func optTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
