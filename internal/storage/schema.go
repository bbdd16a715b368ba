// The schema specs live here so every backend can build its DDL from one
// definition without circular deps (backends import storage, not each other).
package storage

// Column types are generic; each backend maps them to native types:
//
//	integer   -> INTEGER (sqlite), BIGINT (postgres/mssql)
//	text      -> TEXT / NVARCHAR(MAX)
//	timestamp -> TEXT rfc3339 (sqlite), TIMESTAMPTZ (postgres), DATETIME2 (mssql)
//	boolean   -> INTEGER (sqlite), BOOLEAN (postgres), BIT (mssql)
type ColumnSpec struct {
	Name    string
	Type    string
	NotNull bool
}

type TableSpec struct {
	Name       string
	Columns    []ColumnSpec
	PrimaryKey []string
}

type IndexSpec struct {
	Name    string
	Table   string
	Columns []string
}

// StateTable holds one completion marker per (site, entity). The import
// orchestrator trusts these markers, never raw row counts, to decide whether
// a (site, entity) import already finished.
const StateTable = "import_state"

// Tables returns the full multi-site schema: the six dump entity tables plus
// the completion-marker table. (site, id) is the uniqueness key everywhere;
// two sites may reuse the same numeric id space.
func Tables() []TableSpec {
	return []TableSpec{
		{
			Name: "posts",
			Columns: []ColumnSpec{
				{Name: "site", Type: "text", NotNull: true},
				{Name: "id", Type: "integer", NotNull: true},
				{Name: "post_type_id", Type: "integer"},
				{Name: "accepted_answer_id", Type: "integer"},
				{Name: "creation_date", Type: "timestamp"},
				{Name: "score", Type: "integer"},
				{Name: "view_count", Type: "integer"},
				{Name: "body", Type: "text"},
				{Name: "owner_user_id", Type: "integer"},
				{Name: "last_editor_user_id", Type: "integer"},
				{Name: "last_edit_date", Type: "timestamp"},
				{Name: "last_activity_date", Type: "timestamp"},
				{Name: "title", Type: "text"},
				{Name: "tags", Type: "text"},
				{Name: "answer_count", Type: "integer"},
				{Name: "comment_count", Type: "integer"},
				{Name: "content_license", Type: "text"},
				{Name: "parent_id", Type: "integer"},
				{Name: "closed_date", Type: "timestamp"},
			},
			PrimaryKey: []string{"site", "id"},
		},
		{
			Name: "users",
			Columns: []ColumnSpec{
				{Name: "site", Type: "text", NotNull: true},
				{Name: "id", Type: "integer", NotNull: true},
				{Name: "reputation", Type: "integer"},
				{Name: "creation_date", Type: "timestamp"},
				{Name: "display_name", Type: "text"},
				{Name: "last_access_date", Type: "timestamp"},
				{Name: "website_url", Type: "text"},
				{Name: "location", Type: "text"},
				{Name: "about_me", Type: "text"},
				{Name: "views", Type: "integer"},
				{Name: "up_votes", Type: "integer"},
				{Name: "down_votes", Type: "integer"},
				{Name: "profile_image_url", Type: "text"},
				{Name: "email_hash", Type: "text"},
				{Name: "account_id", Type: "integer"},
			},
			PrimaryKey: []string{"site", "id"},
		},
		{
			Name: "comments",
			Columns: []ColumnSpec{
				{Name: "site", Type: "text", NotNull: true},
				{Name: "id", Type: "integer", NotNull: true},
				{Name: "post_id", Type: "integer", NotNull: true},
				{Name: "score", Type: "integer"},
				{Name: "text", Type: "text"},
				{Name: "creation_date", Type: "timestamp"},
				{Name: "user_display_name", Type: "text"},
				{Name: "user_id", Type: "integer"},
				{Name: "content_license", Type: "text"},
			},
			PrimaryKey: []string{"site", "id"},
		},
		{
			Name: "votes",
			Columns: []ColumnSpec{
				{Name: "site", Type: "text", NotNull: true},
				{Name: "id", Type: "integer", NotNull: true},
				{Name: "post_id", Type: "integer", NotNull: true},
				{Name: "vote_type_id", Type: "integer"},
				{Name: "creation_date", Type: "timestamp"},
				{Name: "user_id", Type: "integer"},
				{Name: "bounty_amount", Type: "integer"},
			},
			PrimaryKey: []string{"site", "id"},
		},
		{
			Name: "tags",
			Columns: []ColumnSpec{
				{Name: "site", Type: "text", NotNull: true},
				{Name: "id", Type: "integer", NotNull: true},
				{Name: "tag_name", Type: "text"},
				{Name: "count", Type: "integer"},
				{Name: "excerpt_post_id", Type: "integer"},
				{Name: "wiki_post_id", Type: "integer"},
			},
			PrimaryKey: []string{"site", "id"},
		},
		{
			Name: "badges",
			Columns: []ColumnSpec{
				{Name: "site", Type: "text", NotNull: true},
				{Name: "id", Type: "integer", NotNull: true},
				{Name: "user_id", Type: "integer"},
				{Name: "name", Type: "text"},
				{Name: "date", Type: "timestamp"},
				{Name: "class", Type: "integer"},
				{Name: "tag_based", Type: "boolean"},
			},
			PrimaryKey: []string{"site", "id"},
		},
		{
			Name: StateTable,
			Columns: []ColumnSpec{
				{Name: "site", Type: "text", NotNull: true},
				{Name: "entity", Type: "text", NotNull: true},
				{Name: "imported", Type: "integer", NotNull: true},
				{Name: "skipped", Type: "integer", NotNull: true},
				{Name: "completed_at", Type: "timestamp", NotNull: true},
			},
			PrimaryKey: []string{"site", "entity"},
		},
	}
}

// Indexes returns the serving-layer access-path indexes. Every index leads
// with site; reads are always site-scoped.
func Indexes() []IndexSpec {
	return []IndexSpec{
		{Name: "ix_posts_site_type", Table: "posts", Columns: []string{"site", "post_type_id"}},
		{Name: "ix_posts_site_created", Table: "posts", Columns: []string{"site", "creation_date"}},
		{Name: "ix_posts_site_score", Table: "posts", Columns: []string{"site", "score"}},
		{Name: "ix_posts_site_parent", Table: "posts", Columns: []string{"site", "parent_id"}},
		{Name: "ix_users_site_name", Table: "users", Columns: []string{"site", "display_name"}},
		{Name: "ix_users_site_rep", Table: "users", Columns: []string{"site", "reputation"}},
		{Name: "ix_comments_site_post", Table: "comments", Columns: []string{"site", "post_id"}},
		{Name: "ix_votes_site_post", Table: "votes", Columns: []string{"site", "post_id"}},
		{Name: "ix_badges_site_user", Table: "badges", Columns: []string{"site", "user_id"}},
		{Name: "ix_tags_site_name", Table: "tags", Columns: []string{"site", "tag_name"}},
	}
}

// TableFor returns the spec for a table name, or nil.
func TableFor(name string) *TableSpec {
	for _, t := range Tables() {
		if t.Name == name {
			return &t
		}
	}
	return nil
}
