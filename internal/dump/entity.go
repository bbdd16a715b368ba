// Package dump describes the Stack Exchange data dump layout: the entity
// types a site archive contains, the XML file each one lives in, and the
// typed records the import pipeline produces from them.
package dump

import "fmt"

// Entity identifies one of the six record kinds in a site dump.
type Entity int

const (
	Users Entity = iota
	Tags
	Posts
	Comments
	Votes
	Badges
)

// ImportOrder is the fixed per-site import sequence. Users and Tags load
// before Posts, Posts before Comments and Votes, Badges last, so the tables
// downstream queries join against are populated first. Referential integrity
// is NOT enforced at load time; dangling references are tolerated.
var ImportOrder = []Entity{Users, Tags, Posts, Comments, Votes, Badges}

// FileName returns the XML file holding this entity in a site dump
// directory (the standard archive layout, e.g. "Posts.xml").
func (e Entity) FileName() string {
	switch e {
	case Users:
		return "Users.xml"
	case Tags:
		return "Tags.xml"
	case Posts:
		return "Posts.xml"
	case Comments:
		return "Comments.xml"
	case Votes:
		return "Votes.xml"
	case Badges:
		return "Badges.xml"
	}
	return ""
}

// Table returns the destination table name for this entity.
func (e Entity) Table() string {
	switch e {
	case Users:
		return "users"
	case Tags:
		return "tags"
	case Posts:
		return "posts"
	case Comments:
		return "comments"
	case Votes:
		return "votes"
	case Badges:
		return "badges"
	}
	return ""
}

// Columns returns the destination column list for this entity, in the
// order the corresponding record type emits values.
func (e Entity) Columns() []string {
	switch e {
	case Users:
		return (*User)(nil).Columns()
	case Tags:
		return (*Tag)(nil).Columns()
	case Posts:
		return (*Post)(nil).Columns()
	case Comments:
		return (*Comment)(nil).Columns()
	case Votes:
		return (*Vote)(nil).Columns()
	case Badges:
		return (*Badge)(nil).Columns()
	}
	return nil
}

func (e Entity) String() string {
	if t := e.Table(); t != "" {
		return t
	}
	return fmt.Sprintf("entity(%d)", int(e))
}
