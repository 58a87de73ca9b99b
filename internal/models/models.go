package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Review status values for a catalog object.
const (
	ReviewIncomplete   = "incomplete"
	ReviewCompleteGood = "complete-good"
	ReviewCompleteBad  = "complete-bad"
)

// ValidReviewStatus reports whether status is a known review status.
func ValidReviewStatus(status string) bool {
	switch status {
	case ReviewIncomplete, ReviewCompleteGood, ReviewCompleteBad:
		return true
	}
	return false
}

// FlagMap holds the classification flags a reviewer set on an object,
// e.g. {"candy": true, "junk": false}. Stored as JSONB in Postgres.
type FlagMap map[string]bool

// SetCount returns how many flags are switched on.
func (f FlagMap) SetCount() int {
	n := 0
	for _, v := range f {
		if v {
			n++
		}
	}
	return n
}

// SetKeys returns the names of the flags that are switched on.
func (f FlagMap) SetKeys() []string {
	var keys []string
	for k, v := range f {
		if v {
			keys = append(keys, k)
		}
	}
	return keys
}

// Value implements driver.Valuer so FlagMap round-trips through JSONB.
func (f FlagMap) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FlagMap) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = FlagMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("cannot scan %T into FlagMap", src)
	}
}

// ExtraColumns carries the descriptive catalog columns that ride along
// with each object (magnitudes, colors, surface brightness and so on).
type ExtraColumns map[string]any

func (e ExtraColumns) Value() (driver.Value, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e)
}

func (e *ExtraColumns) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*e = ExtraColumns{}
		return nil
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return fmt.Errorf("cannot scan %T into ExtraColumns", src)
	}
}

// CatalogObject is a row in the object_catalog table. KeyID is the serial
// primary key used as the keyset pagination cursor; ObjectID is the survey
// catalog identifier users see.
type CatalogObject struct {
	KeyID        int64        `db:"keyid" json:"keyid"`
	ObjectID     int64        `db:"objectid" json:"objectid"`
	RA           float64      `db:"ra" json:"ra"`
	Dec          float64      `db:"dec" json:"dec"`
	ExtraColumns ExtraColumns `db:"extra_columns" json:"extra_columns"`
	ReviewStatus string       `db:"review_status" json:"review_status"`
	GoodVotes    int          `db:"good_votes" json:"good_votes"`
	BadVotes     int          `db:"bad_votes" json:"bad_votes"`
	Added        time.Time    `db:"added" json:"added"`
	Updated      time.Time    `db:"updated" json:"updated"`
}

// ObjectImage maps an object to its rendered PNG in the image bucket.
type ObjectImage struct {
	ImageID  int64     `db:"imageid" json:"imageid"`
	ObjectID int64     `db:"objectid" json:"objectid"`
	FilePath string    `db:"filepath" json:"filepath"`
	Added    time.Time `db:"added" json:"added"`
	Updated  time.Time `db:"updated" json:"updated"`
}

// Comment is one reviewer's take on one object: free text plus the flag
// snapshot they submitted with it.
type Comment struct {
	CommentID int64     `db:"commentid" json:"-"`
	ObjectID  int64     `db:"objectid" json:"objectid"`
	UserID    string    `db:"userid" json:"comment_by_userid"`
	Username  string    `db:"username" json:"comment_by_username"`
	UserFlags FlagMap   `db:"user_flags" json:"comment_userset_flags"`
	Contents  string    `db:"contents" json:"comment_text"`
	Added     time.Time `db:"added" json:"comment_added_on"`
}

// ReviewAssignment partitions review work: while any assignment rows exist
// for an object, only the assigned users (and staff/superusers) may save
// reviews for it.
type ReviewAssignment struct {
	ObjectID   int64     `db:"objectid" json:"objectid"`
	UserID     string    `db:"userid" json:"userid"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}

// SiteSettings is the singleton settings row managed from the admin panel.
type SiteSettings struct {
	ID           int    `db:"id" json:"-"`
	ProjectTitle string `db:"project_title" json:"project_title"`
	RowsPerPage  int    `db:"rows_per_page" json:"rows_per_page"`

	// flag configuration: FlagKeys is the full set shown in the UI,
	// GoodFlagKeys/BadFlagKeys partition it for vote tallying
	FlagKeys     string `db:"flag_keys" json:"flag_keys"`
	GoodFlagKeys string `db:"good_flag_keys" json:"good_flag_keys"`
	BadFlagKeys  string `db:"bad_flag_keys" json:"bad_flag_keys"`
	MaxGoodVotes int    `db:"max_good_votes" json:"max_good_votes"`
	MaxBadVotes  int    `db:"max_bad_votes" json:"max_bad_votes"`

	LoginsAllowed  bool   `db:"logins_allowed" json:"logins_allowed"`
	SignupsAllowed bool   `db:"signups_allowed" json:"signups_allowed"`
	AllowedDomains string `db:"allowed_email_domains" json:"allowed_email_domains"`

	EmailServer   string `db:"email_server" json:"email_server"`
	EmailPort     int    `db:"email_port" json:"email_port"`
	EmailUser     string `db:"email_user" json:"email_user"`
	EmailPassword string `db:"email_password" json:"-"`
	EmailSender   string `db:"email_sender" json:"email_sender"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
