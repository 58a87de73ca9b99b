package storage

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/johnnygreco/viz-inspect/internal/models"
)

var testDBSeq atomic.Int64

// testSchema mirrors the Postgres migration with sqlite-compatible types.
// The queries themselves are portable: $N placeholders and Go-side
// timestamps work on both engines.
const testSchema = `
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    full_name TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'authenticated',
    is_active BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    email_verify_token TEXT,
    password_reset_token TEXT,
    reset_token_expires TIMESTAMP
);
CREATE TABLE site_settings (
    id INTEGER PRIMARY KEY,
    project_title TEXT NOT NULL DEFAULT 'viz-inspect',
    rows_per_page INTEGER NOT NULL DEFAULT 100,
    flag_keys TEXT NOT NULL DEFAULT 'candy,junk,cirrus,unknown',
    good_flag_keys TEXT NOT NULL DEFAULT 'candy',
    bad_flag_keys TEXT NOT NULL DEFAULT 'junk,cirrus,unknown',
    max_good_votes INTEGER NOT NULL DEFAULT 2,
    max_bad_votes INTEGER NOT NULL DEFAULT 2,
    logins_allowed BOOLEAN NOT NULL DEFAULT TRUE,
    signups_allowed BOOLEAN NOT NULL DEFAULT FALSE,
    allowed_email_domains TEXT NOT NULL DEFAULT '',
    email_server TEXT NOT NULL DEFAULT '',
    email_port INTEGER NOT NULL DEFAULT 587,
    email_user TEXT NOT NULL DEFAULT '',
    email_password TEXT NOT NULL DEFAULT '',
    email_sender TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE object_catalog (
    keyid INTEGER PRIMARY KEY AUTOINCREMENT,
    objectid INTEGER NOT NULL UNIQUE,
    ra REAL NOT NULL,
    dec REAL NOT NULL,
    extra_columns TEXT NOT NULL DEFAULT '{}',
    review_status TEXT NOT NULL DEFAULT 'incomplete',
    good_votes INTEGER NOT NULL DEFAULT 0,
    bad_votes INTEGER NOT NULL DEFAULT 0,
    added TIMESTAMP NOT NULL,
    updated TIMESTAMP NOT NULL
);
CREATE TABLE object_images (
    imageid INTEGER PRIMARY KEY AUTOINCREMENT,
    objectid INTEGER NOT NULL UNIQUE,
    filepath TEXT NOT NULL,
    added TIMESTAMP NOT NULL,
    updated TIMESTAMP NOT NULL
);
CREATE TABLE object_comments (
    commentid INTEGER PRIMARY KEY AUTOINCREMENT,
    objectid INTEGER NOT NULL,
    userid TEXT NOT NULL,
    username TEXT NOT NULL DEFAULT '',
    user_flags TEXT NOT NULL DEFAULT '{}',
    contents TEXT NOT NULL DEFAULT '',
    added TIMESTAMP NOT NULL
);
CREATE TABLE review_assignments (
    objectid INTEGER NOT NULL,
    userid TEXT NOT NULL,
    assigned_at TIMESTAMP NOT NULL,
    PRIMARY KEY (objectid, userid)
);
INSERT INTO site_settings (id, updated_at) VALUES (1, '2024-01-01T00:00:00Z');
`

func setupDB(t *testing.T) *Database {
	t.Helper()
	dsn := fmt.Sprintf("file:storage_test_%d?mode=memory&cache=shared",
		testDBSeq.Add(1))
	db, err := sqlx.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return NewDatabase(db)
}

func testTime() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func makeUser(t *testing.T, d *Database, id, email, role string) models.User {
	t.Helper()
	now := testTime()
	u := models.User{
		ID:           id,
		Email:        email,
		FullName:     "Reviewer " + id,
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, d.CreateUser(u))
	return u
}

func makeObject(t *testing.T, d *Database, objectid int64) {
	t.Helper()
	obj := models.CatalogObject{
		ObjectID:     objectid,
		RA:           150.0 + float64(objectid)*0.01,
		Dec:          -2.5,
		ExtraColumns: models.ExtraColumns{"g-i": 0.7},
		Added:        testTime(),
	}
	require.NoError(t, d.InsertObject(obj, fmt.Sprintf("candy-%d.png", objectid)))
}

func defaultPolicy() VotePolicy {
	return VotePolicy{
		GoodFlagKeys: []string{"candy"},
		BadFlagKeys:  []string{"junk", "cirrus", "unknown"},
		MaxGoodVotes: 2,
		MaxBadVotes:  2,
	}
}

func review(t *testing.T, d *Database, objectid int64, userid, flag string) error {
	t.Helper()
	flags := models.FlagMap{}
	if flag != "" {
		flags[flag] = true
	}
	return d.InsertReview(models.Comment{
		ObjectID:  objectid,
		UserID:    userid,
		Username:  "Reviewer " + userid,
		UserFlags: flags,
		Contents:  "looks like a " + flag,
		Added:     testTime(),
	}, defaultPolicy())
}
