package api

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/johnnygreco/viz-inspect/internal/app"
	"github.com/johnnygreco/viz-inspect/internal/auth"
	"github.com/johnnygreco/viz-inspect/internal/config"
	"github.com/johnnygreco/viz-inspect/internal/email"
	"github.com/johnnygreco/viz-inspect/internal/images"
	"github.com/johnnygreco/viz-inspect/internal/models"
	"github.com/johnnygreco/viz-inspect/internal/storage"
)

var testDBSeq atomic.Int64

// same sqlite rendition of the schema the storage tests use
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

const testPassword = "horse-battery-staple"

type testEnv struct {
	app    *app.App
	router *gin.Engine
	store  *storage.Database
	auth   *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:api_test_%d?mode=memory&cache=shared",
		testDBSeq.Add(1))
	db, err := sqlx.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	store := storage.NewDatabase(db)
	authSvc := auth.NewService("api-test-secret", 1)

	imgSvc, err := images.NewService(config.BucketConfig{}, t.TempDir())
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	a := app.New(
		config.Config{SiteURL: "http://viz.test"},
		log, store, authSvc, email.NewSender(store.GetSettings),
		imgSvc, nil,
	)
	return &testEnv{app: a, router: SetupRouter(a), store: store, auth: authSvc}
}

func (e *testEnv) createUser(t *testing.T, emailAddr, role string) models.User {
	t.Helper()
	hash, err := e.auth.HashPassword(testPassword)
	require.NoError(t, err)
	now := time.Now().UTC()
	u := models.User{
		ID:           uuid.New().String(),
		Email:        emailAddr,
		FullName:     "Test " + role,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.store.CreateUser(u))
	return u
}

func (e *testEnv) sessionCookie(t *testing.T, u models.User) *http.Cookie {
	t.Helper()
	token, err := e.auth.GenerateToken(u)
	require.NoError(t, err)
	return &http.Cookie{Name: sessionCookie, Value: token}
}

func (e *testEnv) addObject(t *testing.T, objectid int64) {
	t.Helper()
	require.NoError(t, e.store.InsertObject(models.CatalogObject{
		ObjectID:     objectid,
		RA:           150.0,
		Dec:          -2.5,
		ExtraColumns: models.ExtraColumns{"g-i": 0.7, "g-r": 0.4},
		Added:        time.Now().UTC(),
	}, fmt.Sprintf("candy-%d.png", objectid)))
}

func testNow() time.Time {
	return time.Now().UTC()
}

// do runs a request against the router and returns the recorder.
func (e *testEnv) do(method, target string, body string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func asForm(req *http.Request) {
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
}

func asJSON(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(req *http.Request) { req.AddCookie(c) }
}
