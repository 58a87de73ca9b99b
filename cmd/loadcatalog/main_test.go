package main

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/johnnygreco/viz-inspect/internal/storage"
)

const testSchema = `
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
`

const testCatalog = `objectid,ra,dec,m_tot,m_tot_forced_g,m_tot_forced_r,A_g,A_i,A_r,mu_ave_g
42,150.05,-2.5,19.5,20.4,20.1,0.12,0.07,0.09,24.8
43,150.07,-2.6,19.9,20.8,20.5,0.11,0.06,0.08,25.1
bad-id,1.0,2.0,0,0,0,0,0,0,0
`

var testDBSeq atomic.Int64

func setupStore(t *testing.T) *storage.Database {
	t.Helper()
	dsn := fmt.Sprintf("file:loadcatalog_test_%d?mode=memory&cache=shared",
		testDBSeq.Add(1))
	db, err := sqlx.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return storage.NewDatabase(db)
}

func TestLoadCatalog(t *testing.T) {
	store := setupStore(t)

	loaded, skipped, err := loadCatalog(store, strings.NewReader(testCatalog), "candy-%d.png")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 1, skipped)

	obj, err := store.GetObject(42)
	require.NoError(t, err)
	assert.InDelta(t, 150.05, obj.RA, 1e-9)
	assert.InDelta(t, 19.5, obj.ExtraColumns["m_tot"], 1e-9)

	// g-i = m_tot_forced_g - m_tot - A_g + A_i
	assert.InDelta(t, 20.4-19.5-0.12+0.07, obj.ExtraColumns["g-i"].(float64), 1e-9)
	assert.InDelta(t, 20.4-20.1-0.12+0.09, obj.ExtraColumns["g-r"].(float64), 1e-9)

	img, err := store.GetObjectImage(42)
	require.NoError(t, err)
	assert.Equal(t, "candy-42.png", img.FilePath)

	// a second run over the same file changes nothing
	loaded, skipped, err = loadCatalog(store, strings.NewReader(testCatalog), "candy-%d.png")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 1, skipped)
}

func TestLoadCatalogMissingColumns(t *testing.T) {
	store := setupStore(t)

	_, _, err := loadCatalog(store, strings.NewReader("objectid,ra\n1,2\n"), "candy-%d.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"dec"`)
}
