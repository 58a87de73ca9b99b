package storage

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/johnnygreco/viz-inspect/internal/models"
)

// ObjectFilter narrows object list queries. ReviewStatus is one of the
// models.Review* values or "all". UserCheck restricts to objects the given
// user has ("include") or has not ("exclude") already reviewed.
type ObjectFilter struct {
	ReviewStatus string
	UserID       string
	UserCheck    string // "", "include" or "exclude"
}

// ObjectPage is one page of an object list query, bounded by the keyset
// cursors of its first and last rows.
type ObjectPage struct {
	ObjectIDs  []int64 `json:"objectlist"`
	StartKeyID int64   `json:"start_keyid"`
	EndKeyID   int64   `json:"end_keyid"`
}

func (f ObjectFilter) whereClause(args *[]any) string {
	where := ""
	if f.ReviewStatus != "" && f.ReviewStatus != "all" {
		*args = append(*args, f.ReviewStatus)
		where += " AND review_status = $" + strconv.Itoa(len(*args))
	}
	if f.UserCheck != "" && f.UserID != "" {
		*args = append(*args, f.UserID)
		sub := `EXISTS (SELECT 1 FROM object_comments c
			WHERE c.objectid = object_catalog.objectid AND c.userid = $` +
			strconv.Itoa(len(*args)) + `)`
		if f.UserCheck == "exclude" {
			sub = "NOT " + sub
		}
		where += " AND " + sub
	}
	return where
}

// InsertObject adds a catalog row and its image reference. Existing
// objectids are left untouched so catalog reloads are idempotent.
func (d *Database) InsertObject(obj models.CatalogObject, imagePath string) error {
	tx, err := d.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO object_catalog
		(objectid, ra, dec, extra_columns, review_status,
		 good_votes, bad_votes, added, updated)
		VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $6)
		ON CONFLICT (objectid) DO NOTHING
	`, obj.ObjectID, obj.RA, obj.Dec, obj.ExtraColumns,
		models.ReviewIncomplete, obj.Added)
	if err != nil {
		return fmt.Errorf("insert object: %w", err)
	}

	if imagePath != "" {
		_, err = tx.Exec(`
			INSERT INTO object_images (objectid, filepath, added, updated)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (objectid) DO UPDATE SET
				filepath = EXCLUDED.filepath, updated = EXCLUDED.updated
		`, obj.ObjectID, imagePath, obj.Added)
		if err != nil {
			return fmt.Errorf("insert object image: %w", err)
		}
	}

	return tx.Commit()
}

// GetObject returns the catalog row for an objectid.
func (d *Database) GetObject(objectid int64) (models.CatalogObject, error) {
	var obj models.CatalogObject
	err := d.db.Get(&obj,
		`SELECT * FROM object_catalog WHERE objectid = $1`, objectid)
	return obj, err
}

// GetObjectImage returns the image reference for an objectid.
func (d *Database) GetObjectImage(objectid int64) (models.ObjectImage, error) {
	var img models.ObjectImage
	err := d.db.Get(&img,
		`SELECT * FROM object_images WHERE objectid = $1`, objectid)
	return img, err
}

// CountObjects returns how many objects match the filter.
func (d *Database) CountObjects(filter ObjectFilter) (int, error) {
	var args []any
	query := `SELECT COUNT(*) FROM object_catalog WHERE 1=1` +
		filter.whereClause(&args)

	var n int
	if err := d.db.Get(&n, query, args...); err != nil {
		return 0, fmt.Errorf("count objects: %w", err)
	}
	return n, nil
}

// ListObjects returns one page of objectids matching the filter, using
// keyset pagination over the serial keyid column. Exactly one of startKey
// or endKey should be set (>0): startKey pages forward from that cursor,
// endKey pages backward ending at it. The returned page is always in
// ascending keyid order.
func (d *Database) ListObjects(
	filter ObjectFilter, startKey, endKey int64, maxObjects int,
) (ObjectPage, error) {

	var args []any
	where := filter.whereClause(&args)

	var query string
	switch {
	case endKey > 0:
		args = append(args, endKey)
		query = `SELECT keyid, objectid FROM object_catalog WHERE keyid <= $` +
			strconv.Itoa(len(args)) + where + ` ORDER BY keyid DESC`
	default:
		if startKey < 1 {
			startKey = 1
		}
		args = append(args, startKey)
		query = `SELECT keyid, objectid FROM object_catalog WHERE keyid >= $` +
			strconv.Itoa(len(args)) + where + ` ORDER BY keyid ASC`
	}
	args = append(args, maxObjects)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	var rows []struct {
		KeyID    int64 `db:"keyid"`
		ObjectID int64 `db:"objectid"`
	}
	if err := d.db.Select(&rows, query, args...); err != nil {
		return ObjectPage{}, fmt.Errorf("list objects: %w", err)
	}

	page := ObjectPage{ObjectIDs: []int64{}}
	if len(rows) == 0 {
		return page, nil
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].KeyID < rows[j].KeyID })
	page.StartKeyID = rows[0].KeyID
	page.EndKeyID = rows[len(rows)-1].KeyID
	for _, r := range rows {
		page.ObjectIDs = append(page.ObjectIDs, r.ObjectID)
	}
	return page, nil
}

// TouchObject bumps the updated timestamp for an objectid.
func (d *Database) TouchObject(objectid int64, now time.Time) error {
	_, err := d.db.Exec(
		`UPDATE object_catalog SET updated = $1 WHERE objectid = $2`,
		now, objectid)
	return err
}
