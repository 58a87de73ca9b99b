package storage

import (
	"fmt"
	"time"
)

// AssignObjects assigns the given objectids to a user for review. Already
// assigned pairs are skipped. Returns how many new assignments were made.
func (d *Database) AssignObjects(userid string, objectids []int64, now time.Time) (int, error) {
	tx, err := d.db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	assigned := 0
	for _, oid := range objectids {
		res, err := tx.Exec(`
			INSERT INTO review_assignments (objectid, userid, assigned_at)
			SELECT $1, $2, $3
			WHERE EXISTS (SELECT 1 FROM object_catalog WHERE objectid = $1)
			ON CONFLICT (objectid, userid) DO NOTHING
		`, oid, userid, now)
		if err != nil {
			return 0, fmt.Errorf("assign object %d: %w", oid, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			assigned++
		}
	}

	return assigned, tx.Commit()
}

// AssignNextUnassigned assigns up to n not-yet-assigned incomplete objects
// to a user, in catalog order. Returns the objectids assigned.
func (d *Database) AssignNextUnassigned(userid string, n int, now time.Time) ([]int64, error) {
	var objectids []int64
	err := d.db.Select(&objectids, `
		SELECT objectid FROM object_catalog
		WHERE review_status = 'incomplete'
		  AND NOT EXISTS (SELECT 1 FROM review_assignments a
		                  WHERE a.objectid = object_catalog.objectid)
		ORDER BY keyid ASC LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("find unassigned objects: %w", err)
	}
	if len(objectids) == 0 {
		return []int64{}, nil
	}

	if _, err := d.AssignObjects(userid, objectids, now); err != nil {
		return nil, err
	}
	return objectids, nil
}

// UnassignObjects removes the user's assignments for the given objectids.
// Returns how many rows were removed.
func (d *Database) UnassignObjects(userid string, objectids []int64) (int, error) {
	removed := 0
	for _, oid := range objectids {
		res, err := d.db.Exec(`
			DELETE FROM review_assignments WHERE objectid = $1 AND userid = $2
		`, oid, userid)
		if err != nil {
			return removed, fmt.Errorf("unassign object %d: %w", oid, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += int(n)
		}
	}
	return removed, nil
}

// UserAssignments returns the objectids assigned to a user, in catalog order.
func (d *Database) UserAssignments(userid string) ([]int64, error) {
	var objectids []int64
	err := d.db.Select(&objectids, `
		SELECT a.objectid FROM review_assignments a
		JOIN object_catalog o ON o.objectid = a.objectid
		WHERE a.userid = $1 ORDER BY o.keyid ASC
	`, userid)
	return objectids, err
}

// ObjectAssignees returns the userids an object is assigned to. An empty
// result means the object is open to all reviewers.
func (d *Database) ObjectAssignees(objectid int64) ([]string, error) {
	var userids []string
	err := d.db.Select(&userids, `
		SELECT userid FROM review_assignments
		WHERE objectid = $1 ORDER BY assigned_at
	`, objectid)
	return userids, err
}
