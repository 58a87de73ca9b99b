package storage

import (
	"errors"
	"fmt"
	"slices"

	"github.com/johnnygreco/viz-inspect/internal/models"
)

var (
	// ErrAlreadyReviewed is returned when a user tries to review an object
	// a second time.
	ErrAlreadyReviewed = errors.New("object already reviewed by this user")

	// ErrReviewComplete is returned when the object has already collected
	// enough votes either way.
	ErrReviewComplete = errors.New("object review is already complete")

	// ErrMultipleFlags is returned when more than one flag is set in a
	// review submission.
	ErrMultipleFlags = errors.New("more than one flag selected")
)

// VotePolicy carries the flag classification and completion thresholds from
// the site settings.
type VotePolicy struct {
	GoodFlagKeys []string
	BadFlagKeys  []string
	MaxGoodVotes int
	MaxBadVotes  int
}

// ListComments returns the comments for an object, newest first.
func (d *Database) ListComments(objectid int64) ([]models.Comment, error) {
	var comments []models.Comment
	err := d.db.Select(&comments, `
		SELECT * FROM object_comments
		WHERE objectid = $1 ORDER BY added DESC, commentid DESC
	`, objectid)
	return comments, err
}

// HasUserReviewed reports whether the user already commented on the object.
func (d *Database) HasUserReviewed(objectid int64, userid string) (bool, error) {
	var n int
	err := d.db.Get(&n, `
		SELECT COUNT(*) FROM object_comments
		WHERE objectid = $1 AND userid = $2
	`, objectid, userid)
	return n > 0, err
}

// CountUserReviews returns how many objects the user has reviewed.
func (d *Database) CountUserReviews(userid string) (int, error) {
	var n int
	err := d.db.Get(&n, `
		SELECT COUNT(*) FROM object_comments WHERE userid = $1
	`, userid)
	return n, err
}

// InsertReview stores a review comment and, in the same transaction,
// updates the object's vote tallies and flips its review status once the
// policy thresholds are reached. At most one flag may be set; the one-flag
// and one-review-per-user invariants are enforced here as well as in the
// HTTP layer.
func (d *Database) InsertReview(comment models.Comment, policy VotePolicy) error {

	if comment.UserFlags.SetCount() > 1 {
		return ErrMultipleFlags
	}

	tx, err := d.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var obj models.CatalogObject
	if err := tx.Get(&obj,
		`SELECT * FROM object_catalog WHERE objectid = $1`,
		comment.ObjectID); err != nil {
		return fmt.Errorf("load object for review: %w", err)
	}
	if obj.ReviewStatus != models.ReviewIncomplete {
		return ErrReviewComplete
	}

	var reviewed int
	if err := tx.Get(&reviewed, `
		SELECT COUNT(*) FROM object_comments
		WHERE objectid = $1 AND userid = $2
	`, comment.ObjectID, comment.UserID); err != nil {
		return err
	}
	if reviewed > 0 {
		return ErrAlreadyReviewed
	}

	if _, err := tx.Exec(`
		INSERT INTO object_comments
		(objectid, userid, username, user_flags, contents, added)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, comment.ObjectID, comment.UserID, comment.Username,
		comment.UserFlags, comment.Contents, comment.Added); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	good, bad := obj.GoodVotes, obj.BadVotes
	for _, key := range comment.UserFlags.SetKeys() {
		switch {
		case slices.Contains(policy.GoodFlagKeys, key):
			good++
		case slices.Contains(policy.BadFlagKeys, key):
			bad++
		}
	}

	status := models.ReviewIncomplete
	switch {
	case policy.MaxGoodVotes > 0 && good >= policy.MaxGoodVotes:
		status = models.ReviewCompleteGood
	case policy.MaxBadVotes > 0 && bad >= policy.MaxBadVotes:
		status = models.ReviewCompleteBad
	}

	if _, err := tx.Exec(`
		UPDATE object_catalog
		SET good_votes = $1, bad_votes = $2, review_status = $3, updated = $4
		WHERE objectid = $5
	`, good, bad, status, comment.Added, comment.ObjectID); err != nil {
		return fmt.Errorf("update vote tallies: %w", err)
	}

	return tx.Commit()
}
