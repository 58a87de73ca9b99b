package api

import (
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/johnnygreco/viz-inspect/internal/app"
	"github.com/johnnygreco/viz-inspect/internal/models"
	"github.com/johnnygreco/viz-inspect/internal/storage"
)

// reviewStatusFilters are the accepted values of the list-objects
// review_status query param. The self-/other- prefixes restrict to objects
// the requesting user has / has not reviewed.
var reviewStatusFilters = map[string]bool{
	"all":                 true,
	"incomplete":          true,
	"complete-good":       true,
	"complete-bad":        true,
	"self-incomplete":     true,
	"self-complete-good":  true,
	"self-complete-bad":   true,
	"other-incomplete":    true,
	"other-complete-good": true,
	"other-complete-bad":  true,
}

func parseObjectFilter(reviewStatus, userID string) storage.ObjectFilter {
	filter := storage.ObjectFilter{ReviewStatus: reviewStatus}
	if rest, ok := strings.CutPrefix(reviewStatus, "self-"); ok {
		filter = storage.ObjectFilter{
			ReviewStatus: rest, UserID: userID, UserCheck: "include",
		}
	} else if rest, ok := strings.CutPrefix(reviewStatus, "other-"); ok {
		filter = storage.ObjectFilter{
			ReviewStatus: rest, UserID: userID, UserCheck: "exclude",
		}
	}
	return filter
}

/* ================================================================
   OBJECT LIST + DETAIL
================================================================ */

type objectListResult struct {
	storage.ObjectPage
	ReviewStatus string `json:"review_status"`
	ObjectCount  int    `json:"object_count"`
	RowsPerPage  int    `json:"rows_per_page"`
	NPages       int    `json:"n_pages"`
}

func handleListObjects(a *app.App, c *gin.Context) {
	user, _ := currentUser(c)

	reviewStatus := c.DefaultQuery("review_status", "all")
	if !reviewStatusFilters[reviewStatus] {
		respondFail(c, 400, "Unknown review_status filter: "+reviewStatus)
		return
	}

	keyid, err := strconv.ParseInt(c.DefaultQuery("keyid", "1"), 10, 64)
	if err != nil || keyid < 1 {
		respondFail(c, 400, "Invalid keyid.")
		return
	}
	keytype := c.DefaultQuery("keytype", "start")
	if keytype != "start" && keytype != "end" {
		respondFail(c, 400, "keytype must be start or end.")
		return
	}

	settings, err := a.GetStore().GetSettings()
	if err != nil {
		a.GetLogger().WithError(err).Error("load site settings")
		respondFail(c, 500, "Database error.")
		return
	}

	filter := parseObjectFilter(reviewStatus, user.ID)

	count, err := a.GetStore().CountObjects(filter)
	if err != nil {
		a.GetLogger().WithError(err).Error("count objects")
		respondFail(c, 500, "Database error.")
		return
	}

	startKey, endKey := int64(0), int64(0)
	if keytype == "end" {
		endKey = keyid
	} else {
		startKey = keyid
	}
	page, err := a.GetStore().ListObjects(filter, startKey, endKey, settings.RowsPerPage)
	if err != nil {
		a.GetLogger().WithError(err).Error("list objects")
		respondFail(c, 500, "Database error.")
		return
	}

	nPages := count / settings.RowsPerPage
	if count%settings.RowsPerPage != 0 {
		nPages++
	}

	respondOK(c, objectListResult{
		ObjectPage:   page,
		ReviewStatus: reviewStatus,
		ObjectCount:  count,
		RowsPerPage:  settings.RowsPerPage,
		NPages:       nPages,
	}, "")
}

type objectDetailResult struct {
	Object          models.CatalogObject `json:"object"`
	Comments        []models.Comment     `json:"comments"`
	ImageURL        string               `json:"image_url"`
	AlreadyReviewed bool                 `json:"already_reviewed"`
	ReadOnly        bool                 `json:"readonly"`
}

func handleLoadObject(a *app.App, c *gin.Context) {
	user, _ := currentUser(c)

	objectid, err := strconv.ParseInt(c.Param("objectid"), 10, 64)
	if err != nil {
		respondFail(c, 400, "Invalid objectid.")
		return
	}

	obj, err := a.GetStore().GetObject(objectid)
	if errors.Is(err, sql.ErrNoRows) {
		respondFail(c, 404, "Object not found.")
		return
	}
	if err != nil {
		a.GetLogger().WithError(err).Error("load object")
		respondFail(c, 500, "Database error.")
		return
	}

	comments, err := a.GetStore().ListComments(objectid)
	if err != nil {
		a.GetLogger().WithError(err).Error("load comments")
		respondFail(c, 500, "Database error.")
		return
	}

	reviewed, err := a.GetStore().HasUserReviewed(objectid, user.ID)
	if err != nil {
		a.GetLogger().WithError(err).Error("check review")
		respondFail(c, 500, "Database error.")
		return
	}

	readonly, err := objectReadOnly(a, objectid, user)
	if err != nil {
		a.GetLogger().WithError(err).Error("check assignments")
		respondFail(c, 500, "Database error.")
		return
	}

	imageURL := ""
	image, err := a.GetStore().GetObjectImage(objectid)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// object has no rendered image yet, render the page without one
	case err != nil:
		a.GetLogger().WithError(err).Error("load object image")
		respondFail(c, 500, "Database error.")
		return
	case a.GetImages().BucketConfigured():
		imageURL, err = a.GetImages().PresignedURL(c.Request.Context(), image.FilePath)
		if err != nil {
			a.GetLogger().WithError(err).Error("presign image url")
			respondFail(c, 500, "Could not generate the image URL.")
			return
		}
	default:
		imageURL = "/viz-inspect-data/" + image.FilePath
	}

	respondOK(c, objectDetailResult{
		Object:          obj,
		Comments:        comments,
		ImageURL:        imageURL,
		AlreadyReviewed: reviewed,
		ReadOnly:        readonly,
	}, "")
}

// objectReadOnly reports whether the object is locked for this user because
// it has been assigned to other reviewers. Staff and superusers always
// retain write access.
func objectReadOnly(a *app.App, objectid int64, user models.User) (bool, error) {
	if user.Role == models.RoleStaff || user.Role == models.RoleSuperuser {
		return false, nil
	}
	assignees, err := a.GetStore().ObjectAssignees(objectid)
	if err != nil {
		return false, err
	}
	if len(assignees) == 0 {
		return false, nil
	}
	return !slices.Contains(assignees, user.ID), nil
}

/* ================================================================
   SAVE REVIEW
================================================================ */

type reviewSubmission struct {
	CommentText string         `json:"comment_text"`
	UserFlags   models.FlagMap `json:"user_flags"`
}

func handleSaveObject(a *app.App, c *gin.Context) {
	user, _ := currentUser(c)

	objectid, err := strconv.ParseInt(c.Param("objectid"), 10, 64)
	if err != nil {
		respondFail(c, 400, "Invalid objectid.")
		return
	}

	var in reviewSubmission
	if err := c.ShouldBindJSON(&in); err != nil {
		respondFail(c, 400, "Invalid request body.")
		return
	}

	readonly, err := objectReadOnly(a, objectid, user)
	if err != nil {
		a.GetLogger().WithError(err).Error("check assignments")
		respondFail(c, 500, "Database error.")
		return
	}
	if readonly {
		respondFail(c, 403, "This object is assigned to other reviewers.")
		return
	}

	settings, err := a.GetStore().GetSettings()
	if err != nil {
		a.GetLogger().WithError(err).Error("load site settings")
		respondFail(c, 500, "Database error.")
		return
	}

	comment := models.Comment{
		ObjectID:  objectid,
		UserID:    user.ID,
		Username:  user.FullName,
		UserFlags: in.UserFlags,
		Contents:  in.CommentText,
		Added:     time.Now().UTC(),
	}
	err = a.GetStore().InsertReview(comment, storage.VotePolicyFromSettings(settings))
	switch {
	case errors.Is(err, storage.ErrMultipleFlags):
		respondFail(c, 400, "Select at most one flag per review.")
		return
	case errors.Is(err, storage.ErrAlreadyReviewed):
		respondFail(c, 400, "You have already reviewed this object.")
		return
	case errors.Is(err, storage.ErrReviewComplete):
		respondFail(c, 400, "This object's review is already complete.")
		return
	case errors.Is(err, sql.ErrNoRows):
		respondFail(c, 404, "Object not found.")
		return
	case err != nil:
		a.GetLogger().WithError(err).Error("save review")
		respondFail(c, 500, "Database error.")
		return
	}

	obj, err := a.GetStore().GetObject(objectid)
	if err != nil {
		a.GetLogger().WithError(err).Error("reload object")
		respondFail(c, 500, "Database error.")
		return
	}
	comments, err := a.GetStore().ListComments(objectid)
	if err != nil {
		a.GetLogger().WithError(err).Error("reload comments")
		respondFail(c, 500, "Database error.")
		return
	}
	respondOK(c, objectDetailResult{
		Object:          obj,
		Comments:        comments,
		AlreadyReviewed: true,
	}, "Review saved.")
}

/* ================================================================
   IMAGE DATA
================================================================ */

// handleObjectImage serves an object PNG out of the local cache, pulling it
// from the bucket on a cache miss.
func handleObjectImage(a *app.App, c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	if filename == "." || filename == "/" || strings.HasPrefix(filename, ".") {
		respondFail(c, 400, "Invalid filename.")
		return
	}
	local, err := a.GetImages().FetchToCache(c.Request.Context(), filename)
	if err != nil {
		respondFail(c, 404, "Image not found.")
		return
	}
	c.File(local)
}
