package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/johnnygreco/viz-inspect/internal/app"
	"github.com/johnnygreco/viz-inspect/internal/models"
)

func handleAdminPage(a *app.App, c *gin.Context) {
	settings, err := a.GetStore().GetSettings()
	if err != nil {
		a.GetLogger().WithError(err).Error("load site settings")
		respondFail(c, 500, "Database error.")
		return
	}
	users, err := a.GetStore().ListUsers()
	if err != nil {
		a.GetLogger().WithError(err).Error("list users")
		respondFail(c, 500, "Database error.")
		return
	}

	ctx := pageContext(a, c)
	ctx["Settings"] = settings
	ctx["Users"] = users
	c.HTML(http.StatusOK, "admin.html", ctx)
}

/* ================================================================
   SETTINGS
================================================================ */

func handleAdminEmail(a *app.App, c *gin.Context) {
	port, err := strconv.Atoi(c.DefaultPostForm("email_port", "587"))
	if err != nil || port < 1 || port > 65535 {
		respondFail(c, 400, "Invalid SMTP port.")
		return
	}
	err = a.GetStore().UpdateEmailSettings(
		strings.TrimSpace(c.PostForm("email_server")),
		port,
		strings.TrimSpace(c.PostForm("email_user")),
		c.PostForm("email_password"),
		strings.TrimSpace(c.PostForm("email_sender")),
		time.Now().UTC(),
	)
	if err != nil {
		a.GetLogger().WithError(err).Error("update email settings")
		respondFail(c, 500, "Database error.")
		return
	}
	respondOK(c, nil, "Email settings updated.")
}

func handleAdminSite(a *app.App, c *gin.Context) {
	rowsPerPage, err := strconv.Atoi(c.DefaultPostForm("rows_per_page", "100"))
	if err != nil || rowsPerPage < 1 || rowsPerPage > 500 {
		respondFail(c, 400, "rows_per_page must be between 1 and 500.")
		return
	}
	err = a.GetStore().UpdateSitePolicy(
		c.PostForm("logins_allowed") == "on",
		c.PostForm("signups_allowed") == "on",
		strings.TrimSpace(c.PostForm("allowed_email_domains")),
		rowsPerPage,
		time.Now().UTC(),
	)
	if err != nil {
		a.GetLogger().WithError(err).Error("update site policy")
		respondFail(c, 500, "Database error.")
		return
	}
	respondOK(c, nil, "Site settings updated.")
}

/* ================================================================
   USER MANAGEMENT
================================================================ */

func handleAdminUsers(a *app.App, c *gin.Context) {
	admin, _ := currentUser(c)

	targetID := c.PostForm("user_id")
	role := c.PostForm("role")
	isActive := c.PostForm("is_active") == "on"

	if !models.ValidRole(role) {
		respondFail(c, 400, "Unknown role: "+role)
		return
	}

	target, err := a.GetStore().GetUserByID(targetID)
	if err != nil {
		respondFail(c, 404, "User not found.")
		return
	}

	// superusers cannot change their own account here, and the last
	// superuser can never be demoted or deactivated
	if target.ID == admin.ID {
		respondFail(c, 400, "You cannot change your own role here.")
		return
	}
	if target.IsSuperuser() && (role != models.RoleSuperuser || !isActive) {
		n, err := a.GetStore().CountSuperusers()
		if err != nil {
			a.GetLogger().WithError(err).Error("count superusers")
			respondFail(c, 500, "Database error.")
			return
		}
		if n <= 1 {
			respondFail(c, 400, "The last superuser cannot be demoted or deactivated.")
			return
		}
	}

	if err := a.GetStore().UpdateUserRole(targetID, role, isActive, time.Now().UTC()); err != nil {
		a.GetLogger().WithError(err).Error("update user role")
		respondFail(c, 500, "Database error.")
		return
	}
	respondOK(c, nil, "User updated.")
}

/* ================================================================
   REVIEW ASSIGNMENTS
================================================================ */

type assignmentRequest struct {
	UserID    string  `json:"userid" binding:"required"`
	Op        string  `json:"op" binding:"required"`
	ObjectIDs []int64 `json:"objectids"`
	Count     int     `json:"count"`
}

func handleAdminAssign(a *app.App, c *gin.Context) {
	var in assignmentRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		respondFail(c, 400, "Invalid request body.")
		return
	}

	target, err := a.GetStore().GetUserByID(in.UserID)
	if err != nil {
		respondFail(c, 404, "User not found.")
		return
	}
	if !target.CanReview() {
		respondFail(c, 400, "That account cannot review objects.")
		return
	}

	now := time.Now().UTC()
	switch in.Op {
	case "assign":
		if in.Count > 0 {
			objectids, err := a.GetStore().AssignNextUnassigned(in.UserID, in.Count, now)
			if err != nil {
				a.GetLogger().WithError(err).Error("assign next unassigned")
				respondFail(c, 500, "Database error.")
				return
			}
			respondOK(c, gin.H{"assigned": len(objectids), "objectids": objectids},
				"Objects assigned.")
			return
		}
		if len(in.ObjectIDs) == 0 {
			respondFail(c, 400, "Provide objectids or a count to assign.")
			return
		}
		n, err := a.GetStore().AssignObjects(in.UserID, in.ObjectIDs, now)
		if err != nil {
			a.GetLogger().WithError(err).Error("assign objects")
			respondFail(c, 500, "Database error.")
			return
		}
		respondOK(c, gin.H{"assigned": n}, "Objects assigned.")

	case "unassign":
		if len(in.ObjectIDs) == 0 {
			respondFail(c, 400, "Provide objectids to unassign.")
			return
		}
		n, err := a.GetStore().UnassignObjects(in.UserID, in.ObjectIDs)
		if err != nil {
			a.GetLogger().WithError(err).Error("unassign objects")
			respondFail(c, 500, "Database error.")
			return
		}
		respondOK(c, gin.H{"unassigned": n}, "Objects unassigned.")

	default:
		respondFail(c, 400, "op must be assign or unassign.")
	}
}
