package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/johnnygreco/viz-inspect/internal/app"
	"github.com/johnnygreco/viz-inspect/internal/auth"
	"github.com/johnnygreco/viz-inspect/internal/models"
)

const resetTokenLifetime = time.Hour

/* ================================================================
   PAGES
================================================================ */

func pageContext(a *app.App, c *gin.Context) gin.H {
	user, signedIn := currentUser(c)
	settings, err := a.GetStore().GetSettings()
	if err != nil {
		a.GetLogger().WithError(err).Error("load site settings")
	}
	return gin.H{
		"ProjectTitle":   settings.ProjectTitle,
		"SignedIn":       signedIn,
		"User":           user,
		"SignupsAllowed": settings.SignupsAllowed,
		"FlagKeys":       strings.Split(settings.FlagKeys, ","),
	}
}

func handleIndexPage(a *app.App, c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", pageContext(a, c))
}

func handleLoginPage(a *app.App, c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", pageContext(a, c))
}

func handleSignupPage(a *app.App, c *gin.Context) {
	ctx := pageContext(a, c)
	if ctx["SignupsAllowed"] != true {
		ctx["Message"] = "Sign-ups are currently disabled on this server."
	}
	c.HTML(http.StatusOK, "signup.html", ctx)
}

func handleVerifyPage(a *app.App, c *gin.Context) {
	ctx := pageContext(a, c)
	ctx["Token"] = c.Query("token")
	c.HTML(http.StatusOK, "verify.html", ctx)
}

func handleForgotStep1Page(a *app.App, c *gin.Context) {
	c.HTML(http.StatusOK, "forgot-step1.html", pageContext(a, c))
}

func handleForgotStep2Page(a *app.App, c *gin.Context) {
	ctx := pageContext(a, c)
	ctx["Token"] = c.Query("token")
	c.HTML(http.StatusOK, "forgot-step2.html", ctx)
}

func handlePasswordChangePage(a *app.App, c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		c.Redirect(http.StatusSeeOther, "/users/login")
		return
	}
	c.HTML(http.StatusOK, "password-change.html", pageContext(a, c))
}

func handleUserHomePage(a *app.App, c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/users/login")
		return
	}

	reviews, err := a.GetStore().CountUserReviews(user.ID)
	if err != nil {
		a.GetLogger().WithError(err).Error("count user reviews")
	}
	assignments, err := a.GetStore().UserAssignments(user.ID)
	if err != nil {
		a.GetLogger().WithError(err).Error("load user assignments")
	}

	ctx := pageContext(a, c)
	ctx["ReviewCount"] = reviews
	ctx["Assignments"] = assignments
	c.HTML(http.StatusOK, "home.html", ctx)
}

/* ================================================================
   SIGN-UP AND VERIFICATION
================================================================ */

// emailDomainAllowed checks the signup email against the allowed-domains
// CSV from the site settings. An empty list allows every domain.
func emailDomainAllowed(email, allowed string) bool {
	if strings.TrimSpace(allowed) == "" {
		return true
	}
	_, domain, found := strings.Cut(email, "@")
	if !found {
		return false
	}
	for _, d := range strings.Split(allowed, ",") {
		if strings.EqualFold(strings.TrimSpace(d), domain) {
			return true
		}
	}
	return false
}

func handleSignup(a *app.App, c *gin.Context) {
	email := strings.TrimSpace(strings.ToLower(c.PostForm("email")))
	fullName := strings.TrimSpace(c.PostForm("full_name"))
	password := c.PostForm("password")

	settings, err := a.GetStore().GetSettings()
	if err != nil {
		a.GetLogger().WithError(err).Error("load site settings")
		respondFail(c, 500, "Database error.")
		return
	}
	if !settings.SignupsAllowed {
		respondFail(c, 403, "Sign-ups are currently disabled on this server.")
		return
	}
	if !strings.Contains(email, "@") {
		respondFail(c, 400, "A valid email address is required.")
		return
	}
	if !emailDomainAllowed(email, settings.AllowedDomains) {
		respondFail(c, 403, "Sign-ups from this email domain are not allowed.")
		return
	}

	hash, err := a.GetAuth().HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		respondFail(c, 400, err.Error())
		return
	}
	if err != nil {
		a.GetLogger().WithError(err).Error("hash password")
		respondFail(c, 500, "Could not process the password.")
		return
	}

	token := uuid.New().String()
	now := time.Now().UTC()
	user := models.User{
		ID:               uuid.New().String(),
		Email:            email,
		FullName:         fullName,
		PasswordHash:     hash,
		Role:             models.RoleAuthenticated,
		IsActive:         false,
		CreatedAt:        now,
		UpdatedAt:        now,
		EmailVerifyToken: &token,
	}
	if err := a.GetStore().CreateUser(user); err != nil {
		// deliberately indistinguishable from success so signup cannot be
		// used to probe which addresses have accounts
		a.GetLogger().WithError(err).WithField("email", email).Warn("signup rejected")
		respondOK(c, nil, "Check your email for a verification message.")
		return
	}

	if a.GetMailer().Configured() {
		if err := a.GetMailer().SendVerification(
			email, fullName, token, a.GetConfig().SiteURL); err != nil {
			a.GetLogger().WithError(err).Error("send verification email")
		}
	} else {
		a.GetLogger().WithFields(logrus.Fields{
			"email": email, "token": token,
		}).Warn("email sending not configured, verification token logged")
	}
	respondOK(c, nil, "Check your email for a verification message.")
}

func handleVerify(a *app.App, c *gin.Context) {
	token := strings.TrimSpace(c.PostForm("token"))
	if token == "" {
		respondFail(c, 400, "A verification token is required.")
		return
	}
	_, err := a.GetStore().VerifyUserEmail(token, time.Now().UTC())
	if err != nil {
		respondFail(c, 400, "That verification token is invalid or was already used.")
		return
	}
	respondOK(c, nil, "Your account is verified, you can sign in now.")
}

/* ================================================================
   SIGN-IN / SIGN-OUT
================================================================ */

func handleLogin(a *app.App, c *gin.Context) {
	email := strings.TrimSpace(strings.ToLower(c.PostForm("email")))
	password := c.PostForm("password")

	settings, err := a.GetStore().GetSettings()
	if err != nil {
		a.GetLogger().WithError(err).Error("load site settings")
		respondFail(c, 500, "Database error.")
		return
	}

	user, err := a.GetStore().GetUserByEmail(email)
	if errors.Is(err, sql.ErrNoRows) {
		respondFail(c, 401, "Incorrect email address or password.")
		return
	}
	if err != nil {
		a.GetLogger().WithError(err).Error("load user")
		respondFail(c, 500, "Database error.")
		return
	}

	// superusers can always sign in so a lockout cannot orphan the admin
	// panel
	if !settings.LoginsAllowed && !user.IsSuperuser() {
		respondFail(c, 403, "Sign-ins are currently disabled on this server.")
		return
	}

	if err := a.GetAuth().CheckPassword(password, user.PasswordHash); err != nil {
		respondFail(c, 401, "Incorrect email address or password.")
		return
	}
	if !user.IsActive || user.Role == models.RoleLocked {
		respondFail(c, 403, "This account is not active. Contact the site admin.")
		return
	}

	token, err := a.GetAuth().GenerateToken(user)
	if err != nil {
		a.GetLogger().WithError(err).Error("generate session token")
		respondFail(c, 500, "Could not create a session.")
		return
	}

	maxAge := int(a.GetAuth().SessionExpiry() / time.Second)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", false, true)
	respondOK(c, gin.H{"full_name": user.FullName, "role": user.Role}, "Signed in.")
}

func handleLogout(a *app.App, c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	respondOK(c, nil, "Signed out.")
}

/* ================================================================
   PASSWORD RESET AND CHANGE
================================================================ */

func handleForgotStep1(a *app.App, c *gin.Context) {
	email := strings.TrimSpace(strings.ToLower(c.PostForm("email")))
	neutral := "If that address has an account, a reset email is on its way."

	user, err := a.GetStore().GetUserByEmail(email)
	if err != nil || !user.IsActive {
		respondOK(c, nil, neutral)
		return
	}

	token := uuid.New().String()
	now := time.Now().UTC()
	if err := a.GetStore().SetPasswordResetToken(
		email, token, now.Add(resetTokenLifetime), now); err != nil {
		a.GetLogger().WithError(err).Error("set reset token")
		respondOK(c, nil, neutral)
		return
	}

	if a.GetMailer().Configured() {
		if err := a.GetMailer().SendPasswordReset(
			email, user.FullName, token, a.GetConfig().SiteURL); err != nil {
			a.GetLogger().WithError(err).Error("send reset email")
		}
	} else {
		a.GetLogger().WithFields(logrus.Fields{
			"email": email, "token": token,
		}).Warn("email sending not configured, reset token logged")
	}
	respondOK(c, nil, neutral)
}

func handleForgotStep2(a *app.App, c *gin.Context) {
	token := strings.TrimSpace(c.PostForm("token"))
	password := c.PostForm("password")
	if token == "" {
		respondFail(c, 400, "A reset token is required.")
		return
	}

	hash, err := a.GetAuth().HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		respondFail(c, 400, err.Error())
		return
	}
	if err != nil {
		a.GetLogger().WithError(err).Error("hash password")
		respondFail(c, 500, "Could not process the password.")
		return
	}

	if err := a.GetStore().ResetPassword(token, hash, time.Now().UTC()); err != nil {
		respondFail(c, 400, "That reset token is invalid or has expired.")
		return
	}
	respondOK(c, nil, "Password updated, you can sign in now.")
}

func handlePasswordChange(a *app.App, c *gin.Context) {
	user, _ := currentUser(c)

	if err := a.GetAuth().CheckPassword(
		c.PostForm("current_password"), user.PasswordHash); err != nil {
		respondFail(c, 401, "The current password is incorrect.")
		return
	}

	hash, err := a.GetAuth().HashPassword(c.PostForm("new_password"))
	if errors.Is(err, auth.ErrPasswordTooShort) {
		respondFail(c, 400, err.Error())
		return
	}
	if err != nil {
		a.GetLogger().WithError(err).Error("hash password")
		respondFail(c, 500, "Could not process the password.")
		return
	}

	if err := a.GetStore().UpdatePassword(user.ID, hash, time.Now().UTC()); err != nil {
		a.GetLogger().WithError(err).Error("update password")
		respondFail(c, 500, "Database error.")
		return
	}
	respondOK(c, nil, "Password changed.")
}

/* ================================================================
   ACCOUNT DELETION
================================================================ */

// handleDeleteAccount anonymizes the account in place: the user row is kept
// so existing comments stay attributable to an id, but every personal field
// is scrubbed and the account is locked.
func handleDeleteAccount(a *app.App, c *gin.Context) {
	user, _ := currentUser(c)

	if err := a.GetAuth().CheckPassword(
		c.PostForm("password"), user.PasswordHash); err != nil {
		respondFail(c, 401, "The password is incorrect.")
		return
	}

	if user.IsSuperuser() {
		n, err := a.GetStore().CountSuperusers()
		if err != nil {
			a.GetLogger().WithError(err).Error("count superusers")
			respondFail(c, 500, "Database error.")
			return
		}
		if n <= 1 {
			respondFail(c, 400, "The last superuser account cannot be deleted.")
			return
		}
	}

	if err := a.GetStore().ScrubUser(user.ID, time.Now().UTC()); err != nil {
		a.GetLogger().WithError(err).Error("scrub user")
		respondFail(c, 500, "Database error.")
		return
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	respondOK(c, nil, "Your account has been deleted.")
}
