package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/johnnygreco/viz-inspect/internal/app"
	"github.com/johnnygreco/viz-inspect/internal/models"
)

// sessionCookie holds the signed session token for browser clients.
// Programmatic clients may send the same token as a Bearer header instead.
const sessionCookie = "vizinspect_session"

// loadUser resolves the session token (cookie or Authorization header) to a
// fresh user row and stores it in the request context. It never aborts:
// anonymous requests simply carry no user.
func loadUser(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if cookie, err := c.Cookie(sessionCookie); err == nil {
			token = cookie
		} else if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if token == "" {
			c.Next()
			return
		}

		claims, err := a.GetAuth().VerifyToken(token)
		if err != nil {
			c.Next()
			return
		}
		userID, _ := claims["user_id"].(string)
		if userID == "" {
			c.Next()
			return
		}

		// always re-read the user so role changes and lockouts apply
		// immediately instead of at token expiry
		user, err := a.GetStore().GetUserByID(userID)
		if err != nil || !user.IsActive {
			c.Next()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// currentUser returns the signed-in user set by loadUser, if any.
func currentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func loginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentUser(c); !ok {
			respondFail(c, 401, "You must be signed in to do that.")
			c.Abort()
			return
		}
		c.Next()
	}
}

func reviewerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			respondFail(c, 401, "You must be signed in to do that.")
			c.Abort()
			return
		}
		if !user.CanReview() {
			respondFail(c, 403, "Your account is not allowed to review objects.")
			c.Abort()
			return
		}
		c.Next()
	}
}

func superuserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok || !user.IsSuperuser() {
			respondFail(c, 403, "Superuser access required.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// rateLimit throttles anonymous-facing endpoints (signin, signup, password
// reset) per client IP. A nil limiter means rate limiting is disabled.
func rateLimit(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := a.GetLimiter()
		if limiter == nil {
			c.Next()
			return
		}
		if !limiter.Allow(c.Request.Context(), c.ClientIP()) {
			respondFail(c, 429, "Too many requests, slow down.")
			c.Abort()
			return
		}
		c.Next()
	}
}
