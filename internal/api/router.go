package api

import (
	"github.com/gin-gonic/gin"

	"github.com/johnnygreco/viz-inspect/internal/app"
)

// SetupRouter wires every page and API endpoint, using thin closure
// wrappers so each handler receives the running *app.App instance.
func SetupRouter(a *app.App) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(loadUser(a))

	if glob := a.GetConfig().TemplateGlob; glob != "" {
		r.LoadHTMLGlob(glob)
	}
	if dir := a.GetConfig().StaticDir; dir != "" {
		r.Static("/static", dir)
	}

	/* ---------- pages ---------- */
	r.GET("/", func(c *gin.Context) { handleIndexPage(a, c) })
	r.GET("/users/login", func(c *gin.Context) { handleLoginPage(a, c) })
	r.GET("/users/new", func(c *gin.Context) { handleSignupPage(a, c) })
	r.GET("/users/verify", func(c *gin.Context) { handleVerifyPage(a, c) })
	r.GET("/users/forgot-password-step1",
		func(c *gin.Context) { handleForgotStep1Page(a, c) })
	r.GET("/users/forgot-password-step2",
		func(c *gin.Context) { handleForgotStep2Page(a, c) })
	r.GET("/users/password-change",
		func(c *gin.Context) { handlePasswordChangePage(a, c) })
	r.GET("/users/home", func(c *gin.Context) { handleUserHomePage(a, c) })

	/* ---------- auth form endpoints (rate limited) ---------- */
	users := r.Group("/users")
	users.Use(rateLimit(a))
	{
		users.POST("/new", func(c *gin.Context) { handleSignup(a, c) })
		users.POST("/verify", func(c *gin.Context) { handleVerify(a, c) })
		users.POST("/login", func(c *gin.Context) { handleLogin(a, c) })
		users.POST("/forgot-password-step1",
			func(c *gin.Context) { handleForgotStep1(a, c) })
		users.POST("/forgot-password-step2",
			func(c *gin.Context) { handleForgotStep2(a, c) })
	}
	r.POST("/users/logout", func(c *gin.Context) { handleLogout(a, c) })

	session := r.Group("/users")
	session.Use(loginRequired())
	{
		session.POST("/password-change",
			func(c *gin.Context) { handlePasswordChange(a, c) })
		session.POST("/delete", func(c *gin.Context) { handleDeleteAccount(a, c) })
	}

	/* ---------- object API ---------- */
	api := r.Group("/api")
	api.Use(reviewerRequired())
	{
		api.GET("/list-objects", func(c *gin.Context) { handleListObjects(a, c) })
		api.GET("/load-object/:objectid",
			func(c *gin.Context) { handleLoadObject(a, c) })
		api.POST("/save-object/:objectid",
			func(c *gin.Context) { handleSaveObject(a, c) })
	}
	r.GET("/viz-inspect-data/:filename", reviewerRequired(),
		func(c *gin.Context) { handleObjectImage(a, c) })

	/* ---------- admin ---------- */
	admin := r.Group("/admin")
	admin.Use(superuserRequired())
	{
		admin.GET("", func(c *gin.Context) { handleAdminPage(a, c) })
		admin.POST("/email", func(c *gin.Context) { handleAdminEmail(a, c) })
		admin.POST("/site", func(c *gin.Context) { handleAdminSite(a, c) })
		admin.POST("/users", func(c *gin.Context) { handleAdminUsers(a, c) })
		admin.POST("/review-assign",
			func(c *gin.Context) { handleAdminAssign(a, c) })
	}

	return r
}
