package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/johnnygreco/viz-inspect/internal/auth"
	"github.com/johnnygreco/viz-inspect/internal/config"
	"github.com/johnnygreco/viz-inspect/internal/db"
	"github.com/johnnygreco/viz-inspect/internal/email"
	"github.com/johnnygreco/viz-inspect/internal/images"
	"github.com/johnnygreco/viz-inspect/internal/models"
	"github.com/johnnygreco/viz-inspect/internal/ratelimit"
	"github.com/johnnygreco/viz-inspect/internal/storage"
)

/* ------------------------------------------------------------------
   App struct — runtime container
-------------------------------------------------------------------*/

type App struct {
	cfg config.Config
	log *logrus.Logger

	store   *storage.Database
	auth    *auth.Service
	mailer  *email.Sender
	images  *images.Service
	limiter *ratelimit.Limiter

	redisClient *redis.Client
	webRouter   *gin.Engine
	httpServer  *http.Server
}

/* ------------------------------------------------------------------
   Public getters used by the handler layer
-------------------------------------------------------------------*/

func (a *App) GetConfig() config.Config      { return a.cfg }
func (a *App) GetLogger() *logrus.Logger     { return a.log }
func (a *App) GetStore() *storage.Database   { return a.store }
func (a *App) GetAuth() *auth.Service        { return a.auth }
func (a *App) GetMailer() *email.Sender      { return a.mailer }
func (a *App) GetImages() *images.Service    { return a.images }
func (a *App) GetLimiter() *ratelimit.Limiter { return a.limiter }

func (a *App) SetWebRouter(r *gin.Engine) { a.webRouter = r }

// New assembles an App from already-built services. The vizserver binary
// goes through Init instead, which constructs everything from the config
// file.
func New(
	cfg config.Config, log *logrus.Logger, store *storage.Database,
	authSvc *auth.Service, mailer *email.Sender, imgSvc *images.Service,
	limiter *ratelimit.Limiter,
) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		store:   store,
		auth:    authSvc,
		mailer:  mailer,
		images:  imgSvc,
		limiter: limiter,
	}
}

/* ------------------------------------------------------------------
   Init / Run / Close lifecycle
-------------------------------------------------------------------*/

func (a *App) Init() error {
	/* 1. configuration */
	c, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = c

	a.log = logrus.New()
	a.log.SetFormatter(&logrus.JSONFormatter{})

	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is not set (config file or VIZINSPECT_JWT_SECRET)")
	}

	/* 2. database + migrations */
	dsn := db.DSN(c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
	conn, err := db.Connect(dsn)
	if err != nil {
		return err
	}
	if err := db.Migrate(context.Background(), conn); err != nil {
		return err
	}
	a.store = storage.NewDatabase(conn)

	/* 3. services */
	a.auth = auth.NewService(c.JWTSecret, c.SessionExpiryDays)
	a.mailer = email.NewSender(a.store.GetSettings)

	a.images, err = images.NewService(c.Bucket, filepath.Join(c.BaseDir, "viz-inspect-data"))
	if err != nil {
		return err
	}

	if c.RateLimitActive {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		a.limiter = ratelimit.NewLimiter(a.redisClient, a.log, 30, 0.5)
	}

	/* 4. first-start superuser */
	if err := a.bootstrapSuperuser(); err != nil {
		return err
	}
	return nil
}

func (a *App) Run() error {
	addr := fmt.Sprintf("%s:%d", a.cfg.WebHost, a.cfg.WebPort)
	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      a.webRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	a.log.WithField("addr", addr).Info("web server listening")
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) Close() error {
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.httpServer.Shutdown(ctx)
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

/* ------------------------------------------------------------------
   internal helpers
-------------------------------------------------------------------*/

// bootstrapSuperuser creates the initial superuser account on an empty
// database and writes its generated credentials to a file in BaseDir.
func (a *App) bootstrapSuperuser() error {
	n, err := a.store.CountSuperusers()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	password := hex.EncodeToString(raw)

	hash, err := a.auth.HashPassword(password)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	admin := models.User{
		ID:            uuid.New().String(),
		Email:         "admin@localhost",
		FullName:      "Site Administrator",
		PasswordHash:  hash,
		Role:         models.RoleSuperuser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(admin); err != nil {
		return err
	}

	credFile := filepath.Join(a.cfg.BaseDir, ".vizinspect-admin-credentials")
	body := fmt.Sprintf("email: %s\npassword: %s\n", admin.Email, password)
	if err := os.WriteFile(credFile, []byte(body), 0o600); err != nil {
		return err
	}

	a.log.WithField("file", credFile).
		Warn("created initial superuser, credentials written to file, change the password after first login")
	return nil
}
