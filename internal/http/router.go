package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/citifix/backend/internal/composer"
	"github.com/citifix/backend/internal/config"
	"github.com/citifix/backend/internal/db"
	"github.com/citifix/backend/internal/http/handlers"
	"github.com/citifix/backend/internal/http/middleware"
	"github.com/citifix/backend/internal/metrics"
	"github.com/citifix/backend/internal/service"

	_ "github.com/citifix/backend/docs"
)

// Deps are the wired services behind the router. Only Metrics may be nil
// outside setup mode; in setup mode everything but Logger may be nil.
type Deps struct {
	Dashboard *service.Dashboard
	Accounts  *service.Accounts
	Sessions  middleware.SessionResolver
	Repo      db.Repository
	Metrics   *metrics.Metrics
	// UploadDir is served under /uploads when images are kept on local disk.
	UploadDir string
	Logger    zerolog.Logger
}

func Router(cfg config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = strings.Split(cfg.CORSAllowed, ",")
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Dashboard: deps.Dashboard,
		Accounts:  deps.Accounts,
		Repo:      deps.Repo,
		Validator: composer.NewValidator(),
		Logger:    deps.Logger,

		MaxUploadBytes: cfg.MaxUploadSizeMB << 20,
	}

	r.GET("/healthz", h.Healthz)

	if missing := cfg.Missing(); len(missing) > 0 {
		r.Use(middleware.SetupRequired(missing))
		r.NoRoute(func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
		return r
	}

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if deps.UploadDir != "" {
		r.Static("/uploads", deps.UploadDir)
	}

	api := r.Group("/api")
	{
		api.POST("/auth/signup", h.SignUp)
		api.POST("/auth/signin", h.SignIn)
		api.POST("/auth/refresh", h.Refresh)
		api.POST("/auth/reset-password", h.ResetPassword)
		api.GET("/categories", h.Categories)
		api.POST("/locate", h.Locate)
	}

	user := api.Group("")
	user.Use(middleware.RequireSession(deps.Sessions))
	{
		user.GET("/auth/session", h.Session)
		user.POST("/auth/signout", h.SignOut)

		user.POST("/analysis", h.Analyze)
		user.POST("/analysis/select", h.SelectCategory)

		user.GET("/composer", h.ComposerState)
		user.PUT("/composer/location", h.SetLocation)
		user.DELETE("/composer/location", h.ClearLocation)

		user.POST("/reports", h.SubmitReport)
		user.GET("/reports", h.ListReports)
		user.POST("/reports/refresh", h.RefreshReports)
		user.POST("/reports/:id/vote", h.Vote)
		user.GET("/stats", h.Stats)
		user.GET("/me/reports", h.MyReports)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.PATCH("/reports/:id/status", h.SetStatus)
		admin.DELETE("/reports/:id", h.DeleteReport)
	}

	return r
}
