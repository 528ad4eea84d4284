package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	govalidator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ebookviewer/internal/cache"
	"ebookviewer/internal/config"
	"ebookviewer/internal/database"
	"ebookviewer/internal/domain/admin"
	"ebookviewer/internal/domain/auth"
	"ebookviewer/internal/domain/book"
	"ebookviewer/internal/domain/coupon"
	"ebookviewer/internal/domain/premium"
	"ebookviewer/internal/domain/upload"
	"ebookviewer/internal/events"
	"ebookviewer/internal/middleware"
	"ebookviewer/internal/pkg/jwt"
	"ebookviewer/internal/pkg/response"
	"ebookviewer/internal/pkg/validator"
	"ebookviewer/internal/repository"
)

type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Lists     cache.BookLists
	Publisher events.Publisher
}

// App holds the assembled router and the services cmd/api needs at startup.
type App struct {
	Router *gin.Engine
	Auth   *auth.Service
	Tokens *jwt.Service
	Files  *upload.Service
}

func New(d Deps) (*App, error) {
	cfg := d.Config
	log := d.Log
	if d.Lists == nil {
		d.Lists = cache.Noop{}
	}
	if d.Publisher == nil {
		d.Publisher = events.Noop{}
	}

	userRepo := repository.NewUserRepository(d.DB)
	bookRepo := repository.NewBookRepository(d.DB)
	couponRepo := repository.NewCouponRepository(d.DB)

	tokens := jwt.New(cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	files, err := upload.NewService(cfg.Server.UploadDir, cfg.Server.MaxUploadBytes, log)
	if err != nil {
		return nil, err
	}

	authService := auth.NewService(userRepo, tokens, d.Publisher, auth.AdminAccount{
		Username: cfg.Auth.AdminUsername,
		Password: cfg.Auth.AdminPassword,
		Email:    cfg.Auth.AdminEmail,
	}, log)
	authHandler := auth.NewHandler(authService, log)

	premiumHandler := premium.NewHandler(premium.NewService(userRepo, log), log)
	couponHandler := coupon.NewHandler(coupon.NewService(couponRepo, d.Publisher, cfg.Coupon.DurationDays, log), log)
	adminHandler := admin.NewHandler(admin.NewService(userRepo, d.Publisher, log), log)
	bookHandler := book.NewHandler(book.NewService(bookRepo, files, d.Lists, d.Publisher, log), files.MaxSize(), log)

	if cfg.App.Env == "test" || config.IsProdLike(cfg.App.Env) {
		gin.SetMode(gin.ReleaseMode)
	}
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		validator.UseJSONFieldNames(v)
	}
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	r.GET("/healthz", healthHandler(d.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	files.RegisterStatic(r)

	authHandler.RegisterPublicRoutes(r)
	bookHandler.RegisterPublicRoutes(r)

	protected := r.Group("/")
	protected.Use(middleware.JWTAuth(tokens, userRepo, log))
	{
		authHandler.RegisterProtectedRoutes(protected)
		premiumHandler.RegisterProtectedRoutes(protected)
		couponHandler.RegisterProtectedRoutes(protected)
		bookHandler.RegisterProtectedRoutes(protected)

		adminOnly := protected.Group("/")
		adminOnly.Use(middleware.AdminOnly())
		couponHandler.RegisterAdminRoutes(adminOnly)
		adminHandler.RegisterRoutes(adminOnly)
	}

	r.NoRoute(spaFallback(cfg.Server.BuildDir))

	return &App{Router: r, Auth: authService, Tokens: tokens, Files: files}, nil
}

// Handler wraps the router with request tracing.
func (a *App) Handler() http.Handler {
	return otelhttp.NewHandler(a.Router, "ebookviewer",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			response.Error(c, http.StatusServiceUnavailable, response.CodeInternal, "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// spaFallback serves the client bundle for unknown GET routes so client-side
// routing works. Without a build directory every unknown route is a 404.
func spaFallback(buildDir string) gin.HandlerFunc {
	index := filepath.Join(buildDir, "index.html")
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || buildDir == "" {
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "Not found")
			return
		}
		if asset := filepath.Join(buildDir, filepath.Clean("/"+c.Request.URL.Path)); asset != buildDir && fileExists(asset) {
			c.File(asset)
			return
		}
		if !fileExists(index) {
			response.Error(c, http.StatusNotFound, response.CodeNotFound, fmt.Sprintf("Not found: %s", strings.TrimPrefix(c.Request.URL.Path, "/")))
			return
		}
		c.File(index)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
