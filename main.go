// @title           RFQ Collaboration API
// @version         1.0
// @description     Multi-tenant RFQ project collaboration backend: locked editing sessions, optimistic project versioning, supplier quote rounds and audit trail.

// @contact.name   API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @schemes http https
package main

import (
	_ "backend/docs"
	"backend/handlers"
	"backend/storage"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"backend/services"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func CORSConfig() cors.Config {
	corsConfig := cors.DefaultConfig()

	origins := []string{"http://localhost:3000", "http://localhost:8080"}
	if env := os.Getenv("ALLOWED_ORIGINS"); env != "" {
		origins = nil
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
	}
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With",
	}
	corsConfig.AllowMethods = []string{
		"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
	}
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

func main() {
	db := storage.InitDB()
	gormDB := storage.InitGormDB()

	if os.Getenv("RUN_MIGRATIONS") == "true" {
		if err := storage.EnsureSchema(db); err != nil {
			log.Fatal("Failed to bootstrap schema:", err)
		}
		log.Println("Schema bootstrap complete")
	}

	// Housekeeping: expired locks are treated as absent everywhere, the
	// sweep just keeps the tables small.
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(log.New(os.Stdout, "cron: ", log.LstdFlags))),
	)
	_, err := c.AddFunc("*/10 * * * *", func() {
		if n, err := services.SweepExpiredLocks(db); err != nil {
			log.Printf("lock sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("lock sweep removed %d expired lock(s)", n)
		}
		if n, err := storage.SweepExpiredSessions(db); err != nil {
			log.Printf("session sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("session sweep removed %d expired session(s)", n)
		}
	})
	if err != nil {
		log.Fatal("Failed to schedule maintenance job:", err)
	}
	c.Start()
	defer c.Stop()

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(cors.New(CORSConfig()))
	r.Use(handlers.RequireSameOrigin())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// Authentication
	r.POST("/api/login", handlers.LoginHandler(db))
	r.POST("/api/refresh-token", handlers.RefreshTokenHandler(db))
	r.POST("/api/logout", handlers.LogoutHandler(db))
	r.GET("/logout", handlers.LogoutHandler(db))
	r.POST("/api/validate-session", handlers.ValidateSession(db))

	// Supplier portal: the opaque token is the credential, no session.
	r.GET("/api/supplier_access/:token", handlers.GetSupplierAccess(db))
	r.POST("/api/supplier_access/:token/save_draft", handlers.SaveSupplierDraft(db))
	r.POST("/api/supplier_access/:token/submit", handlers.SubmitSupplierQuote(db))
	r.POST("/api/supplier_access/:token/request_reopen", handlers.RequestSupplierReopen(db))
	r.POST("/api/supplier_access/:token/upload", handlers.UploadSupplierFile(db))

	// Everything below requires a live session.
	auth := r.Group("/", handlers.RequireSession(db))

	auth.POST("/api/logout-all", handlers.LogoutAllDevicesHandler(db))

	auth.GET("/api/projects", handlers.FetchAllProjects(db))
	auth.POST("/api/projects", handlers.CreateProject(db))
	auth.GET("/api/projects/:id", handlers.FetchProjectByID(db))
	auth.PUT("/api/projects/:id", handlers.UpdateProject(db))
	auth.POST("/api/projects/bulk", handlers.BulkUpdateProjects(db))
	auth.GET("/api/projects/:id/rfq_pdf", handlers.GenerateRFQPdf(db))

	auth.POST("/api/locks/acquire", handlers.AcquireLock(db))
	auth.POST("/api/locks/release", handlers.ReleaseLock(db))
	auth.POST("/api/locks/force_unlock", handlers.ForceUnlock(db))
	auth.GET("/api/locks/status", handlers.LockStatus(db))

	auth.POST("/api/supplier_access/generate", handlers.GenerateSupplierAccess(db))
	auth.POST("/api/supplier_access/:token/approve", handlers.ApproveSupplierSubmission(db))
	auth.GET("/api/supplier_access/:token/rounds", handlers.ListSupplierAccessRounds(db))
	auth.GET("/api/supplier_access/:token/qr", handlers.SupplierAccessQRCode(db))
	auth.GET("/api/supplier_interaction/file/:id", handlers.DownloadSupplierFile(db))

	auth.POST("/api/export", handlers.ExportProjects(db))
	auth.GET("/api/logs", handlers.GetActivityLogsHandler(db))

	auth.GET("/api/quotes", handlers.GetQuotes(gormDB))
	auth.POST("/api/quotes/create", handlers.CreateQuote(gormDB))

	auth.GET("/api/companies", handlers.GetCompanies(gormDB))
	auth.POST("/api/companies", handlers.CreateCompany(gormDB))
	auth.PUT("/api/companies/:id/active", handlers.SetCompanyActive(gormDB))

	auth.POST("/api/users", handlers.CreateUser(db))
	auth.GET("/api/users", handlers.GetAllUsers(db))
	auth.PUT("/api/users/:id/suspend", handlers.SuspendUser(db))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("forced shutdown:", err)
	}
}
