package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/config"
	"github.com/sahilchouksey/college-explorer-api/database"
	"github.com/sahilchouksey/college-explorer-api/handlers"
	admin_handlers "github.com/sahilchouksey/college-explorer-api/handlers/admin"
	college_handlers "github.com/sahilchouksey/college-explorer-api/handlers/college"
	exam_handlers "github.com/sahilchouksey/college-explorer-api/handlers/exam"
	review_handlers "github.com/sahilchouksey/college-explorer-api/handlers/review"
	search_handlers "github.com/sahilchouksey/college-explorer-api/handlers/search"
	stats_handlers "github.com/sahilchouksey/college-explorer-api/handlers/stats"
	user_handlers "github.com/sahilchouksey/college-explorer-api/handlers/user"
	"github.com/sahilchouksey/college-explorer-api/services/apikey"
	"github.com/sahilchouksey/college-explorer-api/services/backup"
	"github.com/sahilchouksey/college-explorer-api/services/catalog"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/services/userdata"
	"github.com/sahilchouksey/college-explorer-api/utils/auth"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/middleware"
)

// Rate limits
const (
	IPRateLimit     = 100
	IPRateWindow    = 15 * time.Minute
	SearchRateLimit = 30
	SearchWindow    = time.Minute
)

// Dependencies are the long-lived components built at startup. DB and Backup
// are nil when Postgres or object storage are not configured.
type Dependencies struct {
	Env      *config.EnviornmentVariable
	Provider *cache.ClientProvider
	Store    *datastore.Store
	DB       *database.GORMStore
	Backup   *backup.LedgerBackup
	// DisableAccessLog silences the request logger (tests)
	DisableAccessLog bool
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	env := deps.Env

	redisCache := cache.NewRedisCache(deps.Provider)
	responses := cache.NewStore(deps.Provider)
	catalogService := catalog.NewService(deps.Store)
	apiKeyService := apikey.NewService(deps.Provider)

	// Initialize JWT manager with config
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: env.JWT_SECRET,
		Issuer: env.JWT_ISSUER,
	})
	if !jwtManager.Enabled() {
		logger.Warn().Msg("JWT_SECRET is not set; admin session tokens are disabled")
	}
	blacklist := auth.NewBlacklistService(redisCache)
	bruteForceProtection := middleware.NewBruteForceProtection(redisCache)
	adminAuth := middleware.NewAdminAuth(env.ADMIN_SECRET, jwtManager, blacklist)
	if !adminAuth.Configured() {
		logger.Warn().Msg("ADMIN_SECRET is not set; admin routes will answer 500")
	}

	responseTTL := time.Duration(env.RESPONSE_CACHE_TTL_SECONDS) * time.Second

	healthHandler := handlers.NewHealthHandler(deps.Provider, deps.Store, deps.DB)
	collegeHandler := college_handlers.NewCollegeHandler(deps.Store, catalogService, responses, responseTTL)
	examHandler := exam_handlers.NewExamHandler(catalogService)
	searchHandler := search_handlers.NewSearchHandler(catalogService)
	statsHandler := stats_handlers.NewStatsHandler(deps.Store, responses)
	userHandler := user_handlers.NewUserHandler(userdata.NewService(deps.Provider, deps.Store.DataDir()))

	// a nil *GORMStore must not become a non-nil interface
	var reviewStore review_handlers.Store
	if deps.DB != nil {
		reviewStore = deps.DB
	}
	reviewHandler := review_handlers.NewReviewHandler(reviewStore)

	adminHandler := admin_handlers.NewAdminHandler(admin_handlers.Config{
		Store:      deps.Store,
		Responses:  responses,
		Keys:       apiKeyService,
		Backup:     deps.Backup,
		DB:         deps.DB,
		Guard:      adminAuth,
		JWT:        jwtManager,
		Blacklist:  blacklist,
		BruteForce: bruteForceProtection,
	})

	// Apply security middleware
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: IPRateLimit,
		RateLimitWindow:   IPRateWindow,
		APIKeyAuth:        middleware.NewAPIKeyMiddleware(apiKeyService).Authenticate(),
		DisableAccessLog:  deps.DisableAccessLog,
	})

	app.Get("/ping", healthHandler.Ping)

	api := app.Group("/api")
	api.Get("/health", healthHandler.Check)

	// Colleges
	api.Get("/colleges", collegeHandler.ListColleges)
	api.Get("/colleges/batch", collegeHandler.BatchColleges)
	api.Get("/college/:id", collegeHandler.GetCollege)
	api.Get("/states/stats", collegeHandler.StateStats)
	api.Get("/filters", collegeHandler.Filters)

	// Exams
	api.Get("/exams", examHandler.ListExams)
	api.Get("/exam/:id", examHandler.GetExam)

	// Search
	searchLimiter := middleware.SearchLimiter(SearchRateLimit, SearchWindow)
	api.Get("/search", searchLimiter, searchHandler.Search)
	api.Get("/suggest", searchLimiter, searchHandler.Suggest)

	api.Get("/stats/aggregate", statsHandler.Aggregate)

	// User choice lists and shared roadmaps
	user := api.Group("/user")
	user.Get("/choices", userHandler.GetChoices)
	user.Post("/choices", userHandler.SaveChoices)
	user.Post("/share", userHandler.Share)
	user.Get("/share/:id", userHandler.GetShared)

	// Reviews
	api.Get("/reviews/:collegeId", reviewHandler.GetReviews)
	api.Post("/reviews", reviewHandler.CreateReview)

	// Admin session exchange sits outside the guard and behind the lockout
	api.Post("/admin/session", bruteForceProtection.CheckAndRecordAttempt(), adminHandler.CreateSession)

	db := deps.DB.DB()
	admin := api.Group("/admin", adminAuth.Required())
	admin.Delete("/session", adminHandler.RevokeSession)

	admin.Get("/colleges", adminHandler.ListColleges)
	admin.Post("/colleges", middleware.AdminAuditLog(db, "college_save", "colleges"), adminHandler.SaveCollege)
	admin.Delete("/colleges/:id", middleware.AdminAuditLog(db, "college_delete", "colleges"), adminHandler.DeleteCollege)

	admin.Get("/cache/status", adminHandler.CacheStatus)
	admin.Post("/cache/invalidate", middleware.AdminAuditLog(db, "cache_invalidate", "cache"), adminHandler.InvalidateCache)

	admin.Post("/ledger/backup", middleware.AdminAuditLog(db, "ledger_backup", "ledger"), adminHandler.BackupLedger)
	admin.Get("/ledger/snapshots", adminHandler.ListSnapshots)
	admin.Post("/ledger/restore", middleware.AdminAuditLog(db, "ledger_restore", "ledger"), adminHandler.RestoreLedger)

	admin.Get("/audit", adminHandler.ListAuditLogs)

	admin.Get("/api-keys", adminHandler.ListAPIKeys)
	admin.Post("/api-keys", middleware.AdminAuditLog(db, "api_key_create", "api_keys"), adminHandler.GenerateAPIKey)
	admin.Delete("/api-keys/:id", middleware.AdminAuditLog(db, "api_key_deactivate", "api_keys"), adminHandler.DeactivateAPIKey)
}
