// Package admin serves the /api/admin routes: college overrides, cache
// control, session tokens, ledger backups, the audit log and partner API keys.
package admin

import (
	"context"

	"github.com/sahilchouksey/college-explorer-api/database"
	"github.com/sahilchouksey/college-explorer-api/services/apikey"
	"github.com/sahilchouksey/college-explorer-api/services/backup"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/utils/auth"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/middleware"
	"github.com/sahilchouksey/college-explorer-api/utils/validation"
)

// Config carries the admin handler dependencies. Backup and DB are nil when
// the optional integrations are not configured.
type Config struct {
	Store      *datastore.Store
	Responses  *cache.Store
	Keys       *apikey.Service
	Backup     *backup.LedgerBackup
	DB         *database.GORMStore
	Guard      *middleware.AdminAuth
	JWT        *auth.JWTManager
	Blacklist  *auth.BlacklistService
	BruteForce *middleware.BruteForceProtection
}

// AdminHandler handles admin requests
type AdminHandler struct {
	store      *datastore.Store
	responses  *cache.Store
	keys       *apikey.Service
	backup     *backup.LedgerBackup
	db         *database.GORMStore
	guard      *middleware.AdminAuth
	jwt        *auth.JWTManager
	blacklist  *auth.BlacklistService
	bruteForce *middleware.BruteForceProtection
	validator  *validation.Validator
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cfg Config) *AdminHandler {
	return &AdminHandler{
		store:      cfg.Store,
		responses:  cfg.Responses,
		keys:       cfg.Keys,
		backup:     cfg.Backup,
		db:         cfg.DB,
		guard:      cfg.Guard,
		jwt:        cfg.JWT,
		blacklist:  cfg.Blacklist,
		bruteForce: cfg.BruteForce,
		validator:  validation.NewValidator(),
	}
}

// purgeResponses drops memoized list responses after a data change. Failures
// only delay freshness until the entries expire.
func (h *AdminHandler) purgeResponses(ctx context.Context) {
	if h.responses == nil {
		return
	}
	n, err := h.responses.PurgeResponses(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to purge memoized responses")
		return
	}
	logger.Debug().Int("keys", n).Msg("memoized responses purged")
}
