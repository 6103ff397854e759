package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sahilchouksey/college-explorer-api/config"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrUnavailable is returned when the optional Postgres store is not configured.
var ErrUnavailable = errors.New("database is not configured")

// RecentReviewLimit is how many approved reviews a college page shows.
const RecentReviewLimit = 20

type GORMStore struct {
	db *gorm.DB
}

// NewGORMStore wraps an open connection. Tests use it with their own DSN.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

// StartGORM initializes a GORM connection to PostgreSQL. It returns
// ErrUnavailable when the DB_* variables are not set.
func StartGORM(env *config.EnviornmentVariable) (*GORMStore, error) {
	if !env.DatabaseConfigured() {
		return nil, ErrUnavailable
	}

	sslMode := env.DB_SSL_MODE
	if sslMode == "" {
		sslMode = "disable"
	}

	// Build DSN (Data Source Name)
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		env.DB_HOST,
		env.DB_USER_NAME,
		env.DB_PASSWORD,
		env.DB_NAME,
		env.DB_PORT,
		sslMode,
	)

	// Configure GORM logger
	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if env.IsProduction() {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to PostgreSQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info().Str("host", env.DB_HOST).Str("db", env.DB_NAME).Msg("connected to PostgreSQL")

	return &GORMStore{db: db}, nil
}

// Init runs the AutoMigrate to create/update tables
func (s *GORMStore) Init() error {
	logger.Info().Msg("running GORM AutoMigrate")

	err := s.db.AutoMigrate(
		&model.Review{},
		&model.AdminAuditLog{},
		&model.CronJobLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	logger.Info().Msg("closing PostgreSQL connection")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the GORM handle for components that write their own rows
func (s *GORMStore) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AddReview stores a review. New reviews are approved immediately.
func (s *GORMStore) AddReview(ctx context.Context, review *model.Review) error {
	if review.Status == "" {
		review.Status = model.ReviewApproved
	}
	return s.db.WithContext(ctx).Create(review).Error
}

// ReviewSummary returns the newest approved reviews of a college together
// with the average rating (one decimal) and count over all approved reviews.
func (s *GORMStore) ReviewSummary(ctx context.Context, collegeID string) (model.ReviewSummary, error) {
	summary := model.ReviewSummary{Reviews: []model.Review{}}

	approved := s.db.WithContext(ctx).Model(&model.Review{}).
		Where("college_id = ? AND status = ?", collegeID, model.ReviewApproved)

	if err := approved.Session(&gorm.Session{}).
		Order("created_at DESC").
		Limit(RecentReviewLimit).
		Find(&summary.Reviews).Error; err != nil {
		return summary, err
	}

	var agg struct {
		Avg   *float64
		Count int64
	}
	if err := approved.Session(&gorm.Session{}).
		Select("AVG(rating) AS avg, COUNT(*) AS count").
		Scan(&agg).Error; err != nil {
		return summary, err
	}
	summary.TotalReviews = agg.Count
	if agg.Avg != nil {
		summary.AvgRating = roundTenth(*agg.Avg)
	}
	return summary, nil
}

// AuditLogs returns admin audit entries, newest first, optionally filtered by action.
func (s *GORMStore) AuditLogs(ctx context.Context, action string, page, limit int) ([]model.AdminAuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.AdminAuditLog{})
	if action != "" {
		query = query.Where("action = ?", action)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	logs := []model.AdminAuditLog{}
	offset := (page - 1) * limit
	if err := query.Session(&gorm.Session{}).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func roundTenth(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
