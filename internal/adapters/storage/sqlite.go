package storage

import (
	"context"
	"errors"
	"slices"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

// SQLiteAdapter implements ports.PositionStore using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// PositionModel is the GORM model for a delivered fix.
type PositionModel struct {
	ID               string `gorm:"primaryKey"`
	Latitude         float64
	Longitude        float64
	Altitude         *float64
	Accuracy         float64
	AltitudeAccuracy *float64
	Heading          *float64
	Speed            *float64
	Timestamp        int64  `gorm:"index"`
	Source           string // current, watch
	WatchID          uint64
	RecordedAt       time.Time `gorm:"index"`
}

// NewSQLiteAdapter opens the database at path and migrates the schema.
// Queries are traced through the global OpenTelemetry provider.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&PositionModel{}); err != nil {
		return nil, err
	}

	return &SQLiteAdapter{db: db}, nil
}

// SaveFix stores a single fix. Saving the same record twice is a no-op.
func (a *SQLiteAdapter) SaveFix(ctx context.Context, rec domain.FixRecord) error {
	model := toModel(rec)
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// SaveFixesBatch saves multiple fixes in a single transaction.
func (a *SQLiteAdapter) SaveFixesBatch(ctx context.Context, recs []domain.FixRecord) error {
	if len(recs) == 0 {
		return nil
	}

	models := make([]PositionModel, len(recs))
	for i, r := range recs {
		models[i] = toModel(r)
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(models, 100).Error
	})
}

// LastFix returns the newest stored fix by position timestamp, or nil when
// the store is empty.
func (a *SQLiteAdapter) LastFix(ctx context.Context) (*domain.FixRecord, error) {
	var model PositionModel
	err := a.db.WithContext(ctx).Order("timestamp DESC").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := toDomain(model)
	return &rec, nil
}

// History returns stored fixes in chronological order.
func (a *SQLiteAdapter) History(ctx context.Context, filter domain.HistoryFilter) ([]domain.FixRecord, error) {
	query := a.db.WithContext(ctx)

	if !filter.Since.IsZero() {
		query = query.Where("timestamp >= ?", filter.Since.UnixMilli())
	}

	var models []PositionModel
	if filter.Limit > 0 {
		// newest N, flipped back to chronological order below
		if err := query.Order("timestamp DESC").Limit(filter.Limit).Find(&models).Error; err != nil {
			return nil, err
		}
		slices.Reverse(models)
	} else if err := query.Order("timestamp ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	recs := make([]domain.FixRecord, len(models))
	for i, m := range models {
		recs[i] = toDomain(m)
	}
	return recs, nil
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure interface compliance
var _ ports.PositionStore = (*SQLiteAdapter)(nil)
