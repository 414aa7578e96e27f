//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/himanishpuri/TimbreMatch/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "timbrematch.sqlite3"
const errDBClientNil = "db client is nil"

// DBPathEnv overrides DefaultDBFile for NewDBClient.
const DBPathEnv = "TIMBRE_DB_PATH"

var ErrTrackNotFound = errors.New("track not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Track struct {
	ID              string  `gorm:"primaryKey;type:varchar(36)"`
	Path            string  `gorm:"uniqueIndex:idx_track_path" json:"path"`
	Title           string  `gorm:"index:idx_track_title" json:"title"`
	DurationSeconds float64 `json:"duration"`
	SampleRate      int     `json:"sample_rate"`
	CreatedAt       time.Time
}

// FeatureVector is a cached summary vector, keyed by source path and kind.
type FeatureVector struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Path      string `gorm:"uniqueIndex:idx_feature_key,priority:1;index:idx_feature_path"`
	Kind      string `gorm:"uniqueIndex:idx_feature_key,priority:2;type:varchar(32)"`
	Values    []byte
	CreatedAt time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv(DBPathEnv)
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Track{}, &FeatureVector{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) ready() error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return nil
}

func toModel(t Track) models.Track {
	return models.Track{
		ID:              t.ID,
		Path:            t.Path,
		Title:           t.Title,
		DurationSeconds: t.DurationSeconds,
		SampleRate:      t.SampleRate,
		AddedAt:         t.CreatedAt,
	}
}

// AddTrack registers a track by path. Adding a path that is already present
// returns the existing row with created == false.
func (c *DBClient) AddTrack(path, title string, durationSeconds float64, sampleRate int) (track models.Track, created bool, err error) {
	if err := c.ready(); err != nil {
		return models.Track{}, false, err
	}

	var row Track
	err = c.DB.Where("path = ?", path).First(&row).Error
	if err == nil {
		return toModel(row), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Track{}, false, fmt.Errorf("querying existing track: %w", err)
	}

	row = Track{
		ID:              uuid.NewString(),
		Path:            path,
		Title:           title,
		DurationSeconds: durationSeconds,
		SampleRate:      sampleRate,
	}
	if err := c.DB.Create(&row).Error; err != nil {
		// lost a race with a concurrent insert of the same path
		if fetchErr := c.DB.Where("path = ?", path).First(&row).Error; fetchErr == nil {
			return toModel(row), false, nil
		}
		return models.Track{}, false, fmt.Errorf("creating track: %w", err)
	}
	return toModel(row), true, nil
}

func (c *DBClient) GetTrackByID(id string) (*models.Track, error) {
	return c.findTrack("id = ?", id)
}

func (c *DBClient) GetTrackByPath(path string) (*models.Track, error) {
	return c.findTrack("path = ?", path)
}

func (c *DBClient) findTrack(query string, arg any) (*models.Track, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row Track
	if err := c.DB.Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrTrackNotFound, arg)
		}
		return nil, fmt.Errorf("querying track: %w", err)
	}
	t := toModel(row)
	return &t, nil
}

// ListTracks returns tracks in insertion order.
func (c *DBClient) ListTracks() ([]models.Track, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []Track
	if err := c.DB.Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	out := make([]models.Track, len(rows))
	for i, r := range rows {
		out[i] = toModel(r)
	}
	return out, nil
}

func (c *DBClient) TrackCount() (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	var n int64
	if err := c.DB.Model(&Track{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// DeleteTrackByID removes the track and every cached feature of its path.
func (c *DBClient) DeleteTrackByID(id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		var row Track
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
			}
			return err
		}
		if err := tx.Where("path = ?", row.Path).Delete(&FeatureVector{}).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
}
