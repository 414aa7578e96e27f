//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func encodeVector(v []float64) []byte {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(x))
	}
	return b
}

func decodeVector(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("corrupt feature blob of %d bytes", len(b))
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}

// SaveFeature stores values unless an entry for (path, kind) exists.
func (c *DBClient) SaveFeature(path, kind string, values []float64) error {
	if err := c.ready(); err != nil {
		return err
	}
	row := FeatureVector{Path: path, Kind: kind, Values: encodeVector(values)}
	err := c.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving %s feature for %s: %w", kind, path, err)
	}
	return nil
}

// LoadFeature returns the stored vector; found is false when absent.
func (c *DBClient) LoadFeature(path, kind string) (values []float64, found bool, err error) {
	if err := c.ready(); err != nil {
		return nil, false, err
	}
	var row FeatureVector
	err = c.DB.Where("path = ? AND kind = ?", path, kind).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading %s feature for %s: %w", kind, path, err)
	}
	values, err = decodeVector(row.Values)
	if err != nil {
		return nil, false, err
	}
	return values, true, nil
}

func (c *DBClient) DeleteFeatures(path string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Where("path = ?", path).Delete(&FeatureVector{}).Error
}

func (c *DBClient) ClearFeatures() error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&FeatureVector{}).Error
}

func (c *DBClient) FeatureCount() (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	var n int64
	if err := c.DB.Model(&FeatureVector{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

type Logger interface {
	Warnf(format string, args ...any)
}

// FeatureStore exposes the feature table as a features.Cache so summary
// vectors survive restarts. Storage errors are logged and treated as misses.
type FeatureStore struct {
	db  *DBClient
	log Logger
}

func NewFeatureStore(db *DBClient, log Logger) *FeatureStore {
	return &FeatureStore{db: db, log: log}
}

func (s *FeatureStore) warnf(format string, args ...any) {
	if s.log != nil {
		s.log.Warnf(format, args...)
	}
}

func (s *FeatureStore) Get(kind features.Kind, key string) (features.Vector, bool) {
	v, ok, err := s.db.LoadFeature(key, string(kind))
	if err != nil {
		s.warnf("feature store read: %v", err)
		return nil, false
	}
	return v, ok
}

func (s *FeatureStore) Put(kind features.Kind, key string, v features.Vector) features.Vector {
	if err := s.db.SaveFeature(key, string(kind), v); err != nil {
		s.warnf("feature store write: %v", err)
		return v
	}
	if stored, ok := s.Get(kind, key); ok {
		return stored
	}
	return v
}

func (s *FeatureStore) Invalidate(key string) {
	if err := s.db.DeleteFeatures(key); err != nil {
		s.warnf("feature store invalidate %s: %v", key, err)
	}
}

func (s *FeatureStore) Clear() {
	if err := s.db.ClearFeatures(); err != nil {
		s.warnf("feature store clear: %v", err)
	}
}
