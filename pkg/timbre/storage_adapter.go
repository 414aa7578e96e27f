package timbre

import (
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/features"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre/storage"
)

// storageAdapter adapts storage.DBClient to the Storage interface.
type storageAdapter struct {
	*storage.DBClient
}

// NewSQLiteStorage opens (or creates) the sqlite library at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{DBClient: db}, nil
}

func (s *storageAdapter) FeatureCache(log Logger) features.Cache {
	return storage.NewFeatureStore(s.DBClient, log)
}
