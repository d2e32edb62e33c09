package storage

import (
	"errors"
	"path/filepath"
	"strings"
)

const dbFileName = "stockqa.db"

// ErrDataDirNotConfigured indicates config.DataDir is empty.
var ErrDataDirNotConfigured = errors.New("data_dir is not configured")

// OpenInDataDir opens the journal at dataDir/stockqa.db.
func OpenInDataDir(dataDir string) (*Store, error) {
	dataDir = strings.TrimSpace(dataDir)
	if dataDir == "" {
		return nil, ErrDataDirNotConfigured
	}
	return Open(filepath.Join(dataDir, dbFileName))
}
