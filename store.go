package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Dataset store errors.
var (
	ErrNoDataset    = errors.New("no dataset uploaded yet")
	ErrBackupFailed = errors.New("backup copy failed")
	ErrWriteFailed  = errors.New("dataset write failed")
)

// CsvStore owns the live dataset file and its timestamped backups.
// The live file is replaced, never edited in place: Replace snapshots the
// previous dataset into the backup directory before installing the new one.
type CsvStore struct {
	DataDir string
}

// NewCsvStore returns a store rooted at dataDir.
func NewCsvStore(dataDir string) *CsvStore {
	return &CsvStore{DataDir: dataDir}
}

func (s *CsvStore) livePath() string {
	return filepath.Join(s.DataDir, DatasetFilename)
}

// BackupDir returns the directory holding dataset backups and the token store.
func (s *CsvStore) BackupDir() string {
	return filepath.Join(s.DataDir, BackupDirName)
}

// Read returns the live dataset content and its file info.
// Returns ErrNoDataset if nothing has been uploaded yet.
func (s *CsvStore) Read() ([]byte, DatasetInfo, error) {
	info, err := os.Stat(s.livePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, DatasetInfo{}, ErrNoDataset
		}
		return nil, DatasetInfo{}, err
	}

	content, err := os.ReadFile(s.livePath())
	if err != nil {
		return nil, DatasetInfo{}, err
	}

	return content, DatasetInfo{
		Size:     info.Size(),
		Modified: info.ModTime(),
		RowCount: countDataRows(string(content)),
	}, nil
}

// Replace installs newContent as the live dataset. If a dataset already
// exists it is first copied byte-for-byte into the backup directory under a
// second-resolution timestamp name; two replacements within the same second
// reuse the name and the later backup overwrites the earlier one. The backup
// must succeed before the live file is touched. The install itself is staged
// to a temp file and renamed into place.
func (s *CsvStore) Replace(newContent []byte) (DatasetInfo, error) {
	if err := os.MkdirAll(s.DataDir, 0755); err != nil {
		return DatasetInfo{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	previous, err := os.ReadFile(s.livePath())
	switch {
	case err == nil:
		if backupErr := s.writeBackup(previous); backupErr != nil {
			return DatasetInfo{}, backupErr
		}
	case os.IsNotExist(err):
		// First upload, nothing to snapshot.
	default:
		return DatasetInfo{}, fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	staged := s.livePath() + ".tmp"
	if err := os.WriteFile(staged, newContent, 0644); err != nil {
		return DatasetInfo{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Rename(staged, s.livePath()); err != nil {
		os.Remove(staged)
		return DatasetInfo{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	info, err := os.Stat(s.livePath())
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	return DatasetInfo{
		Size:     info.Size(),
		Modified: info.ModTime(),
		RowCount: countDataRows(string(newContent)),
	}, nil
}

func (s *CsvStore) writeBackup(previous []byte) error {
	if err := os.MkdirAll(s.BackupDir(), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	backupName := BackupPrefix + time.Now().Format(BackupTimestamp) + ".csv"
	backupPath := filepath.Join(s.BackupDir(), backupName)
	if err := os.WriteFile(backupPath, previous, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	logInfo("Snapshotted previous dataset to %s (%d bytes)", backupName, len(previous))
	return nil
}

// Info describes the live dataset. Returns ErrNoDataset when absent.
func (s *CsvStore) Info() (DatasetInfo, error) {
	_, info, err := s.Read()
	return info, err
}

// countDataRows counts non-empty lines minus the header line, floored at 0.
func countDataRows(content string) int {
	lines := lo.CountBy(strings.Split(content, "\n"), func(line string) bool {
		return strings.TrimSpace(line) != ""
	})
	if lines <= 1 {
		return 0
	}
	return lines - 1
}
