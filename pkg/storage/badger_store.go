package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-toc/pkg/log"
	"github.com/Sriram-PR/doc-toc/pkg/models"
	"github.com/Sriram-PR/doc-toc/pkg/utils"
)

const (
	pageKeyPrefix = "page:"    // Prefix for page path keys in DB
	stateDBDir    = "state_db" // Subdirectory name within stateDir for Badger DB files
)

// BadgerStore implements the StateStore interface using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) GetPageCount
}

// NewBadgerStore opens the build state DB for a site.
// Without resume, any state from previous builds is discarded first.
func NewBadgerStore(ctx context.Context, stateDir, siteKey string, resume bool, logger *logrus.Entry) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store := &BadgerStore{log: logger}

	dbPath := filepath.Join(stateDir, sanitizeKey(siteKey)+"_"+stateDBDir)

	if !resume {
		logger.Debugf("Resume is off, removing existing state directory: %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
		}
	}

	logger.Infof("Initializing build state database at: %s (Resume: %v)", dbPath, resume)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogger(logger)).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	if resume {
		count, err := store.countKeys()
		if err != nil {
			logger.Warnf("Failed to count existing keys on resume: %v", err)
		} else {
			store.keyCount.Store(int64(count))
			logger.Infof("Loaded existing page count on resume: %d", count)
		}
	}

	return store, nil
}

// sanitizeKey maps a site key to a safe directory name component
func sanitizeKey(key string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, key)
	cleaned = strings.Trim(cleaned, "._")
	if cleaned == "" {
		return "site"
	}
	return cleaned
}

// countKeys performs a one-time full key scan (used only during initialization on resume).
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(pageKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const (
	maxConflictRetries = 10
	conflictRetryDelay = 5 * time.Millisecond
	conflictMaxDelay   = 100 * time.Millisecond
)

// dbUpdate wraps db.Update, retrying BadgerDB transaction conflicts with backoff.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	err := retry.Do(
		func() error { return s.db.Update(fn) },
		retry.Attempts(maxConflictRetries),
		retry.Delay(conflictRetryDelay),
		retry.MaxDelay(conflictMaxDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, badger.ErrConflict) }),
		retry.OnRetry(func(n uint, err error) {
			s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", n+1, maxConflictRetries)
		}),
		retry.LastErrorOnly(true),
	)
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
	}
	return err
}

// CheckPageStatus implements the PageStore interface
func (s *BadgerStore) CheckPageStatus(pagePath string) (models.PageStatus, *models.PageEntry, error) {
	status := models.PageStatusNotFound
	var entry *models.PageEntry
	key := []byte(pageKeyPrefix + pagePath)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting page key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			var decoded models.PageEntry
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				// A corrupt entry forces a rebuild of the page
				s.log.Warnf("Failed to unmarshal PageEntry for key '%s': %v. Treating as not found.", string(key), errJSON)
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB View error in CheckPageStatus for key '%s': %v", string(key), errView)
		return models.PageStatusDBError, nil, errView
	}
	return status, entry, nil
}

// UpdatePage implements the PageStore interface
func (s *BadgerStore) UpdatePage(pagePath string, entry *models.PageEntry) error {
	if s.db == nil {
		return fmt.Errorf("%w: state DB not initialized", utils.ErrDatabase)
	}
	key := []byte(pageKeyPrefix + pagePath)

	entryBytes, errJSON := json.Marshal(entry)
	if errJSON != nil {
		return fmt.Errorf("%w: failed to marshal JSON PageEntry for key '%s': %w", utils.ErrParsing, string(key), errJSON)
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in UpdatePage: %v", err)
		return fmt.Errorf("%w: failed setting page state for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}

	s.log.Debugf("Updated page state for key '%s' to '%s'", string(key), entry.Status)
	return nil
}

// GetPageCount implements the StoreAdmin interface
func (s *BadgerStore) GetPageCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC runs BadgerDB's value log garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for {
				// Rewrite while at least half of a value log file is reclaimable
				if err = s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB GC: %v", ctx.Err())
			return
		}
	}
}

// Close implements the StoreAdmin interface
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		if err := s.db.Close(); err != nil {
			s.log.Errorf("Error closing state DB: %v", err)
			return fmt.Errorf("%w: closing state DB: %w", utils.ErrDatabase, err)
		}
		s.log.Debug("State DB closed.")
	}
	return nil
}
