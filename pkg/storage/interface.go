package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/doc-toc/pkg/models"
)

// PageStore handles per-page build state
type PageStore interface {
	// CheckPageStatus retrieves the status and details of a page path
	// Returns status (PageStatusSuccess, PageStatusSkipped, PageStatusFailure, PageStatusNotFound, PageStatusDBError),
	// the PageEntry if found and parsed, and any error
	CheckPageStatus(pagePath string) (status models.PageStatus, entry *models.PageEntry, err error)

	// UpdatePage stores the result of processing a page path
	UpdatePage(pagePath string, entry *models.PageEntry) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// GetPageCount returns the number of pages tracked in the store
	GetPageCount() (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}

// StateStore combines all store interfaces for components that need full access
type StateStore interface {
	PageStore
	StoreAdmin
}
