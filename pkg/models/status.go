package models

// PageStatus represents the processing status of a page in the build state DB
type PageStatus string

const (
	PageStatusUnset    PageStatus = ""          // Zero value = unset/unknown
	PageStatusSuccess  PageStatus = "success"   // Page written with its table of contents
	PageStatusSkipped  PageStatus = "skipped"   // Source unchanged since the last successful build
	PageStatusFailure  PageStatus = "failure"   // Page processing failed
	PageStatusNotFound PageStatus = "not_found" // Page not in database
	PageStatusDBError  PageStatus = "db_error"  // Database error occurred
)

// String implements fmt.Stringer for logging
func (s PageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s PageStatus) IsValid() bool {
	switch s {
	case PageStatusSuccess, PageStatusSkipped, PageStatusFailure:
		return true
	}
	return false
}
