package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageStatus_String(t *testing.T) {
	tests := []struct {
		status PageStatus
		want   string
	}{
		{PageStatusUnset, "unset"},
		{PageStatusSuccess, "success"},
		{PageStatusSkipped, "skipped"},
		{PageStatusFailure, "failure"},
		{PageStatusNotFound, "not_found"},
		{PageStatusDBError, "db_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestPageStatus_IsValid(t *testing.T) {
	tests := []struct {
		status PageStatus
		want   bool
	}{
		{PageStatusSuccess, true},
		{PageStatusSkipped, true},
		{PageStatusFailure, true},
		{PageStatusUnset, false},
		{PageStatusNotFound, false},
		{PageStatusDBError, false},
		{PageStatus("bogus"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsValid(), "status %q", tt.status)
	}
}
