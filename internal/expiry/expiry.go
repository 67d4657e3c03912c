// Package expiry implements the pure expiry decision for uploaded files and
// the parsing of the upload-time expiry selector (e.g. "7days", "10downloads").
// It performs no I/O; callers supply the current time.
package expiry

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"filedrop/internal/model"
)

// Reason reports why (or whether) a file is expired.
type Reason int

const (
	NotExpired Reason = iota
	ByDate
	ByDownloads
)

// ErrInvalidSelector is returned for selectors that do not match
// <digits>days or <digits>downloads with a positive value.
var ErrInvalidSelector = errors.New("invalid expiry selector")

// Evaluate applies the expiry rule for a file.
//
// days: expired strictly after uploadedAt + value days.
// downloads: expired once downloadCount reaches value, so the Nth download
// is the last one permitted.
// none (or anything unrecognized): never expired.
func Evaluate(t model.ExpiryType, value int, uploadedAt time.Time, downloadCount int, now time.Time) Reason {
	switch t {
	case model.ExpiryDays:
		deadline := uploadedAt.Add(time.Duration(value) * 24 * time.Hour)
		if now.After(deadline) {
			return ByDate
		}
	case model.ExpiryDownloads:
		if downloadCount >= value {
			return ByDownloads
		}
	}
	return NotExpired
}

// ParseSelector parses an upload-time expiry selector into its type and value.
// The grammar is a positive integer followed by a unit suffix: "days" or
// "downloads". An empty selector is rejected; callers apply their own default
// before parsing.
func ParseSelector(s string) (model.ExpiryType, int, error) {
	s = strings.TrimSpace(strings.ToLower(s))

	var t model.ExpiryType
	var digits string
	switch {
	case strings.HasSuffix(s, "downloads"):
		t = model.ExpiryDownloads
		digits = strings.TrimSuffix(s, "downloads")
	case strings.HasSuffix(s, "days"):
		t = model.ExpiryDays
		digits = strings.TrimSuffix(s, "days")
	default:
		return "", 0, ErrInvalidSelector
	}

	v, err := strconv.Atoi(digits)
	if err != nil || v <= 0 {
		return "", 0, ErrInvalidSelector
	}
	return t, v, nil
}
