// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrSyncBusy      = errors.New("sync already in progress")
	ErrNoCollections = errors.New("no courses selected")
)

// Sync error taxonomy. Item and course level failures wrap one of these and
// are collected into the run summary; only ErrStoreUnavailable aborts a run.
var (
	ErrTransientSource  = errors.New("transient source error")
	ErrPermanentSource  = errors.New("permanent source error")
	ErrRender           = errors.New("render failed")
	ErrRead             = errors.New("read failed")
	ErrWrite            = errors.New("write failed")
	ErrStateStore       = errors.New("state store update failed")
	ErrStoreUnavailable = errors.New("state store unavailable")
)
