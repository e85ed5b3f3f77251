package models

import "time"

// SyncRecord is the persisted metadata of the last successful write of an item.
type SyncRecord struct {
	Kind             Kind      `json:"kind"`
	ItemID           string    `json:"item_id"`
	CourseID         string    `json:"course_id"`
	FilePath         string    `json:"file_path"`
	ContentHash      string    `json:"content_hash"`
	PendingHash      string    `json:"pending_hash,omitempty"`
	SourceModifiedAt time.Time `json:"source_modified_at"`
	SyncedAt         time.Time `json:"synced_at"`
}

// Key returns the identity of the item the record belongs to.
func (r SyncRecord) Key() ItemKey {
	return ItemKey{Kind: r.Kind, ID: r.ItemID}
}

// Matches reports whether hash is the recorded content or an interrupted
// write intent, i.e. the note on disk was produced by a sync.
func (r SyncRecord) Matches(hash string) bool {
	if hash == r.ContentHash {
		return true
	}
	return r.PendingHash != "" && hash == r.PendingHash
}

// SelectedCourse is a course the user opted into syncing.
type SelectedCourse struct {
	Course
	SelectedAt time.Time `json:"selected_at"`
}
