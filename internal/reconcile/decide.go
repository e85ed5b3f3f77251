package reconcile

import (
	"time"

	"github.com/starford/coursevault/internal/models"
)

// Observation is everything a decision depends on.
type Observation struct {
	FileExists bool
	DiskHash   string
	// Record is the sync record governing the target path, nil when the item
	// is untracked or its record points elsewhere.
	Record           *models.SyncRecord
	SourceModifiedAt time.Time
}

// Decide applies the reconciliation table to o.
//
//	file missing                        -> write  new_file
//	file present, no record             -> write  no_db_record
//	disk hash differs from record       -> skip   locally_edited
//	unedited and source advanced        -> write  source_updated
//	unedited and source not advanced    -> skip   no_changes
func Decide(o Observation) (models.Action, models.Reason) {
	switch {
	case !o.FileExists:
		return models.ActionWrite, models.ReasonNewFile
	case o.Record == nil:
		return models.ActionWrite, models.ReasonNoDBRecord
	case !o.Record.Matches(o.DiskHash):
		return models.ActionSkip, models.ReasonLocallyEdited
	case Newer(o.SourceModifiedAt, o.Record.SourceModifiedAt):
		return models.ActionWrite, models.ReasonSourceUpdated
	default:
		return models.ActionSkip, models.ReasonNoChanges
	}
}

// Newer reports whether source is strictly later than recorded. An unknown
// timestamp on either side is never newer.
func Newer(source, recorded time.Time) bool {
	if source.IsZero() || recorded.IsZero() {
		return false
	}
	return source.After(recorded)
}
