package notepath

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/coursevault/internal/models"
)

// FoldKey is the identity of a path on a case-insensitive, normalizing file
// system: NFC, then lower case.
func FoldKey(p string) string {
	return strings.ToLower(norm.NFC.String(p))
}

// SamePath reports whether a and b name the same file once folded.
func SamePath(a, b string) bool {
	return FoldKey(a) == FoldKey(b)
}

// Owners records which item claims each note path. Paths that differ only in
// letter case or Unicode normalization are one path. A nil *Owners is empty.
type Owners struct {
	byKey map[string]models.ItemKey
}

// NewOwners indexes recorded path ownership, as returned by the state store.
func NewOwners(paths map[string]models.ItemKey) *Owners {
	o := &Owners{byKey: make(map[string]models.ItemKey, len(paths))}
	for p, key := range paths {
		o.Claim(p, key)
	}
	return o
}

// Owner returns the item that claims p.
func (o *Owners) Owner(p string) (models.ItemKey, bool) {
	if o == nil {
		return models.ItemKey{}, false
	}
	key, ok := o.byKey[FoldKey(p)]
	return key, ok
}

// Claim assigns p to key.
func (o *Owners) Claim(p string, key models.ItemKey) {
	o.byKey[FoldKey(p)] = key
}

// Release drops any claim on p.
func (o *Owners) Release(p string) {
	delete(o.byKey, FoldKey(p))
}

// Len is the number of claimed paths.
func (o *Owners) Len() int {
	if o == nil {
		return 0
	}
	return len(o.byKey)
}
