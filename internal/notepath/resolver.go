// Package notepath maps source items to stable, collision-free note paths
// relative to the vault root.
package notepath

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/coursevault/internal/models"
)

const (
	// DefaultRoot is the top-level vault folder all course notes live under.
	DefaultRoot = "Courses"
	// DefaultMaxSegment caps every sanitized name segment, in runes.
	DefaultMaxSegment = 100
	// DefaultFallback replaces names that sanitize to nothing.
	DefaultFallback = "untitled"

	placeholder = "_"
	extension   = ".md"
)

var (
	illegalRe     = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)
	placeholderRe = regexp.MustCompile(`_+`)
)

// Options configures a Resolver.
type Options struct {
	Root       string
	MaxSegment int
	Fallback   string
}

// Resolver computes note paths. It holds no mutable state and is safe for
// concurrent use.
type Resolver struct {
	root     string
	maxLen   int
	fallback string
}

// New returns a Resolver, filling zero-valued options with defaults.
func New(opts Options) *Resolver {
	r := &Resolver{root: opts.Root, maxLen: opts.MaxSegment, fallback: opts.Fallback}
	if r.root == "" {
		r.root = DefaultRoot
	}
	if r.maxLen <= 0 {
		r.maxLen = DefaultMaxSegment
	}
	if r.fallback == "" {
		r.fallback = DefaultFallback
	}
	return r
}

// Sanitize turns an arbitrary display name into a single safe path segment.
func (r *Resolver) Sanitize(name string) string {
	s := norm.NFC.String(name)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, placeholder)
	}
	s = illegalRe.ReplaceAllString(s, placeholder)
	s = placeholderRe.ReplaceAllString(s, placeholder)
	s = trim(s)

	if utf8.RuneCountInString(s) > r.maxLen {
		runes := []rune(s)
		s = trim(string(runes[:r.maxLen]))
	}

	// "." and ".." would escape or alias the parent directory.
	if s == "" || strings.Trim(s, ".") == "" {
		return r.fallback
	}
	return s
}

// Resolve returns the vault-relative path for an item. owners holds the
// already claimed paths; a path owned by a different item, compared without
// regard to case, is disambiguated with the item id. Resolve never fails.
func (r *Resolver) Resolve(courseName string, kind models.Kind, displayName, itemID string, owners *Owners) string {
	self := models.ItemKey{Kind: kind, ID: itemID}
	dir := path.Join(r.root, r.Sanitize(courseName), kind.Folder())
	base := r.Sanitize(displayName)

	candidate := path.Join(dir, base+extension)
	if free(owners, candidate, self) {
		return candidate
	}

	suffixed := base + placeholder + r.Sanitize(itemID)
	candidate = path.Join(dir, suffixed+extension)
	for n := 2; !free(owners, candidate, self); n++ {
		candidate = path.Join(dir, suffixed+placeholder+strconv.Itoa(n)+extension)
	}
	return candidate
}

// ResolveItem is Resolve for a SourceItem.
func (r *Resolver) ResolveItem(item models.SourceItem, owners *Owners) string {
	return r.Resolve(item.CourseName, item.Kind, item.DisplayName(), item.ID, owners)
}

func free(owners *Owners, p string, self models.ItemKey) bool {
	owner, ok := owners.Owner(p)
	return !ok || owner == self
}

func trim(s string) string {
	return strings.TrimFunc(s, func(c rune) bool {
		return unicode.IsSpace(c) || c == '_'
	})
}
