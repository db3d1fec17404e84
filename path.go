package cloudvfs

import (
	"strings"
	"unicode/utf8"
)

// Separator is the virtual path separator.
const Separator = "/"

// VirtualPath is a parsed, normalized virtual path of the form
// /{account}/{container}/{blobPath...}.
type VirtualPath struct {
	segments []string
	dirRef   bool
}

// Root is the virtual root path.
var Root = VirtualPath{}

// Parse normalizes raw into a VirtualPath. Backslashes are accepted as
// separators, repeated separators collapse and a trailing separator marks
// a directory reference. Segment case is preserved.
func Parse(raw string) (VirtualPath, error) {
	if !utf8.ValidString(raw) || strings.ContainsRune(raw, 0) {
		return VirtualPath{}, &PathError{Op: "parse", Path: raw, Err: ErrInvalidPath}
	}

	raw = strings.ReplaceAll(raw, `\`, Separator)
	p := VirtualPath{}
	for _, seg := range strings.Split(raw, Separator) {
		if seg != "" {
			p.segments = append(p.segments, seg)
		}
	}
	p.dirRef = len(p.segments) > 0 && strings.HasSuffix(raw, Separator)
	return p, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(raw string) VirtualPath {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the display form of the path.
func (p VirtualPath) String() string {
	if len(p.segments) == 0 {
		return Separator
	}
	s := Separator + strings.Join(p.segments, Separator)
	if p.dirRef {
		s += Separator
	}
	return s
}

// Key returns the path without leading or trailing separators. It is the
// key used by the directory and properties caches.
func (p VirtualPath) Key() string {
	return strings.Join(p.segments, Separator)
}

// Level is the number of segments: 0 root, 1 account, 2 container, 3 or
// more a blob path.
func (p VirtualPath) Level() int {
	return len(p.segments)
}

// IsRoot reports whether p is the virtual root.
func (p VirtualPath) IsRoot() bool {
	return len(p.segments) == 0
}

// IsDirRef reports whether the path was written with a trailing separator.
func (p VirtualPath) IsDirRef() bool {
	return p.dirRef
}

// IsBlobPath reports whether the path addresses something inside a container.
func (p VirtualPath) IsBlobPath() bool {
	return len(p.segments) >= 3
}

// AccountName returns the first segment.
func (p VirtualPath) AccountName() string {
	return p.segment(0)
}

// ContainerName returns the second segment.
func (p VirtualPath) ContainerName() string {
	return p.segment(1)
}

// BlobName returns the segments after the container joined by the separator.
func (p VirtualPath) BlobName() string {
	if len(p.segments) < 3 {
		return ""
	}
	return strings.Join(p.segments[2:], Separator)
}

// Name returns the last segment.
func (p VirtualPath) Name() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Prefix returns every segment but the last joined by the separator.
func (p VirtualPath) Prefix() string {
	if len(p.segments) < 2 {
		return ""
	}
	return strings.Join(p.segments[:len(p.segments)-1], Separator)
}

// Parent returns the path one level up. The parent of the root is the root.
func (p VirtualPath) Parent() VirtualPath {
	if len(p.segments) == 0 {
		return p
	}
	return VirtualPath{segments: p.segments[:len(p.segments)-1:len(p.segments)-1]}
}

// Join returns the child path named name.
func (p VirtualPath) Join(name string) VirtualPath {
	child := VirtualPath{segments: make([]string, 0, len(p.segments)+1)}
	child.segments = append(child.segments, p.segments...)
	for _, seg := range strings.Split(strings.ReplaceAll(name, `\`, Separator), Separator) {
		if seg != "" {
			child.segments = append(child.segments, seg)
		}
	}
	return child
}

// AsDir returns p marked as a directory reference.
func (p VirtualPath) AsDir() VirtualPath {
	if len(p.segments) == 0 {
		return p
	}
	p.dirRef = true
	return p
}

// Equal reports whether p and o address the same location.
func (p VirtualPath) Equal(o VirtualPath) bool {
	if len(p.segments) != len(o.segments) || p.dirRef != o.dirRef {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

func (p VirtualPath) segment(i int) string {
	if i < len(p.segments) {
		return p.segments[i]
	}
	return ""
}
