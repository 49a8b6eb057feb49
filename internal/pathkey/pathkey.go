// Package pathkey canonicalizes file paths for use as cache keys (C1) and
// parses the metadata key-path grammar ("Group/Field" or bare "Field")
// into a tagged union kept at I/O boundaries only (spec design note §9).
package pathkey

import (
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key is a normalized path used everywhere as a cache key. Equality is
// byte-equal after normalization.
type Key string

// Normalize resolves path to its canonical form: absolute, separators
// collapsed, no trailing separator except root, NFC-normalized, and with
// the volume/drive prefix lower-cased on case-insensitive filesystems.
// Normalize never fails: on any internal error it returns the input
// unchanged, wrapped as a Key.
func Normalize(path string) Key {
	if path == "" {
		return Key(path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Key(path)
	}

	cleaned := filepath.Clean(abs)
	nfc := norm.NFC.String(cleaned)

	if caseInsensitiveFS() {
		vol := filepath.VolumeName(nfc)
		if vol != "" {
			nfc = strings.ToLower(vol) + nfc[len(vol):]
		}
	}

	return Key(nfc)
}

// Equal reports whether two raw paths normalize to the same key, honoring
// the OS-specific case rule (case-insensitive comparison on Windows/macOS
// default filesystems, case-sensitive on Linux).
func Equal(a, b string) bool {
	ka, kb := Normalize(a), Normalize(b)
	if caseInsensitiveFS() {
		return strings.EqualFold(string(ka), string(kb))
	}
	return ka == kb
}

// HasPrefix reports whether key lies under the normalized prefix, used by
// C3/C4 invalidate_under and C13 drive-removal pruning.
func HasPrefix(key Key, prefix string) bool {
	np := Normalize(prefix)
	s, p := string(key), string(np)
	if caseInsensitiveFS() {
		s, p = strings.ToLower(s), strings.ToLower(p)
	}
	if !strings.HasSuffix(p, string(filepath.Separator)) {
		p += string(filepath.Separator)
	}
	return s == string(np) || strings.HasPrefix(s+string(filepath.Separator), p)
}

// caseInsensitiveFS reports whether the compiled-for OS treats filesystem
// paths case-insensitively by default. Implementations MUST document which
// branch they compile for (spec.md §4.1): this build treats Windows and
// Darwin as case-insensitive and everything else as case-sensitive, which
// matches the default (non-APFS-case-sensitive, non-exFAT-case-sensitive)
// configuration on those platforms.
func caseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// Group is one of the well-known metadata grouping namespaces.
type Group string

const (
	GroupFile      Group = "File"
	GroupEXIF      Group = "EXIF"
	GroupXMP       Group = "XMP"
	GroupIPTC      Group = "IPTC"
	GroupQuickTime Group = "QuickTime"
	GroupComposite Group = "Composite"
)

// KeyPath is the tagged union over a metadata field identifier: either a
// bare top-level field ("Rotation") or a grouped field ("EXIF/DateTimeOriginal").
type KeyPath struct {
	Group Group // empty for TopLevel
	Field string
}

// IsGrouped reports whether the key-path carries an explicit group.
func (k KeyPath) IsGrouped() bool { return k.Group != "" }

// String renders the key-path back to its wire form.
func (k KeyPath) String() string {
	if k.Group == "" {
		return k.Field
	}
	return string(k.Group) + "/" + k.Field
}

// Internal reports whether this is an internal marker key (e.g. "__extended__"),
// which must never surface as a user-visible field (spec.md §3).
func (k KeyPath) Internal() bool {
	return strings.HasPrefix(k.Field, "__") && k.Group == ""
}

// ParseKeyPath parses the wire form "Group/Field" or a bare "Field" into a
// KeyPath. "Rotation" is special-cased to always parse as top-level
// regardless of an explicit group prefix the caller may have supplied,
// since spec.md §3 requires it to be stored at top level irrespective of
// its source group.
func ParseKeyPath(raw string) KeyPath {
	if idx := strings.IndexByte(raw, '/'); idx >= 0 {
		group, field := raw[:idx], raw[idx+1:]
		if field == "Rotation" {
			return KeyPath{Field: "Rotation"}
		}
		return KeyPath{Group: Group(group), Field: field}
	}
	return KeyPath{Field: raw}
}
