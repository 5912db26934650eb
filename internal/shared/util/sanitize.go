package util

import (
	"strings"
	"unicode"
)

// BaseName returns the text before the first dot of a file name. A name
// starting with a dot has an empty base.
func BaseName(fileName string) string {
	name := lastSegment(fileName)
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

// Extension returns the lower-cased text after the last dot, restricted to
// ASCII letters and digits. Names without a dot have no extension.
func Extension(fileName string) string {
	name := lastSegment(fileName)
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name[i+1:]) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeFileName strips path separators, quotes and control characters so
// the result is safe inside a Content-Disposition header.
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case r == '"' || unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "download"
	}
	return out
}

func lastSegment(fileName string) string {
	name := strings.TrimSpace(fileName)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}
