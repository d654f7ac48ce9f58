package library

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces a client supplied filename to a safe, flat ASCII
// name: compatibility-decomposed and stripped of non-ASCII runes, path
// separators turned into spaces, runs of whitespace joined with "_", every
// other character outside [A-Za-z0-9_.-] dropped, and leading or trailing
// dots and underscores trimmed. The result may be empty.
func SecureFilename(name string) string {
	decomposed := norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range decomposed {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte(' ')
		case r <= unicode.MaxASCII:
			b.WriteRune(r)
		}
	}

	joined := strings.Join(strings.Fields(b.String()), "_")
	return strings.Trim(unsafeFilenameChars.ReplaceAllString(joined, ""), "._")
}

// splitExt splits name at its last dot, keeping the dot on the extension.
func splitExt(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

// storedName is base_<ts>ext, with _<n> appended to the timestamp for n > 0.
func storedName(base string, ts int64, n int, ext string) string {
	if n == 0 {
		return fmt.Sprintf("%s_%d%s", base, ts, ext)
	}
	return fmt.Sprintf("%s_%d_%d%s", base, ts, n, ext)
}

// titleFromBase turns a sanitized base name into a display title:
// underscores become spaces and every word starts with a capital letter.
func titleFromBase(base string) string {
	return titleCase(strings.ReplaceAll(base, "_", " "))
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "2nd take" becomes "2Nd Take".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWord := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if inWord {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			inWord = true
			continue
		}
		inWord = false
		b.WriteRune(r)
	}
	return b.String()
}
