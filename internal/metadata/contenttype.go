package metadata

import (
	"path/filepath"
	"strings"
)

// FallbackContentType is used for extensions missing from the table.
const FallbackContentType = "audio/mpeg"

var contentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"m4a":  "audio/mp4",
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
}

// ContentType returns the MIME type for an extension such as ".mp3" or
// "MP3".
func ContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return ct
	}
	return FallbackContentType
}

// ContentTypeForFile is ContentType keyed by a file name.
func ContentTypeForFile(name string) string {
	return ContentType(filepath.Ext(name))
}
