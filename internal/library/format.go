package library

import (
	"fmt"
	"net/url"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with two decimals in the largest unit
// that keeps the value under 1024, e.g. 1536 -> "1.50 KB".
func FormatFileSize(size int64) string {
	value := float64(size)
	for _, unit := range sizeUnits {
		if value < 1024 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.2f TB", value)
}

// FileURL is the public path a stored file is served from.
func FileURL(filePath string) string {
	return "/uploads/" + url.PathEscape(filePath)
}
