// Package storage persists uploaded document blobs.
//
// Locators are opaque to callers. The Cloud Storage backend issues
// gs://<bucket>/<object> locators so the vision client can read objects in
// place; the in-memory backend issues mem://<object>.
package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var errInvalidLocator = errors.New("storage: invalid locator")

// ObjectName builds a collision-free object name that keeps the caller's file
// name readable: <unix-millis>-<uuid>-<base name>.
func ObjectName(now time.Time, fileName string) string {
	base := sanitize(path.Base(strings.ReplaceAll(fileName, "\\", "/")))
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString(), base)
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 120 {
		out = out[len(out)-120:]
	}
	return out
}

// GCSLocator formats a Cloud Storage locator.
func GCSLocator(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ParseGCSLocator splits a gs:// locator into bucket and object.
func ParseGCSLocator(locator string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(locator, "gs://")
	if !ok {
		return "", "", errInvalidLocator
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", errInvalidLocator
	}
	return bucket, object, nil
}
