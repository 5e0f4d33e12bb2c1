package stashbox

import (
	"fmt"
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	tokenPattern      = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-5][0-9a-f]{3}-[089ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	objectNamePattern = regexp.MustCompile(`^([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})(\.[a-zA-Z0-9]{1,16})?$`)
	extensionPattern  = regexp.MustCompile(`^\.[a-z0-9]{1,16}$`)
)

// sniffLen is how many leading bytes of an upload are inspected when the
// filename does not reveal a MIME type.
const sniffLen = 3072

// IsValidToken reports whether v is shaped like an access token (a UUID).
func IsValidToken(v string) bool {
	return tokenPattern.MatchString(v)
}

// HasTraversal reports whether a raw request identifier tries to escape
// the object namespace, in plain or percent-encoded form.
func HasTraversal(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "..") ||
		strings.Contains(lower, "%2f") ||
		strings.Contains(lower, "%5c") ||
		strings.ContainsAny(raw, `/\`)
}

// ParseObjectName splits "<uuid>" or "<uuid>.<ext>" into its parts. The
// extension is returned lower-cased with its leading dot.
func ParseObjectName(name string) (uuid.UUID, string, error) {
	m := objectNamePattern.FindStringSubmatch(name)
	if m == nil {
		return uuid.Nil, "", fmt.Errorf("parse object name %q: %w", name, ErrInvalidInput)
	}

	id, err := uuid.Parse(m[1])
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("parse object name %q: %w", name, ErrInvalidInput)
	}

	return id, strings.ToLower(m[2]), nil
}

// ObjectName returns the storage name for an object id and extension.
func ObjectName(id uuid.UUID, ext string) string {
	return id.String() + ext
}

// Extension returns the lower-cased extension of a client filename, or ""
// when it is missing or unusual enough that it should not reach a path.
func Extension(filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, `\`, "/")))
	if !extensionPattern.MatchString(ext) {
		return ""
	}
	return ext
}

// DetectMimeType picks a MIME type from the filename extension, falling
// back to sniffing the leading bytes of the content.
func DetectMimeType(filename string, head []byte) string {
	if ext := Extension(filename); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}

	if len(head) > 0 {
		return mimetype.Detect(head).String()
	}

	return "application/octet-stream"
}

// ObjectURL joins a public base URL and an object name.
func ObjectURL(baseURL, name string) string {
	return strings.TrimRight(baseURL, "/") + "/" + name
}
