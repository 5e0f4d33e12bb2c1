package stashbox

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// AccessToken authorizes uploads on behalf of a user.
type AccessToken struct {
	Value      string    `json:"value"`
	UserID     string    `json:"user_id"`
	Revoked    bool      `json:"revoked"`
	UsageCount int64     `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// StoredObject is the record of one uploaded file.
type StoredObject struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	UserID    string    `json:"user_id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	ETag      string    `json:"etag"`
	CreatedAt time.Time `json:"created_at"`
}

// ObjectSummary is a StoredObject with its retrieval count.
type ObjectSummary struct {
	StoredObject
	Views int64 `json:"views"`
}

// ViewEvent records one retrieval attempt. ObjectID holds the bare object id
// when the requested name parses as one, otherwise the name as requested. It
// may not name an existing object.
type ViewEvent struct {
	ObjectID    string          `json:"object_id"`
	RequestData json.RawMessage `json:"request_data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Upload is the input of Service.Upload.
type Upload struct {
	// Filename is the client-supplied name. Only its extension is kept in
	// the storage path.
	Filename string
	Content  io.Reader
	// BaseURL is the public prefix the object URL is built on.
	BaseURL string
}

// SaveResult reports a completed storage write.
type SaveResult struct {
	BytesWritten int64
	Etag         string
}

// Blob is an open stored file.
type Blob struct {
	Content io.ReadSeekCloser
	Size    int64
	ModTime time.Time
}

// StorageEntry describes one file held by a FileStorage.
type StorageEntry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Tables holds configurable table names.
// This allows several deployments to share one database.
type Tables struct {
	Tokens  string `mapstructure:"tokens" yaml:"tokens"`
	Objects string `mapstructure:"objects" yaml:"objects"`
	Views   string `mapstructure:"views" yaml:"views"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all table names are set, valid and distinct.
func (t Tables) Validate() error {
	named := []struct{ kind, name string }{
		{"tokens", t.Tokens},
		{"objects", t.Objects},
		{"views", t.Views},
	}

	seen := make(map[string]string, len(named))
	for _, n := range named {
		if n.name == "" {
			return fmt.Errorf("validate tables: %s table name cannot be empty", n.kind)
		}
		if !IsValidTableName(n.name) {
			return fmt.Errorf("validate tables: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", n.kind, n.name)
		}
		if other, dup := seen[n.name]; dup {
			return fmt.Errorf("validate tables: %s and %s share table name %s", other, n.kind, n.name)
		}
		seen[n.name] = n.kind
	}

	return nil
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{
		Tokens:  "stashbox_tokens",
		Objects: "stashbox_objects",
		Views:   "stashbox_views",
	}
}
