package cache

import (
	"fmt"
)

// Key identifies a cached summary record.
type Key struct {
	// Database is the Entrez database the record came from (e.g. "nuccore").
	Database string

	// UID is the upstream record identifier.
	UID string
}

// String generates a deterministic cache key string.
// Format: entrez:summary:<database>:<uid>
//
// Example:
//
//	entrez:summary:nuccore:2194060993
func (k Key) String() string {
	return fmt.Sprintf("entrez:summary:%s:%s", k.Database, k.UID)
}
