package resolvecache

import (
	"crypto/sha256"
	"encoding/hex"
)

// keyPrefix namespaces resolution entries inside the database
const keyPrefix = "resolve:"

// Key generates the database key for a repository. The repository name is
// hashed so key length stays bounded regardless of input.
func Key(repository string) []byte {
	hash := sha256.Sum256([]byte(repository))
	return []byte(keyPrefix + hex.EncodeToString(hash[:]))
}
