package badger

// Key schema
//
// The lock table uses two namespaces:
//
//	lock/path/<canonical-path>\x00<token>  -> serialized lock record
//	lock/token/<token>                     -> canonical path
//
// The path namespace is ordered by canonical path, so all locks on one
// resource share the prefix "lock/path/<path>\x00" and all locks on strict
// descendants share "lock/path/<path>/". That makes the three conflict
// scans (self, ancestors, descendants) cheap prefix iterations. The NUL
// separator cannot occur in a canonical path, so "/a" never matches the
// descendant prefix of "/ab".
//
// The token namespace is a reverse index for Refresh and Unlock, which are
// keyed by token alone.

const (
	pathKeyPrefix  = "lock/path/"
	tokenKeyPrefix = "lock/token/"
	pathTokenSep   = "\x00"
)

// keyPathLock is the primary key of one lock.
func keyPathLock(canonicalPath, token string) []byte {
	return []byte(pathKeyPrefix + canonicalPath + pathTokenSep + token)
}

// keyPathPrefix matches every lock held directly on canonicalPath.
func keyPathPrefix(canonicalPath string) []byte {
	return []byte(pathKeyPrefix + canonicalPath + pathTokenSep)
}

// keyDescendantPrefix matches every lock held on a strict descendant of
// canonicalPath.
func keyDescendantPrefix(childPrefix string) []byte {
	return []byte(pathKeyPrefix + childPrefix)
}

// keyToken is the reverse-index key of one lock token.
func keyToken(token string) []byte {
	return []byte(tokenKeyPrefix + token)
}
