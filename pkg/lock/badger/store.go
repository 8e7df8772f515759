// Package badger provides a BadgerDB-backed implementation of the
// lock.Manager contract.
//
// Unlike the in-memory reference implementation, locks granted by this
// manager survive server restarts, which matters for clients holding
// long-lived editing locks across a rolling restart. Each BadgerDB entry
// carries a TTL matching the lock timeout, so the database purges expired
// locks on its own; expiry is still also checked lazily against the
// recorded deadline, since Badger's TTL granularity is coarser than the
// wall-clock deadline semantics the contract requires.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/mschuler/nwebdav/internal/logger"
	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
)

// Manager is the BadgerDB-backed lock manager.
//
// Thread safety: every logical operation runs inside a single BadgerDB
// transaction, which provides the serialization the contract requires.
type Manager struct {
	db *badger.DB

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Config contains configuration for creating a BadgerDB lock manager.
type Config struct {
	// DBPath is the directory where BadgerDB stores its files.
	DBPath string

	// BadgerOptions allows customization of BadgerDB behavior.
	// If nil, sensible defaults are used.
	BadgerOptions *badger.Options
}

// New opens (or creates) a BadgerDB lock table at the configured path.
func New(ctx context.Context, config Config) (*Manager, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		// Lock records are tiny and short-lived; compression is not
		// worth the overhead and Badger's own logging is noise here.
		opts = badger.DefaultOptions(config.DBPath)
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &Manager{db: db, now: time.Now}, nil
}

// lockRecord is the serialized form of one lock.
type lockRecord struct {
	Path    string        `json:"path"`
	Owner   string        `json:"owner"`
	Scope   int           `json:"scope"`
	Depth   int           `json:"depth"`
	Token   string        `json:"token"`
	Expires time.Time     `json:"expires"`
	Timeout time.Duration `json:"timeout"`
}

func encodeLock(l *lock.Lock) ([]byte, error) {
	return json.Marshal(lockRecord{
		Path:    l.Path,
		Owner:   l.Owner,
		Scope:   int(l.Scope),
		Depth:   int(l.Depth),
		Token:   l.Token,
		Expires: l.Expires,
		Timeout: l.Timeout,
	})
}

func decodeLock(data []byte) (*lock.Lock, error) {
	var rec lockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode lock record: %w", err)
	}
	return &lock.Lock{
		Path:    rec.Path,
		Owner:   rec.Owner,
		Scope:   lock.Scope(rec.Scope),
		Depth:   dav.Depth(rec.Depth),
		Token:   rec.Token,
		Expires: rec.Expires,
		Timeout: rec.Timeout,
	}, nil
}

// Lock implements lock.Manager.
func (m *Manager) Lock(ctx context.Context, path, owner string, scope lock.Scope, depth dav.Depth, timeout time.Duration) (*lock.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := lock.CanonicalPath(path)
	now := m.now()

	l := &lock.Lock{
		Path:    p,
		Owner:   owner,
		Scope:   scope,
		Depth:   depth,
		Token:   lock.NewToken(),
		Expires: now.Add(timeout),
		Timeout: timeout,
	}

	err := m.db.Update(func(txn *badger.Txn) error {
		conflict, err := m.conflictTxn(txn, p, scope, depth, now)
		if err != nil {
			return err
		}
		if conflict {
			return lock.ErrLocked
		}
		return m.writeLockTxn(txn, l, timeout)
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("lock granted: path=%s scope=%s depth=%s timeout=%v", p, scope, depth, timeout)
	return l, nil
}

// Refresh implements lock.Manager.
func (m *Manager) Refresh(ctx context.Context, token string, timeout time.Duration) (*lock.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var refreshed *lock.Lock
	err := m.db.Update(func(txn *badger.Txn) error {
		l, err := m.lookupTokenTxn(txn, token, m.now())
		if err != nil {
			return err
		}
		l.Expires = m.now().Add(timeout)
		l.Timeout = timeout
		if err := m.writeLockTxn(txn, l, timeout); err != nil {
			return err
		}
		refreshed = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

// Unlock implements lock.Manager.
func (m *Manager) Unlock(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.db.Update(func(txn *badger.Txn) error {
		l, err := m.lookupTokenTxn(txn, token, m.now())
		if err != nil {
			return err
		}
		if err := txn.Delete(keyPathLock(l.Path, l.Token)); err != nil {
			return err
		}
		if err := txn.Delete(keyToken(token)); err != nil {
			return err
		}
		logger.Debug("lock released: path=%s token=%s", l.Path, token)
		return nil
	})
}

// ActiveLocks implements lock.Manager.
func (m *Manager) ActiveLocks(ctx context.Context, path string) ([]lock.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := lock.CanonicalPath(path)
	now := m.now()

	var out []lock.Lock
	err := m.db.View(func(txn *badger.Txn) error {
		self, err := m.liveTxn(txn, keyPathPrefix(p), now)
		if err != nil {
			return err
		}
		for _, l := range self {
			out = append(out, *l)
		}

		for _, ancestor := range lock.Ancestors(p) {
			covering, err := m.liveTxn(txn, keyPathPrefix(ancestor), now)
			if err != nil {
				return err
			}
			for _, l := range covering {
				if l.Depth == dav.DepthInfinity {
					out = append(out, *l)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsLocked implements lock.Manager.
func (m *Manager) IsLocked(ctx context.Context, path string, excludeTokens ...string) (bool, error) {
	locks, err := m.ActiveLocks(ctx, path)
	if err != nil {
		return false, err
	}

	excluded := make(map[string]bool, len(excludeTokens))
	for _, t := range excludeTokens {
		excluded[t] = true
	}
	for i := range locks {
		if !excluded[locks[i].Token] {
			return true, nil
		}
	}
	return false, nil
}

// Close closes the BadgerDB database and releases all resources.
func (m *Manager) Close() error {
	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// writeLockTxn writes both the primary record and the token reverse index,
// each with a TTL matching the lock timeout.
func (m *Manager) writeLockTxn(txn *badger.Txn, l *lock.Lock, timeout time.Duration) error {
	data, err := encodeLock(l)
	if err != nil {
		return err
	}
	entry := badger.NewEntry(keyPathLock(l.Path, l.Token), data).WithTTL(timeout)
	if err := txn.SetEntry(entry); err != nil {
		return err
	}
	tokenEntry := badger.NewEntry(keyToken(l.Token), []byte(l.Path)).WithTTL(timeout)
	return txn.SetEntry(tokenEntry)
}

// lookupTokenTxn resolves a token to its unexpired lock.
// Returns lock.ErrNoSuchLock for unknown or expired tokens.
func (m *Manager) lookupTokenTxn(txn *badger.Txn, token string, now time.Time) (*lock.Lock, error) {
	item, err := txn.Get(keyToken(token))
	if err == badger.ErrKeyNotFound {
		return nil, lock.ErrNoSuchLock
	}
	if err != nil {
		return nil, err
	}

	var p string
	if err := item.Value(func(val []byte) error {
		p = string(val)
		return nil
	}); err != nil {
		return nil, err
	}

	lockItem, err := txn.Get(keyPathLock(p, token))
	if err == badger.ErrKeyNotFound {
		return nil, lock.ErrNoSuchLock
	}
	if err != nil {
		return nil, err
	}

	var l *lock.Lock
	if err := lockItem.Value(func(val []byte) error {
		decoded, err := decodeLock(val)
		if err != nil {
			return err
		}
		l = decoded
		return nil
	}); err != nil {
		return nil, err
	}

	if l.Expired(now) {
		return nil, lock.ErrNoSuchLock
	}
	return l, nil
}

// liveTxn collects the unexpired locks under a key prefix.
func (m *Manager) liveTxn(txn *badger.Txn, prefix []byte, now time.Time) ([]*lock.Lock, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*lock.Lock
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		var l *lock.Lock
		err := it.Item().Value(func(val []byte) error {
			decoded, err := decodeLock(val)
			if err != nil {
				return err
			}
			l = decoded
			return nil
		})
		if err != nil {
			return nil, err
		}
		if l.Expired(now) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// conflictTxn reports whether granting a lock with the given scope and
// depth on canonical path p would conflict with an existing unexpired lock.
func (m *Manager) conflictTxn(txn *badger.Txn, p string, scope lock.Scope, depth dav.Depth, now time.Time) (bool, error) {
	exclusiveEither := func(other lock.Scope) bool {
		return scope == lock.ScopeExclusive || other == lock.ScopeExclusive
	}

	// Locks on the resource itself.
	self, err := m.liveTxn(txn, keyPathPrefix(p), now)
	if err != nil {
		return false, err
	}
	for _, l := range self {
		if exclusiveEither(l.Scope) {
			return true, nil
		}
	}

	// Infinite-depth locks on ancestors cover this resource.
	for _, ancestor := range lock.Ancestors(p) {
		covering, err := m.liveTxn(txn, keyPathPrefix(ancestor), now)
		if err != nil {
			return false, err
		}
		for _, l := range covering {
			if l.Depth == dav.DepthInfinity && exclusiveEither(l.Scope) {
				return true, nil
			}
		}
	}

	// An infinite-depth grant would cover every descendant.
	if depth == dav.DepthInfinity {
		descendants, err := m.liveTxn(txn, keyDescendantPrefix(lock.ChildPrefix(p)), now)
		if err != nil {
			return false, err
		}
		for _, l := range descendants {
			if exclusiveEither(l.Scope) {
				return true, nil
			}
		}
	}

	return false, nil
}
