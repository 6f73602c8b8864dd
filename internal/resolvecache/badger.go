package resolvecache

import (
	"errors"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/zigdocs/zigdocs/internal/utils"
)

// Cache memoizes latest-version resolutions per repository so repeated misses
// for the same repository do not hammer the remote with ls-remote calls.
// Entries expire after a TTL; the store itself remains the source of truth
// for artifacts.
type Cache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *utils.Logger
}

// Options contains cache configuration options
type Options struct {
	Directory string
	InMemory  bool
	TTL       time.Duration
	Logger    *utils.Logger
}

// New opens (creating if needed) a resolution cache.
func New(opts Options) (*Cache, error) {
	var badgerOpts badger.Options

	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Directory, 0755); err != nil {
			return nil, err
		}
		badgerOpts = badger.DefaultOptions(opts.Directory)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	return &Cache{db: db, ttl: ttl, logger: logger.WithComponent("resolvecache")}, nil
}

// Get returns the cached resolved version for a repository, if present and
// not expired.
func (c *Cache) Get(repository string) (string, bool) {
	var version string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(Key(repository))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		version = string(value)
		return nil
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Str("repository", repository).Msg("cache read failed")
		}
		return "", false
	}
	return version, true
}

// Set stores the resolved version for a repository with the cache TTL.
func (c *Cache) Set(repository, version string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(Key(repository), []byte(version)).WithTTL(c.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("repository", repository).Msg("cache write failed")
	}
}

// Delete drops the cached resolution for a repository.
func (c *Cache) Delete(repository string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(Key(repository))
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("repository", repository).Msg("cache delete failed")
	}
}

// Close releases cache resources
func (c *Cache) Close() error {
	return c.db.Close()
}
