// Package cache stores compiled modules on disk, keyed by a digest of the
// component source and the build settings that affect the output.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/deepnoodle-ai/sme/bytecode"
)

const bucketModules = "modules"

// Key identifies one compilation.
type Key struct {
	// Source is the full component source.
	Source string
	// Filename and Component are recorded in the module metadata, so they
	// are part of the key.
	Filename  string
	Component string
	// Globals lists the component signatures visible to the compilation.
	Globals string
	// Level is the optimization level.
	Level int
	// SourceMap reports whether a source map is emitted.
	SourceMap bool
	// Compiler is the compiler version.
	Compiler string
}

// Digest returns the hex digest of the key.
func (k Key) Digest() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%d\x00%t\x00",
		k.Compiler, k.Filename, k.Component, k.Globals, k.Level, k.SourceMap)
	h.Write([]byte(k.Source))
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is a bbolt-backed module cache. It is safe for concurrent use.
type Cache struct {
	db *bolt.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketModules))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.db.Path()
}

// Get returns the module stored under key. Entries that no longer decode,
// for example after a format version change, are reported as misses.
func (c *Cache) Get(key Key) (*bytecode.Module, bool, error) {
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketModules)).Get([]byte(key.Digest())); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, false, err
	}
	mod, err := bytecode.Unmarshal(data)
	if err != nil {
		return nil, false, nil
	}
	return mod, true, nil
}

// Put stores mod under key.
func (c *Cache) Put(key Key, mod *bytecode.Module) error {
	data, err := bytecode.Marshal(mod)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketModules)).Put([]byte(key.Digest()), data)
	})
}

// Len returns the number of stored modules.
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketModules)).Stats().KeyN
		return nil
	})
	return n, err
}

// Clear removes every stored module.
func (c *Cache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketModules)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketModules))
		return err
	})
}
