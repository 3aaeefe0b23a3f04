package gitref

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kilupskalvis/ovc/internal/models"
)

var bucketRefs = []byte("refs")

// BoltStore is a bbolt-backed ref store standing in for the backing Git
// repository's ref namespace.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the ref store at the given path.
func OpenBolt(dbPath string) (*BoltStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ref store directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ref store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRefs)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// List returns a coherent snapshot of every ref under the namespace.
func (s *BoltStore) List(namespace string) (map[string]models.CommitID, error) {
	refs := make(map[string]models.CommitID)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRefs).Cursor()
		p := []byte(namespace)
		for k, v := c.Seek(p); k != nil && strings.HasPrefix(string(k), namespace); k, v = c.Next() {
			refs[string(k)] = models.CommitID(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// Set creates or updates a ref, rejecting directory/file name conflicts.
func (s *BoltStore) Set(name string, target models.CommitID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRefs)
		err := checkRefName(name, func(visit func(string) bool) {
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if visit(string(k)) {
					return
				}
			}
		})
		if err != nil {
			return err
		}
		return b.Put([]byte(name), []byte(target))
	})
}

// Delete removes a ref.
func (s *BoltStore) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRefs).Delete([]byte(name))
	})
}
