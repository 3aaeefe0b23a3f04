// Package store persists the append-only operation log in an embedded bbolt
// database: one bucket of content-addressed operations, one reverse index of
// operation parents, and one holding the current operation head set.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kilupskalvis/ovc/internal/models"
)

// Bucket names used by the operation log.
var (
	bucketOperations = []byte("operations")
	bucketOpParents  = []byte("op_parents")
	bucketOpHeads    = []byte("op_heads")
)

// ErrOpNotFound is returned when an operation does not exist.
var ErrOpNotFound = fmt.Errorf("operation not found")

// OpStore is the bbolt-backed operation log. Operations are immutable once
// appended; only the head set ever changes.
type OpStore struct {
	db *bolt.DB
}

// Open opens or creates the operation log at the given path.
func Open(dbPath string) (*OpStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create oplog directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open oplog database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketOperations, bucketOpParents, bucketOpHeads} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &OpStore{db: db}, nil
}

// Close closes the database.
func (s *OpStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendOperation durably appends an operation. Appending an operation that
// already exists is a no-op: identity is content-addressed. The head set is
// not touched; callers append first, then swap heads, so a crash in between
// leaves the log correct and the heads recoverable.
func (s *OpStore) AppendOperation(op *models.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		ops := tx.Bucket(bucketOperations)
		if ops.Get([]byte(op.ID)) != nil {
			return nil
		}
		if err := ops.Put([]byte(op.ID), data); err != nil {
			return fmt.Errorf("store operation: %w", err)
		}
		parents := tx.Bucket(bucketOpParents)
		for _, p := range op.Parents {
			if err := parents.Put([]byte(p), []byte{}); err != nil {
				return fmt.Errorf("index operation parent: %w", err)
			}
		}
		return nil
	})
}

// GetOperation retrieves an operation by ID.
func (s *OpStore) GetOperation(id models.OperationID) (*models.Operation, error) {
	var op *models.Operation
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOperations).Get([]byte(id))
		if data == nil {
			return ErrOpNotFound
		}
		op = &models.Operation{}
		return json.Unmarshal(data, op)
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// ResolvePrefix returns every operation ID starting with the given prefix.
func (s *OpStore) ResolvePrefix(prefix string) ([]models.OperationID, error) {
	var ids []models.OperationID
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketOperations).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			ids = append(ids, models.OperationID(k))
		}
		return nil
	})
	return ids, err
}

// UpdateHeads atomically removes the given parent heads and installs the new
// head. This is the single logical step that publishes a committed
// transaction.
func (s *OpStore) UpdateHeads(add models.OperationID, remove []models.OperationID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		heads := tx.Bucket(bucketOpHeads)
		for _, id := range remove {
			if err := heads.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return heads.Put([]byte(add), []byte{})
	})
}

// Heads returns the current operation head set, sorted. A stale or empty
// head set (crash between append and head swap) is healed by scanning for
// leaf operations: operations that are no other operation's parent.
func (s *OpStore) Heads() ([]models.OperationID, error) {
	var heads []models.OperationID
	stale := false
	err := s.db.View(func(tx *bolt.Tx) error {
		headsBucket := tx.Bucket(bucketOpHeads)
		ops := tx.Bucket(bucketOperations)
		parents := tx.Bucket(bucketOpParents)
		c := headsBucket.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			// A recorded head that is some operation's parent, or that is
			// missing from the log, means the pointer is stale.
			if parents.Get(k) != nil || ops.Get(k) == nil {
				stale = true
			}
			heads = append(heads, models.OperationID(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(heads) == 0 || stale {
		return s.recoverHeads()
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i] < heads[j] })
	return heads, nil
}

// recoverHeads rebuilds the head set from the log itself and persists it.
func (s *OpStore) recoverHeads() ([]models.OperationID, error) {
	var leaves []models.OperationID
	err := s.db.Update(func(tx *bolt.Tx) error {
		ops := tx.Bucket(bucketOperations)
		parents := tx.Bucket(bucketOpParents)
		c := ops.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if parents.Get(k) == nil {
				leaves = append(leaves, models.OperationID(k))
			}
		}
		heads := tx.Bucket(bucketOpHeads)
		hc := heads.Cursor()
		for k, _ := hc.First(); k != nil; k, _ = hc.Next() {
			if err := hc.Delete(); err != nil {
				return err
			}
		}
		for _, id := range leaves {
			if err := heads.Put([]byte(id), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i] < leaves[j] })
	return leaves, nil
}

// ListOperations returns every operation in the log, unordered.
func (s *OpStore) ListOperations() ([]*models.Operation, error) {
	var out []*models.Operation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOperations).ForEach(func(_, v []byte) error {
			op := &models.Operation{}
			if err := json.Unmarshal(v, op); err != nil {
				return err
			}
			out = append(out, op)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
