package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"
)

var (
	endpointsBucketName = []byte("endpoints")

	// ErrLocked means another process holds the database.
	ErrLocked = errors.New("database is locked by another process")
)

// Endpoint is the enumeration endpoint last seen working for an owner kind.
type Endpoint struct {
	URL        string    `json:"url"`
	OwnerParam string    `json:"owner_param"`
	VerifiedAt time.Time `json:"verified_at"`
}

// Storage persists discovered endpoints across runs.
type Storage struct {
	db *bbolt.DB
}

func Open(path string) (*Storage, error) {
	opts := &bbolt.Options{ //nolint:exhaustruct
		NoFreelistSync: true,
		ReadOnly:       false,
		Timeout:        1 * time.Second,
		NoGrowSync:     false,
		FreelistType:   bbolt.FreelistArrayType,
	}
	db, err := bbolt.Open(path, 0o600, opts)
	if nil != err {
		if errors.Is(err, bberrors.ErrTimeout) {
			return nil, ErrLocked
		}

		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := createBuckets(db); nil != err {
		if closeErr := db.Close(); nil != closeErr {
			return nil, fmt.Errorf("failed to create buckets: %v (close: %v)", err, closeErr)
		}

		return nil, fmt.Errorf("failed to create buckets: %v", err)
	}

	return &Storage{db: db}, nil
}

func createBuckets(db *bbolt.DB) error {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(endpointsBucketName); nil != err {
			return fmt.Errorf("failed to create endpoints bucket: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to create buckets: %v", err)
	}

	return nil
}

func (s *Storage) Close() error {
	if err := s.db.Close(); nil != err {
		return fmt.Errorf("failed to close database: %v", err)
	}

	return nil
}

// LoadEndpoint returns nil without error when nothing is stored for kind.
func (s *Storage) LoadEndpoint(_ context.Context, kind string) (*Endpoint, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(endpointsBucketName).Get([]byte(kind)); nil != v {
			raw = append([]byte(nil), v...)
		}

		return nil
	})
	if nil != err {
		return nil, fmt.Errorf("failed to load endpoint: %v", err)
	}

	if nil == raw {
		return nil, nil //nolint:nilnil
	}

	var ep Endpoint
	if err := json.Unmarshal(raw, &ep); nil != err {
		return nil, fmt.Errorf("failed to decode stored endpoint: %v", err)
	}

	return &ep, nil
}

func (s *Storage) StoreEndpoint(_ context.Context, kind string, ep Endpoint) error {
	raw, err := json.Marshal(ep)
	if nil != err {
		return fmt.Errorf("failed to encode endpoint: %v", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(endpointsBucketName).Put([]byte(kind), raw); nil != err {
			return fmt.Errorf("failed to store endpoint: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to store endpoint: %v", err)
	}

	return nil
}

func (s *Storage) DeleteEndpoint(_ context.Context, kind string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(endpointsBucketName).Delete([]byte(kind)); nil != err {
			return fmt.Errorf("failed to delete endpoint: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to delete endpoint: %v", err)
	}

	return nil
}
