package bstore

import (
	"errors"
	"github.com/ValentinKolb/hmdlink/lib/store"
	"github.com/dgraph-io/badger/v4"
	"github.com/lni/dragonboat/v4/logger"
	"sync/atomic"
)

var Logger = logger.GetLogger("store")

type storeImpl struct {
	db       *badger.DB
	inMemory bool
	closed   atomic.Bool
}

// NewBadgerStore opens a badger database in dir. An empty dir creates an
// in-memory database that is lost on Close.
func NewBadgerStore(dir string) (store.IStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.
		WithLogger(logger.GetLogger("badger")).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, "failed to open badger database", err)
	}

	if dir == "" {
		Logger.Infof("Opened in-memory profile store")
	} else {
		Logger.Infof("Opened profile store in %s", dir)
	}
	return &storeImpl{db: db, inMemory: dir == ""}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if err := s.check(key); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return wrap("set", err)
}

func (s *storeImpl) Delete(key string) error {
	if err := s.check(key); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return wrap("delete", err)
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if err := s.check(key); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get", err)
	}
	return value, true, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrap("has", err)
	}
	return true, nil
}

func (s *storeImpl) Keys(prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, wrap("keys", err)
}

func (s *storeImpl) GetDBInfo() (store.DatabaseInfo, error) {
	if s.closed.Load() {
		return store.DatabaseInfo{}, store.ErrClosed
	}

	keys, err := s.Keys("")
	if err != nil {
		return store.DatabaseInfo{}, err
	}
	lsm, vlog := s.db.Size()

	return store.DatabaseInfo{
		Engine:   "badger",
		InMemory: s.inMemory,
		Keys:     uint64(len(keys)),
		LSMSize:  lsm,
		VLogSize: vlog,
	}, nil
}

func (s *storeImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	Logger.Infof("Closing profile store")
	return wrap("close", s.db.Close())
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *storeImpl) check(key string) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if key == "" {
		return store.ErrInvalidKey
	}
	return nil
}

// wrap converts a badger error into a store error
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return store.NewError(store.RetCInternalError, op+" failed", err)
}
