package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

const keyPrefix = "recording:"

// BadgerCatalog хранит RecordingInfo в BadgerDB в виде JSON
type BadgerCatalog struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// OpenBadger открывает каталог в каталоге dbPath.
// Пустой dbPath открывает каталог в памяти.
func OpenBadger(dbPath string) (*BadgerCatalog, error) {
	opts := badger.DefaultOptions(dbPath)
	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open catalog %q: %w", dbPath, err)
	}

	return &BadgerCatalog{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

func recordingKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Close закрывает хранилище
func (c *BadgerCatalog) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.isReady {
		return nil
	}
	c.isReady = false
	return c.db.Close()
}

// Put сохраняет или заменяет сведения о записи
func (c *BadgerCatalog) Put(ctx context.Context, info RecordingInfo) error {
	if info.ID == "" {
		return errors.New("catalog: empty recording id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return ErrNotReady
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal recording %s: %w", info.ID, err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordingKey(info.ID), data)
	})
	if err != nil {
		return fmt.Errorf("put recording %s: %w", info.ID, err)
	}
	return nil
}

// Get загружает сведения о записи по ID
func (c *BadgerCatalog) Get(ctx context.Context, id string) (RecordingInfo, error) {
	if err := ctx.Err(); err != nil {
		return RecordingInfo{}, err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return RecordingInfo{}, ErrNotReady
	}

	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordingKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return RecordingInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return RecordingInfo{}, fmt.Errorf("get recording %s: %w", id, err)
	}

	var info RecordingInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return RecordingInfo{}, fmt.Errorf("decode recording %s: %w", id, err)
	}
	return info, nil
}

// List возвращает все записи по времени начала
func (c *BadgerCatalog) List(ctx context.Context) ([]RecordingInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return nil, ErrNotReady
	}

	var out []RecordingInfo
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var info RecordingInfo
				if err := json.Unmarshal(val, &info); err != nil {
					return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
				}
				out = append(out, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// Delete удаляет запись из каталога; файл записи не трогает
func (c *BadgerCatalog) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.isReady {
		return ErrNotReady
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordingKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	return nil
}
