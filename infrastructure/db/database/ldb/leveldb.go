package ldb

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	ldbErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB defines a thin wrapper around leveldb.
type LevelDB struct {
	ldb *leveldb.DB
}

// NewLevelDB opens a leveldb instance defined by the given path.
func NewLevelDB(path string) (*LevelDB, error) {
	// Open leveldb. If it doesn't exist, create it.
	ldb, err := leveldb.OpenFile(path, Options())

	// If the database is corrupted, attempt to recover.
	if _, corrupted := err.(*ldbErrors.ErrCorrupted); corrupted {
		log.Warnf("LevelDB corruption detected for path %s: %s",
			path, err)
		var err error
		ldb, err = leveldb.RecoverFile(path, Options())
		if err != nil {
			return nil, err
		}
		log.Warnf("LevelDB recovered from corruption for path %s",
			path)
	}

	// If the database cannot be opened for any other
	// reason, return the error as-is.
	if err != nil {
		return nil, err
	}

	db := &LevelDB{
		ldb: ldb,
	}
	return db, nil
}

// Close closes the leveldb instance.
func (db *LevelDB) Close() error {
	return db.ldb.Close()
}

// Put sets the value for the given key. It overwrites
// any previous value for that key.
func (db *LevelDB) Put(key []byte, value []byte) error {
	return errors.WithStack(db.ldb.Put(key, value, nil))
}

// Get gets the value for the given key. It returns
// ErrNotFound if the given key does not exist.
func (db *LevelDB) Get(key []byte) ([]byte, error) {
	data, err := db.ldb.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound,
				"key %x not found", key)
		}
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// Has returns true if the database does contains the
// given key.
func (db *LevelDB) Has(key []byte) (bool, error) {
	exists, err := db.ldb.Has(key, nil)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return exists, nil
}

// Delete deletes the value for the given key. It does not
// return an error if the key does not exist.
func (db *LevelDB) Delete(key []byte) error {
	return errors.WithStack(db.ldb.Delete(key, nil))
}

// ForEachWithPrefix iterates over all keys carrying the given prefix and
// calls fn for each key/value pair. The value slice is only valid for the
// duration of the call. Iteration stops at the first error fn returns.
func (db *LevelDB) ForEachWithPrefix(prefix []byte, fn func(key, value []byte) error) error {
	iterator := db.ldb.NewIterator(util.BytesPrefix(prefix), nil)
	defer iterator.Release()

	for iterator.Next() {
		err := fn(iterator.Key(), iterator.Value())
		if err != nil {
			return err
		}
	}
	return errors.WithStack(iterator.Error())
}

// ErrNotFound denotes that the requested key does not
// exist in the database.
var ErrNotFound = errors.New("key not found")
