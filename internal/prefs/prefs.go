// Package prefs persists per-display panel preferences in a small
// key-value store. The only preference today is the display language.
package prefs

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNoPreference is returned when a display has no stored value.
var ErrNoPreference = errors.New("no stored preference")

const bucketLanguage = "language"

// Store is a bbolt-backed preference store.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the preference database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open preference store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketLanguage))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize preference store: %w", err)
	}
	return &Store{db: db}, nil
}

// Language returns the stored language code for a display.
func (s *Store) Language(displayID string) (string, error) {
	var lang string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketLanguage)).Get([]byte(displayID))
		if v == nil {
			return ErrNoPreference
		}
		lang = string(v)
		return nil
	})
	return lang, err
}

// SetLanguage stores the language code for a display.
func (s *Store) SetLanguage(displayID, lang string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketLanguage)).Put([]byte(displayID), []byte(lang))
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
