// Package credstore holds the current bearer credential and cached profile,
// replicated under legacy key aliases across a persistent and an ephemeral
// storage scope.
package credstore

import (
	"sync"

	"github.com/pkg/errors"
	errs "github.com/servio/clientcore/internal/errors"
)

// Store replicates session state across all of its scopes. Writes hit every
// alias in every scope; reads return the first populated location. All
// access is serialised so a reader can never observe a half-written
// replication.
type Store struct {
	lock   sync.Mutex
	scopes []Scope
}

// New creates a Store over the given scopes. The persistent scope should
// come first so reads prefer it.
func New(scopes ...Scope) (*Store, error) {
	if len(scopes) == 0 {
		return nil, errors.New("[credstore.New] at least one scope is required")
	}
	for _, s := range scopes {
		if s == nil {
			return nil, errors.New("[credstore.New] nil scope")
		}
	}
	return &Store{scopes: scopes}, nil
}

// Credential returns the stored bearer credential.
func (s *Store) Credential() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.firstPopulated(CredentialKeys)
}

// SetCredential writes the credential to every location. If any location
// fails, the previous value is restored everywhere before returning the
// error.
func (s *Store) SetCredential(credential string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.replicate(CredentialKeys, credential)
}

// Profile returns the cached profile blob.
func (s *Store) Profile() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.firstPopulated(ProfileKeys)
}

// SetProfile writes the profile blob to every location.
func (s *Store) SetProfile(profile string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.replicate(ProfileKeys, profile)
}

// ClearSession removes the credential and the cached profile from every
// location.
func (s *Store) ClearSession() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	var firstErr error
	for _, keys := range [][]string{CredentialKeys, ProfileKeys} {
		for _, key := range keys {
			for _, scope := range s.scopes {
				if err := scope.Delete(key); err != nil && firstErr == nil {
					firstErr = errors.Wrapf(err, "[Store.ClearSession] deleting %q", key)
				}
			}
		}
	}
	return firstErr
}

func (s *Store) firstPopulated(keys []string) (string, error) {
	for _, scope := range s.scopes {
		for _, key := range keys {
			value, err := scope.Get(key)
			if err == nil && value != "" {
				return value, nil
			}
		}
	}
	return "", errs.ErrKeyNotFound
}

func (s *Store) replicate(keys []string, value string) error {
	previous, hadPrevious := "", false
	if v, err := s.firstPopulated(keys); err == nil {
		previous, hadPrevious = v, true
	}

	for _, key := range keys {
		for _, scope := range s.scopes {
			if err := scope.Set(key, value); err != nil {
				s.rollback(keys, previous, hadPrevious)
				return errors.Wrapf(err, "[Store.replicate] writing %q", key)
			}
		}
	}
	return nil
}

// rollback restores the previous value after a partial write so that the
// replication invariant holds even on failure. Best effort.
func (s *Store) rollback(keys []string, previous string, hadPrevious bool) {
	for _, key := range keys {
		for _, scope := range s.scopes {
			if hadPrevious {
				_ = scope.Set(key, previous)
			} else {
				_ = scope.Delete(key)
			}
		}
	}
}
