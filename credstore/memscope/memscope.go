// Package memscope provides the tab-scoped, in-memory storage scope.
// Contents live only as long as the process.
package memscope

import (
	"sync"

	"github.com/servio/clientcore/credstore"
	errs "github.com/servio/clientcore/internal/errors"
)

var _ credstore.Scope = (*Scope)(nil)

type Scope struct {
	lock   sync.RWMutex
	values map[string]string
}

func New() *Scope {
	return &Scope{values: make(map[string]string)}
}

func (s *Scope) Get(key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", errs.ErrKeyNotFound
	}
	return value, nil
}

func (s *Scope) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.values[key] = value
	return nil
}

func (s *Scope) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.values, key)
	return nil
}
