package issuerfakes

import (
	"context"
	"errors"
	"sync"

	"github.com/servio/clientcore/session"
)

var _ session.Issuer = (*FakeIssuer)(nil)

// IssueResult is one scripted response.
type IssueResult struct {
	Credential *session.Credential
	Err        error
}

// FakeIssuer returns scripted responses in order; once the queue drains,
// the last consumed response repeats. An optional gate makes Issue block,
// for exercising concurrent callers.
type FakeIssuer struct {
	lock    sync.Mutex
	results []IssueResult
	last    *IssueResult
	gate    chan struct{}
	started chan struct{}
	count   int
}

func NewFakeIssuer() *FakeIssuer {
	return &FakeIssuer{}
}

// Enqueue appends a scripted response.
func (f *FakeIssuer) Enqueue(credential *session.Credential, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.results = append(f.results, IssueResult{Credential: credential, Err: err})
}

// SetGate makes subsequent Issue calls block until ch is closed.
func (f *FakeIssuer) SetGate(ch chan struct{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.gate = ch
}

// SetStarted makes Issue signal ch (non-blocking) when a call begins,
// before any gate wait.
func (f *FakeIssuer) SetStarted(ch chan struct{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.started = ch
}

// IssueCount returns how many Issue calls have been made.
func (f *FakeIssuer) IssueCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.count
}

func (f *FakeIssuer) Issue(ctx context.Context) (*session.Credential, error) {
	f.lock.Lock()
	gate := f.gate
	started := f.started
	f.lock.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	f.count++
	if len(f.results) > 0 {
		result := f.results[0]
		f.results = f.results[1:]
		f.last = &result
		return result.Credential, result.Err
	}
	if f.last != nil {
		return f.last.Credential, f.last.Err
	}
	return nil, errors.New("fake issuer: no scripted result")
}
