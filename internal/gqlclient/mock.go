package gqlclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	language "github.com/hanpama/gqlbridge/internal/language"
)

// MockCall captures a single dispatch for assertions.
type MockCall struct {
	Kind    language.Operation
	Request Request
	ID      string
}

// MockClient implements Client for tests. By default every dispatch resolves
// on a new goroutine with the next seeded outcome. A holding mock keeps each
// dispatch pending until Resolve or Cancel.
type MockClient struct {
	mu       sync.Mutex
	outcomes []Outcome
	idx      int
	hold     bool
	calls    []MockCall
	ops      []*mockOperation
	wg       sync.WaitGroup
}

var _ Client = (*MockClient)(nil)

// NewMockClient returns a client that resolves successive dispatches with
// outcomes in order. Once they run out, dispatches fail with a TransportError.
func NewMockClient(outcomes ...Outcome) *MockClient {
	cp := make([]Outcome, len(outcomes))
	copy(cp, outcomes)
	return &MockClient{outcomes: cp}
}

// NewHoldingMockClient returns a client whose dispatches stay in flight until
// the test resolves them.
func NewHoldingMockClient() *MockClient {
	return &MockClient{hold: true}
}

type mockOperation struct {
	id   string
	once sync.Once
	cb   Callback
}

func (o *mockOperation) ID() string { return o.id }

func (o *mockOperation) Cancel() { o.resolve(TransportError{Err: ErrCanceled}) }

func (o *mockOperation) resolve(out Outcome) bool {
	fired := false
	o.once.Do(func() {
		fired = true
		o.cb(out)
	})
	return fired
}

func (m *MockClient) Query(ctx context.Context, req Request, cb Callback) Operation {
	return m.dispatch(language.Query, req, cb)
}

func (m *MockClient) Mutate(ctx context.Context, req Request, cb Callback) Operation {
	return m.dispatch(language.Mutation, req, cb)
}

func (m *MockClient) dispatch(kind language.Operation, req Request, cb Callback) Operation {
	op := &mockOperation{id: uuid.NewString(), cb: cb}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Kind: kind, Request: req, ID: op.id})
	m.ops = append(m.ops, op)
	if m.hold {
		return op
	}

	var out Outcome = TransportError{Err: fmt.Errorf("mock client: no more outcomes")}
	if m.idx < len(m.outcomes) {
		out = m.outcomes[m.idx]
	}
	m.idx++
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		op.resolve(out)
	}()
	return op
}

// Resolve fires the callback of the i-th dispatch with out on the calling
// goroutine. It reports false if that dispatch already completed.
func (m *MockClient) Resolve(i int, out Outcome) bool {
	m.mu.Lock()
	if i < 0 || i >= len(m.ops) {
		m.mu.Unlock()
		return false
	}
	op := m.ops[i]
	m.mu.Unlock()
	return op.resolve(out)
}

// Calls returns a snapshot of recorded dispatches.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Wait blocks until every automatically resolved dispatch has fired.
func (m *MockClient) Wait() { m.wg.Wait() }
