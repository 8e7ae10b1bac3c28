package ble

import (
	"errors"
	"sync"
	"testing"
)

var (
	errMockAdvertise = errors.New("mock: advertising failed")
	errMockEnable    = errors.New("mock: enable failed")
)

// mockAdapter records calls and lets tests drive connection events.
type mockAdapter struct {
	mu          sync.Mutex
	enabled     bool
	services    []Service
	starts      []AdvertisementOptions
	stops       int
	failStarts  int // number of StartAdvertising calls to fail
	failEnable  bool
	// When set, StartAdvertising signals entered and waits for release.
	entered     chan struct{}
	release     chan struct{}
	handler     func(addr string, connected bool)
	startSignal chan struct{}
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{startSignal: make(chan struct{}, 16)}
}

func (a *mockAdapter) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failEnable {
		return errMockEnable
	}
	a.enabled = true
	return nil
}

func (a *mockAdapter) AddService(svc Service) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.services = append(a.services, svc)
	return nil
}

func (a *mockAdapter) StartAdvertising(opts AdvertisementOptions) error {
	a.mu.Lock()
	entered, release := a.entered, a.release
	a.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	a.mu.Lock()
	if a.failStarts > 0 {
		a.failStarts--
		a.mu.Unlock()
		return errMockAdvertise
	}
	a.starts = append(a.starts, opts)
	a.mu.Unlock()
	a.startSignal <- struct{}{}
	return nil
}

func (a *mockAdapter) StopAdvertising() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
	return nil
}

func (a *mockAdapter) SetConnectHandler(handler func(addr string, connected bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = handler
}

// SimulateConnect fires the registered connect handler.
func (a *mockAdapter) SimulateConnect(addr string, connected bool) {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	if h != nil {
		h(addr, connected)
	}
}

func (a *mockAdapter) startCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.starts)
}

func (a *mockAdapter) stopCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stops
}

func TestMockAdapterImplementsInterface(t *testing.T) {
	var _ Adapter = (*mockAdapter)(nil)
}
