package ble

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/Hemanth143-hy/heart-rate-server/internal/gattdb"
)

var errStopped = errors.New("ble: peripheral stopped")

// Options configures the peripheral behavior.
type Options struct {
	LocalName      string        // advertised local name
	Interval       time.Duration // advertising interval (default 100ms)
	ReadvertiseMax int           // max re-advertise backoff in seconds (default 30)
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Interval:       100 * time.Millisecond,
		ReadvertiseMax: 30,
	}
}

// Peripheral publishes an attribute database through an Adapter and
// advertises until stopped. Advertising resumes after a central disconnects.
type Peripheral struct {
	adapter Adapter
	db      *gattdb.Database
	idx     *gattdb.Index
	opts    Options

	// advMu serializes advertising calls to the adapter against Stop.
	advMu sync.Mutex

	mu          sync.Mutex
	started     bool
	stopped     bool
	advertising bool
	centrals    map[string]bool

	sleep func(time.Duration)
}

// NewPeripheral creates a peripheral for db whose values are backed by idx.
// The index must only reference value handles of db.
func NewPeripheral(adapter Adapter, db *gattdb.Database, idx *gattdb.Index, opts Options) (*Peripheral, error) {
	if err := idx.Verify(db); err != nil {
		return nil, fmt.Errorf("ble: verify index: %w", err)
	}
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.ReadvertiseMax <= 0 {
		opts.ReadvertiseMax = 30
	}
	return &Peripheral{
		adapter:  adapter,
		db:       db,
		idx:      idx,
		opts:     opts,
		centrals: make(map[string]bool),
		sleep:    time.Sleep,
	}, nil
}

// Services returns the services to register with the host stack. The GAP
// and GATT services belong to the stack itself and are skipped, as are
// descriptors: stacks generate the CCCD of notifying characteristics.
func (p *Peripheral) Services() []Service {
	var out []Service
	for _, s := range p.db.Services() {
		uuid := s.UUID()
		if uuid == gattdb.UUIDServiceGAP || uuid == gattdb.UUIDServiceGATT {
			continue
		}
		svc := Service{Handle: s.Declaration.Handle, UUID: uuid}
		for _, c := range s.Characteristics {
			ch := Characteristic{
				Handle:     c.Value.Handle,
				UUID:       c.Declaration.UUID,
				Properties: c.Declaration.Properties,
			}
			if b, ok := p.idx.Lookup(c.Value.Handle); ok {
				ch.Value = b.Bytes()
			}
			svc.Characteristics = append(svc.Characteristics, ch)
		}
		out = append(out, svc)
	}
	return out
}

func (p *Peripheral) advertisement() AdvertisementOptions {
	var uuids []bluetooth.UUID
	for _, s := range p.Services() {
		if s.UUID != gattdb.UUIDServiceDeviceInformation {
			uuids = append(uuids, s.UUID)
		}
	}
	return AdvertisementOptions{
		LocalName:    p.opts.LocalName,
		ServiceUUIDs: uuids,
		Interval:     p.opts.Interval,
	}
}

// Start enables the adapter, registers the services and starts advertising.
// A failed Start may be retried.
func (p *Peripheral) Start() (err error) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("ble: peripheral already started")
	}
	p.started = true
	p.mu.Unlock()

	defer func() {
		if err != nil {
			p.mu.Lock()
			p.started = false
			p.mu.Unlock()
		}
	}()

	if err := p.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	for _, svc := range p.Services() {
		if err := p.adapter.AddService(svc); err != nil {
			return fmt.Errorf("ble: add service %s: %w", gattdb.UUIDName(svc.UUID), err)
		}
		slog.Debug("[BLE] service registered", "uuid", svc.UUID.String(), "characteristics", len(svc.Characteristics))
	}

	p.adapter.SetConnectHandler(p.handleConnect)

	if err := p.startAdvertising(); err != nil {
		return err
	}
	slog.Info("[BLE] advertising", "name", p.opts.LocalName, "interval", p.opts.Interval)
	return nil
}

func (p *Peripheral) startAdvertising() error {
	p.advMu.Lock()
	defer p.advMu.Unlock()

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return errStopped
	}

	if err := p.adapter.StartAdvertising(p.advertisement()); err != nil {
		return fmt.Errorf("ble: start advertising: %w", err)
	}
	p.mu.Lock()
	p.advertising = true
	p.mu.Unlock()
	return nil
}

func (p *Peripheral) handleConnect(addr string, connected bool) {
	p.mu.Lock()
	if connected {
		p.centrals[addr] = true
		// Most controllers stop advertising once a connection is made.
		p.advertising = false
		p.mu.Unlock()
		slog.Info("[BLE] central connected", "addr", addr)
		return
	}
	delete(p.centrals, addr)
	resume := !p.stopped && len(p.centrals) == 0
	p.mu.Unlock()

	slog.Info("[BLE] central disconnected", "addr", addr)
	if resume {
		go p.readvertiseLoop()
	}
}

// readvertiseLoop restarts advertising with exponential backoff.
func (p *Peripheral) readvertiseLoop() {
	for attempt := 0; ; attempt++ {
		// On the first attempt, try immediately; subsequent attempts use backoff.
		if attempt > 0 {
			delay := backoffDelay(attempt-1, p.opts.ReadvertiseMax)
			slog.Info("[BLE] re-advertise backoff", "attempt", attempt+1, "delay", delay)
			p.sleep(delay)
		}

		p.mu.Lock()
		done := p.stopped || p.advertising || len(p.centrals) > 0
		p.mu.Unlock()
		if done {
			return
		}

		if err := p.startAdvertising(); err != nil {
			if errors.Is(err, errStopped) {
				return
			}
			slog.Warn("[BLE] re-advertise failed", "error", err, "attempt", attempt+1)
			continue
		}
		slog.Info("[BLE] advertising resumed")
		return
	}
}

// Advertising reports whether the peripheral believes it is advertising.
func (p *Peripheral) Advertising() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.advertising
}

// Connected returns the number of connected centrals.
func (p *Peripheral) Connected() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.centrals)
}

// Stop stops advertising. Re-advertising after later disconnects is
// suppressed.
func (p *Peripheral) Stop() error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	// Waits for an in-flight start, so its advertising is stopped below.
	p.advMu.Lock()
	defer p.advMu.Unlock()

	p.mu.Lock()
	wasAdvertising := p.advertising
	p.advertising = false
	p.mu.Unlock()

	if !wasAdvertising {
		return nil
	}
	if err := p.adapter.StopAdvertising(); err != nil {
		return fmt.Errorf("ble: stop advertising: %w", err)
	}
	slog.Info("[BLE] advertising stopped")
	return nil
}

// backoffDelay returns the delay for attempt n, capped at maxSeconds.
func backoffDelay(attempt int, maxSeconds int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	max := time.Duration(maxSeconds) * time.Second
	if delay > max {
		return max
	}
	return delay
}
