package server

import (
	"log/slog"
	"sync"
)

// Events is a callback registry for observers of the server, such as an
// admin console. Listeners are invoked sequentially on the goroutine that
// produced the event; a panicking listener is logged and skipped.
type Events struct {
	mu           sync.RWMutex
	connected    []func(username string)
	disconnected []func(username string)
	started      []func(addr string)
	closed       []func()
	logs         []func(line string)
}

// OnConnected registers fn for sessions entering the registry.
func (e *Events) OnConnected(fn func(username string)) {
	e.mu.Lock()
	e.connected = append(e.connected, fn)
	e.mu.Unlock()
}

// OnDisconnected registers fn for sessions leaving the registry.
func (e *Events) OnDisconnected(fn func(username string)) {
	e.mu.Lock()
	e.disconnected = append(e.disconnected, fn)
	e.mu.Unlock()
}

// OnStarted registers fn for the listener becoming ready.
func (e *Events) OnStarted(fn func(addr string)) {
	e.mu.Lock()
	e.started = append(e.started, fn)
	e.mu.Unlock()
}

// OnClosed registers fn for server shutdown.
func (e *Events) OnClosed(fn func()) {
	e.mu.Lock()
	e.closed = append(e.closed, fn)
	e.mu.Unlock()
}

// OnLog registers fn for human-readable server log lines.
func (e *Events) OnLog(fn func(line string)) {
	e.mu.Lock()
	e.logs = append(e.logs, fn)
	e.mu.Unlock()
}

func (e *Events) emitConnected(username string) {
	e.mu.RLock()
	fns := e.connected
	e.mu.RUnlock()
	for _, fn := range fns {
		safeCall("connected", func() { fn(username) })
	}
}

func (e *Events) emitDisconnected(username string) {
	e.mu.RLock()
	fns := e.disconnected
	e.mu.RUnlock()
	for _, fn := range fns {
		safeCall("disconnected", func() { fn(username) })
	}
}

func (e *Events) emitStarted(addr string) {
	e.mu.RLock()
	fns := e.started
	e.mu.RUnlock()
	for _, fn := range fns {
		safeCall("started", func() { fn(addr) })
	}
}

func (e *Events) emitClosed() {
	e.mu.RLock()
	fns := e.closed
	e.mu.RUnlock()
	for _, fn := range fns {
		safeCall("closed", fn)
	}
}

func (e *Events) emitLog(line string) {
	e.mu.RLock()
	fns := e.logs
	e.mu.RUnlock()
	for _, fn := range fns {
		safeCall("log", func() { fn(line) })
	}
}

func safeCall(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event listener panicked", "event", event, "panic", r)
		}
	}()
	fn()
}
