package transport

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// preferenceOrder is the "best transport" tiebreak of spec.md §4.5:
// clipboard > QR > file.
var preferenceOrder = map[string]int{"clipboard": 0, "qr": 1, "file": 2}

// Manager holds a registry of named transports, dispatches send/receive,
// and forwards callbacks tagged with the originating transport's name
// (spec.md §4.5's TransportManager).
type Manager struct {
	mu         sync.Mutex
	transports map[string]Transport
	onMessage  MessageHandler
	onError    ErrorHandler
}

func NewManager() *Manager {
	return &Manager{transports: make(map[string]Transport)}
}

// Register adds t to the registry, keyed by t.Name(). A second call with
// the same name replaces the prior registration.
func (m *Manager) Register(t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transports[t.Name()] = t
}

// OnMessage sets the callback invoked for every item any registered
// transport surfaces, tagged with the transport's name.
func (m *Manager) OnMessage(h MessageHandler) { m.onMessage = h }

// OnError sets the callback invoked when a transport's Send (via Send) or
// Receive (via Poll) fails. Send also returns the error to its caller.
func (m *Manager) OnError(h ErrorHandler) { m.onError = h }

// Available returns the names of every registered transport currently
// reporting IsAvailable() == true.
func (m *Manager) Available() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.transports))
	for name, t := range m.transports {
		if t.IsAvailable() {
			out = append(out, name)
		}
	}
	return out
}

// Best returns the most-preferred available transport name: clipboard >
// QR > file, any others ranking below those three with no defined order
// among themselves. Returns "", false if nothing is available.
func (m *Manager) Best() (string, bool) {
	avail := m.Available()
	if len(avail) == 0 {
		return "", false
	}
	best := avail[0]
	for _, name := range avail[1:] {
		if rank(name) < rank(best) {
			best = name
		}
	}
	return best, true
}

func rank(name string) int {
	if r, ok := preferenceOrder[name]; ok {
		return r
	}
	return len(preferenceOrder) + 1
}

// Send dispatches doc through the named transport.
func (m *Manager) Send(transportName string, doc SendableDocument) ([]string, error) {
	m.mu.Lock()
	t, ok := m.transports[transportName]
	m.mu.Unlock()
	if !ok {
		logrus.WithFields(logrus.Fields{"function": "Send", "package": "transport", "transport": transportName}).
			Warn("send requested on unregistered transport")
		return nil, nil
	}
	units, err := t.Send(doc)
	if err != nil && m.onError != nil {
		m.onError(transportName, err)
	}
	return units, err
}

// Poll calls Receive on every registered transport and fans results out
// through OnMessage, tagged by origin. Intended to be called periodically
// by the embedding application's event loop.
func (m *Manager) Poll() {
	m.mu.Lock()
	snapshot := make([]Transport, 0, len(m.transports))
	for _, t := range m.transports {
		snapshot = append(snapshot, t)
	}
	m.mu.Unlock()

	for _, t := range snapshot {
		items, err := t.Receive()
		if err != nil {
			if m.onError != nil {
				m.onError(t.Name(), err)
			}
			continue
		}
		if m.onMessage == nil {
			continue
		}
		for _, item := range items {
			m.onMessage(t.Name(), item)
		}
	}
}

// StartAll calls StartListening on every registered transport, collecting
// the first error encountered (if any) while still attempting the rest.
func (m *Manager) StartAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for _, t := range m.transports {
		if err := t.StartListening(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// StopAll calls StopListening on every registered transport.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for _, t := range m.transports {
		if err := t.StopListening(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
