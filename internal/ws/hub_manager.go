package ws

import "sync"

// HubManager keeps one hub per topic ("dashboard", "history", ...).
type HubManager struct {
	hubs               map[string]*Hub
	mu                 sync.Mutex
	defaultHistorySize int
}

func NewHubManager(defaultHistorySize int) *HubManager {
	return &HubManager{
		hubs:               make(map[string]*Hub),
		defaultHistorySize: defaultHistorySize,
	}
}

// GetHub returns the hub for topic, starting it on first use.
func (m *HubManager) GetHub(topic string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[topic]; ok {
		return hub
	}

	hub := NewHubWithHistorySize(m.defaultHistorySize)
	go hub.Run()
	m.hubs[topic] = hub
	return hub
}

func (m *HubManager) RemoveHub(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[topic]; ok {
		hub.Stop()
		delete(m.hubs, topic)
	}
}

// StopAll stops every hub. Used on shutdown.
func (m *HubManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for topic, hub := range m.hubs {
		hub.Stop()
		delete(m.hubs, topic)
	}
}
