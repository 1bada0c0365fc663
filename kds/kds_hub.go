package kds

// Hub bundles the registry with the dispatcher and session handler that
// share it. One Hub is built at startup and injected wherever events are
// emitted or connections are served.
type Hub struct {
	Registry   *Registry
	Dispatcher *Dispatcher
	Sessions   *SessionHandler
}

func NewHub(classifier RoleClassifier) *Hub {
	registry := NewRegistry()
	return &Hub{
		Registry:   registry,
		Dispatcher: NewDispatcher(registry),
		Sessions:   NewSessionHandler(registry, classifier),
	}
}

// Broadcast delivers ev to its audience.
func (h *Hub) Broadcast(ev Event) BroadcastResult {
	return h.Dispatcher.Broadcast(ev)
}
