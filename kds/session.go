package kds

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-orders/metrics"
	"github.com/yeremiapane/restaurant-orders/utils"
)

const (
	frameRegister = "register"
	framePing     = "ping"
)

var (
	pongFrame        = []byte(`{"type":"pong"}`)
	invalidJSONFrame = []byte(`{"error":"Invalid JSON format"}`)
)

// SessionState is where a connection is in the handshake protocol.
type SessionState int

const (
	SessionAwaitingRegistration SessionState = iota
	SessionActive
	SessionTerminal
)

func (s SessionState) String() string {
	switch s {
	case SessionAwaitingRegistration:
		return "awaiting-registration"
	case SessionActive:
		return "active"
	case SessionTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// inboundFrame is what the protocol reads from a client message. A field
// that is absent or not a JSON string is left empty.
type inboundFrame struct {
	Type       string
	ClientType string
}

// parseFrame reports false only when data is not a JSON object.
func parseFrame(data []byte) (inboundFrame, bool) {
	var f inboundFrame
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return f, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return f, false
	}
	f.Type = stringField(fields, "type")
	f.ClientType = stringField(fields, "client_type")
	return f, true
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var v string
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, &v)
	}
	return v
}

// SessionHandler runs the per-connection protocol: role handshake, then the
// register/ping loop until the transport fails.
type SessionHandler struct {
	registry   *Registry
	classifier RoleClassifier

	// live holds every connection between Serve and terminate, including
	// those still waiting for their first frame.
	mu   sync.Mutex
	live map[string]FrameConn
}

func NewSessionHandler(registry *Registry, classifier RoleClassifier) *SessionHandler {
	if classifier == nil {
		classifier = SelfDeclaredClassifier{}
	}
	return &SessionHandler{
		registry:   registry,
		classifier: classifier,
		live:       make(map[string]FrameConn),
	}
}

// Live is the number of connections currently being served.
func (h *SessionHandler) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// CloseAll closes every served connection. Each Serve then runs its normal
// termination. It returns how many connections were closed.
func (h *SessionHandler) CloseAll() int {
	h.mu.Lock()
	conns := make([]FrameConn, 0, len(h.live))
	for _, c := range h.live {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}

func (h *SessionHandler) track(c FrameConn) {
	h.mu.Lock()
	h.live[c.ID()] = c
	h.mu.Unlock()
}

func (h *SessionHandler) untrack(c FrameConn) {
	h.mu.Lock()
	delete(h.live, c.ID())
	h.mu.Unlock()
}

// session is the state owned by one Serve call.
type session struct {
	h     *SessionHandler
	conn  FrameConn
	claim string
	state SessionState
	role  Role
	log   *logrus.Entry
	once  sync.Once
}

// Serve blocks until conn disconnects. It always ends by unregistering the
// connection exactly once and closing it.
func (h *SessionHandler) Serve(conn FrameConn, claim string) {
	s := &session{
		h:     h,
		conn:  conn,
		claim: claim,
		state: SessionAwaitingRegistration,
		role:  RoleCustomer,
		log:   utils.InfoLogger.WithField("conn_id", conn.ID()),
	}
	h.track(conn)
	defer s.terminate()

	data, err := conn.ReadFrame()
	if err != nil {
		s.log.WithError(err).Debug("connection closed before registration")
		return
	}
	if !s.handshake(data) {
		return
	}

	for {
		data, err := conn.ReadFrame()
		if err != nil {
			s.log.WithError(err).Debug("connection closed")
			return
		}
		if !s.handle(data) {
			return
		}
	}
}

// handshake registers the connection from its first frame. A first frame
// that is not a register message is processed as an Active frame after the
// default customer registration.
func (s *session) handshake(data []byte) bool {
	f, ok := parseFrame(data)
	role := RoleCustomer
	if ok && f.Type == frameRegister {
		if declared, valid := ParseRole(f.ClientType); valid {
			role = s.h.classifier.Classify(declared, s.claim)
		} else {
			s.log.WithField("client_type", f.ClientType).Warn("unknown client_type, registering as customer")
		}
	}

	s.role = role
	s.h.registry.Register(s.conn, role)
	s.state = SessionActive
	s.log.WithField("role", role).Info("client registered")

	if ok && f.Type == frameRegister {
		metrics.InboundFramesTotal.WithLabelValues(frameRegister).Inc()
		return true
	}
	return s.process(f, ok)
}

func (s *session) handle(data []byte) bool {
	f, ok := parseFrame(data)
	return s.process(f, ok)
}

// process applies the Active-state rules. It returns false once a reply
// could not be written.
func (s *session) process(f inboundFrame, ok bool) bool {
	if !ok {
		metrics.InboundFramesTotal.WithLabelValues("invalid").Inc()
		return s.reply(invalidJSONFrame)
	}

	switch f.Type {
	case frameRegister:
		metrics.InboundFramesTotal.WithLabelValues(frameRegister).Inc()
		declared, valid := ParseRole(f.ClientType)
		if !valid {
			s.log.WithField("client_type", f.ClientType).Warn("ignoring register with unknown client_type")
			return true
		}
		role := s.h.classifier.Classify(declared, s.claim)
		if role != s.role {
			s.h.registry.Register(s.conn, role)
			s.log.WithFields(logrus.Fields{"from": s.role, "to": role}).Info("client role changed")
			s.role = role
		}
		return true
	case framePing:
		metrics.InboundFramesTotal.WithLabelValues(framePing).Inc()
		return s.reply(pongFrame)
	default:
		metrics.InboundFramesTotal.WithLabelValues("other").Inc()
		return true
	}
}

func (s *session) reply(frame []byte) bool {
	if err := s.conn.Send(frame); err != nil {
		s.log.WithError(err).Warn("reply failed")
		return false
	}
	return true
}

func (s *session) terminate() {
	s.once.Do(func() {
		s.state = SessionTerminal
		s.h.registry.Unregister(s.conn, s.role)
		s.h.untrack(s.conn)
		_ = s.conn.Close()
		s.log.WithField("role", s.role).Info("client disconnected")
	})
}
