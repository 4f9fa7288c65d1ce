// Package cancel tracks replies that are still being generated so that a
// user can abandon them, for example by clearing the conversation.
package cancel

import (
	"context"
	"fmt"
	"sync"
)

type Manager struct {
	requests map[string]*activeRequest
	mu       sync.RWMutex
}

type activeRequest struct {
	cancel    context.CancelFunc
	userID    int64
	messageID int
	command   string
}

type ActiveRequestInfo struct {
	UserID    int64
	MessageID int
	Command   string
}

func NewManager() *Manager {
	return &Manager{
		requests: make(map[string]*activeRequest),
	}
}

func (m *Manager) makeKey(userID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", userID, messageID)
}

// Register derives a cancellable context from parent for the message
// (userID, messageID). The returned release func cancels the context and
// forgets the request; it must always be called.
func (m *Manager) Register(parent context.Context, userID int64, messageID int, command string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	key := m.makeKey(userID, messageID)
	req := &activeRequest{
		cancel:    cancel,
		userID:    userID,
		messageID: messageID,
		command:   command,
	}

	m.mu.Lock()
	m.requests[key] = req
	m.mu.Unlock()

	release := func() {
		cancel()
		m.mu.Lock()
		defer m.mu.Unlock()
		// A newer registration under the same key is left alone.
		if m.requests[key] == req {
			delete(m.requests, key)
		}
	}
	return ctx, release
}

func (m *Manager) Cancel(userID int64, messageID int) bool {
	m.mu.RLock()
	req, exists := m.requests[m.makeKey(userID, messageID)]
	m.mu.RUnlock()

	if !exists {
		return false
	}

	req.cancel()
	return true
}

// CancelUser cancels every request registered for userID and reports how
// many there were.
func (m *Manager) CancelUser(userID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cancelled := 0
	for _, req := range m.requests {
		if req.userID == userID {
			req.cancel()
			cancelled++
		}
	}
	return cancelled
}

func (m *Manager) IsActive(userID int64, messageID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.requests[m.makeKey(userID, messageID)]
	return exists
}

func (m *Manager) GetActiveRequest(userID int64, messageID int) *ActiveRequestInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, exists := m.requests[m.makeKey(userID, messageID)]
	if !exists {
		return nil
	}

	return &ActiveRequestInfo{
		UserID:    req.userID,
		MessageID: req.messageID,
		Command:   req.command,
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}
