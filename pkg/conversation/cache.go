package conversation

import "sync"

// sessionCache keeps the full history of recently read sessions. Entries
// are copied both in and out so no caller ever holds a reference into the
// cache.
type sessionCache struct {
	mu       sync.RWMutex
	sessions map[string][]Message
}

func newSessionCache() *sessionCache {
	return &sessionCache{sessions: make(map[string][]Message)}
}

func (c *sessionCache) Get(sessionID string) ([]Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	messages, ok := c.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return copyMessages(messages), true
}

func (c *sessionCache) Put(sessionID string, messages []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = copyMessages(messages)
}

func (c *sessionCache) Invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

func copyMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}
