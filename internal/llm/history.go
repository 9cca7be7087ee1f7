package llm

import "sync"

// conversation is the state every backend shares: system prompt, exchange
// turns and the pending mood directive. mu is held for a whole exchange so
// two callers never interleave their turns on the same backend.
type conversation struct {
	mu     sync.Mutex
	system string
	turns  []Turn
	mood   string
	limit  int
}

func newConversation(system string) *conversation {
	return &conversation{system: system, limit: MaxTurns}
}

func (c *conversation) SetMoodContext(directive string) {
	c.mu.Lock()
	c.mood = directive
	c.mu.Unlock()
}

func (c *conversation) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, 0, len(c.turns)+1)
	out = append(out, Turn{Role: RoleSystem, Content: c.system})
	return append(out, c.turns...)
}

func (c *conversation) Reset() {
	c.mu.Lock()
	c.turns = nil
	c.mu.Unlock()
}

// Caller must hold mu.
func (c *conversation) decorate(userText string) string {
	return Decorate(c.mood, userText)
}

// record records a successful exchange, drops the mood directive it carried
// and trims the oldest turns past the limit. It reports whether anything was
// dropped. Caller must hold mu.
func (c *conversation) record(user, assistant string) (trimmed bool) {
	c.mood = ""
	c.turns = append(c.turns,
		Turn{Role: RoleUser, Content: user},
		Turn{Role: RoleAssistant, Content: assistant},
	)
	if over := len(c.turns) - c.limit; over > 0 {
		kept := make([]Turn, c.limit)
		copy(kept, c.turns[over:])
		c.turns = kept
		return true
	}
	return false
}
