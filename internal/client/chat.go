package client

import "oreinfinium.net/internal/protocol"

// Chat keeps the most recent lines, oldest first.
type Chat struct {
	lines []protocol.ChatMessage
	start int
	n     int
}

func NewChat(max int) *Chat {
	return &Chat{lines: make([]protocol.ChatMessage, max)}
}

func (c *Chat) Add(m protocol.ChatMessage) {
	if len(c.lines) == 0 {
		return
	}
	i := (c.start + c.n) % len(c.lines)
	c.lines[i] = m
	if c.n < len(c.lines) {
		c.n++
	} else {
		c.start = (c.start + 1) % len(c.lines)
	}
}

func (c *Chat) Len() int { return c.n }

func (c *Chat) Lines() []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, c.n)
	for i := 0; i < c.n; i++ {
		out[i] = c.lines[(c.start+i)%len(c.lines)]
	}
	return out
}
