package devagent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Observer receives every message appended to a Conversation.
// Observers are notified synchronously, in registration order, after
// the message is stored. A failing observer never affects the append,
// the transcript, or the other observers; its error is logged.
type Observer interface {
	OnMessage(msg Message) error
}

// Conversation is an append-only transcript safe for concurrent use.
type Conversation struct {
	mu        sync.Mutex
	messages  []Message
	observers []Observer
}

// NewConversation builds an empty conversation with optional observers.
func NewConversation(observers ...Observer) *Conversation {
	return &Conversation{observers: observers}
}

// Subscribe registers an observer for future appends. Subscribing an
// already-registered observer is a no-op.
func (c *Conversation) Subscribe(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.observers {
		if existing == obs {
			return
		}
	}
	c.observers = append(c.observers, obs)
}

// Unsubscribe removes a previously registered observer. Unknown
// observers are ignored.
func (c *Conversation) Unsubscribe(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.observers {
		if existing == obs {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

// Append normalizes and stores each input in order. Inputs may be
// Message values or untyped maps in the persisted transcript shape;
// maps are validated and flattened. The first invalid input stops the
// batch and nothing after it is appended.
func (c *Conversation) Append(inputs ...any) error {
	for _, input := range inputs {
		var msg Message
		switch v := input.(type) {
		case Message:
			msg = v
		case map[string]any:
			m, err := MessageFromMap(v)
			if err != nil {
				return err
			}
			msg = m
		default:
			return NewValidationError("cannot append %T to a conversation", input)
		}
		c.append(msg)
	}
	return nil
}

func (c *Conversation) append(msg Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, obs := range observers {
		notifyObserver(obs, msg)
	}
}

func notifyObserver(obs Observer, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("conversation.observer_panic", "role", msg.Role, "panic", fmt.Sprint(r))
		}
	}()
	if err := obs.OnMessage(msg); err != nil {
		slog.Warn("conversation.observer_error", "role", msg.Role, "error", err)
	}
}

// Messages returns a copy of the transcript; mutating it cannot
// corrupt the conversation.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of stored messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// ToJSON serializes the transcript as a JSON array with two-space
// indentation.
func (c *Conversation) ToJSON() (string, error) {
	data, err := json.MarshalIndent(c.Messages(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding conversation: %w", err)
	}
	return string(data), nil
}

// ConversationFromJSON parses a serialized transcript. The root must
// be a JSON array; each element passes through the same validation and
// flattening as any other appended map.
func ConversationFromJSON(text string) (*Conversation, error) {
	var raw []map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &ValidationError{AgentError{
			Message: "conversation JSON must be an array of message objects",
			Cause:   err,
		}}
	}

	conv := NewConversation()
	for i, m := range raw {
		msg, err := MessageFromMap(m)
		if err != nil {
			return nil, &ValidationError{AgentError{
				Message: fmt.Sprintf("message %d is invalid", i),
				Cause:   err,
			}}
		}
		conv.append(msg)
	}
	return conv, nil
}

// Save writes the transcript to path, creating parent directories as
// needed.
func (c *Conversation) Save(path string) error {
	text, err := c.ToJSON()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating transcript directory: %w", err)
		}
	}
	return os.WriteFile(path, []byte(text), 0644)
}

// LoadConversation reads a transcript saved by Save. A missing file
// surfaces as an error satisfying errors.Is(err, fs.ErrNotExist).
func LoadConversation(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return ConversationFromJSON(string(data))
}
