// Package memory keeps crawl completion events in process. It backs the
// "memory" publisher setting and tests that inspect what was published.
package memory

import (
	"context"
	"strconv"
	"sync"
)

// Message is one recorded Publish call.
type Message struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher appends every event to an in-memory log.
type Publisher struct {
	mu  sync.Mutex
	log []Message
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records payload under topic and returns a sequential message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := "memory-" + strconv.Itoa(len(p.log)+1)
	p.log = append(p.log, Message{ID: id, Topic: topic, Payload: payload})
	return id, nil
}

// Messages returns a copy of the log in publish order.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.log...)
}

// Topic returns the messages published to topic.
func (p *Publisher) Topic(topic string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, m := range p.log {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
