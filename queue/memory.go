package queue

import (
	"context"
	"sync"
)

//MemoryQueue is an in-process Queue. Messages do not survive a restart.
type MemoryQueue struct {
	mu         sync.Mutex
	pending    []string
	processing []string
}

//NewMemoryQueue returns an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Push(_ context.Context, msg Message) error {
	raw, err := encode(msg)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.pending = append(q.pending, raw)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Receive(_ context.Context, max int) ([]Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var res []Delivery
	for len(res) < max && len(q.pending) > 0 {
		raw := q.pending[0]
		q.pending = q.pending[1:]
		msg, err := decode(raw)
		if err != nil {
			continue
		}
		q.processing = append(q.processing, raw)
		res = append(res, Delivery{Message: msg, raw: raw})
	}
	return res, nil
}

func (q *MemoryQueue) Ack(_ context.Context, d Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeProcessing(d.raw)
	return nil
}

func (q *MemoryQueue) Requeue(_ context.Context, d Delivery) error {
	msg := d.Message
	msg.Attempts++
	raw, err := encode(msg)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, raw)
	q.removeProcessing(d.raw)
	return nil
}

func (q *MemoryQueue) Recover(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.processing)
	q.pending = append(append([]string{}, q.processing...), q.pending...)
	q.processing = nil
	return n, nil
}

//Len returns the number of pending and claimed messages.
func (q *MemoryQueue) Len() (pending, processing int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), len(q.processing)
}

func (q *MemoryQueue) removeProcessing(raw string) {
	for i, r := range q.processing {
		if r == raw {
			q.processing = append(q.processing[:i], q.processing[i+1:]...)
			return
		}
	}
}
