package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

//Message is a captured webhook delivery waiting to be processed.
type Message struct {
	ID          string            `json:"id"`
	QueryItems  map[string]string `json:"query_items"`
	RequestBody string            `json:"request_body"`
	Attempts    int               `json:"attempts"`
	EnqueuedAt  time.Time         `json:"enqueued_at"`
}

//Delivery is a message handed to a consumer. It must be acked or requeued.
type Delivery struct {
	Message Message
	raw     string
}

//Queue is a durable FIFO of inbound messages with at-least-once delivery.
type Queue interface {
	Push(ctx context.Context, msg Message) error
	//Receive claims up to max messages without blocking.
	Receive(ctx context.Context, max int) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	//Requeue releases a claimed message back to the tail with its attempt count increased.
	Requeue(ctx context.Context, d Delivery) error
	//Recover returns messages left claimed by a previous process to the pending list.
	Recover(ctx context.Context) (int, error)
}

//NewMessage builds a message for a webhook delivery.
func NewMessage(query map[string]string, body string) Message {
	return Message{
		ID:          uuid.NewString(),
		QueryItems:  query,
		RequestBody: body,
		EnqueuedAt:  time.Now().UTC(),
	}
}

func encode(msg Message) (string, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(raw string) (Message, error) {
	var msg Message
	err := json.Unmarshal([]byte(raw), &msg)
	return msg, err
}
