package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

const defaultConnectTimeout = 5 * time.Second

//ValkeyConfig holds the settings needed to reach the queue backend.
type ValkeyConfig struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
}

//ValkeyQueue keeps pending messages in one list and claimed messages in another.
type ValkeyQueue struct {
	inner         valkeylib.Client
	pendingKey    string
	processingKey string
}

//NewValkeyQueue connects to valkey and checks the connection with a ping.
func NewValkeyQueue(cfg ValkeyConfig) (*ValkeyQueue, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := inner.Do(ctx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey (timeout: %v): %w", timeout, err)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &ValkeyQueue{
		inner:         inner,
		pendingKey:    prefix + "queue:pending",
		processingKey: prefix + "queue:processing",
	}, nil
}

//Close closes the valkey connection.
func (q *ValkeyQueue) Close() {
	q.inner.Close()
}

func (q *ValkeyQueue) Push(ctx context.Context, msg Message) error {
	raw, err := encode(msg)
	if err != nil {
		return err
	}
	return q.inner.Do(ctx, q.inner.B().Rpush().Key(q.pendingKey).Element(raw).Build()).Error()
}

func (q *ValkeyQueue) Receive(ctx context.Context, max int) ([]Delivery, error) {
	var res []Delivery
	for i := 0; i < max; i++ {
		raw, err := q.inner.Do(ctx, q.inner.B().Lmove().Source(q.pendingKey).Destination(q.processingKey).Left().Right().Build()).ToString()
		if valkeylib.IsValkeyNil(err) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("failed to claim message: %w", err)
		}
		msg, err := decode(raw)
		if err != nil {
			logrus.Warnf("Dropping undecodable queue entry %q: %v", raw, err)
			_ = q.inner.Do(ctx, q.inner.B().Lrem().Key(q.processingKey).Count(1).Element(raw).Build()).Error()
			continue
		}
		res = append(res, Delivery{Message: msg, raw: raw})
	}
	return res, nil
}

func (q *ValkeyQueue) Ack(ctx context.Context, d Delivery) error {
	return q.inner.Do(ctx, q.inner.B().Lrem().Key(q.processingKey).Count(1).Element(d.raw).Build()).Error()
}

func (q *ValkeyQueue) Requeue(ctx context.Context, d Delivery) error {
	msg := d.Message
	msg.Attempts++
	raw, err := encode(msg)
	if err != nil {
		return err
	}
	if err := q.inner.Do(ctx, q.inner.B().Rpush().Key(q.pendingKey).Element(raw).Build()).Error(); err != nil {
		return err
	}
	return q.Ack(ctx, d)
}

func (q *ValkeyQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.inner.Do(ctx, q.inner.B().Lmove().Source(q.processingKey).Destination(q.pendingKey).Right().Left().Build()).Error()
		if valkeylib.IsValkeyNil(err) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}
