package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Step string

const (
	StepDeliveryText  Step = "awaiting_delivery_text"
	StepBroadcastText Step = "awaiting_broadcast_text"
)

// Session is the ephemeral per-operator capture state: what the operator's
// next free-text message means, and for delivery, which order it targets.
type Session struct {
	OperatorID int64 `json:"operator_id"`
	OrderID    int64 `json:"order_id,omitempty"`
	Step       Step  `json:"step"`
}

type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewStore(client *redis.Client) *Store {
	// Sessions are abandoned, not expired, but a TTL keeps stale keys from
	// accumulating after operator turnover.
	return &Store{Client: client, TTL: 24 * time.Hour}
}

func key(operatorID int64) string {
	return fmt.Sprintf("session:%d", operatorID)
}

// StartDelivery opens a delivery capture bound to orderID. Any prior
// unconsumed session for the operator is replaced.
func (s *Store) StartDelivery(ctx context.Context, operatorID, orderID int64) error {
	return s.set(ctx, Session{OperatorID: operatorID, OrderID: orderID, Step: StepDeliveryText})
}

// StartBroadcast opens a broadcast capture, replacing any prior session.
func (s *Store) StartBroadcast(ctx context.Context, operatorID int64) error {
	return s.set(ctx, Session{OperatorID: operatorID, Step: StepBroadcastText})
}

func (s *Store) set(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, key(sess.OperatorID), data, s.TTL).Err()
}

// Take returns the operator's active session and consumes it. GETDEL is
// atomic, so when two updates from one operator race, exactly one of them
// gets the session.
func (s *Store) Take(ctx context.Context, operatorID int64) (Session, bool, error) {
	val, err := s.Client.GetDel(ctx, key(operatorID)).Result()
	if err == redis.Nil {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}

	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return Session{}, false, err
	}
	return sess, true, nil
}
