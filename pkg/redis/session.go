package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/tracing"
)

// Session is the authenticated employee state kept server-side per token.
type Session struct {
	TenantID     string    `json:"tenant_id"`
	EmployeeID   string    `json:"employee_id"`
	EmployeeName string    `json:"employee_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionStore keeps employee sessions in Redis keyed by token.
type SessionStore struct {
	client *Client
	ttl    time.Duration
}

// NewSessionStore creates a new session store
func NewSessionStore(client *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// Save stores a session under the given token, resetting its TTL.
func (s *SessionStore) Save(ctx context.Context, token string, session Session) error {
	ctx, span := tracing.StartSpan(ctx, "redis.SessionStore.Save")
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, sessionKey(token), data, s.ttl)
}

// Get retrieves a session by token, nil when absent or expired.
func (s *SessionStore) Get(ctx context.Context, token string) (*Session, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.SessionStore.Get")
	defer span.End()

	data, err := s.client.Get(ctx, sessionKey(token))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}

	return &session, nil
}

// Delete removes a session, used on logout.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	ctx, span := tracing.StartSpan(ctx, "redis.SessionStore.Delete")
	defer span.End()

	return s.client.Del(ctx, sessionKey(token))
}

// Touch extends a live session's TTL.
func (s *SessionStore) Touch(ctx context.Context, token string) error {
	ctx, span := tracing.StartSpan(ctx, "redis.SessionStore.Touch")
	defer span.End()

	return s.client.Expire(ctx, sessionKey(token), s.ttl)
}
