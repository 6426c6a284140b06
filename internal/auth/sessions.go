package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/supplyhub/supplyhub/internal/shared"
)

// SessionStore keeps bearer sessions in Redis. Only a hash of the token is
// used as key so a Redis dump does not leak usable credentials.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{client: client, ttl: ttl}
}

// TTL exposes the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create issues a new token for actor.
func (s *SessionStore) Create(ctx context.Context, actor shared.Actor) (Session, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return Session{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	payload, err := json.Marshal(actor)
	if err != nil {
		return Session{}, err
	}
	if err := s.client.Set(ctx, redisKey(token), payload, s.ttl).Err(); err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: time.Now().Add(s.ttl).UTC(), Actor: actor}, nil
}

// Lookup resolves a token to its actor.
func (s *SessionStore) Lookup(ctx context.Context, token string) (shared.Actor, error) {
	if token == "" {
		return shared.Actor{}, shared.ErrUnauthenticated
	}
	payload, err := s.client.Get(ctx, redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Actor{}, shared.ErrUnauthenticated
		}
		return shared.Actor{}, err
	}
	var actor shared.Actor
	if err := json.Unmarshal(payload, &actor); err != nil {
		return shared.Actor{}, err
	}
	return actor, nil
}

// Revoke deletes a token.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, redisKey(token)).Err()
}

func redisKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return "supplyhub:session:" + hex.EncodeToString(sum[:])
}
