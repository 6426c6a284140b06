package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/supplyhub/supplyhub/internal/shared"
)

type SessionStoreSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *SessionStore
	ctx    context.Context
}

func (s *SessionStoreSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.store = NewSessionStore(s.client, time.Hour)
	s.ctx = context.Background()
}

func (s *SessionStoreSuite) TearDownTest() {
	s.Require().NoError(s.client.Close())
}

func (s *SessionStoreSuite) TestCreateAndLookup() {
	actor := shared.Actor{ID: "sup-user", Name: "Sam", Role: shared.RoleSupplier, SupplierID: "sup-1"}
	sess, err := s.store.Create(s.ctx, actor)
	s.Require().NoError(err)
	s.NotEmpty(sess.Token)
	s.WithinDuration(time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)

	got, err := s.store.Lookup(s.ctx, sess.Token)
	s.Require().NoError(err)
	s.Equal(actor, got)
}

func (s *SessionStoreSuite) TestTokenIsNotStoredInClear() {
	sess, err := s.store.Create(s.ctx, shared.Actor{ID: "u-1", Role: shared.RoleUser})
	s.Require().NoError(err)
	for _, key := range s.mr.Keys() {
		s.NotContains(key, sess.Token)
	}
	s.Len(s.mr.Keys(), 1)
}

func (s *SessionStoreSuite) TestExpiry() {
	sess, err := s.store.Create(s.ctx, shared.Actor{ID: "u-1", Role: shared.RoleUser})
	s.Require().NoError(err)

	s.mr.FastForward(time.Hour + time.Second)
	_, err = s.store.Lookup(s.ctx, sess.Token)
	s.ErrorIs(err, shared.ErrUnauthenticated)
}

func (s *SessionStoreSuite) TestRevoke() {
	sess, err := s.store.Create(s.ctx, shared.Actor{ID: "u-1", Role: shared.RoleUser})
	s.Require().NoError(err)
	s.Require().NoError(s.store.Revoke(s.ctx, sess.Token))
	s.Require().NoError(s.store.Revoke(s.ctx, ""))

	_, err = s.store.Lookup(s.ctx, sess.Token)
	s.ErrorIs(err, shared.ErrUnauthenticated)
	_, err = s.store.Lookup(s.ctx, "")
	s.ErrorIs(err, shared.ErrUnauthenticated)
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func TestSessionStoreDefaultTTL(t *testing.T) {
	assert.Equal(t, 24*time.Hour, NewSessionStore(nil, 0).TTL())
}
