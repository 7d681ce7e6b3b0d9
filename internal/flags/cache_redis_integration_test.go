//go:build integration

package flags_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"agora/internal/flags"
	"agora/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *flags.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = flags.NewRedisCache(s.redis.Client)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestPutGet() {
	ctx := context.Background()

	_, ok := s.cache.Get(ctx, flags.EnableOrgRegistration)
	s.False(ok)

	s.cache.Put(ctx, flags.EnableOrgRegistration, true)
	s.cache.Put(ctx, flags.EnableCandidateVoting, false)

	enabled, ok := s.cache.Get(ctx, flags.EnableOrgRegistration)
	s.True(ok)
	s.True(enabled)

	enabled, ok = s.cache.Get(ctx, flags.EnableCandidateVoting)
	s.True(ok)
	s.False(enabled)
}

func (s *RedisCacheSuite) TestInvalidateDropsAllFlags() {
	ctx := context.Background()
	s.cache.Put(ctx, flags.EnableOrgRegistration, true)
	s.cache.Put(ctx, flags.EnableCandidateVoting, true)
	// Keys outside the flag prefix survive invalidation.
	s.Require().NoError(s.redis.Client.Set(ctx, "agora:other", "keep", 0).Err())

	s.cache.Invalidate(ctx)

	_, ok := s.cache.Get(ctx, flags.EnableOrgRegistration)
	s.False(ok)
	_, ok = s.cache.Get(ctx, flags.EnableCandidateVoting)
	s.False(ok)

	val, err := s.redis.Client.Get(ctx, "agora:other").Result()
	s.Require().NoError(err)
	s.Equal("keep", val)
}

func (s *RedisCacheSuite) TestServiceReadsThroughCache() {
	ctx := context.Background()
	svc := flags.NewService(flags.NewInMemory(), flags.WithCache(s.cache))
	s.Require().NoError(svc.Seed(ctx))

	s.Require().NoError(svc.Toggle(ctx, flags.EnableOrgRegistration, true))
	s.True(svc.Enabled(ctx, flags.EnableOrgRegistration))

	// The read populated the shared cache.
	cached, ok := s.cache.Get(ctx, flags.EnableOrgRegistration)
	s.True(ok)
	s.True(cached)

	s.Require().NoError(svc.Toggle(ctx, flags.EnableOrgRegistration, false))
	_, ok = s.cache.Get(ctx, flags.EnableOrgRegistration)
	s.False(ok, "toggling must invalidate the cache")
}
