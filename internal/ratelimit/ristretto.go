package ratelimit

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog/log"
)

const maxTrackedKeys = 10000

// RistrettoStore is a CounterStore over an in-process TTL cache. Entries
// outlive the lockout window by construction, so TTL eviction never denies
// anyone longer than the policy does.
type RistrettoStore struct {
	cache *ristretto.Cache[string, Attempt]
	ttl   time.Duration
}

func NewRistrettoStore(ttl time.Duration) *RistrettoStore {
	c, err := ristretto.NewCache(&ristretto.Config[string, Attempt]{
		NumCounters: maxTrackedKeys,
		MaxCost:     maxTrackedKeys,
		BufferItems: 64,
	})

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rate limit store")
	}

	return &RistrettoStore{
		cache: c,
		ttl:   ttl,
	}
}

func (s *RistrettoStore) Get(key string) (Attempt, bool) {
	return s.cache.Get(key)
}

func (s *RistrettoStore) Set(key string, a Attempt) {
	s.cache.SetWithTTL(key, a, 1, s.ttl)
	s.cache.Wait()
}

func (s *RistrettoStore) Delete(key string) {
	s.cache.Del(key)
	s.cache.Wait()
}
