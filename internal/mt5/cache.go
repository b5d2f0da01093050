package mt5

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// statusCache keeps recent deployment-status responses so the reconciler and
// user-triggered status checks don't hammer the provider for the same account.
type statusCache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func newStatusCache(ttl time.Duration) (*statusCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &statusCache{c: c, ttl: ttl}, nil
}

func (s *statusCache) get(externalID string) (*DeploymentStatus, bool) {
	v, ok := s.c.Get(externalID)
	if !ok {
		return nil, false
	}
	status, ok := v.(*DeploymentStatus)
	return status, ok
}

func (s *statusCache) set(externalID string, status *DeploymentStatus) {
	s.c.SetWithTTL(externalID, status, 1, s.ttl)
}

func (s *statusCache) del(externalID string) {
	s.c.Del(externalID)
}
