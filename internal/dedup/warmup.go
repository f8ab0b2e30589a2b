package dedup

import (
	"time"

	"novarelay.dev/internal/log"
)

// Warmup rebuilds the bloom and hot LRU tiers from the persistent tier.
// It must complete before the Router starts accepting events, so that a
// restart never re-admits an event_id already committed before the
// crash or clean shutdown.
func (s *Store) Warmup() (loaded int, err error) {
	cutoff := time.Now().Unix() - int64(s.retention.Seconds())
	err = s.persistent.Each(func(id [32]byte, createdAt int64) {
		if createdAt < cutoff {
			return
		}
		sh := s.shardFor(id)
		sh.bloom.Add(id[:])
		sh.hot.Add(id)
		loaded++
	})
	if err != nil {
		return loaded, err
	}
	log.I.F("dedup store warmup loaded %d entries", loaded)
	return loaded, nil
}
