package dedup

import (
	"hash/fnv"
	"sync"
	"time"
)

// bloomFilter is a probabilistic set-membership filter over 32-byte event
// ids: no false negatives, a configurable false positive rate, O(1)
// Add/Test. Sized with the standard m = -n*ln(p)/ln(2)^2, k = (m/n)*ln(2)
// formulas.
type bloomFilter struct {
	mu      sync.RWMutex
	bits    []uint64
	size    uint64
	hashFns int
	count   int
}

func newBloomFilter(expectedItems int, falsePositiveRate float64) *bloomFilter {
	if expectedItems <= 0 {
		expectedItems = 10000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	const ln2 = 0.693147
	ln2Squared := ln2 * ln2
	lnP := approximateLn(falsePositiveRate)

	m := int(-float64(expectedItems) * lnP / ln2Squared)
	if m < 64 {
		m = 64
	}
	k := int(float64(m) / float64(expectedItems) * ln2)
	if k < 1 {
		k = 1
	}
	if k > 10 {
		k = 10
	}
	words := (m + 63) / 64
	return &bloomFilter{
		bits:    make([]uint64, words),
		size:    uint64(words * 64),
		hashFns: k,
	}
}

func (bf *bloomFilter) getHashes(key []byte) []uint64 {
	h1 := fnv.New64a()
	h1.Write(key)
	hash1 := h1.Sum64()

	h2 := fnv.New64()
	h2.Write(key)
	h2.Write([]byte{0xff})
	hash2 := h2.Sum64()

	hashes := make([]uint64, bf.hashFns)
	for i := 0; i < bf.hashFns; i++ {
		hashes[i] = hash1 + uint64(i)*hash2
	}
	return hashes
}

// Add records key as present.
func (bf *bloomFilter) Add(key []byte) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	for _, h := range bf.getHashes(key) {
		idx := h % bf.size
		bf.bits[idx/64] |= 1 << (idx % 64)
	}
	bf.count++
}

// Test reports whether key might be present (false means definitely not).
func (bf *bloomFilter) Test(key []byte) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	for _, h := range bf.getHashes(key) {
		idx := h % bf.size
		if bf.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// fillRatio returns the approximate fraction of set bits, used to decide
// when the filter needs rotating.
func (bf *bloomFilter) fillRatio() float64 {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	set := 0
	for _, word := range bf.bits {
		set += popcount(word)
	}
	return float64(set) / float64(bf.size)
}

func popcount(x uint64) int {
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}

func approximateLn(x float64) float64 {
	switch {
	case x >= 0.1:
		return -2.303
	case x >= 0.05:
		return -2.996
	case x >= 0.01:
		return -4.605
	case x >= 0.005:
		return -5.298
	case x >= 0.001:
		return -6.908
	default:
		return -9.210
	}
}

// rotatingBloom holds up to three generations of bloomFilter so a filter
// approaching saturation can be replaced without a window in which
// recently-seen keys are forgotten: writes go to active and warming during
// the swap, reads check every live generation, and a cut-over active filter
// is kept as retired - still queryable - until its keys have had time to
// reach the persistent tier's retention horizon, since Test must never
// report a false negative for something already committed there.
type rotatingBloom struct {
	mu                sync.RWMutex
	active, warming   *bloomFilter
	retired           *bloomFilter
	retiredAt         time.Time
	retention         time.Duration
	expectedItems     int
	falsePositiveRate float64
	rotateAt          float64
}

func newRotatingBloom(expectedItems int, falsePositiveRate, rotateAt float64, retention time.Duration) *rotatingBloom {
	return &rotatingBloom{
		active:            newBloomFilter(expectedItems, falsePositiveRate),
		expectedItems:     expectedItems,
		falsePositiveRate: falsePositiveRate,
		rotateAt:          rotateAt,
		retention:         retention,
	}
}

// Add writes key to the active filter, and to the warming filter too if a
// rotation is in progress.
func (r *rotatingBloom) Add(key []byte) {
	r.mu.RLock()
	active, warming := r.active, r.warming
	r.mu.RUnlock()

	active.Add(key)
	if warming != nil {
		warming.Add(key)
	}
	r.maybeRotate()
}

// Test checks the active filter, falling back to the warming filter (if
// any) and the retired filter (if still within its retention window) so a
// key added before or during a rotation isn't missed.
func (r *rotatingBloom) Test(key []byte) bool {
	r.mu.RLock()
	active, warming, retired, retiredAt := r.active, r.warming, r.retired, r.retiredAt
	r.mu.RUnlock()

	if active.Test(key) {
		return true
	}
	if warming != nil && warming.Test(key) {
		return true
	}
	if retired != nil && time.Since(retiredAt) < r.retention && retired.Test(key) {
		return true
	}
	return false
}

func (r *rotatingBloom) maybeRotate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.warming == nil {
		if r.active.fillRatio() >= r.rotateAt {
			r.warming = newBloomFilter(r.expectedItems, r.falsePositiveRate)
		}
		return
	}
	// Cut over once the warming filter has seen enough of the active
	// set's traffic to stand on its own. The outgoing active filter is
	// kept as retired rather than discarded: it may still hold keys the
	// warming filter never observed, and those keys remain in the
	// persistent tier until the retention prune catches up with them.
	if r.warming.count >= r.expectedItems/2 {
		r.retired = r.active
		r.retiredAt = time.Now()
		r.active = r.warming
		r.warming = nil
	}
}

// dropExpiredRetired releases the retired generation once it has aged past
// the retention window, so memory doesn't grow unbounded across repeated
// rotations. Called periodically from Store.PruneLoop.
func (r *rotatingBloom) dropExpiredRetired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired != nil && time.Since(r.retiredAt) >= r.retention {
		r.retired = nil
	}
}
