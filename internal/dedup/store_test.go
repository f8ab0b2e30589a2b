package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{
		DataDir:        t.TempDir(),
		HotsetSize:     1000,
		BloomCapacity:  10000,
		LRUSize:        1000,
		RetentionHours: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCheckAndCommitFirstSeenIsAdmitted(t *testing.T) {
	s := openTestStore(t)
	var id [32]byte
	id[0] = 7
	id[1] = 1

	duplicate, err := s.CheckAndCommit(id, time.Now().Unix())
	require.NoError(t, err)
	assert.False(t, duplicate)

	admitted, duplicates := s.Stats()
	assert.EqualValues(t, 1, admitted)
	assert.EqualValues(t, 0, duplicates)
}

func TestStoreCheckAndCommitSecondSeenIsDuplicate(t *testing.T) {
	s := openTestStore(t)
	var id [32]byte
	id[0] = 9
	id[1] = 2

	_, err := s.CheckAndCommit(id, time.Now().Unix())
	require.NoError(t, err)

	duplicate, err := s.CheckAndCommit(id, time.Now().Unix())
	require.NoError(t, err)
	assert.True(t, duplicate)

	_, duplicates := s.Stats()
	assert.EqualValues(t, 1, duplicates)
}

func TestStoreContainsWithoutCommitting(t *testing.T) {
	s := openTestStore(t)
	var id [32]byte
	id[0] = 3

	seen, err := s.Contains(id)
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = s.CheckAndCommit(id, time.Now().Unix())
	require.NoError(t, err)

	seen, err = s.Contains(id)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestStoreSurvivesRestartViaWarmup(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir, HotsetSize: 1000, BloomCapacity: 10000, LRUSize: 1000, RetentionHours: 24}

	s1, err := Open(cfg)
	require.NoError(t, err)
	var id [32]byte
	id[0] = 42
	_, err = s1.CheckAndCommit(id, time.Now().Unix())
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()
	loaded, err := s2.Warmup()
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)

	duplicate, err := s2.CheckAndCommit(id, time.Now().Unix())
	require.NoError(t, err)
	assert.True(t, duplicate, "warmup must repopulate bloom+hot tiers so a re-emitted event is caught")
}

func TestStoreCheckAndCommitConcurrentSameIDOnlyAdmitsOnce(t *testing.T) {
	s := openTestStore(t)
	var id [32]byte
	id[0] = 55

	const n = 50
	results := make(chan bool, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			<-start
			duplicate, err := s.CheckAndCommit(id, time.Now().Unix())
			assert.NoError(t, err)
			results <- duplicate
		}()
	}
	close(start)

	admittedCount := 0
	for i := 0; i < n; i++ {
		if !<-results {
			admittedCount++
		}
	}
	assert.Equal(t, 1, admittedCount, "event_id must never be admitted more than once")

	admitted, duplicates := s.Stats()
	assert.EqualValues(t, 1, admitted)
	assert.EqualValues(t, n-1, duplicates)
}

func TestStoreCheckAndCommitConcurrentDistinctIDs(t *testing.T) {
	s := openTestStore(t)
	const n = 200
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			var id [32]byte
			id[0] = byte(i % 256)
			id[1] = byte(i / 256)
			_, err := s.CheckAndCommit(id, time.Now().Unix())
			assert.NoError(t, err)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	admitted, _ := s.Stats()
	assert.EqualValues(t, n, admitted)
}
