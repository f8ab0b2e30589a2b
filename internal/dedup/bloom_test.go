package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	bf := newBloomFilter(10000, 0.01)
	items := make([][]byte, 1000)
	for i := range items {
		items[i] = []byte(fmt.Sprintf("item-%d", i))
		bf.Add(items[i])
	}
	for _, item := range items {
		assert.True(t, bf.Test(item), "false negative for %s", item)
	}
}

func TestRotatingBloomCutover(t *testing.T) {
	rb := newRotatingBloom(100, 0.01, 0.5, time.Hour)
	for i := 0; i < 60; i++ {
		rb.Add([]byte(fmt.Sprintf("key-%d", i)))
	}
	// everything added before and during rotation must still test positive.
	for i := 0; i < 60; i++ {
		assert.True(t, rb.Test([]byte(fmt.Sprintf("key-%d", i))))
	}
}

func TestRotatingBloomRetiredGenerationSurvivesCutover(t *testing.T) {
	rb := newRotatingBloom(20, 0.01, 0.5, time.Hour)
	// fill past the rotate threshold so a warming filter is created...
	for i := 0; i < 24; i++ {
		rb.Add([]byte(fmt.Sprintf("early-%d", i)))
	}
	require := assert.New(t)
	require.NotNil(rb.warming, "warming filter should have started")

	// ...then push enough new traffic for the warming filter to cut over.
	for i := 0; i < 10; i++ {
		rb.Add([]byte(fmt.Sprintf("late-%d", i)))
	}
	require.Nil(rb.warming, "warming filter should have cut over to active")
	require.NotNil(rb.retired, "outgoing active filter must be retained, not dropped")

	// keys added before the warming filter existed were never absorbed by
	// it, so only the retired generation remembers them.
	for i := 0; i < 24; i++ {
		assert.True(t, rb.Test([]byte(fmt.Sprintf("early-%d", i))), "pre-rotation key lost on cutover")
	}
}

func TestRotatingBloomDropsExpiredRetired(t *testing.T) {
	rb := newRotatingBloom(20, 0.01, 0.5, time.Millisecond)
	for i := 0; i < 24; i++ {
		rb.Add([]byte(fmt.Sprintf("early-%d", i)))
	}
	for i := 0; i < 10; i++ {
		rb.Add([]byte(fmt.Sprintf("late-%d", i)))
	}
	assert.NotNil(t, rb.retired)

	time.Sleep(5 * time.Millisecond)
	rb.dropExpiredRetired()
	assert.Nil(t, rb.retired)
}
