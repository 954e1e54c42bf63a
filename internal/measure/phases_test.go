package measure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hugoferreira/ivshmem-analysis/internal/digest"
)

func TestHotReadReturnsNonNegativeDuration(t *testing.T) {
	payload := make([]byte, 4096)
	WarmUp(payload)
	dur := HotRead(payload)
	assert.GreaterOrEqual(t, dur, time.Duration(0))
}

func TestColdReadReportsDegradedWithFenceOnlyFlusher(t *testing.T) {
	payload := make([]byte, 4096)
	_, degraded := ColdRead(payload, FenceOnlyFlusher{})
	assert.True(t, degraded)
}

func TestReadWriteCopyCopiesPayloadIntoLocal(t *testing.T) {
	payload := []byte("the quick brown fox")
	local := make([]byte, len(payload))

	_, degraded := ReadWriteCopy(payload, local, FenceOnlyFlusher{})

	assert.True(t, degraded)
	assert.Equal(t, payload, local)
}

func TestVerifySucceedsOnMatchingDigest(t *testing.T) {
	local := []byte("verify me")
	expected := digest.Sum(local)

	_, ok := Verify(local, expected)
	assert.True(t, ok)
}

func TestVerifyFailsOnMismatchedDigest(t *testing.T) {
	local := []byte("verify me")
	expected := digest.Sum([]byte("something else"))

	_, ok := Verify(local, expected)
	assert.False(t, ok)
}
