package perfsample

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopReturnsNoSample(t *testing.T) {
	var s Noop
	s.Start()
	assert.Nil(t, s.Stop())
}

func TestCopyTruncatesOversizedSample(t *testing.T) {
	dst := make([]byte, 4)
	Copy(dst, []byte{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []byte{1, 2, 3, 4}, dst)
}

func TestCopyZeroFillsShortSample(t *testing.T) {
	dst := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	Copy(dst, []byte{1, 2})
	assert.Equal(t, []byte{1, 2, 0, 0}, dst)
}

func TestCopyHandlesNilSample(t *testing.T) {
	dst := []byte{0xFF, 0xFF}
	Copy(dst, nil)
	assert.Equal(t, []byte{0, 0}, dst)
}
