package backing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWriterCreatesExactlySizedMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.bin")

	obj, err := OpenWriter(path, 4096)
	require.NoError(t, err)
	defer obj.Close()

	assert.Len(t, obj.Bytes(), 4096)
}

func TestWriterMappingIsReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.bin")

	obj, err := OpenWriter(path, 64)
	require.NoError(t, err)
	defer obj.Close()

	obj.Bytes()[0] = 0xAB
	assert.Equal(t, byte(0xAB), obj.Bytes()[0])
}

func TestOpenReaderFallsBackToRegionPathWhenDeviceMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.bin")

	writer, err := OpenWriter(path, 64)
	require.NoError(t, err)
	writer.Bytes()[0] = 0x42
	require.NoError(t, writer.Close())

	reader, err := OpenReader(filepath.Join(t.TempDir(), "does-not-exist"), path, 64)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, byte(0x42), reader.Bytes()[0])
}

func TestOpenReaderRejectsUndersizedBackingObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.bin")

	writer, err := OpenWriter(path, 64)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	_, err = OpenReader(filepath.Join(t.TempDir(), "does-not-exist"), path, 128)
	assert.Error(t, err)
}

func TestWriterAndReaderShareTheSameMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.bin")

	writer, err := OpenWriter(path, 64)
	require.NoError(t, err)
	defer writer.Close()

	reader, err := OpenReader(filepath.Join(t.TempDir(), "does-not-exist"), path, 64)
	require.NoError(t, err)
	defer reader.Close()

	writer.Bytes()[10] = 0x99
	assert.Equal(t, byte(0x99), reader.Bytes()[10])
}
