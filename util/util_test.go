package util

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir, err := ioutil.TempDir("", "wirewatch-util")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "config.yaml")
	assert.False(t, Exists(file))
	require.NoError(t, ioutil.WriteFile(file, []byte("LogConfig:\n"), 0644))
	assert.True(t, Exists(file))
	assert.True(t, Exists(dir))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "1970-01-01T00:00:05Z", FormatTimestamp(5))
	assert.Equal(t, "2023-11-14T22:13:20.5Z", FormatTimestamp(1700000000.5))
}

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in  uint64
		out string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{8 * 1024 * 1024 * 1024, "8.0 GiB"},
	}

	for _, test := range testCases {
		assert.Equal(t, test.out, FormatBytes(test.in))
	}
}
