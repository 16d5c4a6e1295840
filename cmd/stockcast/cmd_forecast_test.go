package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPrices(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "p.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("[1, 2.5, 3]"), 0o600))
	got, err := readPrices(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3}, got)

	txtPath := filepath.Join(dir, "p.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("1\n2.5\n 3\n"), 0o600))
	got, err = readPrices(txtPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3}, got)

	badPath := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(badPath, []byte("1 x"), 0o600))
	_, err = readPrices(badPath)
	assert.Error(t, err)
}
