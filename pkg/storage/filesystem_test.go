package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("reports/at_risk.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.Equal(t, "reports/at_risk.csv", rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "a,b\n1,2\n", string(data))
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../outside.csv", []byte("x"))
	require.Error(t, err)

	_, err = store.Save("/etc/passwd", []byte("x"))
	require.Error(t, err)
}
