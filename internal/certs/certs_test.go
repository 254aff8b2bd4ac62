package certs

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GeneratesAndReuses(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	store := NewStore(dir, "harvest.lan")

	first, err := store.Certificate()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "server.crt"))
	assert.FileExists(t, filepath.Join(dir, "server.key"))

	leaf, err := x509.ParseCertificate(first.Certificate[0])
	require.NoError(t, err)
	assert.NoError(t, leaf.VerifyHostname("harvest.lan"))
	assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))

	second, err := store.Certificate()
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0])
}

func TestStore_RegeneratesForNewHost(t *testing.T) {
	dir := t.TempDir()
	first, err := NewStore(dir).Certificate()
	require.NoError(t, err)

	second, err := NewStore(dir, "10.0.0.5").Certificate()
	require.NoError(t, err)
	assert.NotEqual(t, first.Certificate[0], second.Certificate[0])
}

func TestStore_ReplacesCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.crt"), []byte("junk"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.key"), []byte("junk"), 0600))

	cfg, err := NewStore(dir).TLSConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
}
