package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFSProvisionerCreatesShardedDirs(t *testing.T) {
	homeRoot := t.TempDir()
	webRoot := t.TempDir()
	p := NewFSProvisioner(homeRoot, webRoot, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, p.CreateHome(ctx, "jsmith"))
	require.NoError(t, p.CreateWebDir(ctx, "jsmith"))

	homeInfo, err := os.Stat(filepath.Join(homeRoot, "j", "jsmith"))
	require.NoError(t, err)
	assert.True(t, homeInfo.IsDir())
	assert.Equal(t, os.FileMode(0o700), homeInfo.Mode().Perm())

	webInfo, err := os.Stat(filepath.Join(webRoot, "j", "jsmith"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), webInfo.Mode().Perm())
}

func TestFSProvisionerRefusesExistingDir(t *testing.T) {
	homeRoot := t.TempDir()
	p := NewFSProvisioner(homeRoot, t.TempDir(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, p.CreateHome(ctx, "jsmith"))
	assert.Error(t, p.CreateHome(ctx, "jsmith"))
}
