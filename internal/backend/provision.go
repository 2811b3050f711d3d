package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Provisioner creates the filesystem areas a new account owns. The
// operations are not idempotent and must only run while the creation lock is
// held.
type Provisioner interface {
	CreateHome(ctx context.Context, identifier string) error
	CreateWebDir(ctx context.Context, identifier string) error
}

// FSProvisioner provisions directories under fixed roots, sharded by the
// identifier's first letter.
type FSProvisioner struct {
	homeRoot string
	webRoot  string
	logger   *zap.Logger
}

// NewFSProvisioner builds the filesystem provisioner.
func NewFSProvisioner(homeRoot, webRoot string, logger *zap.Logger) *FSProvisioner {
	return &FSProvisioner{homeRoot: homeRoot, webRoot: webRoot, logger: logger}
}

func (p *FSProvisioner) shardPath(root, identifier string) string {
	return filepath.Join(root, identifier[:1], identifier)
}

func (p *FSProvisioner) create(root, identifier string, mode os.FileMode) (string, error) {
	path := p.shardPath(root, identifier)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	// os.Mkdir, not MkdirAll: an existing directory is a duplicate
	// provisioning attempt and must surface.
	if err := os.Mkdir(path, mode); err != nil {
		return "", err
	}
	return path, nil
}

func (p *FSProvisioner) CreateHome(ctx context.Context, identifier string) error {
	path, err := p.create(p.homeRoot, identifier, 0o700)
	if err != nil {
		return fmt.Errorf("backend: create home for %s: %w", identifier, err)
	}
	p.logger.Info("home directory created", zap.String("path", path))
	return nil
}

func (p *FSProvisioner) CreateWebDir(ctx context.Context, identifier string) error {
	path, err := p.create(p.webRoot, identifier, 0o755)
	if err != nil {
		return fmt.Errorf("backend: create web dir for %s: %w", identifier, err)
	}
	p.logger.Info("web directory created", zap.String("path", path))
	return nil
}
