package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ErrDuplicatePrincipal means the credential backend already has a principal
// for the identifier.
var ErrDuplicatePrincipal = errors.New("backend: principal already exists")

// CredentialBackend issues login credentials for a new account.
type CredentialBackend interface {
	CreatePrincipal(ctx context.Context, identifier string, secret []byte) error
}

// Kerberos drives the kadmin command-line tool. Any non-zero exit or error
// output is treated as failure; the "already exists" signal is parsed out
// separately so callers can distinguish it from generic breakage.
type Kerberos struct {
	kadminPath     string
	adminPrincipal string
	keytab         string
	logger         *zap.Logger
}

// NewKerberos builds the kadmin-backed credential backend.
func NewKerberos(kadminPath, adminPrincipal, keytab string, logger *zap.Logger) *Kerberos {
	return &Kerberos{
		kadminPath:     kadminPath,
		adminPrincipal: adminPrincipal,
		keytab:         keytab,
		logger:         logger,
	}
}

func (k *Kerberos) CreatePrincipal(ctx context.Context, identifier string, secret []byte) error {
	args := []string{
		"-K", k.keytab,
		"-p", k.adminPrincipal,
		"add", "--use-defaults", identifier,
	}
	cmd := exec.CommandContext(ctx, k.kadminPath, args...)
	// The secret goes over stdin; it must never appear in argv.
	cmd.Stdin = bytes.NewReader(secret)

	output, err := cmd.CombinedOutput()
	text := string(output)
	if strings.Contains(text, "already exists") || strings.Contains(text, "Principal exists") {
		return ErrDuplicatePrincipal
	}
	if err != nil {
		return fmt.Errorf("backend: kadmin add %s: %w: %s", identifier, err, strings.TrimSpace(text))
	}
	if strings.TrimSpace(text) != "" {
		return fmt.Errorf("backend: kadmin add %s: unexpected output: %s", identifier, strings.TrimSpace(text))
	}

	k.logger.Info("kerberos principal created", zap.String("identifier", identifier))
	return nil
}
