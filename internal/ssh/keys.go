package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/slok/envctl/internal/conventions"
	"github.com/slok/envctl/internal/model"
)

// KeyManager handles SSH private key discovery, loading and generation.
type KeyManager struct {
	homeDir string
}

// NewKeyManager creates a new SSH key manager.
// homeDir is the user home, where `.ssh` keys are looked up.
func NewKeyManager(homeDir string) *KeyManager {
	return &KeyManager{homeDir: homeDir}
}

// ResolveKeyFile returns the private key path to use. An explicit key file
// (`~` is expanded) is used as is, otherwise the first existing default user
// key is used.
func (m *KeyManager) ResolveKeyFile(keyFile string) (string, error) {
	if keyFile != "" {
		return m.expand(keyFile), nil
	}

	for _, name := range conventions.DefaultSSHKeyFiles {
		p := conventions.SSHKeyPath(m.homeDir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no default ssh private key in %s: %w", filepath.Join(m.homeDir, conventions.SSHDir), model.ErrNotFound)
}

// LoadPrivateKey resolves and reads a private key.
func (m *KeyManager) LoadPrivateKey(keyFile string) ([]byte, error) {
	p, err := m.ResolveKeyFile(keyFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("could not read private key: %w", err)
	}
	return data, nil
}

// GenerateKeys generates a new Ed25519 SSH key pair in dir.
// Returns the private key path and the public key in authorized_keys format.
func (m *KeyManager) GenerateKeys(dir string) (privateKeyPath, publicKeyAuthorized string, err error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", "", fmt.Errorf("could not create ssh key directory: %w", err)
	}

	// Generate Ed25519 key pair.
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("could not generate ed25519 key: %w", err)
	}

	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return "", "", fmt.Errorf("could not convert to ssh public key: %w", err)
	}

	// Marshal private key to OpenSSH format.
	privKeyBytes, err := ssh.MarshalPrivateKey(privKey, "envctl-generated-key")
	if err != nil {
		return "", "", fmt.Errorf("could not marshal private key: %w", err)
	}

	privateKeyPath = filepath.Join(dir, conventions.SSHPrivateKeyFile)
	if err := os.WriteFile(privateKeyPath, pem.EncodeToMemory(privKeyBytes), 0600); err != nil {
		return "", "", fmt.Errorf("could not write private key: %w", err)
	}

	publicKeyAuthorized = string(ssh.MarshalAuthorizedKey(sshPubKey))
	pubKeyPath := filepath.Join(dir, conventions.SSHPublicKeyFile)
	if err := os.WriteFile(pubKeyPath, []byte(publicKeyAuthorized), 0644); err != nil {
		os.Remove(privateKeyPath)
		return "", "", fmt.Errorf("could not write public key: %w", err)
	}

	return privateKeyPath, publicKeyAuthorized, nil
}

func (m *KeyManager) expand(p string) string {
	if p == "~" {
		return m.homeDir
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(m.homeDir, p[2:])
	}
	return p
}
