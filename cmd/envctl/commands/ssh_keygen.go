package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/envctl/internal/conventions"
	"github.com/slok/envctl/internal/ssh"
)

type SSHKeygenCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	dir   string
	force bool
}

// NewSSHKeygenCommand returns the ssh keygen command.
func NewSSHKeygenCommand(rootCmd *RootCommand, sshCmd *kingpin.CmdClause) *SSHKeygenCommand {
	c := &SSHKeygenCommand{rootCmd: rootCmd}

	c.Cmd = sshCmd.Command("keygen", "Generate an ed25519 key pair to use with ssh instances (--key-file).")
	c.Cmd.Flag("dir", "Directory for the keys (default: <data-dir>/ssh).").StringVar(&c.dir)
	c.Cmd.Flag("force", "Overwrite existing keys.").BoolVar(&c.force)

	return c
}

func (c SSHKeygenCommand) Name() string { return c.Cmd.FullCommand() }

func (c SSHKeygenCommand) Run(ctx context.Context) error {
	dir := c.dir
	if dir == "" {
		dir = filepath.Join(c.rootCmd.DataDir, "ssh")
	}

	privPath := filepath.Join(dir, conventions.SSHPrivateKeyFile)
	if _, err := os.Stat(privPath); err == nil && !c.force {
		return fmt.Errorf("key %s already exists, use --force to overwrite it", privPath)
	}

	km := ssh.NewKeyManager(homedir.HomeDir())
	privPath, pubKey, err := km.GenerateKeys(dir)
	if err != nil {
		return fmt.Errorf("could not generate keys: %w", err)
	}
	c.rootCmd.Logger.Infof("Generated ssh keys in %s", dir)

	fmt.Fprintf(c.rootCmd.Stdout, "Private key: %s\n", privPath)
	fmt.Fprintf(c.rootCmd.Stdout, "Add the public key to the remote ~/.ssh/authorized_keys:\n%s", pubKey)

	return nil
}
