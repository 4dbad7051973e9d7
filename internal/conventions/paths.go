package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default envctl data directory name (relative to home).
	DefaultDataDir = ".envctl"
	// DBFile is the filename of the instance database.
	DBFile = "envctl.db"
	// EnvironmentsFile is the default declarative environments filename.
	EnvironmentsFile = "environments.yaml"
	// FakeDockerDir is the subdirectory for the fake docker runtime containers.
	FakeDockerDir = "fake-docker"

	// LocalInstanceName is the name of the instance that always exists.
	LocalInstanceName = "local"

	// SSHDir is the user SSH directory (relative to home).
	SSHDir = ".ssh"
	// SSHPrivateKeyFile is the filename for generated SSH private keys.
	SSHPrivateKeyFile = "id_ed25519"
	// SSHPublicKeyFile is the filename for generated SSH public keys.
	SSHPublicKeyFile = "id_ed25519.pub"
)

// DefaultSSHKeyFiles are the user private keys tried in order when none is configured.
var DefaultSSHKeyFiles = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

// DBPath returns the path of the instance database.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// EnvironmentsPath returns the path of the default environments file.
func EnvironmentsPath(dataDir string) string {
	return filepath.Join(dataDir, EnvironmentsFile)
}

// FakeDockerPath returns the directory of the fake docker runtime.
func FakeDockerPath(dataDir string) string {
	return filepath.Join(dataDir, FakeDockerDir)
}

// SSHKeyPath returns the path of a user SSH key.
func SSHKeyPath(homeDir, name string) string {
	return filepath.Join(homeDir, SSHDir, name)
}
