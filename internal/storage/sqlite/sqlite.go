package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/storage"
	"github.com/slok/envctl/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.InstanceRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.InstanceRepository = (*Repository)(nil)

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

const instanceColumns = `
	name, type, env_policy, wrappers, persistent,
	working_dir,
	docker_image, docker_container_id, docker_attach_to, docker_compose_project,
	ssh_host, ssh_port, ssh_user, ssh_key_file,
	created_at
`

// CreateInstance stores a new instance spec.
func (r *Repository) CreateInstance(ctx context.Context, s model.InstanceSpec) error {
	var (
		workingDir                                                string
		dockerImage, dockerContainer, dockerAttach, dockerCompose string
		sshHost, sshUser, sshKeyFile                              string
		sshPort                                                   int
	)
	switch {
	case s.Local != nil:
		workingDir = s.Local.WorkingDir
	case s.Docker != nil:
		workingDir = s.Docker.WorkingDir
		dockerImage = s.Docker.Image
		dockerContainer = s.Docker.ContainerID
		dockerAttach = s.Docker.AttachTo
		dockerCompose = s.Docker.ComposeProject
	case s.SSH != nil:
		sshHost = s.SSH.Host
		sshPort = s.SSH.Port
		sshUser = s.SSH.User
		sshKeyFile = s.SSH.KeyFile
	}

	query := `INSERT INTO instances (` + instanceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(
		ctx,
		query,
		s.Name,
		s.Type,
		s.EnvPolicy,
		strings.Join(s.Wrappers, ","),
		s.Persistent,
		workingDir,
		dockerImage,
		dockerContainer,
		dockerAttach,
		dockerCompose,
		sshHost,
		sshPort,
		sshUser,
		sshKeyFile,
		s.CreatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: instances.") {
			return fmt.Errorf("instance %s: %w", s.Name, model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert instance: %w", err)
	}

	r.logger.Debugf("Created instance in repository: %s", s.Name)
	return nil
}

// GetInstance retrieves an instance spec by name.
func (r *Repository) GetInstance(ctx context.Context, name string) (*model.InstanceSpec, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE name = ?`

	s, err := r.scanRow(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("instance %s: %w", name, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query instance: %w", err)
	}

	return &s, nil
}

// ListInstances returns all the instance specs ordered by name.
func (r *Repository) ListInstances(ctx context.Context) ([]model.InstanceSpec, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query instances: %w", err)
	}
	defer rows.Close()

	var specs []model.InstanceSpec
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		specs = append(specs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return specs, nil
}

// DeleteInstance removes an instance spec.
func (r *Repository) DeleteInstance(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM instances WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("could not delete instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("instance %s: %w", name, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted instance from repository: %s", name)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRow(sc scanner) (model.InstanceSpec, error) {
	var (
		s                                                         model.InstanceSpec
		wrappers, workingDir                                      string
		dockerImage, dockerContainer, dockerAttach, dockerCompose string
		sshHost, sshUser, sshKeyFile                              string
		sshPort                                                   int
		createdAt                                                 sql.NullInt64
	)

	err := sc.Scan(
		&s.Name,
		&s.Type,
		&s.EnvPolicy,
		&wrappers,
		&s.Persistent,
		&workingDir,
		&dockerImage,
		&dockerContainer,
		&dockerAttach,
		&dockerCompose,
		&sshHost,
		&sshPort,
		&sshUser,
		&sshKeyFile,
		&createdAt,
	)
	if err != nil {
		return model.InstanceSpec{}, err
	}

	if wrappers != "" {
		s.Wrappers = strings.Split(wrappers, ",")
	}

	switch s.Type {
	case model.EnvTypeLocal:
		s.Local = &model.LocalEnvConfig{WorkingDir: workingDir}
	case model.EnvTypeDocker:
		s.Docker = &model.DockerEnvConfig{
			Image:          dockerImage,
			ContainerID:    dockerContainer,
			AttachTo:       dockerAttach,
			ComposeProject: dockerCompose,
			WorkingDir:     workingDir,
		}
	case model.EnvTypeSSH:
		s.SSH = &model.SSHEnvConfig{
			Host:    sshHost,
			Port:    sshPort,
			User:    sshUser,
			KeyFile: sshKeyFile,
		}
	}

	if !createdAt.Valid {
		return model.InstanceSpec{}, fmt.Errorf("created_at is required")
	}
	s.CreatedAt = timeFromUnix(createdAt.Int64)

	return s, nil
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
