package container

import (
	"context"

	"github/backup/internal/client"
	"github/backup/internal/config"
	"github/backup/internal/progress"
	"github/backup/internal/service"
)

// Container holds all initialized components
type Container struct {
	Config  *config.Config
	Client  client.GitHubClient
	Service *service.Service
}

// tokenSource adapts the static configured token to the capability
// interface the client and service depend on.
type tokenSource struct {
	token string
}

func (t tokenSource) Token() string {
	return t.token
}

// New creates a new container with all dependencies initialized
func New(cfg *config.Config) (*Container, error) {
	creds := tokenSource{token: cfg.GitHub.Token}

	githubClient := client.NewGitHubClient(cfg.GitHub, creds)

	svc := service.NewService(
		githubClient,
		creds,
		cfg.Backup,
		cfg.Retry,
		progress.LogObserver{},
	)

	return &Container{
		Config:  cfg,
		Client:  githubClient,
		Service: svc,
	}, nil
}

// Run executes a full backup of the configured item kinds
func (c *Container) Run(ctx context.Context) error {
	return c.Service.Run(ctx)
}
