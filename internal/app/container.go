package app

import (
	"fmt"

	"clusterdash/internal/config"
	"clusterdash/internal/domain"
	"clusterdash/internal/storage"
	"clusterdash/internal/ws"
	"clusterdash/pkg/sdk"
)

const userAgent = "clusterdash"

// Container holds the long-lived dependencies shared by the commands.
type Container struct {
	Config     *config.Config
	Client     *sdk.Client
	HubManager *ws.HubManager
	Store      domain.SnapshotRepository
}

func NewContainer(cfg *config.Config) *Container {
	return &Container{
		Config: cfg,
		Client: sdk.NewClient(cfg.ServerURL,
			sdk.WithTimeout(cfg.Timeout),
			sdk.WithUserAgent(userAgent),
		),
		HubManager: ws.NewHubManager(1),
	}
}

// OpenStore opens the local history database on first use.
func (c *Container) OpenStore() (domain.SnapshotRepository, error) {
	if c.Store != nil {
		return c.Store, nil
	}
	store, err := storage.NewGormStore(c.Config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	c.Store = store
	return store, nil
}

func (c *Container) Close() error {
	c.HubManager.StopAll()
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}
