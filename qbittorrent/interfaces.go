package qbittorrent

import "context"

// API defines the operations exposed by a qBittorrent backend
type API interface {
	// Login authenticates with explicit credentials
	Login(ctx context.Context, username, password string) error

	// Torrent queries
	ListTorrents(ctx context.Context, filter Filter) ([]Torrent, error)
	GetTorrent(ctx context.Context, hash string) (*Torrent, error)

	// Torrent mutations
	AddTorrent(ctx context.Context, opts AddOptions) error
	RemoveTorrent(ctx context.Context, hash string, deleteFiles bool) error
	PauseTorrent(ctx context.Context, hash string) error
	ResumeTorrent(ctx context.Context, hash string) error
	SetCategory(ctx context.Context, hash, category string) error
	AddTags(ctx context.Context, hash string, tags []string) error

	// Aggregate state
	GetAppState(ctx context.Context) (*AppState, error)
	GetCategories(ctx context.Context) (CategoryInventory, error)
	GetTags(ctx context.Context) ([]string, error)
}

var (
	_ API = (*Client)(nil)
	_ API = (*LibraryClient)(nil)
)
