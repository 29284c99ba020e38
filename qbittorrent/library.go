package qbittorrent

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	qbit "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// LibraryClient implements API on top of the autobrr/go-qbittorrent client.
// It logs in lazily through the same singleflight discipline as Client, but
// each library request keeps go-qbittorrent's own behaviour: up to five
// attempts, with a fresh login whenever the daemon answers 403.
type LibraryClient struct {
	host     string
	username string
	password string
	timeout  int
	logger   zerolog.Logger
	libLog   *log.Logger

	mu     sync.RWMutex
	client *qbit.Client

	authenticated atomic.Bool
	loginGroup    singleflight.Group
}

// NewLibraryClient creates a go-qbittorrent backed client. Like Client it
// does not contact qBittorrent until the first operation. Only WithTimeout
// applies; the library owns its transport.
func NewLibraryClient(url, username, password string, logger zerolog.Logger, opts ...Option) (*LibraryClient, error) {
	if url == "" {
		return nil, fmt.Errorf("qbittorrent URL is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &LibraryClient{
		host:     strings.TrimRight(url, "/"),
		username: username,
		password: password,
		timeout:  max(1, int(o.timeout.Seconds())),
		logger:   logger,
		libLog:   log.New(logger.With().Str("module", "go-qbittorrent").Logger(), "", 0),
	}
	c.client = c.newAPI(username, password)
	return c, nil
}

func (c *LibraryClient) newAPI(username, password string) *qbit.Client {
	return qbit.NewClient(qbit.Config{
		Host:     c.host,
		Username: username,
		Password: password,
		Timeout:  c.timeout,
		Log:      c.libLog,
	})
}

func (c *LibraryClient) api() *qbit.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Login authenticates with the given credentials and swaps in a library
// client bound to them.
func (c *LibraryClient) Login(ctx context.Context, username, password string) error {
	client := c.api()
	if username != c.username || password != c.password {
		client = c.newAPI(username, password)
	}

	if err := client.LoginCtx(ctx); err != nil {
		c.authenticated.Store(false)
		return opError("login", ErrAuthenticationFailed, err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	c.authenticated.Store(true)
	c.logger.Debug().Str("user", username).Msg("Authenticated with qBittorrent")
	return nil
}

func (c *LibraryClient) ensureSession(ctx context.Context, op string) error {
	if c.authenticated.Load() {
		return nil
	}

	loginCtx := context.WithoutCancel(ctx)
	_, err, _ := c.loginGroup.Do("login", func() (any, error) {
		if c.authenticated.Load() {
			return nil, nil
		}
		return nil, c.Login(loginCtx, c.username, c.password)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListTorrents retrieves torrents matching filter in daemon order.
func (c *LibraryClient) ListTorrents(ctx context.Context, filter Filter) ([]Torrent, error) {
	f, err := ParseFilter(string(filter))
	if err != nil {
		return nil, validationError("list torrents", err.Error())
	}
	if err := c.ensureSession(ctx, "list torrents"); err != nil {
		return nil, err
	}

	torrents, err := c.api().GetTorrentsCtx(ctx, qbit.TorrentFilterOptions{Filter: qbit.TorrentFilter(f)})
	if err != nil {
		return nil, c.fail("list torrents", err)
	}

	c.logger.Debug().Str("filter", string(f)).Msgf("Retrieved %d torrents from qBittorrent", len(torrents))
	return fromLibraryTorrents(torrents), nil
}

// GetTorrent returns the torrent with the given hash, or nil when unknown.
func (c *LibraryClient) GetTorrent(ctx context.Context, hash string) (*Torrent, error) {
	if strings.TrimSpace(hash) == "" {
		return nil, validationError("get torrent", "hash is required")
	}
	if err := c.ensureSession(ctx, "get torrent"); err != nil {
		return nil, err
	}

	torrents, err := c.api().GetTorrentsCtx(ctx, qbit.TorrentFilterOptions{Hashes: []string{hash}})
	if err != nil {
		return nil, c.fail("get torrent", err)
	}
	if len(torrents) == 0 {
		return nil, nil
	}

	t := fromLibraryTorrent(torrents[0])
	return &t, nil
}

// AddTorrent adds torrents from URLs or magnet links.
func (c *LibraryClient) AddTorrent(ctx context.Context, opts AddOptions) error {
	urls := nonEmpty(opts.URLs)
	if len(urls) == 0 {
		return validationError("add torrent", "at least one URL is required")
	}
	if err := c.ensureSession(ctx, "add torrent"); err != nil {
		return err
	}

	options := map[string]string{}
	if opts.Category != "" {
		options["category"] = opts.Category
	}
	if tags := NormalizeTags(opts.Tags); len(tags) > 0 {
		options["tags"] = strings.Join(tags, ",")
	}
	if opts.Paused != nil {
		options["paused"] = strconv.FormatBool(*opts.Paused)
		options["stopped"] = strconv.FormatBool(*opts.Paused)
	}
	if opts.SavePath != "" {
		options["savepath"] = opts.SavePath
	}

	if err := c.api().AddTorrentFromUrlCtx(ctx, strings.Join(urls, "\n"), options); err != nil {
		return c.fail("add torrent", err)
	}

	c.logger.Info().Int("count", len(urls)).Str("category", opts.Category).Msg("Added torrents")
	return nil
}

// RemoveTorrent removes a torrent, optionally deleting its data.
func (c *LibraryClient) RemoveTorrent(ctx context.Context, hash string, deleteFiles bool) error {
	return c.mutate(ctx, "remove torrent", hash, func(api *qbit.Client) error {
		return api.DeleteTorrentsCtx(ctx, []string{hash}, deleteFiles)
	})
}

// PauseTorrent pauses a torrent.
func (c *LibraryClient) PauseTorrent(ctx context.Context, hash string) error {
	return c.mutate(ctx, "pause torrent", hash, func(api *qbit.Client) error {
		return api.PauseCtx(ctx, []string{hash})
	})
}

// ResumeTorrent resumes a torrent.
func (c *LibraryClient) ResumeTorrent(ctx context.Context, hash string) error {
	return c.mutate(ctx, "resume torrent", hash, func(api *qbit.Client) error {
		return api.ResumeCtx(ctx, []string{hash})
	})
}

// SetCategory assigns a category to a torrent.
func (c *LibraryClient) SetCategory(ctx context.Context, hash, category string) error {
	return c.mutate(ctx, "set category", hash, func(api *qbit.Client) error {
		return api.SetCategoryCtx(ctx, []string{hash}, category)
	})
}

// AddTags attaches tags to a torrent.
func (c *LibraryClient) AddTags(ctx context.Context, hash string, tags []string) error {
	tags = NormalizeTags(tags)
	if len(tags) == 0 {
		return validationError("add tags", "at least one tag is required")
	}
	return c.mutate(ctx, "add tags", hash, func(api *qbit.Client) error {
		return api.AddTagsCtx(ctx, []string{hash}, strings.Join(tags, ","))
	})
}

func (c *LibraryClient) mutate(ctx context.Context, op, hash string, fn func(*qbit.Client) error) error {
	if strings.TrimSpace(hash) == "" {
		return validationError(op, "hash is required")
	}
	if err := c.ensureSession(ctx, op); err != nil {
		return err
	}
	if err := fn(c.api()); err != nil {
		return c.fail(op, err)
	}

	c.logger.Info().Str("hash", hash).Str("op", op).Msg("Torrent updated")
	return nil
}

// GetAppState fetches the Web API version and main data concurrently.
func (c *LibraryClient) GetAppState(ctx context.Context) (*AppState, error) {
	if err := c.ensureSession(ctx, "get app state"); err != nil {
		return nil, err
	}

	var (
		version string
		data    *qbit.MainData
	)

	api := c.api()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		version, err = api.GetWebAPIVersionCtx(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		data, err = api.SyncMainDataCtx(gctx, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, c.fail("get app state", err)
	}
	if data == nil {
		return nil, opError("get app state", ErrTransportFailed, fmt.Errorf("empty main data"))
	}

	s := data.ServerState
	status := string(s.ConnectionStatus)
	return &AppState{
		DownloadSpeed:    int64(s.DlInfoSpeed),
		DownloadedBytes:  int64(s.DlInfoData),
		UploadSpeed:      int64(s.UpInfoSpeed),
		UploadedBytes:    int64(s.UpInfoData),
		DHTNodes:         int64(s.DhtNodes),
		ConnectionStatus: status,
		Queueing:         s.Queueing,
		AltSpeedLimits:   s.UseAltSpeedLimits,
		FreeSpaceOnDisk:  int64(s.FreeSpaceOnDisk),
		ServerState:      serverStateLabel(status),
		WebAPIVersion:    strings.TrimSpace(version),
		TorrentCount:     len(data.Torrents),
	}, nil
}

// GetCategories returns the authoritative category inventory.
func (c *LibraryClient) GetCategories(ctx context.Context) (CategoryInventory, error) {
	if err := c.ensureSession(ctx, "get categories"); err != nil {
		return CategoryInventory{}, err
	}

	cats, err := c.api().GetCategoriesCtx(ctx)
	if err != nil {
		return CategoryInventory{}, c.fail("get categories", err)
	}

	out := make(map[string]Category, len(cats))
	for name, cat := range cats {
		out[name] = Category{Name: cat.Name, SavePath: cat.SavePath}
	}
	return categoryInventory(out), nil
}

// GetTags returns the union of the tags of every torrent.
func (c *LibraryClient) GetTags(ctx context.Context) ([]string, error) {
	torrents, err := c.ListTorrents(ctx, FilterAll)
	if err != nil {
		return nil, err
	}
	return CollectTags(torrents), nil
}

// fail wraps a library error for op. go-qbittorrent has already retried and
// re-logged in by the time it gives up, so an error mentioning login or 403
// means the session is gone and the next operation must log in again.
func (c *LibraryClient) fail(op string, err error) error {
	if isLibraryAuthError(err) {
		c.authenticated.Store(false)
		c.logger.Warn().Err(err).Str("op", op).Msg("qBittorrent session lost")
	}
	return opError(op, ErrTransportFailed, err)
}

// isLibraryAuthError matches the untyped auth failures go-qbittorrent
// surfaces from its retry loop.
func isLibraryAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "login") || strings.Contains(msg, "403") || strings.Contains(msg, "forbidden")
}

func fromLibraryTorrents(torrents []qbit.Torrent) []Torrent {
	out := make([]Torrent, 0, len(torrents))
	for _, t := range torrents {
		out = append(out, fromLibraryTorrent(t))
	}
	return out
}

func fromLibraryTorrent(t qbit.Torrent) Torrent {
	return Torrent{
		Hash:          t.Hash,
		Name:          t.Name,
		State:         string(t.State),
		Progress:      float64(t.Progress),
		TotalSize:     firstNonZero(int64(t.TotalSize), int64(t.Size)),
		DownloadSpeed: int64(t.DlSpeed),
		UploadSpeed:   int64(t.UpSpeed),
		ETA:           int64(t.ETA),
		Ratio:         float64(t.Ratio),
		Category:      t.Category,
		Tags:          ParseTags(t.Tags),
		AddedOn:       int64(t.AddedOn),
		CompletionOn:  int64(t.CompletionOn),
		SavePath:      t.SavePath,
	}
}
