package qbittorrent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ListTorrents retrieves torrents matching filter in the order qBittorrent
// returns them. An empty filter lists everything.
func (c *Client) ListTorrents(ctx context.Context, filter Filter) ([]Torrent, error) {
	f, err := ParseFilter(string(filter))
	if err != nil {
		return nil, validationError("list torrents", err.Error())
	}

	query := url.Values{}
	query.Set("filter", string(f))

	body, err := c.get(ctx, "list torrents", "/torrents/info", query)
	if err != nil {
		return nil, err
	}

	torrents, err := decodeTorrents(body)
	if err != nil {
		return nil, opError("list torrents", ErrTransportFailed, err)
	}

	c.logger.Debug().Str("filter", string(f)).Msgf("Retrieved %d torrents from qBittorrent", len(torrents))
	return torrents, nil
}

// GetTorrent returns the torrent with the given hash, or nil when qBittorrent
// does not know it.
func (c *Client) GetTorrent(ctx context.Context, hash string) (*Torrent, error) {
	if strings.TrimSpace(hash) == "" {
		return nil, validationError("get torrent", "hash is required")
	}

	query := url.Values{}
	query.Set("hashes", hash)

	body, err := c.get(ctx, "get torrent", "/torrents/info", query)
	if err != nil {
		return nil, err
	}

	torrents, err := decodeTorrents(body)
	if err != nil {
		return nil, opError("get torrent", ErrTransportFailed, err)
	}

	if len(torrents) == 0 {
		return nil, nil
	}
	if len(torrents) > 1 {
		c.logger.Warn().Str("hash", hash).Int("matches", len(torrents)).Msg("Hash matched more than one torrent, using the first")
	}
	return &torrents[0], nil
}

// AddTorrent adds one or more torrents from URLs or magnet links.
func (c *Client) AddTorrent(ctx context.Context, opts AddOptions) error {
	urls := nonEmpty(opts.URLs)
	if len(urls) == 0 {
		return validationError("add torrent", "at least one URL is required")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{{"urls", strings.Join(urls, "\n")}}
	if opts.Category != "" {
		fields = append(fields, [2]string{"category", opts.Category})
	}
	if tags := NormalizeTags(opts.Tags); len(tags) > 0 {
		fields = append(fields, [2]string{"tags", strings.Join(tags, ",")})
	}
	if opts.Paused != nil {
		v := strconv.FormatBool(*opts.Paused)
		// v5 daemons renamed paused to stopped
		fields = append(fields, [2]string{"paused", v}, [2]string{"stopped", v})
	}
	if opts.SavePath != "" {
		fields = append(fields, [2]string{"savepath", opts.SavePath})
	}

	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return opError("add torrent", ErrTransportFailed, fmt.Errorf("failed to encode form: %w", err))
		}
	}
	if err := w.Close(); err != nil {
		return opError("add torrent", ErrTransportFailed, fmt.Errorf("failed to encode form: %w", err))
	}

	body, err := c.call(ctx, "add torrent", http.MethodPost, "/torrents/add", nil, &buf, w.FormDataContentType())
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) == "Fails." {
		return opError("add torrent", ErrTransportFailed, fmt.Errorf("qBittorrent rejected the torrent"))
	}

	c.logger.Info().Int("count", len(urls)).Str("category", opts.Category).Msg("Added torrents")
	return nil
}

// RemoveTorrent removes a torrent, optionally deleting its downloaded data.
func (c *Client) RemoveTorrent(ctx context.Context, hash string, deleteFiles bool) error {
	if strings.TrimSpace(hash) == "" {
		return validationError("remove torrent", "hash is required")
	}

	form := url.Values{}
	form.Set("hashes", hash)
	form.Set("deleteFiles", strconv.FormatBool(deleteFiles))

	if _, err := c.postForm(ctx, "remove torrent", "/torrents/delete", form); err != nil {
		return err
	}

	c.logger.Info().Str("hash", hash).Bool("delete_files", deleteFiles).Msg("Removed torrent")
	return nil
}

// PauseTorrent pauses a torrent. Pausing a paused torrent is not an error.
func (c *Client) PauseTorrent(ctx context.Context, hash string) error {
	return c.toggle(ctx, "pause torrent", "Paused torrent", hash, "/torrents/pause", "/torrents/stop")
}

// ResumeTorrent resumes a torrent. Resuming a running torrent is not an error.
func (c *Client) ResumeTorrent(ctx context.Context, hash string) error {
	return c.toggle(ctx, "resume torrent", "Resumed torrent", hash, "/torrents/resume", "/torrents/start")
}

// toggle posts to path, falling back to the v5 endpoint name when the daemon
// answers 404.
func (c *Client) toggle(ctx context.Context, op, done, hash, path, v5Path string) error {
	if strings.TrimSpace(hash) == "" {
		return validationError(op, "hash is required")
	}

	form := url.Values{}
	form.Set("hashes", hash)

	_, err := c.postForm(ctx, op, path, form)
	if isNotFound(err) {
		c.logger.Debug().Str("path", v5Path).Msg("Endpoint missing, using qBittorrent v5 name")
		_, err = c.postForm(ctx, op, v5Path, form)
		if isNotFound(err) {
			var apiErr *APIError
			errors.As(err, &apiErr)
			return opError(op, ErrEndpointNotFound, apiErr)
		}
	}
	if err != nil {
		return err
	}

	c.logger.Info().Str("hash", hash).Msg(done)
	return nil
}

// SetCategory assigns category to a torrent. The value is forwarded as-is.
func (c *Client) SetCategory(ctx context.Context, hash, category string) error {
	if strings.TrimSpace(hash) == "" {
		return validationError("set category", "hash is required")
	}

	form := url.Values{}
	form.Set("hashes", hash)
	form.Set("category", category)

	if _, err := c.postForm(ctx, "set category", "/torrents/setCategory", form); err != nil {
		return err
	}

	c.logger.Info().Str("hash", hash).Str("category", category).Msg("Set torrent category")
	return nil
}

// AddTags attaches tags to a torrent.
func (c *Client) AddTags(ctx context.Context, hash string, tags []string) error {
	if strings.TrimSpace(hash) == "" {
		return validationError("add tags", "hash is required")
	}
	tags = NormalizeTags(tags)
	if len(tags) == 0 {
		return validationError("add tags", "at least one tag is required")
	}

	form := url.Values{}
	form.Set("hashes", hash)
	form.Set("tags", strings.Join(tags, ","))

	if _, err := c.postForm(ctx, "add tags", "/torrents/addTags", form); err != nil {
		return err
	}

	c.logger.Info().Str("hash", hash).Strs("tags", tags).Msg("Added torrent tags")
	return nil
}

// GetAppState fetches the Web API version and the main sync data
// concurrently. Both requests must succeed.
func (c *Client) GetAppState(ctx context.Context) (*AppState, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, fmt.Errorf("get app state: %w", err)
	}

	var (
		version  []byte
		mainData []byte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		version, err = c.get(gctx, "get app state", "/app/webapiVersion", nil)
		return err
	})
	g.Go(func() error {
		var err error
		mainData, err = c.get(gctx, "get app state", "/sync/maindata", url.Values{"rid": {"0"}})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var data rawMainData
	if err := decodeJSON(mainData, &data); err != nil {
		return nil, opError("get app state", ErrTransportFailed, fmt.Errorf("failed to parse main data: %w", err))
	}

	state := data.normalize(strings.TrimSpace(string(version)))
	return &state, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
