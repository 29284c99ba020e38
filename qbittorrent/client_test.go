package qbittorrent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/qbitctl/qbittorrent/qbittest"
)

func sampleTorrents() []qbittest.Torrent {
	return []qbittest.Torrent{
		{Hash: "aaa111", Name: "Debian 12", State: "uploading", Progress: 1, Size: 650 << 20, Category: "linux", Tags: []string{"iso", "debian"}, CompletionOn: 1700000000, AddedOn: 1690000000},
		{Hash: "abc123", Name: "Big Movie", State: "pausedUP", Progress: 1, Size: 8 << 30, Category: "movies", Tags: []string{"hd"}, CompletionOn: 1700000500, AddedOn: 1690000500},
		{Hash: "fff999", Name: "Some Show S01", State: "downloading", Progress: 0.42, Size: 20 << 30, DlSpeed: 5 << 20, ETA: 3600, Tags: []string{" hd ", "tv", ""}},
	}
}

func newTestClient(t *testing.T, srv *qbittest.Server, opts ...Option) *Client {
	t.Helper()
	client, err := NewClient(srv.URL, "admin", "adminPassword", zerolog.Nop(), opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name    string
		baseURL string
		wantErr string
	}{
		{name: "valid", baseURL: "http://localhost:8080/"},
		{name: "missing URL", baseURL: "", wantErr: "URL is required"},
		{name: "relative URL", baseURL: "localhost:8080", wantErr: "invalid qbittorrent URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.baseURL, "admin", "secret", logger)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "http://localhost:8080", client.baseURL)
			assert.False(t, client.Authenticated())
			assert.NotNil(t, client.httpClient.Jar)
		})
	}
}

func TestClientOptions(t *testing.T) {
	t.Run("with timeout", func(t *testing.T) {
		client, err := NewClient("http://localhost:8080", "", "", zerolog.Nop(), WithTimeout(5*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	})

	t.Run("with custom http client", func(t *testing.T) {
		custom := &http.Client{Timeout: 10 * time.Second}
		client, err := NewClient("http://localhost:8080", "", "", zerolog.Nop(), WithHTTPClient(custom))
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, client.httpClient.Timeout)
		assert.NotNil(t, client.httpClient.Jar)
		assert.Nil(t, custom.Jar, "caller's client is not modified")
	})

	t.Run("with user agent", func(t *testing.T) {
		client, err := NewClient("http://localhost:8080", "", "", zerolog.Nop(), WithUserAgent("test/1.0"))
		require.NoError(t, err)
		assert.Equal(t, "test/1.0", client.userAgent)
	})
}

func TestLogin(t *testing.T) {
	srv := qbittest.NewServer()
	defer srv.Close()

	t.Run("bad credentials", func(t *testing.T) {
		client := newTestClient(t, srv)
		err := client.Login(context.Background(), "admin", "wrong")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAuthenticationFailed))
		assert.False(t, client.Authenticated())
	})

	t.Run("success", func(t *testing.T) {
		client := newTestClient(t, srv)
		require.NoError(t, client.Login(context.Background(), "admin", "adminPassword"))
		assert.True(t, client.Authenticated())
	})

	t.Run("unreachable", func(t *testing.T) {
		client, err := NewClient("http://127.0.0.1:1", "admin", "adminPassword", zerolog.Nop(), WithTimeout(time.Second))
		require.NoError(t, err)
		err = client.Login(context.Background(), "admin", "adminPassword")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAuthenticationFailed))
	})
}

func TestLazyLogin(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.ListTorrents(context.Background(), FilterAll)
	require.NoError(t, err)
	_, err = client.ListTorrents(context.Background(), FilterAll)
	require.NoError(t, err)

	assert.Equal(t, int64(1), srv.Logins())
}

func TestLazyLoginFailure(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	defer srv.Close()

	client, err := NewClient(srv.URL, "admin", "nope", zerolog.Nop())
	require.NoError(t, err)

	_, err = client.ListTorrents(context.Background(), FilterAll)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthenticationFailed))
	assert.Contains(t, err.Error(), "list torrents")
}

func TestConcurrentLoginIsShared(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	srv.LoginDelay = 100 * time.Millisecond
	defer srv.Close()

	client := newTestClient(t, srv)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if i == 0 {
				_, errs[i] = client.ListTorrents(context.Background(), FilterAll)
			} else {
				_, errs[i] = client.GetTorrent(context.Background(), "abc123")
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), srv.Logins())
}

func TestCancelledCallerDoesNotFailSharedLogin(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	srv.LoginDelay = 200 * time.Millisecond
	defer srv.Close()

	client := newTestClient(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan error, 1)
	go func() {
		_, err := client.ListTorrents(ctx, FilterAll)
		first <- err
	}()

	time.Sleep(20 * time.Millisecond)
	time.AfterFunc(30*time.Millisecond, cancel)

	torrents, err := client.ListTorrents(context.Background(), FilterAll)
	require.NoError(t, err)
	assert.Len(t, torrents, 3)
	assert.Equal(t, int64(1), srv.Logins())

	assert.ErrorIs(t, <-first, context.Canceled)
}

func TestExpiredSessionLogsInOnNextCall(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.ListTorrents(context.Background(), FilterAll)
	require.NoError(t, err)

	srv.ExpireSessions()

	_, err = client.ListTorrents(context.Background(), FilterAll)
	require.Error(t, err, "the rejected call is not retried")
	assert.True(t, errors.Is(err, ErrTransportFailed))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsForbidden())
	assert.False(t, client.Authenticated())

	_, err = client.ListTorrents(context.Background(), FilterAll)
	require.NoError(t, err)
	assert.Equal(t, int64(2), srv.Logins())
}

func TestListTorrents(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	all, err := client.ListTorrents(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"aaa111", "abc123", "fff999"}, []string{all[0].Hash, all[1].Hash, all[2].Hash})

	show := all[2]
	assert.Equal(t, int64(20<<30), show.TotalSize)
	assert.Equal(t, int64(5<<20), show.DownloadSpeed)
	assert.Equal(t, []string{"hd", "tv"}, show.Tags)
	assert.Equal(t, "", show.Category)

	paused, err := client.ListTorrents(ctx, FilterPaused)
	require.NoError(t, err)
	require.Len(t, paused, 1)
	assert.Equal(t, "abc123", paused[0].Hash)
	assert.Equal(t, "pausedUP", paused[0].State)

	none, err := client.ListTorrents(ctx, FilterError)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListTorrentsRejectsUnknownFilter(t *testing.T) {
	srv := qbittest.NewServer()
	defer srv.Close()
	client := newTestClient(t, srv)

	_, err := client.ListTorrents(context.Background(), Filter("sleeping"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Zero(t, srv.Logins(), "no request is made for invalid input")
}

func TestListTorrentsTransportFailure(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	srv.FailPaths["/api/v2/torrents/info"] = true
	defer srv.Close()
	client := newTestClient(t, srv)

	_, err := client.ListTorrents(context.Background(), FilterAll)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransportFailed))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestGetTorrent(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	for _, hash := range []string{"aaa111", "abc123", "fff999"} {
		torrent, err := client.GetTorrent(ctx, hash)
		require.NoError(t, err)
		require.NotNil(t, torrent)
		assert.Equal(t, hash, torrent.Hash)
	}

	missing, err := client.GetTorrent(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = client.GetTorrent(ctx, " ")
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestAddTorrent(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	paused := true
	err := client.AddTorrent(ctx, AddOptions{
		URLs:     []string{"magnet:?xt=urn:btih:XYZ", "magnet:?xt=urn:btih:QRS&dn=other"},
		Category: "movies",
		Paused:   &paused,
	})
	require.NoError(t, err)

	fields := srv.LastAdd()
	assert.Equal(t, "magnet:?xt=urn:btih:XYZ\nmagnet:?xt=urn:btih:QRS&dn=other", fields["urls"])
	assert.Equal(t, "movies", fields["category"])
	assert.Equal(t, "true", fields["paused"])
	assert.NotContains(t, fields, "savepath")
	assert.NotContains(t, fields, "tags")

	torrents, err := client.ListTorrents(ctx, FilterAll)
	require.NoError(t, err)
	var found bool
	for _, torrent := range torrents {
		if torrent.Hash == "xyz" {
			found = true
			assert.Equal(t, "movies", torrent.Category)
			assert.Equal(t, "pausedDL", torrent.State)
		}
	}
	assert.True(t, found)
}

func TestAddTorrentOmitsUnsetOptions(t *testing.T) {
	srv := qbittest.NewServer()
	defer srv.Close()
	client := newTestClient(t, srv)

	require.NoError(t, client.AddTorrent(context.Background(), AddOptions{
		URLs:     []string{"https://example.com/a.torrent"},
		Tags:     []string{"a", " b ", "a"},
		SavePath: "/data",
	}))

	fields := srv.LastAdd()
	assert.Equal(t, "a,b", fields["tags"])
	assert.Equal(t, "/data", fields["savepath"])
	assert.NotContains(t, fields, "paused")
	assert.NotContains(t, fields, "category")
}

func TestAddTorrentRequiresURL(t *testing.T) {
	srv := qbittest.NewServer()
	defer srv.Close()
	client := newTestClient(t, srv)

	err := client.AddTorrent(context.Background(), AddOptions{URLs: []string{"", "  "}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Nil(t, srv.LastAdd())
}

func TestRemoveTorrent(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.RemoveTorrent(ctx, "abc123", true))

	torrent, err := client.GetTorrent(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, torrent)
}

func TestPauseResume(t *testing.T) {
	for _, v5 := range []bool{false, true} {
		name := "legacy endpoints"
		if v5 {
			name = "v5 endpoints"
		}
		t.Run(name, func(t *testing.T) {
			srv := qbittest.NewServer(sampleTorrents()...)
			srv.V5Endpoints = v5
			defer srv.Close()
			client := newTestClient(t, srv)
			ctx := context.Background()

			require.NoError(t, client.PauseTorrent(ctx, "fff999"))
			got, _ := srv.Torrent("fff999")
			assert.Equal(t, "pausedDL", got.State)

			require.NoError(t, client.PauseTorrent(ctx, "fff999"), "pausing twice is fine")

			require.NoError(t, client.ResumeTorrent(ctx, "fff999"))
			got, _ = srv.Torrent("fff999")
			assert.Equal(t, "downloading", got.State)
		})
	}
}

func TestPauseWithoutAnyEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/auth/login" {
			_, _ = w.Write([]byte("Ok."))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "admin", "adminPassword", zerolog.Nop())
	require.NoError(t, err)

	err = client.PauseTorrent(context.Background(), "fff999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEndpointNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsNotFound())
}

func TestSetCategoryAndTags(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	defer srv.Close()
	client := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, client.SetCategory(ctx, "fff999", "tv"))
	require.NoError(t, client.AddTags(ctx, "fff999", []string{"new", ""}))

	got, _ := srv.Torrent("fff999")
	assert.Equal(t, "tv", got.Category)
	assert.Contains(t, got.Tags, "new")

	require.NoError(t, client.SetCategory(ctx, "fff999", ""), "empty category is forwarded")
	got, _ = srv.Torrent("fff999")
	assert.Equal(t, "", got.Category)

	err := client.AddTags(ctx, "fff999", nil)
	assert.True(t, errors.Is(err, ErrValidationFailed))
}

func TestGetAppState(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	defer srv.Close()
	client := newTestClient(t, srv)

	state, err := client.GetAppState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.9.3", state.WebAPIVersion)
	assert.Equal(t, "connected", state.ConnectionStatus)
	assert.Equal(t, "Running", state.ServerState)
	assert.Equal(t, int64(312), state.DHTNodes)
	assert.Equal(t, int64(5<<20), state.DownloadSpeed)
	assert.True(t, state.Queueing)
	assert.Equal(t, 3, state.TorrentCount)
}

func TestGetAppStateFailsAtomically(t *testing.T) {
	srv := qbittest.NewServer(sampleTorrents()...)
	srv.FailPaths["/api/v2/app/webapiVersion"] = true
	defer srv.Close()
	client := newTestClient(t, srv)

	state, err := client.GetAppState(context.Background())
	require.Error(t, err)
	assert.Nil(t, state)
	assert.True(t, errors.Is(err, ErrTransportFailed))
}
