package render

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/qbitctl/qbittorrent"
)

func sampleTorrent() qbittorrent.Torrent {
	return qbittorrent.Torrent{
		Hash:          "abc123",
		Name:          "Ubuntu 24.04",
		State:         "downloading",
		Progress:      0.5,
		TotalSize:     2 << 30,
		DownloadSpeed: 3 << 20,
		UploadSpeed:   1 << 19,
		ETA:           120,
		Ratio:         0.25,
		Category:      "linux",
		Tags:          []string{"iso", "lts"},
		AddedOn:       1700000000,
		SavePath:      "/downloads",
	}
}

func TestTorrentList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "No torrents found", TorrentList(nil))
	})

	t.Run("entries", func(t *testing.T) {
		second := sampleTorrent()
		second.Hash = "def456"
		second.Name = ""
		second.Category = ""
		second.Tags = nil
		second.ETA = qbittorrent.UnknownETA

		out := TorrentList([]qbittorrent.Torrent{sampleTorrent(), second})

		want := "Found 2 torrent(s):\n\n" +
			"1. Ubuntu 24.04\n" +
			"   Hash: abc123\n" +
			"   State: downloading\n" +
			"   Progress: 50.00%\n" +
			"   Size: 2.00 GiB\n" +
			"   Download Speed: 3.00 MiB/s\n" +
			"   Upload Speed: 0.50 MiB/s\n" +
			"   ETA: 120 seconds\n" +
			"   Category: linux\n" +
			"   Tags: iso, lts\n\n" +
			"2. Unknown\n" +
			"   Hash: def456\n" +
			"   State: downloading\n" +
			"   Progress: 50.00%\n" +
			"   Size: 2.00 GiB\n" +
			"   Download Speed: 3.00 MiB/s\n" +
			"   Upload Speed: 0.50 MiB/s\n" +
			"   ETA: Unknown\n" +
			"   Category: None"
		assert.Equal(t, want, out)
	})
}

func TestTorrentDetails(t *testing.T) {
	out := TorrentDetails(sampleTorrent())

	assert.Contains(t, out, "Torrent Details:\n================\n")
	assert.Contains(t, out, "Name: Ubuntu 24.04\n")
	assert.Contains(t, out, "Total Size: 2.00 GiB\n")
	assert.Contains(t, out, "Ratio: 0.25\n")
	assert.Contains(t, out, "Added: 2023-11-14T22:13:20Z\n")
	assert.Contains(t, out, "Completed: Not completed")

	done := sampleTorrent()
	done.CompletionOn = 1700003600
	assert.Contains(t, TorrentDetails(done), "Completed: 2023-11-14T23:13:20Z")
}

func TestCompletion(t *testing.T) {
	assert.Equal(t, "Not completed", Completion(0))
	assert.Equal(t, "Not completed", Completion(-1))
	assert.Equal(t, "1970-01-01T00:00:01Z", Completion(1))
}

func TestAppState(t *testing.T) {
	out := AppState(qbittorrent.AppState{
		ConnectionStatus: "connected",
		ServerState:      "Running",
		WebAPIVersion:    "2.9.3",
		TorrentCount:     3,
		DownloadSpeed:    1 << 20,
		DHTNodes:         312,
	})

	assert.Contains(t, out, "qBittorrent App State:\n======================\n")
	assert.Contains(t, out, "Total Torrents: 3\n")
	assert.Contains(t, out, "Connection Status: Connected\n")
	assert.Contains(t, out, "Server State: Running\n")
	assert.Contains(t, out, "Download Speed: 1.00 MiB/s\n")
	assert.Contains(t, out, "DHT Nodes: 312")

	assert.Contains(t, AppState(qbittorrent.AppState{}), "Connection Status: Unknown")
}

func TestCategories(t *testing.T) {
	assert.Equal(t, "No categories found", Categories(qbittorrent.CategoryInventory{}))

	direct := qbittorrent.CategoryInventory{Categories: map[string]qbittorrent.Category{
		"tv":     {Name: "tv", SavePath: "/data/tv"},
		"movies": {Name: "movies"},
	}}
	assert.Equal(t, "Available categories:\n- movies\n- tv (/data/tv)", Categories(direct))

	derived := qbittorrent.CategoryInventory{
		Categories: map[string]qbittorrent.Category{"movies": {Name: "movies"}},
		Degraded:   true,
	}
	assert.Contains(t, Categories(derived), "derived from torrent list")
}

func TestTags(t *testing.T) {
	assert.Equal(t, "No tags found", Tags(nil))
	assert.Equal(t, "Available tags:\n- hd\n- tv", Tags([]string{"hd", "tv"}))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Successfully added 2 torrent(s)", Added(2))
	assert.Equal(t, "Successfully removed torrent abc", Removed("abc", false))
	assert.Equal(t, "Successfully removed torrent abc and deleted files", Removed("abc", true))
	assert.Equal(t, "Successfully paused torrent abc", Paused("abc"))
	assert.Equal(t, "Successfully resumed torrent abc", Resumed("abc"))
	assert.Equal(t, `Successfully set category to "movies" for torrent abc`, CategorySet("abc", "movies"))
	assert.Equal(t, "Torrent with hash abc not found", NotFound("abc"))
}

func TestJSONRoundTrip(t *testing.T) {
	torrents := []qbittorrent.Torrent{sampleTorrent()}

	out, err := JSON(torrents)
	require.NoError(t, err)
	assert.Contains(t, out, "\n  {\n    \"hash\": \"abc123\"")

	var decoded []qbittorrent.Torrent
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, torrents, decoded)
}

func TestJSONError(t *testing.T) {
	_, err := JSON(make(chan int))
	assert.Error(t, err)
}
