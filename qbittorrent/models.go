package qbittorrent

import (
	"fmt"
	"time"
)

// UnknownETA is the value qBittorrent reports when the ETA cannot be computed.
const UnknownETA int64 = 8640000

// Filter narrows a torrent listing by state.
type Filter string

// Supported listing filters
const (
	FilterAll         Filter = "all"
	FilterDownloading Filter = "downloading"
	FilterSeeding     Filter = "seeding"
	FilterCompleted   Filter = "completed"
	FilterPaused      Filter = "paused"
	FilterStopped     Filter = "stopped"
	FilterStalled     Filter = "stalled"
	FilterChecking    Filter = "checking"
	FilterError       Filter = "error"
)

// Filters lists every accepted filter in display order.
var Filters = []Filter{
	FilterAll,
	FilterDownloading,
	FilterSeeding,
	FilterCompleted,
	FilterPaused,
	FilterStopped,
	FilterStalled,
	FilterChecking,
	FilterError,
}

// ParseFilter resolves a filter name. An empty name means FilterAll.
func ParseFilter(name string) (Filter, error) {
	if name == "" {
		return FilterAll, nil
	}
	for _, f := range Filters {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", name)
}

// Torrent is the normalized view of a torrent reported by qBittorrent
type Torrent struct {
	Hash          string   `json:"hash"`
	Name          string   `json:"name"`
	State         string   `json:"state"`
	Progress      float64  `json:"progress"`
	TotalSize     int64    `json:"total_size"`
	DownloadSpeed int64    `json:"download_speed"`
	UploadSpeed   int64    `json:"upload_speed"`
	ETA           int64    `json:"eta"`
	Ratio         float64  `json:"ratio"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	AddedOn       int64    `json:"added_on"`
	CompletionOn  int64    `json:"completion_on"`
	SavePath      string   `json:"save_path"`
}

// IsComplete reports whether the torrent has finished downloading
func (t *Torrent) IsComplete() bool {
	return t.Progress >= 1 || t.CompletionOn > 0
}

// IsActivelySeeding checks if the torrent is actively seeding
func (t *Torrent) IsActivelySeeding() bool {
	return t.State == "uploading" || t.State == "stalledUP" || t.State == "queuedUP" || t.State == "forcedUP"
}

// AddedAt returns the time the torrent was added, or the zero time when unknown.
func (t *Torrent) AddedAt() time.Time {
	if t.AddedOn <= 0 {
		return time.Time{}
	}
	return time.Unix(t.AddedOn, 0).UTC()
}

// CompletedAt returns the completion time and false when the torrent never completed.
func (t *Torrent) CompletedAt() (time.Time, bool) {
	if t.CompletionOn <= 0 {
		return time.Time{}, false
	}
	return time.Unix(t.CompletionOn, 0).UTC(), true
}

// AppState is an aggregate snapshot of the daemon's transfer state
type AppState struct {
	DownloadSpeed    int64  `json:"dl_info_speed"`
	DownloadedBytes  int64  `json:"dl_info_data"`
	UploadSpeed      int64  `json:"up_info_speed"`
	UploadedBytes    int64  `json:"up_info_data"`
	DHTNodes         int64  `json:"dht_nodes"`
	ConnectionStatus string `json:"connection_status"`
	Queueing         bool   `json:"queueing"`
	AltSpeedLimits   bool   `json:"use_alt_speed_limits"`
	FreeSpaceOnDisk  int64  `json:"free_space_on_disk"`
	ServerState      string `json:"server_state"`
	WebAPIVersion    string `json:"webapi_version"`
	TorrentCount     int    `json:"torrent_count"`
}

// serverStateLabel summarises a connection status for display.
func serverStateLabel(connectionStatus string) string {
	switch connectionStatus {
	case "connected":
		return "Running"
	case "":
		return "Unknown"
	default:
		return connectionStatus
	}
}

// Category describes a torrent category
type Category struct {
	Name     string `json:"name"`
	SavePath string `json:"savePath"`
}

// CategoryInventory maps category names to their metadata. Degraded is set
// when the inventory was derived from the torrent listing and carries no
// save paths.
type CategoryInventory struct {
	Categories map[string]Category `json:"categories"`
	Degraded   bool                `json:"degraded"`
}

// Names returns the category names sorted alphabetically.
func (inv CategoryInventory) Names() []string {
	return sortedKeys(inv.Categories)
}

// AddOptions are the parameters accepted when adding torrents. Zero values
// are omitted from the request so qBittorrent applies its own defaults.
type AddOptions struct {
	URLs     []string
	Category string
	Tags     []string
	Paused   *bool
	SavePath string
}
