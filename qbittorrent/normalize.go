package qbittorrent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// tagField holds the tags of a torrent as sent by the daemon. Older Web API
// versions send a comma separated string, some proxies and forks send a JSON
// array. Both are resolved into a list while decoding.
type tagField []string

// UnmarshalJSON implements json.Unmarshaler
func (t *tagField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode tags string: %w", err)
		}
		*t = splitTags(s)
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode tags list: %w", err)
		}
		*t = list
	default:
		return fmt.Errorf("unsupported tags encoding: %s", data)
	}
	return nil
}

// rawTorrent mirrors an entry of /api/v2/torrents/info
type rawTorrent struct {
	Hash         string   `json:"hash"`
	Name         string   `json:"name"`
	State        string   `json:"state"`
	Progress     float64  `json:"progress"`
	Size         int64    `json:"size"`
	TotalSize    int64    `json:"total_size"`
	DlSpeed      int64    `json:"dlspeed"`
	DlSpeedAlt   int64    `json:"dl_speed"`
	UpSpeed      int64    `json:"upspeed"`
	UpSpeedAlt   int64    `json:"up_speed"`
	ETA          int64    `json:"eta"`
	Ratio        float64  `json:"ratio"`
	Category     *string  `json:"category"`
	Tags         tagField `json:"tags"`
	AddedOn      int64    `json:"added_on"`
	CompletionOn int64    `json:"completion_on"`
	SavePath     string   `json:"save_path"`
}

func (r rawTorrent) normalize() Torrent {
	t := Torrent{
		Hash:          r.Hash,
		Name:          r.Name,
		State:         r.State,
		Progress:      r.Progress,
		TotalSize:     firstNonZero(r.TotalSize, r.Size),
		DownloadSpeed: firstNonZero(r.DlSpeed, r.DlSpeedAlt),
		UploadSpeed:   firstNonZero(r.UpSpeed, r.UpSpeedAlt),
		ETA:           r.ETA,
		Ratio:         r.Ratio,
		Tags:          NormalizeTags(r.Tags),
		AddedOn:       r.AddedOn,
		CompletionOn:  r.CompletionOn,
		SavePath:      r.SavePath,
	}
	if r.Category != nil {
		t.Category = *r.Category
	}
	return t
}

// rawServerState mirrors the server_state object of /api/v2/sync/maindata
type rawServerState struct {
	DlInfoSpeed       int64  `json:"dl_info_speed"`
	DlInfoData        int64  `json:"dl_info_data"`
	UpInfoSpeed       int64  `json:"up_info_speed"`
	UpInfoData        int64  `json:"up_info_data"`
	DHTNodes          int64  `json:"dht_nodes"`
	ConnectionStatus  string `json:"connection_status"`
	Queueing          bool   `json:"queueing"`
	UseAltSpeedLimits bool   `json:"use_alt_speed_limits"`
	FreeSpaceOnDisk   int64  `json:"free_space_on_disk"`
}

type rawMainData struct {
	ServerState rawServerState             `json:"server_state"`
	Torrents    map[string]json.RawMessage `json:"torrents"`
}

func (m rawMainData) normalize(version string) AppState {
	s := m.ServerState
	return AppState{
		DownloadSpeed:    s.DlInfoSpeed,
		DownloadedBytes:  s.DlInfoData,
		UploadSpeed:      s.UpInfoSpeed,
		UploadedBytes:    s.UpInfoData,
		DHTNodes:         s.DHTNodes,
		ConnectionStatus: s.ConnectionStatus,
		Queueing:         s.Queueing,
		AltSpeedLimits:   s.UseAltSpeedLimits,
		FreeSpaceOnDisk:  s.FreeSpaceOnDisk,
		ServerState:      serverStateLabel(s.ConnectionStatus),
		WebAPIVersion:    version,
		TorrentCount:     len(m.Torrents),
	}
}

// decodeTorrents parses a torrent listing into normalized records,
// preserving the order the daemon returned them in.
func decodeTorrents(body []byte) ([]Torrent, error) {
	var raw []rawTorrent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse torrent list: %w", err)
	}

	torrents := make([]Torrent, 0, len(raw))
	for _, r := range raw {
		torrents = append(torrents, r.normalize())
	}
	return torrents, nil
}

// NormalizeTags trims every tag, drops empty ones and removes duplicates
// while keeping the first-seen order. Normalizing twice is a no-op.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// ParseTags splits a comma separated tag string into normalized tags.
func ParseTags(s string) []string {
	return NormalizeTags(splitTags(s))
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// CollectTags unions the tags of every torrent.
func CollectTags(torrents []Torrent) []string {
	var all []string
	for _, t := range torrents {
		all = append(all, t.Tags...)
	}
	return NormalizeTags(all)
}

// DeriveCategories builds a presence-only inventory from the categories
// assigned to torrents. The result is always marked degraded.
func DeriveCategories(torrents []Torrent) CategoryInventory {
	inv := CategoryInventory{
		Categories: make(map[string]Category),
		Degraded:   true,
	}
	for _, t := range torrents {
		if t.Category == "" {
			continue
		}
		if _, ok := inv.Categories[t.Category]; !ok {
			inv.Categories[t.Category] = Category{Name: t.Category}
		}
	}
	return inv
}

func firstNonZero(values ...int64) int64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
