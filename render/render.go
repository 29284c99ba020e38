// Package render turns qbittorrent records into the text blocks returned by
// commands and the JSON documents returned by resource reads.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/s0up4200/qbitctl/qbittorrent"
)

const (
	noTorrents   = "No torrents found"
	noCategories = "No categories found"
	noTags       = "No tags found"
	noMatches    = "No matching torrents found"
)

// GiB converts bytes to gibibytes
func GiB(bytes int64) float64 {
	return float64(bytes) / humanize.GiByte
}

// MiBps converts bytes per second to mebibytes per second
func MiBps(bytesPerSecond int64) float64 {
	return float64(bytesPerSecond) / humanize.MiByte
}

// ETA renders a remaining time in seconds. The daemon's sentinel renders as Unknown.
func ETA(seconds int64) string {
	if seconds >= qbittorrent.UnknownETA || seconds < 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%d seconds", seconds)
}

// Timestamp renders epoch seconds as RFC 3339 UTC
func Timestamp(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(time.RFC3339)
}

// Completion renders a completion timestamp; values <= 0 mean not completed.
func Completion(epoch int64) string {
	if epoch <= 0 {
		return "Not completed"
	}
	return Timestamp(epoch)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// TorrentList renders a numbered summary of torrents in the order given.
func TorrentList(torrents []qbittorrent.Torrent) string {
	if len(torrents) == 0 {
		return noTorrents
	}

	entries := make([]string, 0, len(torrents))
	for i, t := range torrents {
		var b strings.Builder
		fmt.Fprintf(&b, "%d. %s\n", i+1, orDefault(t.Name, "Unknown"))
		fmt.Fprintf(&b, "   Hash: %s\n", t.Hash)
		fmt.Fprintf(&b, "   State: %s\n", t.State)
		fmt.Fprintf(&b, "   Progress: %.2f%%\n", t.Progress*100)
		fmt.Fprintf(&b, "   Size: %.2f GiB\n", GiB(t.TotalSize))
		fmt.Fprintf(&b, "   Download Speed: %.2f MiB/s\n", MiBps(t.DownloadSpeed))
		fmt.Fprintf(&b, "   Upload Speed: %.2f MiB/s\n", MiBps(t.UploadSpeed))
		fmt.Fprintf(&b, "   ETA: %s\n", ETA(t.ETA))
		fmt.Fprintf(&b, "   Category: %s", orDefault(t.Category, "None"))
		if len(t.Tags) > 0 {
			fmt.Fprintf(&b, "\n   Tags: %s", strings.Join(t.Tags, ", "))
		}
		entries = append(entries, b.String())
	}

	return fmt.Sprintf("Found %d torrent(s):\n\n%s", len(torrents), strings.Join(entries, "\n\n"))
}

// TorrentDetails renders the full record of a single torrent.
func TorrentDetails(t qbittorrent.Torrent) string {
	var b strings.Builder
	b.WriteString("Torrent Details:\n")
	b.WriteString("================\n")
	fmt.Fprintf(&b, "Name: %s\n", orDefault(t.Name, "Unknown"))
	fmt.Fprintf(&b, "Hash: %s\n", t.Hash)
	fmt.Fprintf(&b, "State: %s\n", t.State)
	fmt.Fprintf(&b, "Progress: %.2f%%\n", t.Progress*100)
	fmt.Fprintf(&b, "Total Size: %.2f GiB\n", GiB(t.TotalSize))
	fmt.Fprintf(&b, "Download Speed: %.2f MiB/s\n", MiBps(t.DownloadSpeed))
	fmt.Fprintf(&b, "Upload Speed: %.2f MiB/s\n", MiBps(t.UploadSpeed))
	fmt.Fprintf(&b, "ETA: %s\n", ETA(t.ETA))
	fmt.Fprintf(&b, "Ratio: %.2f\n", t.Ratio)
	fmt.Fprintf(&b, "Category: %s\n", orDefault(t.Category, "None"))
	fmt.Fprintf(&b, "Tags: %s\n", orDefault(strings.Join(t.Tags, ", "), "None"))
	fmt.Fprintf(&b, "Save Path: %s\n", orDefault(t.SavePath, "Unknown"))
	fmt.Fprintf(&b, "Added: %s\n", Timestamp(t.AddedOn))
	fmt.Fprintf(&b, "Completed: %s", Completion(t.CompletionOn))
	return b.String()
}

// AppState renders the daemon state summary.
func AppState(state qbittorrent.AppState) string {
	connection := "Unknown"
	if state.ConnectionStatus != "" {
		connection = strings.ToUpper(state.ConnectionStatus[:1]) + state.ConnectionStatus[1:]
	}

	var b strings.Builder
	b.WriteString("qBittorrent App State:\n")
	b.WriteString("======================\n")
	fmt.Fprintf(&b, "Web API Version: %s\n", orDefault(state.WebAPIVersion, "Unknown"))
	fmt.Fprintf(&b, "Total Torrents: %d\n", state.TorrentCount)
	fmt.Fprintf(&b, "Connection Status: %s\n", connection)
	fmt.Fprintf(&b, "Server State: %s\n", orDefault(state.ServerState, "Unknown"))
	fmt.Fprintf(&b, "Download Speed: %.2f MiB/s\n", MiBps(state.DownloadSpeed))
	fmt.Fprintf(&b, "Upload Speed: %.2f MiB/s\n", MiBps(state.UploadSpeed))
	fmt.Fprintf(&b, "Downloaded: %.2f GiB\n", GiB(state.DownloadedBytes))
	fmt.Fprintf(&b, "Uploaded: %.2f GiB\n", GiB(state.UploadedBytes))
	fmt.Fprintf(&b, "Free Space: %.2f GiB\n", GiB(state.FreeSpaceOnDisk))
	fmt.Fprintf(&b, "DHT Nodes: %d", state.DHTNodes)
	return b.String()
}

// Categories renders a category inventory, sorted by name. Derived
// inventories are labelled since they carry no save paths.
func Categories(inv qbittorrent.CategoryInventory) string {
	names := inv.Names()
	if len(names) == 0 {
		return noCategories
	}

	var b strings.Builder
	b.WriteString("Available categories:")
	if inv.Degraded {
		b.WriteString(" (derived from torrent list, save paths unavailable)")
	}
	for _, name := range names {
		fmt.Fprintf(&b, "\n- %s", name)
		if path := inv.Categories[name].SavePath; path != "" {
			fmt.Fprintf(&b, " (%s)", path)
		}
	}
	return b.String()
}

// Tags renders a tag inventory in the order given.
func Tags(tags []string) string {
	if len(tags) == 0 {
		return noTags
	}
	return "Available tags:\n- " + strings.Join(tags, "\n- ")
}

// Matches renders ranked search results.
func Matches(query string, matches []qbittorrent.TorrentMatch) string {
	if len(matches) == 0 {
		return noMatches
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d torrent(s) matching %q:", len(matches), query)
	for i, m := range matches {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, orDefault(m.Torrent.Name, "Unknown"))
		fmt.Fprintf(&b, "   Hash: %s\n", m.Torrent.Hash)
		fmt.Fprintf(&b, "   State: %s\n", m.Torrent.State)
		fmt.Fprintf(&b, "   Score: %.2f (name %.2f)", m.Score, m.NameMatch)
	}
	return b.String()
}

// Added reports a successful add
func Added(count int) string {
	return fmt.Sprintf("Successfully added %d torrent(s)", count)
}

// Removed reports a successful removal
func Removed(hash string, deleteFiles bool) string {
	if deleteFiles {
		return fmt.Sprintf("Successfully removed torrent %s and deleted files", hash)
	}
	return fmt.Sprintf("Successfully removed torrent %s", hash)
}

// Paused reports a successful pause
func Paused(hash string) string {
	return fmt.Sprintf("Successfully paused torrent %s", hash)
}

// Resumed reports a successful resume
func Resumed(hash string) string {
	return fmt.Sprintf("Successfully resumed torrent %s", hash)
}

// CategorySet reports a successful category change
func CategorySet(hash, category string) string {
	return fmt.Sprintf("Successfully set category to %q for torrent %s", category, hash)
}

// TagsAdded reports tags added to a torrent
func TagsAdded(hash string, tags []string) string {
	return fmt.Sprintf("Successfully added tags %s to torrent %s", strings.Join(tags, ", "), hash)
}

// NotFound reports a lookup that matched nothing
func NotFound(hash string) string {
	return fmt.Sprintf("Torrent with hash %s not found", hash)
}

// JSON renders v as an indented JSON document.
func JSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	return string(data), nil
}
