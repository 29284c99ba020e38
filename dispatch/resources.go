package dispatch

import (
	"context"
	"fmt"

	"github.com/s0up4200/qbitctl/qbittorrent"
	"github.com/s0up4200/qbitctl/render"
)

// Resource URIs
const (
	TorrentsURI   = "qbittorrent://torrents/all"
	AppStateURI   = "qbittorrent://app/state"
	CategoriesURI = "qbittorrent://categories"
	TagsURI       = "qbittorrent://tags"
)

const (
	mimeJSON = "application/json"
	mimeText = "text/plain"
)

// Resource describes a readable snapshot
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// ResourceContent is the result of reading a resource
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

var resources = []Resource{
	{URI: TorrentsURI, Name: "All Torrents", Description: "List of all torrents", MimeType: mimeJSON},
	{URI: AppStateURI, Name: "App State", Description: "Current state of qBittorrent application", MimeType: mimeJSON},
	{URI: CategoriesURI, Name: "Categories", Description: "Available torrent categories", MimeType: mimeJSON},
	{URI: TagsURI, Name: "Tags", Description: "Available torrent tags", MimeType: mimeJSON},
}

// Resources returns the readable resources
func (r *Registry) Resources() []Resource {
	return append([]Resource(nil), resources...)
}

// Read returns a fresh JSON snapshot of the resource. Like Call it never
// fails; errors are reported as text content.
func (r *Registry) Read(ctx context.Context, uri string) ResourceContent {
	snapshot, ok := r.snapshots()[uri]
	if !ok {
		r.logger.Warn().Str("uri", uri).Msg("Unknown resource requested")
		return ResourceContent{URI: uri, MimeType: mimeText, Text: fmt.Sprintf("Unknown resource: %s", uri)}
	}

	v, err := snapshot(ctx)
	if err == nil {
		var text string
		if text, err = render.JSON(v); err == nil {
			return ResourceContent{URI: uri, MimeType: mimeJSON, Text: text}
		}
	}

	r.logger.Warn().Err(err).Str("uri", uri).Msg("Failed to read resource")
	return ResourceContent{URI: uri, MimeType: mimeText, Text: fmt.Sprintf("Error reading resource: %v", err)}
}

func (r *Registry) snapshots() map[string]func(context.Context) (any, error) {
	return map[string]func(context.Context) (any, error){
		TorrentsURI: func(ctx context.Context) (any, error) {
			return r.api.ListTorrents(ctx, qbittorrent.FilterAll)
		},
		AppStateURI: func(ctx context.Context) (any, error) {
			return r.api.GetAppState(ctx)
		},
		CategoriesURI: func(ctx context.Context) (any, error) {
			return r.api.GetCategories(ctx)
		},
		TagsURI: func(ctx context.Context) (any, error) {
			tags, err := r.api.GetTags(ctx)
			if tags == nil {
				tags = []string{}
			}
			return tags, err
		},
	}
}
