package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/s0up4200/qbitctl/filter"
	"github.com/s0up4200/qbitctl/qbittorrent"
	"github.com/s0up4200/qbitctl/render"
)

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func boolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func stringListProp(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

func filterNames() []string {
	names := make([]string, len(qbittorrent.Filters))
	for i, f := range qbittorrent.Filters {
		names[i] = string(f)
	}
	return names
}

func (r *Registry) registerTools() {
	r.register(Tool{
		Name:        "list_torrents",
		Description: "Get a list of all torrents with their status",
		InputSchema: objectSchema(map[string]any{
			"filter": map[string]any{
				"type":        "string",
				"description": "Filter torrents by state: " + strings.Join(filterNames(), ", "),
				"enum":        filterNames(),
			},
			"expression": stringProp(`Optional expression evaluated against each torrent, e.g. hasTag("hd") and Size > gib(4)`),
		}),
	}, r.listTorrents)

	r.register(Tool{
		Name:        "get_torrent_details",
		Description: "Get detailed information about a specific torrent",
		InputSchema: objectSchema(map[string]any{
			"hash": stringProp("The hash of the torrent"),
		}, "hash"),
	}, r.getTorrentDetails)

	r.register(Tool{
		Name:        "add_torrent",
		Description: "Add a new torrent from URL or magnet link",
		InputSchema: objectSchema(map[string]any{
			"urls":     stringListProp("List of torrent URLs or magnet links"),
			"category": stringProp("Category to assign to the torrent"),
			"tags":     stringListProp("Tags to assign to the torrent"),
			"paused":   boolProp("Start the torrent in paused state"),
			"savepath": stringProp("Save path for the torrent"),
		}, "urls"),
	}, r.addTorrent)

	r.register(Tool{
		Name:        "remove_torrent",
		Description: "Remove a torrent from qBittorrent",
		InputSchema: objectSchema(map[string]any{
			"hash": stringProp("The hash of the torrent to remove"),
			"delete_files": map[string]any{
				"type":        "boolean",
				"description": "Delete files associated with the torrent",
				"default":     false,
			},
		}, "hash"),
	}, r.removeTorrent)

	r.register(Tool{
		Name:        "pause_torrent",
		Description: "Pause a torrent",
		InputSchema: objectSchema(map[string]any{
			"hash": stringProp("The hash of the torrent to pause"),
		}, "hash"),
	}, r.pauseTorrent)

	r.register(Tool{
		Name:        "resume_torrent",
		Description: "Resume a paused torrent",
		InputSchema: objectSchema(map[string]any{
			"hash": stringProp("The hash of the torrent to resume"),
		}, "hash"),
	}, r.resumeTorrent)

	r.register(Tool{
		Name:        "get_app_state",
		Description: "Get the current state of the qBittorrent application",
		InputSchema: objectSchema(map[string]any{}),
	}, r.getAppState)

	r.register(Tool{
		Name:        "set_torrent_category",
		Description: "Set the category for a torrent",
		InputSchema: objectSchema(map[string]any{
			"hash":     stringProp("The hash of the torrent"),
			"category": stringProp("The category name"),
		}, "hash", "category"),
	}, r.setTorrentCategory)

	r.register(Tool{
		Name:        "get_categories",
		Description: "Get all available categories",
		InputSchema: objectSchema(map[string]any{}),
	}, r.getCategories)

	r.register(Tool{
		Name:        "get_tags",
		Description: "Get all available tags",
		InputSchema: objectSchema(map[string]any{}),
	}, r.getTags)

	r.register(Tool{
		Name:        "add_torrent_tags",
		Description: "Add tags to a torrent",
		InputSchema: objectSchema(map[string]any{
			"hash": stringProp("The hash of the torrent"),
			"tags": stringListProp("Tags to add"),
		}, "hash", "tags"),
	}, r.addTorrentTags)

	r.register(Tool{
		Name:        "find_torrents",
		Description: "Search torrents by name",
		InputSchema: objectSchema(map[string]any{
			"query": stringProp("Name or release name to search for"),
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of matches to return",
				"default":     10,
			},
		}, "query"),
	}, r.findTorrents)
}

type hashArgs struct {
	Hash string `json:"hash"`
}

// requireHash decodes arguments carrying a mandatory hash
func requireHash(args json.RawMessage) (string, *Result) {
	var a hashArgs
	if err := decodeArgs(args, &a); err != nil {
		res := invalid("%v", err)
		return "", &res
	}
	hash := strings.TrimSpace(a.Hash)
	if hash == "" {
		res := invalid("hash is required")
		return "", &res
	}
	return hash, nil
}

func (r *Registry) listTorrents(ctx context.Context, args json.RawMessage) Result {
	var a struct {
		Filter     string `json:"filter"`
		Expression string `json:"expression"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return invalid("%v", err)
	}

	state, err := qbittorrent.ParseFilter(a.Filter)
	if err != nil {
		return invalid("%v", err)
	}

	var expression *filter.Expression
	if strings.TrimSpace(a.Expression) != "" {
		if expression, err = filter.Compile(a.Expression); err != nil {
			return invalid("%v", err)
		}
	}

	torrents, err := r.api.ListTorrents(ctx, state)
	if err != nil {
		return failed("listing torrents", err)
	}
	if expression != nil {
		torrents = expression.Apply(torrents)
	}
	return textResult(render.TorrentList(torrents))
}

func (r *Registry) getTorrentDetails(ctx context.Context, args json.RawMessage) Result {
	hash, res := requireHash(args)
	if res != nil {
		return *res
	}

	torrent, err := r.api.GetTorrent(ctx, hash)
	if err != nil {
		return failed("getting torrent details", err)
	}
	if torrent == nil {
		return textResult(render.NotFound(hash))
	}
	return textResult(render.TorrentDetails(*torrent))
}

func (r *Registry) addTorrent(ctx context.Context, args json.RawMessage) Result {
	var a struct {
		URLs     []string `json:"urls"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
		Paused   *bool    `json:"paused"`
		SavePath string   `json:"savepath"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return invalid("%v", err)
	}

	urls := make([]string, 0, len(a.URLs))
	for _, u := range a.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return invalid("urls must contain at least one URL or magnet link")
	}

	err := r.api.AddTorrent(ctx, qbittorrent.AddOptions{
		URLs:     urls,
		Category: a.Category,
		Tags:     qbittorrent.NormalizeTags(a.Tags),
		Paused:   a.Paused,
		SavePath: a.SavePath,
	})
	if err != nil {
		return failed("adding torrent", err)
	}
	return textResult(render.Added(len(urls)))
}

func (r *Registry) removeTorrent(ctx context.Context, args json.RawMessage) Result {
	var a struct {
		Hash        string `json:"hash"`
		DeleteFiles bool   `json:"delete_files"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return invalid("%v", err)
	}
	hash := strings.TrimSpace(a.Hash)
	if hash == "" {
		return invalid("hash is required")
	}

	if err := r.api.RemoveTorrent(ctx, hash, a.DeleteFiles); err != nil {
		return failed("removing torrent", err)
	}
	return textResult(render.Removed(hash, a.DeleteFiles))
}

func (r *Registry) pauseTorrent(ctx context.Context, args json.RawMessage) Result {
	hash, res := requireHash(args)
	if res != nil {
		return *res
	}
	if err := r.api.PauseTorrent(ctx, hash); err != nil {
		return failed("pausing torrent", err)
	}
	return textResult(render.Paused(hash))
}

func (r *Registry) resumeTorrent(ctx context.Context, args json.RawMessage) Result {
	hash, res := requireHash(args)
	if res != nil {
		return *res
	}
	if err := r.api.ResumeTorrent(ctx, hash); err != nil {
		return failed("resuming torrent", err)
	}
	return textResult(render.Resumed(hash))
}

func (r *Registry) getAppState(ctx context.Context, _ json.RawMessage) Result {
	state, err := r.api.GetAppState(ctx)
	if err != nil {
		return failed("getting app state", err)
	}
	return textResult(render.AppState(*state))
}

func (r *Registry) setTorrentCategory(ctx context.Context, args json.RawMessage) Result {
	var a struct {
		Hash     string  `json:"hash"`
		Category *string `json:"category"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return invalid("%v", err)
	}
	hash := strings.TrimSpace(a.Hash)
	if hash == "" {
		return invalid("hash is required")
	}
	// an empty category is a valid request to clear it
	if a.Category == nil {
		return invalid("category is required")
	}

	if err := r.api.SetCategory(ctx, hash, *a.Category); err != nil {
		return failed("setting category", err)
	}
	return textResult(render.CategorySet(hash, *a.Category))
}

func (r *Registry) getCategories(ctx context.Context, _ json.RawMessage) Result {
	inv, err := r.api.GetCategories(ctx)
	if err != nil {
		return failed("getting categories", err)
	}
	return textResult(render.Categories(inv))
}

func (r *Registry) getTags(ctx context.Context, _ json.RawMessage) Result {
	tags, err := r.api.GetTags(ctx)
	if err != nil {
		return failed("getting tags", err)
	}
	return textResult(render.Tags(tags))
}

func (r *Registry) addTorrentTags(ctx context.Context, args json.RawMessage) Result {
	var a struct {
		Hash string   `json:"hash"`
		Tags []string `json:"tags"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return invalid("%v", err)
	}
	hash := strings.TrimSpace(a.Hash)
	if hash == "" {
		return invalid("hash is required")
	}
	tags := qbittorrent.NormalizeTags(a.Tags)
	if len(tags) == 0 {
		return invalid("tags must contain at least one non-empty tag")
	}

	if err := r.api.AddTags(ctx, hash, tags); err != nil {
		return failed("adding tags", err)
	}
	return textResult(render.TagsAdded(hash, tags))
}

func (r *Registry) findTorrents(ctx context.Context, args json.RawMessage) Result {
	var a struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return invalid("%v", err)
	}
	query := strings.TrimSpace(a.Query)
	if query == "" {
		return invalid("query is required")
	}
	if a.Limit < 0 {
		return invalid("limit must not be negative")
	}

	torrents, err := r.api.ListTorrents(ctx, qbittorrent.FilterAll)
	if err != nil {
		return failed("searching torrents", err)
	}
	return textResult(render.Matches(query, qbittorrent.MatchTorrents(torrents, query, a.Limit)))
}
