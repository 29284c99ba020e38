package qbittorrent

import (
	"context"
	"encoding/json"
)

// GetCategories returns the categories known to qBittorrent. The direct
// categories endpoint is authoritative; only when the daemon does not offer
// it is the inventory derived from the torrent listing, and then it is
// marked degraded.
func (c *Client) GetCategories(ctx context.Context) (CategoryInventory, error) {
	body, err := c.get(ctx, "get categories", "/torrents/categories", nil)
	if err == nil {
		var cats map[string]Category
		if err := decodeJSON(body, &cats); err != nil {
			return CategoryInventory{}, opError("get categories", ErrTransportFailed, err)
		}
		return categoryInventory(cats), nil
	}
	if !isNotFound(err) {
		return CategoryInventory{}, err
	}

	c.logger.Warn().Msg("Categories endpoint unavailable, deriving categories from torrents")

	torrents, err := c.ListTorrents(ctx, FilterAll)
	if err != nil {
		return CategoryInventory{}, err
	}
	return DeriveCategories(torrents), nil
}

// GetTags returns the union of the tags of every torrent.
func (c *Client) GetTags(ctx context.Context) ([]string, error) {
	torrents, err := c.ListTorrents(ctx, FilterAll)
	if err != nil {
		return nil, err
	}
	return CollectTags(torrents), nil
}

// categoryInventory builds an authoritative inventory, filling names from
// the map keys when the daemon omitted them.
func categoryInventory(cats map[string]Category) CategoryInventory {
	inv := CategoryInventory{Categories: make(map[string]Category, len(cats))}
	for name, cat := range cats {
		if cat.Name == "" {
			cat.Name = name
		}
		inv.Categories[name] = cat
	}
	return inv
}

func decodeJSON(body []byte, v any) error {
	if len(body) == 0 {
		body = []byte("null")
	}
	return json.Unmarshal(body, v)
}
