// Package qbittorrent provides clients for the qBittorrent Web API.
//
// Two backends implement the API interface: Client speaks to the Web API
// directly, LibraryClient wraps the autobrr/go-qbittorrent library. Both
// normalize daemon payloads into the same Torrent and AppState records.
//
// # Sessions
//
// A client starts unauthenticated and logs in on first use with the
// credentials it was constructed with. Concurrent operations that find no
// session share one in-flight login. A session rejected with 403 is dropped
// so the following operation logs in again; the rejected operation itself is
// not retried.
//
// # Errors
//
// Failures are returned as *OperationError values whose kind is one of
// ErrAuthenticationFailed, ErrTransportFailed, ErrValidationFailed or
// ErrEndpointNotFound. The last is reported when neither the legacy nor the
// v5 name of a pause or resume endpoint exists on the daemon.
// A lookup by hash that matches nothing returns a nil torrent and no error.
//
// # Usage
//
//	client, err := qbittorrent.NewClient(url, username, password, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	torrents, err := client.ListTorrents(ctx, qbittorrent.FilterDownloading)
//
//	torrent, err := client.GetTorrent(ctx, hash)
//	if err == nil && torrent == nil {
//	    // not found
//	}
package qbittorrent
