package qbittorrent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagFieldEncodings(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []string
	}{
		{name: "comma string", json: `{"tags":"a, b,c"}`, want: []string{"a", "b", "c"}},
		{name: "list", json: `{"tags":[" a ","b","a"]}`, want: []string{"a", "b"}},
		{name: "empty string", json: `{"tags":""}`, want: []string{}},
		{name: "null", json: `{"tags":null}`, want: []string{}},
		{name: "missing", json: `{}`, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw rawTorrent
			require.NoError(t, json.Unmarshal([]byte(tt.json), &raw))
			assert.Equal(t, tt.want, raw.normalize().Tags)
		})
	}
}

func TestTagFieldRejectsNumbers(t *testing.T) {
	var raw rawTorrent
	assert.Error(t, json.Unmarshal([]byte(`{"tags":42}`), &raw))
}

func TestNormalizeTagsIsIdempotent(t *testing.T) {
	inputs := [][]string{
		nil,
		{"", " "},
		{"b", "a", "b", " a"},
		{" x ", "y,z", "x"},
	}

	for _, in := range inputs {
		once := NormalizeTags(in)
		assert.Equal(t, once, NormalizeTags(once), "input %q", in)
		for _, tag := range once {
			assert.NotEmpty(t, tag)
		}
	}
}

func TestNormalizeDefaultsAndAlternateNames(t *testing.T) {
	var raw rawTorrent
	require.NoError(t, json.Unmarshal([]byte(`{"hash":"h","size":100,"dl_speed":7,"up_speed":3,"category":null}`), &raw))

	torrent := raw.normalize()
	assert.Equal(t, "h", torrent.Hash)
	assert.Equal(t, int64(100), torrent.TotalSize)
	assert.Equal(t, int64(7), torrent.DownloadSpeed)
	assert.Equal(t, int64(3), torrent.UploadSpeed)
	assert.Equal(t, "", torrent.Category)
	assert.Equal(t, "", torrent.Name)
	assert.Zero(t, torrent.Progress)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	for _, want := range Filters {
		got, err := ParseFilter(string(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = ParseFilter("Paused")
	assert.Error(t, err)
}

func TestTorrentCompletion(t *testing.T) {
	torrent := Torrent{CompletionOn: -1}
	_, ok := torrent.CompletedAt()
	assert.False(t, ok)

	torrent.CompletionOn = 1700000000
	at, ok := torrent.CompletedAt()
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), at.Unix())
}

func TestTorrentAddedAt(t *testing.T) {
	assert.True(t, (&Torrent{}).AddedAt().IsZero())
	assert.True(t, (&Torrent{AddedOn: -5}).AddedAt().IsZero())
	assert.Equal(t, int64(1690000000), (&Torrent{AddedOn: 1690000000}).AddedAt().Unix())
}
