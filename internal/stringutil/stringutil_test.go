package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var caseConversionTests = []struct {
	pascalCase string
	snakeCase  string
}{
	{"ID", "id"},
	{"ChannelID", "channel_id"},
	{"VideoID", "video_id"},
	{"PlaylistID", "playlist_id"},
	{"PlaylistRow", "playlist_row"},
	{"Title", "title"},
	{"Description", "description"},
	{"Date", "date"},
	{"CreatedAt", "created_at"},
	{"CoverVideoID", "cover_video_id"},
	{"PlaylistName", "playlist_name"},
}

func TestPascalToSnake(t *testing.T) {
	for _, tc := range caseConversionTests {
		t.Run(tc.pascalCase, func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.snakeCase, PascalToSnake(tc.pascalCase))
		})
	}
}

func BenchmarkPascalToSnake(b *testing.B) {
	for _, tc := range caseConversionTests {
		b.Run(tc.pascalCase, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				PascalToSnake(tc.pascalCase)
			}
		})
	}
}

func TestPascalToTitle(t *testing.T) {
	for _, tc := range []struct {
		input  string
		output string
	}{
		{"ChannelName", "Channel Name"},
		{"PlaylistName", "Playlist Name"},
		{"CreatedAt", "Created At"},
		{"Title", "Title"},
	} {
		t.Run(tc.input, func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.output, PascalToTitle(tc.input))
		})
	}
}

func TestLooksTrue(t *testing.T) {
	a := assert.New(t)

	for _, s := range []string{"true", "TRUE", "yes", "1", "on", "enabled"} {
		a.True(LooksTrue(s), s)
	}

	for _, s := range []string{"", "false", "no", "0", "off", "nope"} {
		a.False(LooksTrue(s), s)
	}
}
