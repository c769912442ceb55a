package ytweb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytsubs/internal/ctxhttpclient"
)

func TestExtractChannelID(t *testing.T) {
	for _, e := range []struct {
		input string
		id    string
		ok    bool
	}{
		{"UCexample000000000000000", "UCexample000000000000000", true},
		{"https://www.youtube.com/channel/UCexample000000000000000", "UCexample000000000000000", true},
		{"https://www.youtube.com/channel/UCexample000000000000000/videos", "UCexample000000000000000", true},
		{"https://www.youtube.com/@somehandle", "", false},
		{"tooshort", "", false},
		{"XXexample000000000000000", "", false},
	} {
		id, ok := extractChannelID(e.input)
		assert.Equal(t, e.ok, ok, e.input)
		assert.Equal(t, e.id, id, e.input)
	}
}

func TestResolveChannelIDFromPage(t *testing.T) {
	a := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`<html><head><meta itemprop="identifier" content="UCexample000000000000000"></head><body></body></html>`))
	}))
	defer s.Close()

	ctx := ctxhttpclient.WithHTTPClient(context.Background(), s.Client())

	id, err := ResolveChannelID(ctx, s.URL+"/@somehandle")
	a.NoError(err)
	a.Equal("UCexample000000000000000", id)
}

func TestResolveChannelIDFromPageBody(t *testing.T) {
	a := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`<html><body><script>var ytcfg = {"channelId":"UCexample000000000000000","title":"example"};</script></body></html>`))
	}))
	defer s.Close()

	ctx := ctxhttpclient.WithHTTPClient(context.Background(), s.Client())

	id, err := ResolveChannelID(ctx, s.URL+"/user/someone")
	a.NoError(err)
	a.Equal("UCexample000000000000000", id)
}

func TestResolveChannelIDNoStrategy(t *testing.T) {
	a := assert.New(t)

	_, err := ResolveChannelID(context.Background(), "definitely not a channel")
	a.Error(err)
}

func TestResolveChannelIDPageWithoutID(t *testing.T) {
	a := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write([]byte(`<html><body>nothing to see</body></html>`))
	}))
	defer s.Close()

	ctx := ctxhttpclient.WithHTTPClient(context.Background(), s.Client())

	_, err := ResolveChannelID(ctx, s.URL+"/@somehandle")
	a.Error(err)
}
