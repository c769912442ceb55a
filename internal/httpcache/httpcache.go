// Package httpcache is a caching http.RoundTripper backed by bbolt. It keeps
// repeated fetches of the same channel pages and feeds from hammering YouTube
// when the process restarts or a channel is re-added.
package httpcache

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("responses")

type entry struct {
	SavedAt    time.Time
	URL        string
	Status     string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *entry) makeResponse(req *http.Request) *http.Response {
	return &http.Response{
		Status:        e.Status,
		StatusCode:    e.StatusCode,
		Header:        e.Header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

func makeKey(u *url.URL) []byte {
	h := sha1.New()
	io.WriteString(h, u.String())
	return []byte(u.Host + "/" + hex.EncodeToString(h.Sum(nil)))
}

// Transport caches successful GET responses for maxAge. Everything else goes
// straight through.
type Transport struct {
	transport http.RoundTripper
	db        *bbolt.DB
	maxAge    time.Duration
}

func NewTransport(transport http.RoundTripper, db *bbolt.DB, maxAge time.Duration) *Transport {
	if transport == nil {
		transport = http.DefaultTransport
	}

	if maxAge == 0 {
		maxAge = time.Hour
	}

	return &Transport{
		transport: transport,
		db:        db,
		maxAge:    maxAge,
	}
}

// bypassCache reports whether the request asked not to be served from (or
// recorded in) the cache. The feed poller sends Cache-Control: no-cache so
// fresh uploads aren't hidden behind a cached feed body.
func bypassCache(req *http.Request) bool {
	for _, d := range strings.Split(req.Header.Get("Cache-Control"), ",") {
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "no-cache", "no-store":
			return true
		}
	}

	return false
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || bypassCache(req) {
		return t.transport.RoundTrip(req)
	}

	if e, err := t.fetch(req.URL); err == nil && e != nil && time.Since(e.SavedAt) < t.maxAge {
		return e.makeResponse(req), nil
	}

	res, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return res, nil
	}

	e, err := t.save(req.URL, res)
	if err != nil {
		return nil, err
	}

	return e.makeResponse(req), nil
}

func (t *Transport) fetch(u *url.URL) (*entry, error) {
	var d []byte

	if err := t.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}

		if v := b.Get(makeKey(u)); v != nil {
			d = append([]byte(nil), v...)
		}

		return nil
	}); err != nil {
		return nil, err
	}

	if d == nil {
		return nil, nil
	}

	var e entry
	if err := gob.NewDecoder(bytes.NewReader(d)).Decode(&e); err != nil {
		return nil, err
	}

	return &e, nil
}

func (t *Transport) save(u *url.URL, res *http.Response) (*entry, error) {
	d, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	res.Body.Close()

	e := entry{
		SavedAt:    time.Now(),
		URL:        u.String(),
		Status:     res.Status,
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       d,
	}

	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode(e); err != nil {
		return nil, err
	}

	if err := t.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}

		return b.Put(makeKey(u), buf.Bytes())
	}); err != nil {
		return nil, err
	}

	return &e, nil
}
