package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/gorilla/mux"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/tdewolff/minify"
	"github.com/tdewolff/minify/css"
	"github.com/tdewolff/minify/html"
	"github.com/tdewolff/minify/js"
	"github.com/urfave/negroni/v2"
	"go.etcd.io/bbolt"

	"fknsrs.biz/p/ytsubs/handlers"
	"fknsrs.biz/p/ytsubs/internal/config"
	"fknsrs.biz/p/ytsubs/internal/configreader"
	"fknsrs.biz/p/ytsubs/internal/ctxconfig"
	"fknsrs.biz/p/ytsubs/internal/ctxdb"
	"fknsrs.biz/p/ytsubs/internal/ctxhttpclient"
	"fknsrs.biz/p/ytsubs/internal/ctxlogger"
	"fknsrs.biz/p/ytsubs/internal/ctxtemplate"
	"fknsrs.biz/p/ytsubs/internal/httpcache"
	"fknsrs.biz/p/ytsubs/internal/ingest"
	"fknsrs.biz/p/ytsubs/internal/logrusstackhook"
	"fknsrs.biz/p/ytsubs/internal/schema"
	"fknsrs.biz/p/ytsubs/internal/sqlitelogger"
	"fknsrs.biz/p/ytsubs/internal/stringutil"
	"fknsrs.biz/p/ytsubs/internal/templatecollection"
	"fknsrs.biz/p/ytsubs/internal/ytdl"
	"fknsrs.biz/p/ytsubs/internal/ytfeed"
)

func init() {
	sorm.SetParameterPrefix("?")
}

var cfg = config.Config{
	LogLevel:             logrus.InfoLevel,
	LogDebugLevels:       config.LevelList{logrus.DebugLevel, logrus.TraceLevel},
	LogQueries:           config.LogQueries{Enabled: true, SlowerThan: time.Millisecond * 100},
	LogSORM:              false,
	ApplicationAddr:      ":8080",
	ApplicationDatabase:  "database.db",
	ApplicationCachePath: "cache.db",
	ApplicationMinify:    true,
	PollInterval:         config.Duration(time.Minute * 10),
	BackfillIdle:         config.Duration(time.Second * 10),
	FeedTimeout:          config.Duration(time.Second * 5),
	YTDLProgram:          ytdl.DefaultProgram,
	YTDLTimeout:          config.Duration(ytdl.DefaultTimeout),
}

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

func init() {
	for _, configPath := range []string{"config.toml", "config.yaml", "config.yml"} {
		if st, err := os.Stat(configPath); err == nil && st != nil && !st.IsDir() {
			cfg.Config = configPath
		}
	}
}

type simpleQueryLogger struct {
	logger *logrus.Logger
}

func (s *simpleQueryLogger) LogQuery(query string, args []interface{}) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query start")
}

func (s *simpleQueryLogger) LogQueryAfter(query string, args []interface{}, duration time.Duration, err error) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.duration":   duration,
		"db.error":      err,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query finish")
}

func main() {
	ctx := context.Background()

	if err := configreader.Read(os.Args[0], os.Args[1:], os.Environ(), &cfg); err != nil {
		panic(err)
	}

	ctx = ctxconfig.WithConfig(ctx, cfg)

	logger := logrus.New()

	logger.SetLevel(cfg.LogLevel)
	if len(cfg.LogDebugLevels) > 0 {
		logger.AddHook(logrusstackhook.NewStackHook(nil, cfg.LogDebugLevels, nil))
	}

	logger.WithFields(logrus.Fields{
		"config.config":                 cfg.Config,
		"config.log_level":              cfg.LogLevel,
		"config.log_debug_levels":       cfg.LogDebugLevels,
		"config.log_queries":            cfg.LogQueries,
		"config.log_sorm":               cfg.LogSORM,
		"config.application_addr":       cfg.ApplicationAddr,
		"config.application_cache_path": cfg.ApplicationCachePath,
		"config.application_database":   cfg.ApplicationDatabase,
		"config.application_minify":     cfg.ApplicationMinify,
		"config.poll_interval":          cfg.PollInterval.Value(),
		"config.backfill_idle":          cfg.BackfillIdle.Value(),
		"config.feed_timeout":           cfg.FeedTimeout.Value(),
		"config.ytdl_program":           cfg.YTDLProgram,
		"config.ytdl_timeout":           cfg.YTDLTimeout.Value(),
	}).Info("program starting")

	if cfg.LogSORM {
		sorm.SetQueryLogger(&simpleQueryLogger{logger})
	}

	ctx = ctxlogger.WithLogger(ctx, logger)

	dbDriver := "sqlite3"

	if !cfg.LogQueries.IsZero() {
		dbDriver = "sqlite3:logged"

		sql.Register(dbDriver, sqlitelogger.New(
			dbDriver,
			&sqlite3.SQLiteDriver{},
			&sqlitelogger.BasicFilter{
				LogSlowerThan: cfg.LogQueries.SlowerThan,
				IgnorePackageStackFrames: []string{
					// standard library
					"database/sql",
					"net/http",
					"runtime",
					// libraries
					"github.com/gorilla/mux",
					"github.com/shogo82148/go-sql-proxy",
					"github.com/urfave/negroni/v2",
					// middleware
					"fknsrs.biz/p/ytsubs/internal/ctxdb",
					"fknsrs.biz/p/ytsubs/internal/ctxlogger",
					"fknsrs.biz/p/ytsubs/internal/ctxtemplate",
					"fknsrs.biz/p/ytsubs/internal/sqlitelogger",
					// main
					"main",
				},
				IgnoreFunctionQueries: []string{
					"fknsrs.biz/p/ytsubs/internal/syncqueue.Pending",
				},
			},
		))
	}

	db, err := sql.Open(dbDriver, cfg.ApplicationDatabase)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	if err := schema.Apply(ctx, db); err != nil {
		panic(err)
	}

	ctx = ctxdb.WithDB(ctx, db)

	cacheDB, err := bbolt.Open(cfg.ApplicationCachePath, 0600, nil)
	if err != nil {
		panic(err)
	}
	defer cacheDB.Close()

	ctx = ctxhttpclient.WithHTTPClient(ctx, &http.Client{
		Transport: httpcache.NewTransport(nil, cacheDB, 0),
	})

	catalogue := &ytdl.Client{
		Program: cfg.YTDLProgram,
		Timeout: cfg.YTDLTimeout.Value(),
	}

	fetchFeed := func(ctx context.Context, channelID string) (*ytfeed.Feed, error) {
		ctx, cancel := context.WithTimeout(ctx, cfg.FeedTimeout.Value())
		defer cancel()

		return ytfeed.Fetch(ctx, channelID)
	}

	workers := []worker{
		{
			name: "application",
			run: func(ctx context.Context) error {
				return runApplicationWorker(ctx, cfg.ApplicationAddr)
			},
		},
		{
			name: "feed_poll",
			run: func(ctx context.Context) error {
				return ingest.RunFeedPoll(ctx, cfg.PollInterval.Value(), fetchFeed)
			},
		},
		{
			name: "video_backfill",
			run: func(ctx context.Context) error {
				return ingest.RunVideoBackfill(ctx, cfg.BackfillIdle.Value(), catalogue)
			},
		},
		{
			name: "playlist_backfill",
			run: func(ctx context.Context) error {
				return ingest.RunPlaylistBackfill(ctx, cfg.BackfillIdle.Value(), catalogue)
			},
		},
	}

	if err := runAllWorkers(ctx, workers); err != nil {
		panic(err)
	}
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

func runAllWorkers(ctx context.Context, workers []worker) error {
	done := make(chan error, len(workers))
	cancellers := make([]context.CancelCauseFunc, len(workers))

	var rw sync.RWMutex

	for id, w := range workers {
		go func(id int, w worker) {
			for {
				l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
					"worker.id":   id + 1,
					"worker.name": w.name,
				})

				ctx, cancel := context.WithCancelCause(ctxlogger.WithLogger(ctx, l))

				rw.Lock()
				cancellers[id] = cancel
				rw.Unlock()

				if err := w.run(ctx); err != nil {
					l.WithError(err).Error("worker failed")

					rw.RLock()
					for _, fn := range cancellers {
						if fn == nil {
							continue
						}

						fn(fmt.Errorf("worker %d (%s) failed: %w", id+1, w.name, err))
					}
					rw.RUnlock()
				} else {
					l.Info("worker restarted")
				}

				time.Sleep(time.Second)
			}
		}(id, w)
	}

	var errs []error
	for err := range done {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func directoryExists(name string) bool {
	st, err := os.Stat(name)
	if err != nil {
		return false
	}
	return st.IsDir()
}

func runApplicationWorker(ctx context.Context, addr string) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{
		"args.addr": addr,
	}).Info("running application worker")

	templateFuncs := template.FuncMap{
		"format_time": func(t time.Time) string {
			return t.Format(time.RFC3339)
		},
		"format_date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"format_time_relative": func(t time.Time) string {
			return time.Now().Sub(t).String()
		},
		"pascal_to_snake": stringutil.PascalToSnake,
		"pascal_to_title": stringutil.PascalToTitle,
		"make_map": func(args ...interface{}) map[string]interface{} {
			m := make(map[string]interface{})

			for i := 0; i < len(args)/2; i++ {
				kv := args[i*2]
				vv := args[i*2+1]

				k, ok := kv.(string)
				if !ok {
					panic(fmt.Errorf("key value should be string; was instead %T", kv))
				}

				m[k] = vv
			}

			return m
		},
	}

	var templates templatecollection.Collection

	if directoryExists("templates") {
		l.Info("using live filesystem for templates")
		c, err := templatecollection.NewLive(os.DirFS("templates"), templateFuncs)
		if err != nil {
			return fmt.Errorf("runApplicationWorker: %w", err)
		}
		templates = c
	} else {
		l.Info("using embedded filesystem for templates")
		c, err := templatecollection.NewCached(templateFS, templateFuncs)
		if err != nil {
			return fmt.Errorf("runApplicationWorker: %w", err)
		}
		templates = c
	}

	m := mux.NewRouter()

	m.Methods(http.MethodGet).Path("/").HandlerFunc(handlers.Index)
	m.Methods(http.MethodGet).Path("/{page:[0-9]+}").HandlerFunc(handlers.Index)
	m.Methods(http.MethodGet).Path("/shuffle").HandlerFunc(handlers.Shuffle)
	m.Methods(http.MethodGet).Path("/add").HandlerFunc(handlers.Add)
	m.Methods(http.MethodPost).Path("/add").HandlerFunc(handlers.AddAction)
	m.Methods(http.MethodGet).Path("/channels").HandlerFunc(handlers.Channels)
	m.Methods(http.MethodGet).Path("/channels/{id}").HandlerFunc(handlers.Channel)
	m.Methods(http.MethodGet).Path("/channels/{id}/{page:[0-9]+}").HandlerFunc(handlers.Channel)
	m.Methods(http.MethodGet).Path("/channels/{id}/playlists").HandlerFunc(handlers.ChannelPlaylists)
	m.Methods(http.MethodGet).Path("/playlists/{id}").HandlerFunc(handlers.Playlist)
	m.Methods(http.MethodGet).Path("/videos/{id}").HandlerFunc(handlers.Video)

	if directoryExists("static") {
		l.Info("using live filesystem for static files")
		m.Methods(http.MethodGet).PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	} else {
		l.Info("using embedded filesystem for static files")
		// the embedded names already start with static/, so no prefix strip
		m.Methods(http.MethodGet).PathPrefix("/static/").Handler(http.FileServer(http.FS(staticFS)))
	}

	min := minify.New()
	min.Add("text/html", html.DefaultMinifier)
	min.Add("text/css", css.DefaultMinifier)
	min.Add("application/javascript", js.DefaultMinifier)

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseFunc(ctxlogger.Register(l))
	n.UseFunc(ctxtemplate.Register(templates))
	n.UseFunc(ctxdb.Register(ctxdb.GetDB(ctx)))
	n.UseFunc(ctxhttpclient.Register(ctxhttpclient.GetHTTPClient(ctx)))
	n.UseFunc(ctxlogger.Log())

	n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(ctxtemplate.WithData(r.Context(), map[string]interface{}{
			"Messages": struct{ Error, Success, Information string }{
				r.URL.Query().Get("error"),
				r.URL.Query().Get("success"),
				r.URL.Query().Get("information"),
			},
		})))
	})

	if ctxconfig.GetConfig(ctx).ApplicationMinify {
		n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
			if strings.ToLower(r.Header.Get("connection")) != "upgrade" {
				mw := min.ResponseWriter(rw, r)
				defer mw.Close()
				rw = mw
			}

			next(rw, r)
		})
	}

	n.UseHandler(m)

	s := &http.Server{
		Addr:        addr,
		Handler:     n,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		l.Info("starting server")
		errs <- s.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return s.Shutdown(ctx)
	}
}
