package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"oreinfinium.net/internal/config"
	"oreinfinium.net/internal/observability"
	"oreinfinium.net/internal/persistence/sessiondb"
	"oreinfinium.net/internal/persistence/tracelog"
	"oreinfinium.net/internal/server"
	"oreinfinium.net/internal/sim/catalogs"
	"oreinfinium.net/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "listen address")
		configPath  = flag.String("config", "./configs/tuning.yaml", "tuning.yaml path")
		catalogDir  = flag.String("catalogs", "./configs", "directory holding textures.yaml and items.yaml")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite session index")
		disableLogs = flag.Bool("disable_tick_log", false, "disable the jsonl.zst tick trace")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	cats, err := catalogs.Load(*catalogDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	w := server.New(cfg, cats, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col, err := observability.NewCollector(reg)
	if err != nil {
		logger.Fatalf("metrics: %v", err)
	}
	w.SetObserver(col.ServerObserver())

	if !*disableLogs {
		ticks := tracelog.NewTickLogger(*dataDir)
		defer ticks.Close()
		w.SetTraceLogger(ticks)
	}

	var idx *sessiondb.SQLiteIndex
	if !*disableDB {
		idx, err = sessiondb.OpenSQLite(filepath.Join(*dataDir, "index", "sessions.sqlite"))
		if err != nil {
			logger.Fatalf("open session index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, cfg); err != nil {
			logger.Printf("index catalogs: %v", err)
		}
		w.SetSessionIndex(idx)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", col.Handler())

	if envBool("ORE_ENABLE_ADMIN_HTTP", true) {
		mux.HandleFunc("/admin/v1/index", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			resp := map[string]any{"enabled": idx != nil}
			if idx != nil {
				resp["stats"] = idx.Stats()
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(resp)
		})
	}
	if envBool("ORE_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (ORE_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		logger.Printf("listening on %s (tick %dHz, protocol %d.%d.%d)", *addr, cfg.TickRateHz,
			cfg.ProtocolVersion.Major, cfg.ProtocolVersion.Minor, cfg.ProtocolVersion.Revision)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("server stopped: %v", err)
		return
	}
	logger.Printf("shutdown complete")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
