package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"oreinfinium.net/internal/client"
	"oreinfinium.net/internal/config"
	"oreinfinium.net/internal/observability"
	"oreinfinium.net/internal/persistence/sessiondb"
	"oreinfinium.net/internal/persistence/tracelog"
	"oreinfinium.net/internal/protocol"
	"oreinfinium.net/internal/sim/catalogs"
	"oreinfinium.net/internal/sim/component"
	"oreinfinium.net/internal/sim/entity"
	"oreinfinium.net/internal/sim/identity"
	"oreinfinium.net/internal/transport/queue"
	"oreinfinium.net/internal/transport/ws"
)

// transportEvents hands listener callbacks over to the tick loop.
type transportEvents struct {
	connected    chan struct{}
	disconnected chan error
	failed       chan error
}

func (e *transportEvents) Connected()              { e.connected <- struct{}{} }
func (e *transportEvents) Disconnected(err error)  { e.disconnected <- err }
func (e *transportEvents) ConnectFailed(err error) { e.failed <- err }

type sessionLog struct{ log *log.Logger }

func (l sessionLog) Connected(main entity.ID) { l.log.Printf("spawned as local entity %d", main) }
func (l sessionLog) Disconnected(r protocol.DisconnectReason) {
	l.log.Printf("disconnected by server: %s %s", r.Reason, r.Message)
}

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name       = flag.String("name", "player", "player name")
		configPath = flag.String("config", "./configs/tuning.yaml", "tuning.yaml path")
		catalogDir = flag.String("catalogs", "./configs", "directory holding textures.yaml and items.yaml")
		dataDir    = flag.String("data", "./data/client", "runtime data directory")
		wander     = flag.Bool("wander", true, "walk around and chat now and then")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite desync index")
		metrics    = flag.String("metrics_addr", "", "serve /metrics on this address (off when empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	cats, err := catalogs.Load(*catalogDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	var idx *sessiondb.SQLiteIndex
	if !*disableDB {
		idx, err = sessiondb.OpenSQLite(filepath.Join(*dataDir, "index", "desyncs.sqlite"))
		if err != nil {
			logger.Fatalf("open desync index: %v", err)
		}
		defer idx.Close()
	}
	dispatchLog := tracelog.NewDispatchLogger(*dataDir)
	defer dispatchLog.Close()

	lagMin, lagMax := cfg.Network.LagBounds()
	inbound := &queue.Queue[protocol.Message]{}
	events := &transportEvents{
		connected:    make(chan struct{}, 1),
		disconnected: make(chan error, 1),
		failed:       make(chan error, 1),
	}
	conn := ws.NewClient(ws.ClientOptions{
		URL: *url,
		Hello: protocol.InitialClientData{
			PlayerName:      *name,
			ClientUUID:      uuid.NewString(),
			VersionMajor:    protocol.VersionMajor,
			VersionMinor:    protocol.VersionMinor,
			VersionRevision: protocol.VersionRevision,
		},
		LagMin:        lagMin,
		LagMax:        lagMax,
		OutboundQueue: cfg.Network.OutboundQueue,
		Logger:        logger,
	}, inbound, events)

	sess := client.NewSession(client.Options{
		Catalogs:         cats,
		Out:              conn,
		Logger:           logger,
		WorldWidth:       cfg.World.Width,
		WorldHeight:      cfg.World.Height,
		DebugPacketStats: cfg.Network.DebugPacketStats,
	})
	sess.AddListener(sessionLog{log: logger})
	sess.SetTraceLogger(dispatchLog)

	col, err := instrument(sess, prometheus.NewRegistry())
	if err != nil {
		logger.Fatalf("metrics: %v", err)
	}
	if *metrics != "" {
		go serveMetrics(*metrics, col, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn.Connect(ctx)

	ticker := time.NewTicker(cfg.TickInterval())
	defer ticker.Stop()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for {
		select {
		case <-ctx.Done():
			_ = sess.Quit(protocol.DisconnectReason{Reason: protocol.ReasonClientQuit})
			closeAndWait(conn, events)
			return
		case err := <-events.failed:
			// No retry.
			logger.Fatalf("%v", err)
		case <-events.connected:
			logger.Printf("connected to %s", *url)
		case err := <-events.disconnected:
			// Apply whatever arrived before the close.
			_ = sess.Tick(inbound)
			if err != nil {
				logger.Printf("connection lost: %v", err)
			}
			return
		case now := <-ticker.C:
			if err := sess.Tick(inbound); err != nil {
				reason := client.DisconnectReasonFor(err)
				logger.Printf("ending session: %s: %v", reason.Reason, err)
				recordDesync(idx, *name, sess.TickCount(), err)
				_ = sess.Quit(reason)
				closeAndWait(conn, events)
				return
			}
			if sess.Ended() != nil {
				closeAndWait(conn, events)
				return
			}
			if !sess.Connected() {
				continue
			}
			if err := sess.Heartbeat(now); err != nil && !errors.Is(err, ws.ErrNotConnected) {
				logger.Printf("heartbeat: %v", err)
			}
			if *wander {
				wanderStep(sess, rng, logger)
			}
		}
	}
}

// instrument feeds the session's message and desync counts into a collector
// registered on reg.
func instrument(sess *client.Session, reg prometheus.Registerer) (*observability.Collector, error) {
	col, err := observability.NewCollector(reg)
	if err != nil {
		return nil, err
	}
	sess.SetObserver(col.ClientObserver())
	return col, nil
}

func serveMetrics(addr string, col *observability.Collector, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", col.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Printf("metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("metrics: %v", err)
	}
}

// closeAndWait gives the writer a moment to flush the final frames.
func closeAndWait(conn *ws.Client, events *transportEvents) {
	_ = conn.Close()
	select {
	case <-events.disconnected:
	case <-time.After(2 * time.Second):
	}
}

// wanderStep occasionally nudges the player and says where it is.
func wanderStep(s *client.Session, rng *rand.Rand, logger *log.Logger) {
	pos, ok := entity.Get[*component.Position](s.Store(), s.MainPlayer())
	if !ok {
		return
	}
	t := s.TickCount()
	if t%200 == 10 {
		next := component.Position{
			X: pos.X + float32(rng.Intn(15)-7),
			Y: pos.Y,
		}
		if err := s.Move(next); err != nil {
			logger.Printf("move: %v", err)
		}
	}
	if t%400 == 0 {
		if err := s.Say(fmt.Sprintf("tick=%d pos=(%.1f,%.1f)", t, pos.X, pos.Y)); err != nil {
			logger.Printf("say: %v", err)
		}
	}
}

func recordDesync(idx *sessiondb.SQLiteIndex, player string, tick uint64, err error) {
	if idx == nil {
		return
	}
	var de *identity.DesyncError
	if !errors.As(err, &de) {
		return
	}
	idx.RecordDesync(sessiondb.DesyncRecord{
		PlayerName: player,
		Op:         de.Op,
		NetworkID:  uint64(de.NetworkID),
		LocalID:    int32(de.LocalID),
		Reason:     de.Reason,
		Tick:       tick,
		At:         time.Now(),
	})
}
