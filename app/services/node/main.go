package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/ubilog/app/services/node/handlers"
	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/genesis"
	"github.com/ardanlabs/ubilog/foundation/blockchain/network"
	"github.com/ardanlabs/ubilog/foundation/blockchain/peer"
	"github.com/ardanlabs/ubilog/foundation/blockchain/state"
	"github.com/ardanlabs/ubilog/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/ubilog/foundation/blockchain/storage/leveldb"
	"github.com/ardanlabs/ubilog/foundation/blockchain/worker"
	"github.com/ardanlabs/ubilog/foundation/events"
	"github.com/ardanlabs/ubilog/foundation/logger"
	"github.com/ardanlabs/ubilog/foundation/validate"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			CORSOrigin      string        `conf:"default:*"`
		}
		Node struct {
			ListenIP       string   `conf:"default:0.0.0.0"`
			Port           uint16   `conf:"default:16936"`
			Advertise      string   `conf:"help:address peers reach this node on, defaults to 127.0.0.1:<port>"`
			Display        bool     `conf:"default:false"`
			Mine           bool     `conf:"default:true"`
			SecretKey      string   `conf:"mask"`
			KnownPeers     []string `conf:"help:host:port or /ip4/<ip>/udp/<port> entries"`
			GenesisPath    string   `conf:"default:zblock/genesis.json"`
			SelectStrategy string   `conf:"default:work"`
			SendRate       int      `conf:"default:0,help:datagrams per second, 0 is unlimited"`
		}
		Storage struct {
			Engine string `conf:"default:disk"`
			DBPath string `conf:"default:zblock/data"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "ubilog proof of work node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// The status display owns the terminal, so only warnings are logged.
	if cfg.Node.Display {
		log = log.Desugar().WithOptions(zap.IncreaseLevel(zap.WarnLevel)).Sugar()
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	gen, err := genesis.Load(cfg.Node.GenesisPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("unable to load genesis: %w", err)
		}
		log.Infow("startup", "status", "genesis file missing, using defaults", "path", cfg.Node.GenesisPath)
		gen = genesis.Default()
	}

	secretKey, err := parseSecretKey(cfg.Node.SecretKey)
	if err != nil {
		return err
	}

	// A peer set is a collection of known nodes in the network so slices
	// and blocks can be shared.
	peerSet := peer.NewPeerSet()
	for _, s := range cfg.Node.KnownPeers {
		addr, err := peer.Parse(s)
		if err != nil {
			return fmt.Errorf("unable to parse known peer: %w", err)
		}
		peerSet.Add(peer.New(addr))
	}

	host := netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), cfg.Node.Port)
	if cfg.Node.Advertise != "" {
		if host, err = peer.Parse(cfg.Node.Advertise); err != nil {
			return fmt.Errorf("unable to parse advertise address: %w", err)
		}
	}

	var storage database.Storage
	switch cfg.Storage.Engine {
	case "disk":
		storage, err = disk.New(cfg.Storage.DBPath)
	case "leveldb":
		storage, err = leveldb.New(cfg.Storage.DBPath)
	default:
		err = fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
	}
	if err != nil {
		return fmt.Errorf("unable to open storage: %w", err)
	}

	listenIP, err := netip.ParseAddr(cfg.Node.ListenIP)
	if err != nil {
		storage.Close()
		return fmt.Errorf("unable to parse listen ip: %w", err)
	}

	udp, err := network.Listen(netip.AddrPortFrom(listenIP, cfg.Node.Port), cfg.Node.SendRate)
	if err != nil {
		storage.Close()
		return fmt.Errorf("unable to listen for datagrams: %w", err)
	}
	log.Infow("startup", "status", "udp listener started", "local", udp.LocalAddr(), "host", host)
	udp.OnReadError(func(err error) {
		log.Warnw("udp", "status", "read failed", "ERROR", err)
	})

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value represents the node and manages the chain, the slice
	// pool and storage, and provides an API for application support.
	state, err := state.New(state.Config{
		Host:           host,
		Genesis:        gen,
		Storage:        storage,
		Transport:      udp,
		KnownPeers:     peerSet,
		SelectStrategy: cfg.Node.SelectStrategy,
		SecretKey:      secretKey,
		Mine:           cfg.Node.Mine,
		EvHandler:      ev,
	})
	if err != nil {
		udp.Close()
		storage.Close()
		return err
	}
	defer state.Shutdown()

	// The worker package implements the different workflows such as mining,
	// gossip, orphan requests and peer sharing. The worker will register
	// itself with the state.
	wcfg := worker.Config{
		Receiver:  udp,
		EvHandler: ev,
	}
	if cfg.Node.Display {
		wcfg.Display = os.Stdout
	}
	worker.Run(state, wcfg)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, state)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    state,
		Evts:     evts,
		Origin:   cfg.Web.CORSOrigin,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// parseSecretKey validates and reads the miner's secret key. An empty key
// mines with a zero secret.
func parseSecretKey(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}

	key := struct {
		SecretKey string `json:"secret_key" validate:"hexadecimal"`
	}{
		SecretKey: s,
	}
	if err := validate.Check(key); err != nil {
		return nil, fmt.Errorf("validating secret key: %w", err)
	}

	return database.ParseSecretKey(s)
}
