package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/beastmaster"
	"github.com/crystal-mush/beastmaster/pkg/boltstore"
	"github.com/crystal-mush/beastmaster/pkg/events"
	"github.com/crystal-mush/beastmaster/pkg/profanity"
	"github.com/crystal-mush/beastmaster/pkg/server"
	"github.com/crystal-mush/beastmaster/pkg/sqlstore"
	"github.com/joho/godotenv"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: .env: %v", err)
	}

	confFile := flag.String("conf", envDefault("REALM_CONF", "realm.yaml"), "Path to realm config file (env: REALM_CONF)")
	port := flag.Int("port", 0, "TCP port to listen on, overrides config")
	boltPath := flag.String("bolt", "", "Path to bbolt character database, overrides config")
	moduleConf := flag.String("module-conf", "", "Path to Beastmaster config (.yaml or .conf), overrides config")
	backup := flag.String("backup", "", "Write a backup of the character database to this path and exit")
	doArchive := flag.Bool("archive", false, "Write a full realm archive to the archive directory and exit")
	listOnly := flag.Bool("archives", false, "List realm archives and exit")
	restore := flag.String("restore", "", "Restore a realm archive and exit (run with the server stopped)")
	debug := flag.Bool("debug", false, "Log every command and bus event")
	flag.Parse()

	log.Printf("Welcome to %s", server.VersionString())

	conf, err := server.LoadRealmConf(*confFile)
	if err != nil {
		log.Fatalf("Error loading realm config: %v", err)
	}
	if *port != 0 {
		conf.Port = *port
	}
	if *boltPath != "" {
		conf.BoltPath = *boltPath
	}
	if *moduleConf != "" {
		conf.ModuleConfig = *moduleConf
	}
	server.SetDebug(conf.Debug || *debug)

	if *listOnly {
		listArchives(conf.ArchiveDir)
		return
	}
	if *restore != "" {
		restoreArchive(conf, *confFile, *restore)
		return
	}

	if dir := filepath.Dir(conf.BoltPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Error creating data directory: %v", err)
		}
	}
	store, err := boltstore.Open(conf.BoltPath)
	if err != nil {
		log.Fatalf("Error opening bolt database: %v", err)
	}
	defer store.Close()

	if *backup != "" {
		if err := store.Backup(*backup); err != nil {
			log.Fatalf("Backup failed: %v", err)
		}
		return
	}
	if *doArchive {
		if err := writeArchive(conf, *confFile, store); err != nil {
			log.Fatalf("Archive failed: %v", err)
		}
		return
	}
	if n, err := store.Count(); err != nil {
		log.Fatalf("Error reading characters: %v", err)
	} else if n > 0 {
		log.Printf("Characters in database: %d", n)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	module, sqlStore := loadModule(ctx, conf, bus)
	if sqlStore != nil {
		defer sqlStore.Close()
	}

	game := server.NewGame(conf, store, module, bus)
	server.NewMetrics(game)
	if err := game.LoadHelp(conf.HelpFile); err != nil {
		log.Printf("WARNING: %v; using built-in help", err)
	}
	if conf.TextDir != "" {
		game.Texts = server.LoadTextFiles(conf.TextDir)
		go func() {
			if err := game.Texts.Watch(ctx); err != nil {
				log.Printf("WARNING: text files: watch disabled: %v", err)
			}
		}()
	}
	go game.Run(ctx)

	if module != nil {
		go reloadOnHangup(ctx, game, module)
	}

	srv := server.NewServer(game)
	go func() {
		<-ctx.Done()
		log.Printf("Shutting down...")
		srv.Stop()
	}()

	log.Printf("Starting %s on port %d...", conf.RealmName, conf.Port)
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// loadModule opens the module's SQL store and builds the Beastmaster. A
// disabled module returns nil and the realm runs without it.
func loadModule(ctx context.Context, conf *server.RealmConf, bus *events.Bus) (*beastmaster.Module, *sqlstore.Store) {
	cfg, err := beastmaster.LoadConfig(conf.ModuleConfig)
	if err != nil {
		log.Fatalf("Error loading Beastmaster config: %v", err)
	}
	if !cfg.Enable {
		log.Printf("beastmaster: disabled by config")
		return nil, nil
	}

	if conf.SQLDriver == "" || conf.SQLDriver == "sqlite" {
		if dir := filepath.Dir(conf.SQLDSN); dir != "." {
			os.MkdirAll(dir, 0755)
		}
	}
	sqlStore, err := sqlstore.Open(conf.SQLDriver, conf.SQLDSN, time.Duration(conf.SQLBusyTimeout)*time.Millisecond)
	if err != nil {
		log.Fatalf("Error opening Beastmaster database: %v", err)
	}

	deps := beastmaster.Deps{
		LoadConfig: func() (beastmaster.Config, error) { return beastmaster.LoadConfig(conf.ModuleConfig) },
		Tames:      sqlStore,
		Tracked:    sqlStore,
		Bus:        bus,
	}
	if cfg.ProfanityFile != "" {
		filter := profanity.New(cfg.ProfanityFile)
		if err := filter.Load(); err != nil {
			log.Printf("WARNING: profanity: %v", err)
		}
		go func() {
			if err := filter.Watch(ctx); err != nil {
				log.Printf("WARNING: profanity: watch disabled: %v", err)
			}
		}()
		deps.Names = filter
	}

	module := beastmaster.New(deps)
	if err := module.LoadSystem(ctx); err != nil {
		log.Printf("WARNING: %v", err)
	}
	return module, sqlStore
}

// reloadOnHangup re-reads the module config and catalog on SIGHUP.
func reloadOnHangup(ctx context.Context, game *server.Game, module *beastmaster.Module) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Printf("beastmaster: reloading on SIGHUP")
			game.Submit(func() {
				if err := module.LoadSystem(ctx); err != nil {
					log.Printf("WARNING: %v", err)
				}
			})
		}
	}
}

func init() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: beastmaster-realm [-conf realm.yaml] [-port 6250] [-bolt realm.bolt] [-module-conf beastmaster.yaml]")
		fmt.Fprintln(os.Stderr, "       beastmaster-realm -backup <path>")
		fmt.Fprintln(os.Stderr, "       beastmaster-realm -archive | -archives | -restore <archive.tar.gz>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Environment variables (a .env file in the working directory is loaded first):")
		fmt.Fprintln(os.Stderr, "  REALM_CONF           Path to realm config file")
		fmt.Fprintln(os.Stderr, "  REALM_PORT           TCP port")
		fmt.Fprintln(os.Stderr, "  REALM_BOLT_PATH      Character database")
		fmt.Fprintln(os.Stderr, "  REALM_SQL_DRIVER     sqlite or pgx")
		fmt.Fprintln(os.Stderr, "  REALM_SQL_DSN        Module database DSN")
		fmt.Fprintln(os.Stderr, "  REALM_MODULE_CONFIG  Beastmaster config path")
		fmt.Fprintln(os.Stderr, "  REALM_WEB_ENABLED    Enable the HTTP/WebSocket server")
		fmt.Fprintln(os.Stderr, "  REALM_JWT_SECRET     Web token signing secret")
		fmt.Fprintln(os.Stderr, "  BM_*                 Beastmaster settings, e.g. BM_HUNTER_ONLY=false")
		fmt.Fprintln(os.Stderr, "")
		flag.PrintDefaults()
	}
}
