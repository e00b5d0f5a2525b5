package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/crystal-mush/beastmaster/pkg/archive"
	"github.com/crystal-mush/beastmaster/pkg/beastmaster"
	"github.com/crystal-mush/beastmaster/pkg/boltstore"
	"github.com/crystal-mush/beastmaster/pkg/server"
	"github.com/crystal-mush/beastmaster/pkg/sqlstore"
)

// realmConfigs lists the config files an archive carries.
func realmConfigs(conf *server.RealmConf, confFile string) []string {
	confs := []string{confFile, conf.ModuleConfig}
	if cfg, err := beastmaster.LoadConfig(conf.ModuleConfig); err == nil && cfg.ProfanityFile != "" {
		confs = append(confs, cfg.ProfanityFile)
	}
	return confs
}

func writeArchive(conf *server.RealmConf, confFile string, store *boltstore.Store) error {
	chars, err := store.Count()
	if err != nil {
		return err
	}
	p := archive.Params{
		Dir:        conf.ArchiveDir,
		Server:     server.VersionString(),
		Realm:      conf.RealmName,
		Characters: chars,
		Snapshot:   store.Backup,
		Confs:      realmConfigs(conf, confFile),
		TextDir:    conf.TextDir,
	}

	sqlStore, err := sqlstore.Open(conf.SQLDriver, conf.SQLDSN, time.Duration(conf.SQLBusyTimeout)*time.Millisecond)
	if err != nil {
		log.Printf("WARNING: archive: Beastmaster database skipped: %v", err)
	} else {
		defer sqlStore.Close()
		ctx := context.Background()
		if tames, err := sqlStore.LoadTames(ctx); err == nil {
			p.CatalogPets = len(tames)
		}
		if path, err := sqlStore.Path(); err == nil {
			p.SQLPath = path
			p.Checkpoint = func() error { return sqlStore.Checkpoint(ctx) }
		} else {
			log.Printf("WARNING: archive: %v; back up the %s database separately", err, sqlStore.Driver())
		}
	}

	path, err := archive.Create(p)
	if err != nil {
		return err
	}
	log.Printf("Archive written to %s (%d characters, %d catalog pets)", path, p.Characters, p.CatalogPets)
	return nil
}

func listArchives(dir string) {
	infos, err := archive.List(dir)
	if err != nil {
		log.Fatalf("Listing archives: %v", err)
	}
	if len(infos) == 0 {
		fmt.Printf("No archives in %s\n", dir)
		return
	}
	for _, info := range infos {
		if info.Manifest == nil {
			fmt.Printf("%s  %8d bytes  unreadable: %v\n", info.Path, info.Size, info.Err)
			continue
		}
		m := info.Manifest
		fmt.Printf("%s  %8d bytes  %s  %q  %d characters  %d pets\n",
			info.Path, info.Size, m.Timestamp, m.Realm, m.Characters, m.CatalogPets)
	}
}

func restoreArchive(conf *server.RealmConf, confFile, path string) {
	p := archive.RestoreParams{
		Archive:  path,
		BoltDest: conf.BoltPath,
		TextDest: conf.TextDir,
		ConfDir:  filepath.Dir(confFile),
		Resolve:  archive.PromptResolver(os.Stdin, os.Stdout),
	}
	if conf.SQLDriver == "" || conf.SQLDriver == sqlstore.DriverSQLite {
		p.SQLDest = conf.SQLDSN
	}
	res, err := archive.Restore(p)
	if err != nil {
		log.Fatalf("Restore failed: %v", err)
	}
	log.Printf("Restored %d files from %s (realm %q, %s)", len(res.Restored), path, res.Manifest.Realm, res.Manifest.Timestamp)
	for _, kept := range res.Kept {
		log.Printf("Kept current %s", kept)
	}
}
