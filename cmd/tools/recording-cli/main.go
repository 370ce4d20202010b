package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/annel0/session-replay/internal/auth"
	"github.com/annel0/session-replay/internal/catalog"
	"github.com/annel0/session-replay/internal/config"
	"github.com/annel0/session-replay/internal/eventlog"
	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/annel0/session-replay/internal/timeref"
)

func main() {
	var (
		command     = flag.String("cmd", "stats", "Command: stats, dump, list, delete, hash, secret")
		file        = flag.String("file", "", "Recording file (stats, dump)")
		catalogPath = flag.String("catalog", "", "Badger catalog directory (list, delete)")
		redisAddr   = flag.String("redis", "", "Redis catalog address, overrides -catalog (list, delete)")
		mongoURI    = flag.String("mongo", "", "MongoDB catalog URI, overrides -catalog (list, delete)")
		configPath  = flag.String("config", "", "Server YAML config: use its catalog section, any backend (list, delete)")
		id          = flag.String("id", "", "Recording ID (delete)")
		limit       = flag.Int("limit", 0, "Maximum number of entries to dump (0 - all)")
		password    = flag.String("password", "", "Password to hash for api.users (hash)")
	)
	flag.Parse()

	ctx := context.Background()
	settings := catalogSettings(*configPath, *catalogPath, *redisAddr, *mongoURI)
	var err error
	switch *command {
	case "stats":
		err = showStats(requireFlag("file", *file))
	case "dump":
		err = dumpEntries(requireFlag("file", *file), *limit)
	case "list":
		err = withCatalog(ctx, settings, func(cat catalog.Catalog) error {
			return listRecordings(ctx, cat)
		})
	case "delete":
		recordingID := requireFlag("id", *id)
		err = withCatalog(ctx, settings, func(cat catalog.Catalog) error {
			return deleteRecording(ctx, cat, recordingID)
		})
	case "hash":
		var hash string
		if hash, err = auth.HashPassword(requireFlag("password", *password)); err == nil {
			fmt.Println(hash)
		}
	case "secret":
		var secret string
		if secret, err = auth.GenerateSecret(); err == nil {
			fmt.Println(secret)
		}
	default:
		log.Fatalf("❌ Unknown command: %s", *command)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

func requireFlag(name, value string) string {
	if value == "" {
		log.Fatalf("❌ -%s is required", name)
	}
	return value
}

// showStats печатает сводку по файлу записи. При ошибке разбора выводится
// сводка по строкам до неё.
func showStats(path string) error {
	entries, readErr := eventlog.ReadAll(path)

	counts := make(map[keyframe.Type]int)
	for _, e := range entries {
		counts[e.Type()]++
	}

	fmt.Printf("📊 Recording %s\n", path)
	fmt.Printf("   Entries:  %d\n", len(entries))
	fmt.Printf("   Camera:   %d\n", counts[keyframe.TypeCamera])
	fmt.Printf("   Clock:    %d\n", counts[keyframe.TypeClock])
	fmt.Printf("   Scripts:  %d\n", counts[keyframe.TypeScript])
	if len(entries) > 0 {
		first, last := entries[0].Stamp, entries[len(entries)-1].Stamp
		epochs := timeref.J2000{}
		fmt.Printf("   Duration: %.3fs\n", last.Relative-first.Relative)
		fmt.Printf("   Sim from: %s\n", epochs.EpochToString(first.Simulation))
		fmt.Printf("   Sim to:   %s\n", epochs.EpochToString(last.Simulation))
	}
	return readErr
}

func dumpEntries(path string, limit int) error {
	r, err := eventlog.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "LINE\tTYPE\tRELATIVE\tSIMULATION\tDETAILS")

	epochs := timeref.J2000{}
	for n := 0; limit <= 0 || n < limit; n++ {
		e, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%.3f\t%s\t%s\n",
			r.Line(), e.Type(), e.Stamp.Relative, epochs.EpochToString(e.Stamp.Simulation), details(e))
	}
	return nil
}

func details(e keyframe.Entry) string {
	switch {
	case e.Camera != nil:
		p := e.Camera.Position
		return fmt.Sprintf("pos=(%.1f, %.1f, %.1f) focus=%s", p.X, p.Y, p.Z, e.Camera.FocusNode)
	case e.Clock != nil:
		return fmt.Sprintf("rate=%g paused=%t jump=%t", e.Clock.Rate, e.Clock.Paused, e.Clock.RequiresJump)
	case e.Script != nil:
		return e.Script.Text
	}
	return ""
}

// catalogSettings выбирает хранилище каталога: секция catalog из -config
// или одно из -redis, -mongo, -catalog
func catalogSettings(configPath, path, redisAddr, mongoURI string) catalog.Settings {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
		}
		return cfg.Catalog.Settings()
	}
	switch {
	case redisAddr != "":
		return catalog.Settings{Backend: catalog.BackendRedis, Redis: catalog.RedisConfig{Addr: redisAddr}}
	case mongoURI != "":
		return catalog.Settings{Backend: catalog.BackendMongo, Mongo: catalog.MongoConfig{URI: mongoURI}}
	case path != "":
		return catalog.Settings{Backend: catalog.BackendBadger, BadgerPath: path}
	}
	return catalog.Settings{}
}

// withCatalog открывает каталог и закрывает его после fn
func withCatalog(ctx context.Context, settings catalog.Settings, fn func(catalog.Catalog) error) error {
	if settings.Backend == "" {
		return fmt.Errorf("-config, -catalog, -redis or -mongo is required")
	}
	cat, err := catalog.Open(ctx, settings)
	if err != nil {
		return err
	}
	defer cat.Close()
	return fn(cat)
}

func listRecordings(ctx context.Context, cat catalog.Catalog) error {
	infos, err := cat.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tLINES\tSTATUS\tPATH")
	for _, info := range infos {
		status := "ok"
		if info.Failed {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%.1fs\t%d\t%s\t%s\n",
			info.ID, info.StartedAt.Format(time.RFC3339), info.Duration, info.Lines(), status, info.Path)
	}
	return nil
}

func deleteRecording(ctx context.Context, cat catalog.Catalog, id string) error {
	if _, err := cat.Get(ctx, id); err != nil {
		return err
	}
	if err := cat.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("🗑️ Deleted %s\n", id)
	return nil
}
