package main

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/opencohort/ukbdecode/cmd/ukbdecode/coding"
	"github.com/opencohort/ukbdecode/cmd/ukbdecode/decode"
	"github.com/opencohort/ukbdecode/cmd/ukbdecode/dictionary"
	"github.com/opencohort/ukbdecode/cmd/ukbdecode/instance"
	"github.com/opencohort/ukbdecode/cmd/ukbdecode/rename"
	"github.com/opencohort/ukbdecode/cmd/ukbdecode/table"
)

func main() {
	startTime := time.Now()
	log := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).With().Timestamp().Caller().Logger()

	var (
		htmlPath     = flag.String("html", "", "dictionary columns HTML document")
		inputPath    = flag.String("i", "", "input CSV file")
		outputPath   = flag.String("o", "", "output CSV file")
		cachePath    = flag.String("cache-json", "", "coding table cache artifact (read and written)")
		instancePath = flag.String("instance-json", "", "instance mapping JSON overlay")
		auditPath    = flag.String("audit-json", "", "instance mapping audit artifact to write")
		pgQuery      = flag.String("pg-query", "", "read the input table from this Postgres query instead of -i (DSN from UKB_PG_DSN)")
		offline      = flag.Bool("offline", false, "never fetch coding tables from the showcase")
	)
	flag.Parse()

	if err := godotenv.Load(".env"); err == nil {
		log.Debug().Msg("Loaded .env")
	}

	if *htmlPath == "" || *outputPath == "" || (*inputPath == "" && *pgQuery == "") {
		log.Fatal().Msg("Usage: ukbdecode -html columns.html -i input.csv -o output.csv [-cache-json cache.json] [-instance-json instances.json]")
	}

	// Input table
	var (
		in    *table.Table
		delim rune = ','
		err   error
	)
	if *pgQuery != "" {
		db, err := sqlx.Connect("postgres", os.Getenv("UKB_PG_DSN"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to the database")
		}
		defer db.Close()
		in, err = table.NewSQLSource(db, log).Read(*pgQuery)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read input table from database")
		}
	} else {
		in, delim, err = table.ReadCSV(*inputPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read input table")
		}
	}

	// Dictionary
	htmlFile, err := os.Open(*htmlPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open dictionary document")
	}
	registry, err := dictionary.NewParser(log).Parse(htmlFile)
	htmlFile.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse dictionary document")
	}

	// Coding tables: cache first, showcase for the rest
	store := coding.NewStore(registry, log)
	cacheLoaded := false
	if *cachePath != "" {
		if _, statErr := os.Stat(*cachePath); statErr == nil {
			if _, err := store.LoadCache(*cachePath); err != nil {
				log.Warn().Err(err).Msg("Ignoring unreadable coding cache")
			} else {
				cacheLoaded = true
			}
		}
	}

	var client *coding.ShowcaseClient
	if !*offline {
		var baseURLs []string
		if env := os.Getenv("UKB_SHOWCASE_URLS"); env != "" {
			baseURLs = strings.Split(env, ",")
		}
		client = coding.NewShowcaseClient(baseURLs, log)
	}
	service := coding.NewService(store, client, registry, log)
	needed := decode.RequiredCodings(registry, rename.UDIConvention{}, in.Header)
	if unresolved := service.Ensure(needed); len(unresolved) > 0 {
		log.Warn().Ints("codings", unresolved).Msg("Some coding tables could not be resolved; their values stay raw")
	}
	if *cachePath != "" {
		if err := store.SaveCache(*cachePath); err != nil {
			log.Warn().Err(err).Msg("Failed to save coding cache")
		}
	}

	// Renaming
	resolver := instance.NewResolver(registry, log)
	if *instancePath != "" {
		if err := resolver.LoadOverlay(*instancePath); err != nil {
			log.Warn().Err(err).Msg("Ignoring unreadable instance mapping")
		}
	}
	renamer := rename.NewRenamer(registry, rename.UDIConvention{}, resolver)

	// Pipeline
	pipeline, err := decode.NewPipeline(decode.Config{
		Log:      log,
		Registry: registry,
		Renamer:  renamer,
		Store:    store,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipeline")
	}

	out, warnings, err := pipeline.Run(in)
	if err != nil {
		log.Fatal().Err(err).Msg("Decode run failed")
	}
	if cacheLoaded {
		warnings = append(warnings, decode.Warning{
			Kind:    decode.WarningCacheMismatch,
			Message: "coding cache loaded without verification against the dictionary document",
		})
	}

	if err := table.WriteCSV(out, *outputPath, delim); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output table")
	}
	if *auditPath != "" {
		if err := resolver.WriteAudit(*auditPath); err != nil {
			log.Warn().Err(err).Msg("Failed to write instance mapping audit")
		}
	}

	for _, w := range warnings {
		log.Warn().Str("kind", string(w.Kind)).Msg(w.String())
	}
	log.Info().
		Str("output", *outputPath).
		Int("rows", out.NumRows()).
		Int("warnings", len(warnings)).
		Msgf("Execution time: %s", time.Since(startTime))
}
