package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/opencohort/ukbdecode/cmd/ukbdecode/table"
)

// Thin collaborator: converts a (decoded) CSV into JSONL and a JSON array,
// one object per row, keyed by column name, blank cells skipped.
func main() {
	log := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).With().Timestamp().Logger()

	var (
		csvPath   = flag.String("csv", "", "path to the CSV file")
		outPrefix = flag.String("out-prefix", "output", "output prefix")
		limit     = flag.Int("limit", -1, "limit number of rows (default: all rows)")
	)
	flag.Parse()

	if *csvPath == "" {
		log.Fatal().Msg("Usage: csv2jsonl -csv input.csv [-out-prefix output] [-limit N]")
	}

	t, _, err := table.ReadCSV(*csvPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read CSV")
	}

	records := table.ToRecords(t, *limit)
	if err := table.ExportJSONL(records, *outPrefix); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}

	log.Info().
		Int("records", len(records)).
		Str("jsonl", *outPrefix+".jsonl").
		Str("json", *outPrefix+".json").
		Msg("Wrote records")
}
