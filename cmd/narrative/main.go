package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/opencohort/ukbdecode/cmd/narrative/client"
)

func init() {
	// Optional; the API url/key may also come from the real environment.
	_ = godotenv.Load(".env")
}

type outputRecord struct {
	EID        string          `json:"eid,omitempty"`
	Narrative  string          `json:"narrative"`
	QA         []client.QAPair `json:"qa"`
	UsedFields []string        `json:"used_fields"`
}

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).With().Timestamp().Logger()

	var (
		inPath   = flag.String("in", "", "decoded records JSONL file")
		outPath  = flag.String("out", "narratives.jsonl", "output JSONL file")
		qaCount  = flag.Int("qa", 3, "Q/A pairs per record")
		truncate = flag.Int("truncate", 300, "max characters per fact value (0 = no limit)")
		limit    = flag.Int("limit", -1, "limit number of records (default: all)")
		pause    = flag.Duration("pause", 500*time.Millisecond, "pause between service calls")
	)
	flag.Parse()

	if *inPath == "" {
		log.Fatal().Msg("Usage: narrative -in records.jsonl [-out narratives.jsonl] [-qa 3]")
	}

	records, err := readRecords(*inPath, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read records")
	}

	c := client.NewNarrativeApiClient()
	if c.BaseURI == "" {
		log.Fatal().Msg("NARRATIVE_API_URL is not set")
	}

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output file")
	}
	defer out.Close()
	enc := json.NewEncoder(out)

	written := 0
	for i, record := range records {
		facts := factsFromRecord(record, *truncate)
		result, err := c.Generate(facts, *qaCount)
		if err != nil {
			log.Error().Err(err).Int("record", i).Msg("Generation failed, skipping record")
			continue
		}

		if err := enc.Encode(outputRecord{
			EID:        record["eid"],
			Narrative:  result.Narrative,
			QA:         result.QA,
			UsedFields: result.UsedFields,
		}); err != nil {
			log.Fatal().Err(err).Msg("Failed to write output record")
		}
		written++
		time.Sleep(*pause)
	}

	log.Info().Int("records", written).Str("output", *outPath).Msg("Finished narrative generation")
}

// factsFromRecord renders the non-empty fields of one record as a fact
// list, eid first, the rest in stable name order.
func factsFromRecord(record map[string]string, truncate int) string {
	keys := make([]string, 0, len(record))
	for k := range record {
		if k != "eid" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := record["eid"]; ok {
		keys = append([]string{"eid"}, keys...)
	}

	var lines []string
	for _, k := range keys {
		v := strings.TrimSpace(record[k])
		if v == "" {
			continue
		}
		if truncate > 0 && len(v) > truncate {
			v = v[:truncate] + "…"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", k, v))
	}
	if len(lines) == 0 {
		return "- no_facts: none"
	}
	return strings.Join(lines, "\n")
}

func readRecords(path string, limit int) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var records []map[string]string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record map[string]string
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("malformed JSONL line: %w", err)
		}
		records = append(records, record)
		if limit >= 0 && len(records) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}
