package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/opencohort/ukbdecode/cmd/ukbdecode/coding"
	"github.com/opencohort/ukbdecode/cmd/ukbdecode/dictionary"
	"github.com/opencohort/ukbdecode/models/ukb"
	"github.com/opencohort/ukbdecode/util"
)

// Read-only HTTP view of a parsed dictionary, for inspecting what the
// decoder will do: field list, field detail, coding table lookup.
type server struct {
	registry *ukb.Registry
	store    *coding.Store
	log      zerolog.Logger
}

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).With().Timestamp().Logger()

	var (
		htmlPath  = flag.String("html", "", "dictionary columns HTML document")
		cachePath = flag.String("cache-json", "", "coding table cache artifact to preload")
		addr      = flag.String("addr", ":8080", "listen address")
	)
	flag.Parse()

	if *htmlPath == "" {
		log.Fatal().Msg("Usage: dictserver -html columns.html [-cache-json cache.json] [-addr :8080]")
	}

	f, err := os.Open(util.GetAbsolutePath(*htmlPath))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open dictionary document")
	}
	registry, err := dictionary.NewParser(log).Parse(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse dictionary document")
	}

	store := coding.NewStore(registry, log)
	if *cachePath != "" {
		if _, err := store.LoadCache(*cachePath); err != nil {
			log.Warn().Err(err).Msg("Ignoring unreadable coding cache")
		}
	}

	s := &server{registry: registry, store: store, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/fields", s.listFields).Methods("GET")
	r.HandleFunc("/fields/{id}", s.getField).Methods("GET")
	r.HandleFunc("/codings/{id}", s.getCoding).Methods("GET")

	log.Info().Str("addr", *addr).Int("fields", len(registry.Fields)).Msg("Dictionary server started")
	log.Fatal().Err(http.ListenAndServe(*addr, r)).Msg("Server stopped")
}

func (s *server) listFields(w http.ResponseWriter, r *http.Request) {
	fields := make([]*ukb.FieldDefinition, 0, len(s.registry.Fields))
	for _, f := range s.registry.Fields {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Ordinal < fields[j].Ordinal })
	s.respond(w, fields)
}

func (s *server) getField(w http.ResponseWriter, r *http.Request) {
	field, ok := s.registry.Field(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "unknown field", http.StatusNotFound)
		return
	}
	s.respond(w, struct {
		*ukb.FieldDefinition
		Coding *ukb.CodingTable `json:"coding,omitempty"`
	}{field, s.store.Get(field.CodingID)})
}

func (s *server) getCoding(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "coding id must be numeric", http.StatusBadRequest)
		return
	}
	ct := s.store.Get(id)
	if ct.Empty() {
		http.Error(w, "unknown coding", http.StatusNotFound)
		return
	}
	s.respond(w, ct)
}

func (s *server) respond(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}
