package coding

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/opencohort/ukbdecode/models/ukb"
)

// Service resolves the coding tables a run needs: cache first, showcase
// fetch for the rest. Fetch failures degrade to raw values, they never
// abort the run.
type Service struct {
	store    *Store
	client   *ShowcaseClient
	registry *ukb.Registry
	log      zerolog.Logger

	// pause between remote fetches, to stay polite to the showcase
	fetchDelay time.Duration
}

// NewService creates a coding service. client may be nil, in which case
// missing tables stay missing and their values pass through raw.
func NewService(store *Store, client *ShowcaseClient, registry *ukb.Registry, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		client:     client,
		registry:   registry,
		log:        log,
		fetchDelay: 300 * time.Millisecond,
	}
}

// Store returns the underlying coding table store.
func (s *Service) Store() *Store {
	return s.store
}

// Ensure makes the store hold a table for every id in codingIDs that the
// showcase can provide. Ids already present (from the registry or a loaded
// cache) are skipped. Returns the ids that could not be resolved.
func (s *Service) Ensure(codingIDs []int) []int {
	ids := slices.Clone(codingIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var unresolved []int
	for _, id := range ids {
		if id == 0 || s.store.Has(id) {
			continue
		}
		if s.client == nil {
			unresolved = append(unresolved, id)
			continue
		}

		values, err := s.client.FetchCoding(id, s.registry.CodingURLs[id])
		if err != nil {
			s.log.Warn().Err(err).Int("coding", id).Msg("Failed to fetch coding table, values kept raw")
			unresolved = append(unresolved, id)
			continue
		}
		if len(values) == 0 {
			s.log.Warn().Int("coding", id).Msg("No mapping parsed for coding, values kept raw")
			unresolved = append(unresolved, id)
			continue
		}

		s.store.Put(id, values)
		s.log.Debug().Int("coding", id).Int("entries", len(values)).Msg("Fetched coding table")
		time.Sleep(s.fetchDelay)
	}
	return unresolved
}
