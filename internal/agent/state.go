package agent

import (
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cinescout/cinescout/internal/catalog"
)

// Phase is the orchestrator's state-machine phase.
type Phase int

const (
	Phase1Gathering Phase = 1
	Phase2Ranking   Phase = 2
)

func (p Phase) String() string {
	if p == Phase2Ranking {
		return "phase2_ranking"
	}
	return "phase1_gathering"
}

// phaseTools maps each phase to its allowed tool subset. Phase 2 permits no
// tools at all, which is what actually bounds upstream catalog calls: a
// model that requests a tool there is ignored rather than served.
var phaseTools = map[Phase][]string{
	Phase1Gathering: {
		"search_movies_by_title",
		"search_tv_shows_by_title",
		"discover_movies",
		"discover_tv_shows",
		"search_person_by_name",
		"complete_phase_1",
	},
	Phase2Ranking: {},
}

// State is the per-run orchestration state. Constructed fresh for every
// request and discarded at the end; never shared between runs.
type State struct {
	Phase      Phase
	TurnsUsed  int
	Transcript []openai.ChatCompletionMessage

	// Collected items merge in tool-completion order; collectedOrder keeps
	// first-seen insertion order for a stable fallback ranking.
	mu             sync.Mutex
	collected      map[int]catalog.MediaItem
	collectedOrder []int
}

func newState(transcript []openai.ChatCompletionMessage) *State {
	return &State{
		Phase:      Phase1Gathering,
		Transcript: transcript,
		collected:  make(map[int]catalog.MediaItem),
	}
}

// Merge folds tool results into the collected set keyed by item id.
// On duplicates the richer value wins per field: a later result only
// overwrites fields it actually carries, so sparse follow-up data never
// erases earlier detail.
func (s *State) Merge(items []catalog.MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		existing, ok := s.collected[item.ID]
		if !ok {
			s.collected[item.ID] = item
			s.collectedOrder = append(s.collectedOrder, item.ID)
			continue
		}
		s.collected[item.ID] = mergeRicher(existing, item)
	}
}

func mergeRicher(old, incoming catalog.MediaItem) catalog.MediaItem {
	out := incoming
	if out.Title == "" {
		out.Title = old.Title
	}
	if out.PosterPath == "" {
		out.PosterPath = old.PosterPath
	}
	if out.Rating == 0 {
		out.Rating = old.Rating
	}
	if out.Overview == "" {
		out.Overview = old.Overview
	}
	if out.Popularity == 0 {
		out.Popularity = old.Popularity
	}
	if out.ReleaseDate == "" {
		out.ReleaseDate = old.ReleaseDate
	}
	return out
}

// CollectedCount returns the number of distinct collected items.
func (s *State) CollectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collected)
}

// Collected returns the collected items in first-seen order.
func (s *State) Collected() []catalog.MediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]catalog.MediaItem, 0, len(s.collectedOrder))
	for _, id := range s.collectedOrder {
		items = append(items, s.collected[id])
	}
	return items
}

// Lookup returns the collected item with the given id.
func (s *State) Lookup(id int) (catalog.MediaItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.collected[id]
	return item, ok
}

// ByPopularity returns the collected items sorted by provider popularity,
// the fallback ranking when phase 2 cannot produce one.
func (s *State) ByPopularity() []catalog.MediaItem {
	items := s.Collected()
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Popularity > items[j].Popularity
	})
	return items
}
