package suggest

import (
	"sort"
	"strings"
	"sync"

	"github.com/bastiangx/typebind/internal/utils"
	"github.com/bastiangx/typebind/pkg/tokenizer"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Index is a token prefix index over suggestion datums.
// Every datum token is stored lowercased in a patricia trie pointing at the
// positions of the datums that own it.
type Index struct {
	trie           *patricia.Trie
	datums         []Suggestion
	identities     map[string]int
	datumTokenizer tokenizer.DatumFunc
	queryTokenizer tokenizer.Func
	mu             sync.RWMutex
}

// NewIndex creates an empty index using the given tokenizers.
func NewIndex(datumTokenizer tokenizer.DatumFunc, queryTokenizer tokenizer.Func) *Index {
	return &Index{
		trie:           patricia.NewTrie(),
		identities:     make(map[string]int),
		datumTokenizer: datumTokenizer,
		queryTokenizer: queryTokenizer,
	}
}

func (idx *Index) Add(items ...Suggestion) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, item := range items {
		id := item.ID()
		if _, exists := idx.identities[id]; exists {
			continue
		}
		pos := len(idx.datums)
		idx.datums = append(idx.datums, item)
		idx.identities[id] = pos

		filter := utils.NewSuggestionFilter("")
		for _, token := range idx.datumTokenizer(item.Raw) {
			token = strings.ToLower(token)
			if token == "" || !filter.ShouldInclude(token) {
				continue
			}
			key := patricia.Prefix(token)
			if existing := idx.trie.Get(key); existing != nil {
				idx.trie.Set(key, append(existing.([]int), pos))
				continue
			}
			idx.trie.Insert(key, []int{pos})
		}
	}
}

// Search returns the datums matching every query token, in insertion order.
// A query token matches a datum when one of the datum's tokens starts with it.
func (idx *Index) Search(query string) []Suggestion {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tokens := normalizeTokens(idx.queryTokenizer(query))
	if len(tokens) == 0 {
		return []Suggestion{}
	}

	var matched map[int]bool
	for _, token := range tokens {
		ids := make(map[int]bool)
		err := idx.trie.VisitSubtree(patricia.Prefix(token), func(_ patricia.Prefix, item patricia.Item) error {
			for _, pos := range item.([]int) {
				ids[pos] = true
			}
			return nil
		})
		if err != nil {
			log.Errorf("Error visiting index subtree: %v", err)
			return []Suggestion{}
		}

		if matched == nil {
			matched = ids
		} else {
			for pos := range matched {
				if !ids[pos] {
					delete(matched, pos)
				}
			}
		}
		if len(matched) == 0 {
			return []Suggestion{}
		}
	}

	positions := make([]int, 0, len(matched))
	for pos := range matched {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	results := make([]Suggestion, len(positions))
	for i, pos := range positions {
		results[i] = idx.datums[pos]
	}
	return results
}

func (idx *Index) All() []Suggestion {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]Suggestion(nil), idx.datums...)
}

func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.trie = patricia.NewTrie()
	idx.datums = nil
	idx.identities = make(map[string]int)
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.datums)
}

// normalizeTokens lowercases and drops duplicate or empty tokens
func normalizeTokens(tokens []string) []string {
	filter := utils.NewSuggestionFilter("")
	normalized := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(token)
		if token == "" || !filter.ShouldInclude(token) {
			continue
		}
		normalized = append(normalized, token)
	}
	return normalized
}
