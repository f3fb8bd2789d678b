package docs

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
)

const (
	// DefaultMaxResults is the default number of chunks returned per search.
	DefaultMaxResults = 10

	// MaxResultLimit caps the number of chunks returned per search.
	MaxResultLimit = 50

	// MaxQueryKeywords is the largest number of keywords a query may contain.
	MaxQueryKeywords = 32

	// DefaultSearchCacheSize is the default number of memoised search results.
	DefaultSearchCacheSize = 256

	// DefaultSearchCacheTTL is how long a memoised search result stays valid.
	DefaultSearchCacheTTL = 10 * time.Minute
)

// MatchStage reports which stage produced a search result.
type MatchStage string

const (
	// StageExact means every keyword matched as a whole word.
	StageExact MatchStage = "exact"

	// StagePartial means exact matching found nothing and at least one
	// keyword matched as a substring.
	StagePartial MatchStage = "partial"

	// StageNone means neither stage matched.
	StageNone MatchStage = "none"
)

// SearchOptions narrows and pages a search.
type SearchOptions struct {
	// Source restricts the search to one source ID. Empty searches all sources.
	Source string

	// Limit is the page size. Zero uses the searcher default; values above
	// MaxResultLimit are capped.
	Limit int

	// Offset skips that many matches of the deterministic result list.
	Offset int
}

// SearchResult is one page of matching chunks in index order.
type SearchResult struct {
	Query  string
	Stage  MatchStage
	Total  int
	Offset int
	Chunks []domain.Chunk
}

// keyword is a normalized query keyword and its words.
type keyword struct {
	text  string
	terms []string
}

// Searcher answers keyword queries against an Index. It never mutates the
// index and never performs network I/O.
type Searcher struct {
	index        *Index
	sources      []domain.Source
	defaultLimit int
	memo         *expirable.LRU[uint64, *SearchResult]
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithDefaultLimit sets the page size used when SearchOptions.Limit is zero.
func WithDefaultLimit(n int) SearcherOption {
	return func(s *Searcher) {
		if n > 0 {
			s.defaultLimit = min(n, MaxResultLimit)
		}
	}
}

// WithResultCache memoises up to size results for ttl. A size of zero
// disables memoisation.
func WithResultCache(size int, ttl time.Duration) SearcherOption {
	return func(s *Searcher) {
		if size <= 0 {
			s.memo = nil
			return
		}
		s.memo = expirable.NewLRU[uint64, *SearchResult](size, nil, ttl)
	}
}

// NewSearcher creates a Searcher over index. sources define the valid source
// filters and the order results are returned in.
func NewSearcher(index *Index, sources []domain.Source, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		index:        index,
		sources:      sources,
		defaultLimit: DefaultMaxResults,
		memo:         expirable.NewLRU[uint64, *SearchResult](DefaultSearchCacheSize, nil, DefaultSearchCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns the chunks matching query.
//
// Stage 1 keeps chunks in which every keyword occurs as a whole word. Only if
// that yields nothing, stage 2 keeps chunks containing at least one keyword
// as a substring. Results follow index order: source order, then document
// order within a source.
func (s *Searcher) Search(query string, opts SearchOptions) (*SearchResult, error) {
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) > MaxQueryKeywords {
		return nil, fmt.Errorf("%w: query has %d keywords (max %d)", domain.ErrInvalidArgument, len(fields), MaxQueryKeywords)
	}
	if opts.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", domain.ErrInvalidArgument)
	}

	sourceIDs := domain.SourceIDs(s.sources)
	if opts.Source != "" {
		src, err := domain.LookupSource(s.sources, opts.Source)
		if err != nil {
			return nil, err
		}
		sourceIDs = []string{src.ID}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	limit = min(limit, MaxResultLimit)

	if len(fields) == 0 {
		return &SearchResult{Query: query, Stage: StageNone, Offset: opts.Offset}, nil
	}

	version, entries := s.index.snapshot(sourceIDs)

	key := memoKey(version, opts.Source, fields, limit, opts.Offset)
	if s.memo != nil {
		if cached, ok := s.memo.Get(key); ok {
			return cached.clone(query), nil
		}
	}

	keywords := make([]keyword, len(fields))
	for i, f := range fields {
		keywords[i] = keyword{text: f, terms: s.index.analyzer.Terms(f)}
	}

	stage := StageExact
	matches := exactMatches(entries, keywords)
	if len(matches) == 0 {
		stage = StagePartial
		matches = partialMatches(entries, keywords)
	}
	if len(matches) == 0 {
		stage = StageNone
	}

	result := &SearchResult{
		Query:  query,
		Stage:  stage,
		Total:  len(matches),
		Offset: opts.Offset,
	}
	if opts.Offset < len(matches) {
		end := min(opts.Offset+limit, len(matches))
		result.Chunks = matches[opts.Offset:end]
	}

	if s.memo != nil {
		s.memo.Add(key, result)
	}
	return result.clone(query), nil
}

// clone returns a copy carrying the caller's query text.
func (r *SearchResult) clone(query string) *SearchResult {
	c := *r
	c.Query = query
	c.Chunks = append([]domain.Chunk(nil), r.Chunks...)
	return &c
}

// exactMatches returns chunks in which every keyword is a whole word.
func exactMatches(entries []*indexEntry, keywords []keyword) []domain.Chunk {
	var matches []domain.Chunk
	for _, entry := range entries {
		for _, ic := range entry.chunks {
			if matchesAll(ic, keywords) {
				matches = append(matches, ic.chunk)
			}
		}
	}
	return matches
}

// partialMatches returns chunks containing at least one keyword as a substring.
func partialMatches(entries []*indexEntry, keywords []keyword) []domain.Chunk {
	var matches []domain.Chunk
	for _, entry := range entries {
		for _, ic := range entry.chunks {
			for _, kw := range keywords {
				if strings.Contains(ic.text, kw.text) {
					matches = append(matches, ic.chunk)
					break
				}
			}
		}
	}
	return matches
}

// matchesAll requires every keyword to occur verbatim and, when it has words,
// to start and end on word boundaries. Punctuation inside a keyword is never
// dropped, so "c++" does not match a chunk that only says "c".
func matchesAll(ic indexedChunk, keywords []keyword) bool {
	for _, kw := range keywords {
		if !strings.Contains(ic.text, kw.text) {
			return false
		}
		if len(kw.terms) > 0 && !containsSequence(ic.terms, kw.terms) {
			return false
		}
	}
	return true
}

// memoKey hashes everything a search result depends on.
func memoKey(version uint64, source string, keywords []string, limit, offset int) uint64 {
	d := xxhash.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], version)
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(source)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(strings.Join(keywords, " "))
	_, _ = d.Write([]byte{0})
	binary.LittleEndian.PutUint64(buf[:], uint64(limit))
	_, _ = d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(offset))
	_, _ = d.Write(buf[:])

	return d.Sum64()
}
