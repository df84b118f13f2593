package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"salesagent/internal/logger"
	"salesagent/pkg/agenttypes"
)

const (
	defaultKnowledgeCacheSize = 256
	maxKnowledgeResults       = 3
)

// KnowledgeEntry is one document in a knowledge corpus.
type KnowledgeEntry struct {
	Title    string   `yaml:"title"`
	Keywords []string `yaml:"keywords"`
	Content  string   `yaml:"content"`
}

// knowledgeFile is the on-disk layout of a corpus file.
type knowledgeFile struct {
	Corpus  agenttypes.Corpus `yaml:"corpus"`
	Entries []KnowledgeEntry  `yaml:"entries"`
}

// KnowledgeService answers search tool calls from YAML corpora in a directory.
// Each *.yaml file holds one corpus; results for repeated queries come from an LRU cache.
type KnowledgeService struct {
	dir         string
	cacheSize   int
	initialized bool

	mu      sync.RWMutex
	corpora map[agenttypes.Corpus][]KnowledgeEntry
	cache   *lru.Cache[string, string]
}

// NewKnowledgeService creates a service reading corpora from dir.
func NewKnowledgeService(dir string, cacheSize int) *KnowledgeService {
	if cacheSize <= 0 {
		cacheSize = defaultKnowledgeCacheSize
	}
	return &KnowledgeService{
		dir:       dir,
		cacheSize: cacheSize,
		corpora:   make(map[agenttypes.Corpus][]KnowledgeEntry),
	}
}

// Name returns the service name "knowledge" for registration.
func (k *KnowledgeService) Name() string {
	return "knowledge"
}

// Initialize loads every corpus file. A missing directory leaves the knowledge base empty.
func (k *KnowledgeService) Initialize() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.initialized {
		return nil
	}

	cache, err := lru.New[string, string](k.cacheSize)
	if err != nil {
		return fmt.Errorf("failed to create knowledge cache: %w", err)
	}

	corpora, err := loadCorpora(k.dir)
	if err != nil {
		return err
	}
	// entries added before initialization follow the file entries
	for name, entries := range k.corpora {
		corpora[name] = append(corpora[name], entries...)
	}

	k.cache = cache
	k.corpora = corpora
	k.initialized = true

	logger.ServiceOperation("knowledge", "initialize", "completed", "corpora", len(corpora), "dir", k.dir)
	return nil
}

// AddEntries appends entries to a corpus and invalidates cached results. Entries
// added before Initialize are kept alongside the loaded files.
func (k *KnowledgeService) AddEntries(corpus agenttypes.Corpus, entries ...KnowledgeEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.corpora[corpus] = append(k.corpora[corpus], entries...)
	if k.cache != nil {
		k.cache.Purge()
	}
}

// Corpora returns the loaded corpus names in sorted order.
func (k *KnowledgeService) Corpora() []agenttypes.Corpus {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return sortedCorpusNames(k.corpora)
}

// Search returns the best matching entries of corpus for input. The general
// corpus searches every loaded corpus. No match yields a fixed message, not an error.
func (k *KnowledgeService) Search(ctx context.Context, input string, corpus agenttypes.Corpus) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if !k.initialized {
		return "", fmt.Errorf("knowledge service not initialized")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	terms := tokenize(input)
	cacheKey := string(corpus) + "|" + strings.Join(terms, " ")

	if cached, ok := k.cache.Get(cacheKey); ok {
		logger.Debug("Knowledge cache hit", "corpus", corpus, "query", input)
		return cached, nil
	}

	var candidates []KnowledgeEntry
	if corpus == agenttypes.CorpusGeneral {
		for _, name := range sortedCorpusNames(k.corpora) {
			candidates = append(candidates, k.corpora[name]...)
		}
	} else {
		candidates = k.corpora[corpus]
	}

	result := renderMatches(rankEntries(candidates, terms), corpus)
	k.cache.Add(cacheKey, result)
	return result, nil
}

// CacheLen returns the number of cached query results.
func (k *KnowledgeService) CacheLen() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.cache == nil {
		return 0
	}
	return k.cache.Len()
}

func loadCorpora(dir string) (map[agenttypes.Corpus][]KnowledgeEntry, error) {
	corpora := make(map[agenttypes.Corpus][]KnowledgeEntry)
	if dir == "" {
		return corpora, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge files: %w", err)
	}
	if len(paths) == 0 {
		logger.Warn("No knowledge corpora found", "dir", dir)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read knowledge file %s: %w", path, err)
		}
		var file knowledgeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse knowledge file %s: %w", path, err)
		}
		name := file.Corpus
		if name == "" {
			name = agenttypes.Corpus(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		}
		corpora[name] = append(corpora[name], file.Entries...)
	}
	return corpora, nil
}

type scoredEntry struct {
	entry KnowledgeEntry
	score int
}

// rankEntries scores entries by term overlap; keyword and title hits weigh more than body hits.
func rankEntries(entries []KnowledgeEntry, terms []string) []KnowledgeEntry {
	if len(terms) == 0 {
		return nil
	}

	var scored []scoredEntry
	for _, e := range entries {
		keywords := make(map[string]bool)
		for _, kw := range e.Keywords {
			for _, t := range tokenize(kw) {
				keywords[t] = true
			}
		}
		title := toSet(tokenize(e.Title))
		body := toSet(tokenize(e.Content))

		score := 0
		for _, t := range terms {
			switch {
			case keywords[t]:
				score += 3
			case title[t]:
				score += 2
			case body[t]:
				score++
			}
		}
		if score > 0 {
			scored = append(scored, scoredEntry{entry: e, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > maxKnowledgeResults {
		scored = scored[:maxKnowledgeResults]
	}

	out := make([]KnowledgeEntry, len(scored))
	for i, s := range scored {
		out[i] = s.entry
	}
	return out
}

func renderMatches(matches []KnowledgeEntry, corpus agenttypes.Corpus) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No specific information found in %s.", corpus)
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("%s: %s", m.Title, strings.TrimSpace(m.Content))
	}
	return strings.Join(parts, "\n")
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "you": true, "your": true, "are": true,
	"with": true, "what": true, "how": true, "does": true, "can": true, "about": true,
	"have": true, "our": true, "any": true, "this": true, "that": true, "from": true,
}

// tokenize lowercases s and splits it into sorted-unique terms of three or more runes.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		if len([]rune(f)) < 3 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	sort.Strings(terms)
	return terms
}

func toSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	return set
}

func sortedCorpusNames(corpora map[agenttypes.Corpus][]KnowledgeEntry) []agenttypes.Corpus {
	names := make([]agenttypes.Corpus, 0, len(corpora))
	for name := range corpora {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
