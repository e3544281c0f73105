package clusters

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/bcnelson/seo-insights/internal/domain"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "i": {},
	"in": {}, "is": {}, "it": {}, "me": {}, "my": {}, "near": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "vs": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "with": {}, "you": {}, "your": {},
}

// Lexical groups queries by the most widely shared significant word.
// It is deterministic: the same input always yields the same clusters.
type Lexical struct {
	// MinSize is the smallest cluster emitted. Values below 2 are treated as 2.
	MinSize int
	// MaxClusters caps the number of clusters; 0 means no cap.
	MaxClusters int
}

// NewLexical creates a lexical suggester.
func NewLexical(maxClusters int) *Lexical {
	return &Lexical{MinSize: 2, MaxClusters: maxClusters}
}

func (l *Lexical) Name() string { return "lexical" }

// Tokens splits text into lowercase words, dropping stopwords and
// single characters.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func (l *Lexical) Suggest(ctx context.Context, queries []*domain.Query) ([]domain.Cluster, error) {
	minSize := max(l.MinSize, 2)

	tokens := make(map[string][]string, len(queries))
	byID := make(map[string]*domain.Query, len(queries))
	for _, q := range queries {
		tokens[q.ID] = Tokens(q.QueryText)
		byID[q.ID] = q
	}

	assigned := make(map[string]bool, len(queries))
	var clusters []domain.Cluster
	for l.MaxClusters <= 0 || len(clusters) < l.MaxClusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Document frequency over unassigned queries.
		df := make(map[string]int)
		for _, q := range queries {
			if assigned[q.ID] {
				continue
			}
			for _, tok := range tokens[q.ID] {
				df[tok]++
			}
		}

		best, bestCount := "", 0
		for tok, n := range df {
			if n > bestCount || (n == bestCount && tok < best) {
				best, bestCount = tok, n
			}
		}
		if bestCount < minSize {
			break
		}

		var ids []string
		for _, q := range queries {
			if assigned[q.ID] || !containsToken(tokens[q.ID], best) {
				continue
			}
			ids = append(ids, q.ID)
			assigned[q.ID] = true
		}
		sort.SliceStable(ids, func(i, j int) bool {
			a, b := byID[ids[i]], byID[ids[j]]
			if a.Impressions != b.Impressions {
				return a.Impressions > b.Impressions
			}
			return a.ID < b.ID
		})

		clusters = append(clusters, domain.Cluster{
			Name:     clusterName(best),
			QueryIDs: ids,
		})
	}
	return clusters, nil
}

func containsToken(tokens []string, tok string) bool {
	for _, t := range tokens {
		if t == tok {
			return true
		}
	}
	return false
}

func clusterName(token string) string {
	r := []rune(token)
	r[0] = unicode.ToUpper(r[0])
	return string(r) + " queries"
}
