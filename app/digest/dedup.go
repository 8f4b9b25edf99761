package digest

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/aitechdaily/digest/app/article"
)

// Two titles are considered the same story above this Jaccard similarity.
const titleSimilarityThreshold = 0.7

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term",
	"ref", "source", "via", "fbclid", "gclid",
}

// Deduplicate collapses near-duplicate articles collected from multiple
// sources into one representative each. Two passes: exact match on normalized
// URLs, then title similarity clustering over the remainder. Within a cluster
// the high-priority variant wins, then the higher importance score.
func Deduplicate(articles []article.Article) []article.Article {
	urlDeduped := deduplicateByURL(articles)
	titleDeduped := deduplicateByTitle(urlDeduped)

	slog.Info("Deduplication complete", "before", len(articles), "after", len(titleDeduped))
	return titleDeduped
}

func deduplicateByURL(articles []article.Article) []article.Article {
	seen := make(map[string]int, len(articles))
	deduped := make([]article.Article, 0, len(articles))

	for _, a := range articles {
		key := NormalizeURL(a.Link)

		idx, ok := seen[key]
		if !ok {
			seen[key] = len(deduped)
			deduped = append(deduped, a)
			continue
		}

		// Keep the one from a higher-priority source
		if a.Priority == article.PriorityHigh && deduped[idx].Priority != article.PriorityHigh {
			deduped[idx] = a
		}
	}

	return deduped
}

func deduplicateByTitle(articles []article.Article) []article.Article {
	deduped := make([]article.Article, 0, len(articles))
	consumed := make([]bool, len(articles))

	for i := 0; i < len(articles); i++ {
		if consumed[i] {
			continue
		}

		best := articles[i]
		clusterSize := 1

		for j := i + 1; j < len(articles); j++ {
			if consumed[j] {
				continue
			}

			similarity := JaccardSimilarity(articles[i].Title, articles[j].Title)
			if similarity <= titleSimilarityThreshold {
				continue
			}

			consumed[j] = true
			clusterSize++

			candidate := articles[j]
			if candidate.Priority == article.PriorityHigh && best.Priority != article.PriorityHigh {
				best = candidate
			} else if candidate.Priority == best.Priority && candidate.Importance > best.Importance {
				best = candidate
			}
		}

		if clusterSize > 1 {
			slog.Debug("Merged duplicate articles", "count", clusterSize, "title", best.Title)
		}

		consumed[i] = true
		deduped = append(deduped, best)
	}

	return deduped
}

// NormalizeURL reduces a link to its identity form: protocol stripped,
// host and path lowercased, tracking query parameters removed, trailing
// slashes trimmed. Unparseable links are lowercased as-is.
func NormalizeURL(link string) string {
	parsed, err := url.Parse(link)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(link)
	}

	query := parsed.Query()
	for _, param := range trackingParams {
		query.Del(param)
	}

	normalized := parsed.Host + strings.TrimRight(parsed.Path, "/")
	if encoded := query.Encode(); encoded != "" {
		normalized += "?" + encoded
	}
	return strings.ToLower(normalized)
}

// JaccardSimilarity computes word-set overlap between two titles:
// intersection size over union size of their lowercased, punctuation-stripped
// word sets. Returns a value between 0 and 1.
func JaccardSimilarity(title1, title2 string) float64 {
	words1 := titleWords(title1)
	words2 := titleWords(title2)

	intersection := 0
	for word := range words1 {
		if _, ok := words2[word]; ok {
			intersection++
		}
	}

	union := len(words1) + len(words2) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func titleWords(title string) map[string]struct{} {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n':
			b.WriteRune(' ')
		}
	}

	words := make(map[string]struct{})
	for _, word := range strings.Fields(b.String()) {
		words[word] = struct{}{}
	}
	return words
}
