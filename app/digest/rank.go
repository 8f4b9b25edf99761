package digest

import (
	"sort"
	"time"

	"github.com/aitechdaily/digest/app/article"
)

// FilterRecent keeps articles published strictly after now minus the given
// window. Articles published exactly on the boundary are excluded.
func FilterRecent(articles []article.Article, hours int) []article.Article {
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	return filterAfter(articles, cutoff)
}

func filterAfter(articles []article.Article, cutoff time.Time) []article.Article {
	recent := make([]article.Article, 0, len(articles))
	for _, a := range articles {
		if a.PublishedAt.After(cutoff) {
			recent = append(recent, a)
		}
	}
	return recent
}

// Rank returns a new slice ordered by importance (descending), ties broken by
// published date (newest first). The input is not modified.
func Rank(articles []article.Article) []article.Article {
	ranked := make([]article.Article, len(articles))
	copy(ranked, articles)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Importance != ranked[j].Importance {
			return ranked[i].Importance > ranked[j].Importance
		}
		return ranked[i].PublishedAt.After(ranked[j].PublishedAt)
	})

	return ranked
}
