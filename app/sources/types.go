package sources

// RSSSource describes one configured RSS/Atom feed.
type RSSSource struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	Priority string `yaml:"priority"` // high, medium, low
}

// HackerNewsConfig controls the ranked-list collector.
type HackerNewsConfig struct {
	TopStoriesLimit int `yaml:"top_stories_limit"`
	MinScore        int `yaml:"min_score"`
}

// RedditConfig controls the social-aggregation collector.
type RedditConfig struct {
	Subreddits []string `yaml:"subreddits"`
	MinScore   int      `yaml:"min_score"`
}

// Config is the full parsed sources file.
type Config struct {
	RSS        []RSSSource      `yaml:"rss"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
	Reddit     RedditConfig     `yaml:"reddit"`
}
