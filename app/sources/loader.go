package sources

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/aitechdaily/digest/app/article"
	"gopkg.in/yaml.v3"
)

//go:embed sources.yml
var defaultSources []byte

// Load reads the sources file at path, falling back to the embedded default
// configuration when the file does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Info("Sources file not found, using built-in source list", "path", path)
		data = defaultSources
	} else if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid sources file %s: %w", path, err)
	}

	applyDefaults(&config)

	return &config, nil
}

func validate(config *Config) error {
	for i, source := range config.RSS {
		if source.Name == "" {
			return fmt.Errorf("rss source %d: missing name", i)
		}
		if source.URL == "" {
			return fmt.Errorf("rss source '%s': missing url", source.Name)
		}
		switch source.Priority {
		case "", article.PriorityHigh, article.PriorityMedium, article.PriorityLow:
		default:
			return fmt.Errorf("rss source '%s': unknown priority '%s'", source.Name, source.Priority)
		}
	}
	return nil
}

func applyDefaults(config *Config) {
	for i := range config.RSS {
		if config.RSS[i].Priority == "" {
			config.RSS[i].Priority = article.PriorityMedium
		}
		if config.RSS[i].Category == "" {
			config.RSS[i].Category = "tech"
		}
	}
	if config.HackerNews.TopStoriesLimit == 0 {
		config.HackerNews.TopStoriesLimit = 30
	}
	if config.HackerNews.MinScore == 0 {
		config.HackerNews.MinScore = 50
	}
	if config.Reddit.MinScore == 0 {
		config.Reddit.MinScore = 20
	}
	if len(config.Reddit.Subreddits) == 0 {
		config.Reddit.Subreddits = []string{"artificial", "MachineLearning", "technology", "programming"}
	}
}
