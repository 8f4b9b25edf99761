package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	SourcesFile  string
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Enrichment configuration
	OpenAIKey    string
	OpenAIModel  string
	EnrichLimit  int
	RecencyHours int

	// Delivery configuration
	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPassword  string
	EmailFrom     string
	TelegramToken string
	TelegramChat  string

	// Scheduling configuration
	SchedulerEnabled bool
	DigestHour       int
	WeeklyHour       int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
