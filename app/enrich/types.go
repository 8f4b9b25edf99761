package enrich

// Analysis is the structured result of one article analysis call.
type Analysis struct {
	Summary     string   `json:"summary"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Importance  int      `json:"importance"`
	Sentiment   string   `json:"sentiment"`
	KeyTakeaway string   `json:"key_takeaway"`
	SoWhat      string   `json:"so_what"`
	DataPoints  []string `json:"data_points"`
}

// Categories the model is asked to choose from.
var Categories = []string{
	"ai_breakthrough", "ai_tool", "ai_research", "tech_news", "startup",
	"cybersecurity", "cloud", "devops", "dev_community", "gadgets",
	"software", "business", "science",
}
