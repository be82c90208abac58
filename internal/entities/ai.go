package entities

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	Temperature float64
	JSON        bool   // ask the provider for a JSON object
	User        string // opaque end-user id forwarded to the provider
}

type Sentiment struct {
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
	Provider  string  `json:"provider,omitempty"`
}

type ConversationAnalysis struct {
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment"`
	Score     float64  `json:"score"`
	Topics    []string `json:"topics"`
	Provider  string   `json:"provider,omitempty"`
}

type SQLResult struct {
	Rows     []map[string]interface{} `json:"rows"`
	RowCount int64                    `json:"row_count"`
	Command  string                   `json:"command"`
}

type Stats struct {
	Agents   int64        `json:"agents"`
	Bots     int64        `json:"bots"`
	Contacts int64        `json:"contacts"`
	Messages int64        `json:"messages"`
	History  []DailyUsage `json:"history,omitempty"`
}

type DailyUsage struct {
	Date             string `json:"date"`
	MessagesSent     int64  `json:"messages_sent"`
	MessagesReceived int64  `json:"messages_received"`
}
