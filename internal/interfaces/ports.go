package interfaces

import (
	"context"
	"net/http"
	"time"

	"botrelay/internal/entities"
)

// AIProvider is one chat/embedding backend (OpenAI, Gemini)
type AIProvider interface {
	Name() string
	Chat(ctx context.Context, req entities.ChatRequest) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Messenger talks to the messaging platform on behalf of a bot token
type Messenger interface {
	ValidateToken(ctx context.Context, token string) (username string, err error)
	SendMessage(ctx context.Context, token string, chatID int64, text string) (messageID int64, err error)
	SetWebhook(ctx context.Context, token, url string) error
	DeleteWebhook(ctx context.Context, token string) error
}

// ClientCache is implemented by messengers that keep a client per token
type ClientCache interface {
	Forget(token string)
}

type AgentRepository interface {
	List(ctx context.Context) ([]entities.Agent, error)
	Get(ctx context.Context, id string) (*entities.Agent, error)
	Create(ctx context.Context, agent *entities.Agent) (*entities.Agent, error)
	Update(ctx context.Context, id string, patch map[string]interface{}) (*entities.Agent, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type BotRepository interface {
	List(ctx context.Context, activeOnly bool) ([]entities.Bot, error)
	Get(ctx context.Context, id string) (*entities.Bot, error)
	Create(ctx context.Context, bot *entities.Bot) (*entities.Bot, error)
	Update(ctx context.Context, id string, patch map[string]interface{}) (*entities.Bot, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type ContactRepository interface {
	List(ctx context.Context, botID string) ([]entities.Contact, error)
	Upsert(ctx context.Context, contact *entities.Contact) (*entities.Contact, error)
}

type MessageRepository interface {
	List(ctx context.Context, filter entities.MessageFilter) ([]entities.Message, error)
	Create(ctx context.Context, msg *entities.Message) (*entities.Message, error)
}

type KnowledgeRepository interface {
	Add(ctx context.Context, doc *entities.Document) (*entities.Document, error)
	Search(ctx context.Context, agentID string, embedding []float32, matchCount int) ([]entities.DocumentMatch, error)
}

// Store is one tenant's view of the hosted database
type Store interface {
	Agents() AgentRepository
	Bots() BotRepository
	Contacts() ContactRepository
	Messages() MessageRepository
	Knowledge() KnowledgeRepository
	Count(ctx context.Context, table string) (int64, error)
	UsageHistory(ctx context.Context, days int, now time.Time) ([]entities.DailyUsage, error)
	ExecSQL(ctx context.Context, query string) (*entities.SQLResult, error)
	Probe(ctx context.Context) (schemaReady bool, err error)
	Credentials() entities.Credentials
}

// StoreResolver picks the tenant store for a request
type StoreResolver interface {
	Resolve(r *http.Request, admin bool) (Store, error)
	System() (Store, error)
	Admin() (Store, error)
	ForCredentials(creds entities.Credentials) Store
}

// Deduper records inbound update keys; Seen is true on the second sighting
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
}

// SQLRunner executes statements on a direct database connection
type SQLRunner interface {
	Run(ctx context.Context, query string) (*entities.SQLResult, error)
	ApplySchema(ctx context.Context, dims int) error
}
