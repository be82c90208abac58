package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"botrelay/internal/entities"
	"botrelay/internal/interfaces"
)

// memStore is an in-memory Store for usecase tests
type memStore struct {
	mu        sync.Mutex
	agents    map[string]*entities.Agent
	bots      map[string]*entities.Bot
	contacts  []entities.Contact
	messages  []entities.Message
	docs      []entities.DocumentMatch
	deleteErr error
	seq       int
}

func newMemStore() *memStore {
	return &memStore{
		agents: map[string]*entities.Agent{},
		bots:   map[string]*entities.Bot{},
	}
}

func (s *memStore) nextID() string {
	s.seq++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", s.seq)
}

func (s *memStore) Agents() interfaces.AgentRepository { return memAgents{s} }
func (s *memStore) Bots() interfaces.BotRepository { return memBots{s} }
func (s *memStore) Contacts() interfaces.ContactRepository { return memContacts{s} }
func (s *memStore) Messages() interfaces.MessageRepository { return memMessages{s} }
func (s *memStore) Knowledge() interfaces.KnowledgeRepository { return memKnowledge{s} }

func (s *memStore) Count(_ context.Context, table string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch table {
	case "agents":
		return int64(len(s.agents)), nil
	case "bots":
		return int64(len(s.bots)), nil
	case "contacts":
		return int64(len(s.contacts)), nil
	case "messages":
		return int64(len(s.messages)), nil
	}
	return 0, errors.New("unknown table")
}

func (s *memStore) UsageHistory(_ context.Context, days int, now time.Time) ([]entities.DailyUsage, error) {
	out := make([]entities.DailyUsage, 0, days)
	for i := days - 1; i >= 0; i-- {
		out = append(out, entities.DailyUsage{Date: now.AddDate(0, 0, -i).Format("2006-01-02")})
	}
	return out, nil
}

func (s *memStore) ExecSQL(_ context.Context, query string) (*entities.SQLResult, error) {
	return &entities.SQLResult{Rows: []map[string]interface{}{{"query": query}}, RowCount: 1, Command: "SELECT"}, nil
}

func (s *memStore) Probe(context.Context) (bool, error) { return true, nil }

func (s *memStore) Credentials() entities.Credentials { return entities.Credentials{Scope: entities.ScopeDefault} }

func (s *memStore) addBot(b entities.Bot) *entities.Bot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = s.nextID()
	}
	s.bots[b.ID] = &b
	return &b
}

func (s *memStore) addAgent(a entities.Agent) *entities.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = s.nextID()
	}
	s.agents[a.ID] = &a
	return &a
}

func (s *memStore) messagesByDirection(direction string) []entities.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Message
	for _, m := range s.messages {
		if m.Direction == direction {
			out = append(out, m)
		}
	}
	return out
}

type memAgents struct{ s *memStore }

func (r memAgents) List(context.Context) ([]entities.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entities.Agent, 0, len(r.s.agents))
	for _, a := range r.s.agents {
		out = append(out, *a)
	}
	return out, nil
}

func (r memAgents) Get(_ context.Context, id string) (*entities.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.agents[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAgents) Create(_ context.Context, a *entities.Agent) (*entities.Agent, error) {
	return r.s.addAgent(*a), nil
}

func (r memAgents) Update(ctx context.Context, id string, patch map[string]interface{}) (*entities.Agent, error) {
	return r.Get(ctx, id)
}

func (r memAgents) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.agents[id]
	delete(r.s.agents, id)
	return ok, nil
}

type memBots struct{ s *memStore }

func (r memBots) List(_ context.Context, activeOnly bool) ([]entities.Bot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entities.Bot
	// sorted by id so candidate order is stable
	for i := 1; i <= r.s.seq; i++ {
		b, ok := r.s.bots[fmt.Sprintf("00000000-0000-0000-0000-%012d", i)]
		if !ok || (activeOnly && !b.IsActive) {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r memBots) Get(_ context.Context, id string) (*entities.Bot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bots[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r memBots) Create(_ context.Context, b *entities.Bot) (*entities.Bot, error) {
	return r.s.addBot(*b), nil
}

func (r memBots) Update(_ context.Context, id string, patch map[string]interface{}) (*entities.Bot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bots[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	for k, v := range patch {
		switch k {
		case "name":
			b.Name = v.(string)
		case "token":
			b.Token = v.(string)
		case "username":
			b.Username = v.(string)
		case "webhook_url":
			b.WebhookURL = v.(string)
		case "is_active":
			b.IsActive = v.(bool)
		case "agent_id":
			b.AgentID = v.(*string)
		}
	}
	cp := *b
	return &cp, nil
}

func (r memBots) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.deleteErr != nil {
		return false, r.s.deleteErr
	}
	_, ok := r.s.bots[id]
	delete(r.s.bots, id)
	return ok, nil
}

type memContacts struct{ s *memStore }

func (r memContacts) List(context.Context, string) ([]entities.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]entities.Contact(nil), r.s.contacts...), nil
}

func (r memContacts) Upsert(_ context.Context, c *entities.Contact) (*entities.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, existing := range r.s.contacts {
		if existing.PlatformUserID == c.PlatformUserID {
			r.s.contacts[i].Username = c.Username
			cp := r.s.contacts[i]
			return &cp, nil
		}
	}
	cp := *c
	cp.ID = r.s.nextID()
	r.s.contacts = append(r.s.contacts, cp)
	return &cp, nil
}

type memMessages struct{ s *memStore }

func (r memMessages) List(_ context.Context, f entities.MessageFilter) ([]entities.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entities.Message
	for i := len(r.s.messages) - 1; i >= 0; i-- {
		m := r.s.messages[i]
		if f.ChatID != "" && m.ChatID != f.ChatID {
			continue
		}
		out = append(out, m)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r memMessages) Create(_ context.Context, m *entities.Message) (*entities.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *m
	cp.ID = r.s.nextID()
	r.s.messages = append(r.s.messages, cp)
	return &cp, nil
}

type memKnowledge struct{ s *memStore }

func (r memKnowledge) Add(_ context.Context, d *entities.Document) (*entities.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *d
	cp.ID = r.s.nextID()
	r.s.docs = append(r.s.docs, entities.DocumentMatch{ID: cp.ID, AgentID: cp.AgentID, Content: cp.Content, Similarity: 1})
	return &cp, nil
}

func (r memKnowledge) Search(context.Context, string, []float32, int) ([]entities.DocumentMatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]entities.DocumentMatch(nil), r.s.docs...), nil
}

// fakeMessenger records sends; tokens listed in failing are rejected
type fakeMessenger struct {
	mu       sync.Mutex
	failing  map[string]bool
	sent     []sentMessage
	calls    int
	webhooks map[string]string
	deleted  []string
	forgot   []string
	nextID   int64
}

type sentMessage struct {
	token  string
	chatID int64
	text   string
}

func newFakeMessenger(failing ...string) *fakeMessenger {
	m := &fakeMessenger{failing: map[string]bool{}, webhooks: map[string]string{}}
	for _, t := range failing {
		m.failing[t] = true
	}
	return m
}

func (m *fakeMessenger) ValidateToken(_ context.Context, token string) (string, error) {
	if m.failing[token] {
		return "", errors.New("Unauthorized")
	}
	return "relay_bot", nil
}

func (m *fakeMessenger) SendMessage(_ context.Context, token string, chatID int64, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failing[token] {
		return 0, errors.New("Forbidden: bot was blocked by the user")
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{token: token, chatID: chatID, text: text})
	return m.nextID, nil
}

func (m *fakeMessenger) SetWebhook(_ context.Context, token, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[token] = url
	return nil
}

func (m *fakeMessenger) DeleteWebhook(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, token)
	delete(m.webhooks, token)
	return nil
}

func (m *fakeMessenger) Forget(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgot = append(m.forgot, token)
}

func (m *fakeMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// fakeProvider answers every chat with reply, or fails with err
type fakeProvider struct {
	name     string
	reply    string
	err      error
	requests []entities.ChatRequest
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Chat(_ context.Context, req entities.ChatRequest) (string, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *fakeProvider) Embed(context.Context, string) ([]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}
