package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

// MockContactStore keeps contacts in memory, keyed by identity.
type MockContactStore struct {
	mu       sync.Mutex
	contacts map[string]*model.Contact
	nextID   int

	// per-identity failures injected by tests
	GetErr    map[string]error
	UpdateErr map[string]error
	Updates   int

	// BeforeUpdate runs at the start of Update, outside the store lock
	BeforeUpdate func(identity string)
}

func NewMockContactStore(seed ...*model.Contact) *MockContactStore {
	m := &MockContactStore{
		contacts:  map[string]*model.Contact{},
		GetErr:    map[string]error{},
		UpdateErr: map[string]error{},
	}
	for _, c := range seed {
		m.nextID++
		cp := c.Clone()
		cp.ID = m.nextID
		m.contacts[c.LinkedInURL] = cp
	}
	return m
}

func (m *MockContactStore) UpsertByIdentity(ctx context.Context, c *model.Contact) (*model.Contact, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.contacts[c.LinkedInURL]; ok {
		return existing.Clone(), false, nil
	}
	m.nextID++
	cp := c.Clone()
	cp.ID = m.nextID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.contacts[c.LinkedInURL] = cp
	return cp.Clone(), true, nil
}

func (m *MockContactStore) GetByIdentity(ctx context.Context, identity string) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.GetErr[identity]; err != nil {
		return nil, err
	}
	c, ok := m.contacts[identity]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (m *MockContactStore) Find(ctx context.Context, filter model.ContactFilter) ([]*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Contact{}
	for _, c := range m.contacts {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.Variant != nil && c.Variant != *filter.Variant {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MockContactStore) Update(ctx context.Context, c *model.Contact) error {
	if hook := m.BeforeUpdate; hook != nil {
		hook(c.LinkedInURL)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpdateErr[c.LinkedInURL]; err != nil {
		return err
	}
	existing, ok := m.contacts[c.LinkedInURL]
	if !ok {
		return appErrors.NewContactNotFound(c.LinkedInURL)
	}
	if existing.FollowupAttempts != c.FollowupAttempts {
		return fmt.Errorf("%s: %w", c.LinkedInURL, appErrors.ErrContactChanged)
	}
	cp := c.Clone()
	cp.ID = existing.ID
	cp.CreatedAt = existing.CreatedAt
	m.contacts[c.LinkedInURL] = cp
	m.Updates++
	return nil
}

func (m *MockContactStore) RecordFollowup(ctx context.Context, identity, message string, prevAttempts int, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpdateErr[identity]; err != nil {
		return err
	}
	existing, ok := m.contacts[identity]
	if !ok || existing.FollowupAttempts != prevAttempts ||
		existing.Status != model.StatusInvitationAccepted || existing.RepliedConnection {
		return fmt.Errorf("%s: %w", identity, appErrors.ErrContactChanged)
	}
	existing.FollowupMessage = &message
	existing.FollowupAttempts++
	existing.LastFollowupSent = &sentAt
	existing.UpdatedAt = sentAt
	m.Updates++
	return nil
}

func (m *MockContactStore) Analytics(ctx context.Context) (*model.Analytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &model.Analytics{TotalContacts: len(m.contacts), StatusBreakdown: map[string]int{}}
	for _, c := range m.contacts {
		a.StatusBreakdown[c.Status.String()]++
	}
	return a, nil
}

// Get returns the stored contact without failure injection.
func (m *MockContactStore) Get(identity string) *model.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contacts[identity]; ok {
		return c.Clone()
	}
	return nil
}

func (m *MockContactStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.contacts)
}

var _ repository.ContactRepositoryInterface = (*MockContactStore)(nil)

// MockTemplateRepo stores templates in a slice.
type MockTemplateRepo struct {
	Templates []*model.MessageTemplate
}

func (m *MockTemplateRepo) Create(ctx context.Context, t *model.MessageTemplate) error {
	t.ID = len(m.Templates) + 1
	m.Templates = append(m.Templates, t)
	return nil
}

func (m *MockTemplateRepo) List(ctx context.Context, templateType, variant string) ([]*model.MessageTemplate, error) {
	out := []*model.MessageTemplate{}
	for _, t := range m.Templates {
		if templateType != "" && t.TemplateType != templateType {
			continue
		}
		if variant != "" && string(t.Variant) != variant {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *MockTemplateRepo) GetActive(ctx context.Context, templateType string, variant model.Variant) (*model.MessageTemplate, error) {
	for i := len(m.Templates) - 1; i >= 0; i-- {
		t := m.Templates[i]
		if t.IsActive && t.TemplateType == templateType && t.Variant == variant {
			return t, nil
		}
	}
	return nil, nil
}

func (m *MockTemplateRepo) Exists(ctx context.Context, templateType string, variant model.Variant) (bool, error) {
	t, err := m.GetActive(ctx, templateType, variant)
	return t != nil, err
}

var _ repository.TemplateRepositoryInterface = (*MockTemplateRepo)(nil)

// StubGenerator returns Message, or Err when set.
type StubGenerator struct {
	Message string
	Err     error
	Calls   int
}

func (g *StubGenerator) GenerateFollowup(ctx context.Context, c *model.Contact) (string, error) {
	g.Calls++
	if g.Err != nil {
		return "", g.Err
	}
	return g.Message, nil
}

func strPtr(s string) *string { return &s }

// GateGenerator signals Started on every call and then blocks until Release
// is closed, so tests can hold a pass mid-generation.
type GateGenerator struct {
	Message string
	Started chan struct{}
	Release chan struct{}
	calls   atomic.Int32
}

func NewGateGenerator(message string) *GateGenerator {
	return &GateGenerator{Message: message, Started: make(chan struct{}, 8), Release: make(chan struct{})}
}

func (g *GateGenerator) GenerateFollowup(ctx context.Context, c *model.Contact) (string, error) {
	g.calls.Add(1)
	g.Started <- struct{}{}
	select {
	case <-g.Release:
		return g.Message, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *GateGenerator) Calls() int { return int(g.calls.Load()) }

// waitStarted fails the test unless n generator calls begin within a second.
func waitStarted(t *testing.T, g *GateGenerator, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-g.Started:
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d generations started", i, n)
		}
	}
}
