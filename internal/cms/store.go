package cms

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a document doesn't exist.
var ErrNotFound = errors.New("cms: document not found")

// Startup is a startup document.
type Startup struct {
	ID          string
	Title       string
	Slug        string
	AuthorID    string
	Views       int64
	Description string
	Category    string
	Image       string
	Pitch       string
	CreatedAt   time.Time
}

// NewStartup is the editable part of a startup, as submitted by the studio.
type NewStartup struct {
	Title       string
	AuthorID    string
	Description string
	Category    string
	Image       string
	Pitch       string
}

// Values returns the fields keyed by schema field name.
func (n NewStartup) Values() map[string]any {
	v := map[string]any{
		"title":       n.Title,
		"description": n.Description,
		"category":    n.Category,
		"image":       n.Image,
		"pitch":       n.Pitch,
	}
	if n.AuthorID != "" {
		v["author"] = n.AuthorID
	}
	return v
}

// Author is an author document.
type Author struct {
	ID       string
	Name     string
	Username string
	Email    string
	Bio      string
}

// Store persists CMS documents.
type Store interface {
	CreateStartup(ctx context.Context, in NewStartup) (*Startup, error)
	Startup(ctx context.Context, slug string) (*Startup, error)
	// ListStartups returns startups newest first. A non-empty query keeps
	// those whose title, category or description contains it.
	ListStartups(ctx context.Context, query string) ([]Startup, error)
	IncrementViews(ctx context.Context, slug string) (int64, error)

	CreateAuthor(ctx context.Context, a Author) (*Author, error)
	Author(ctx context.Context, id string) (*Author, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	now func() time.Time

	mu       sync.RWMutex
	startups map[string]*Startup // by slug
	authors  map[string]*Author  // by ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		startups: make(map[string]*Startup),
		authors:  make(map[string]*Author),
	}
}

// CreateStartup validates in against StartupSchema and stores it under a
// unique slug derived from the title.
func (s *MemoryStore) CreateStartup(_ context.Context, in NewStartup) (*Startup, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Image = strings.TrimSpace(in.Image)

	if err := StartupSchema.Validate(in.Values()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.AuthorID != "" {
		if _, ok := s.authors[in.AuthorID]; !ok {
			return nil, &ValidationError{
				Schema: StartupSchema.Name,
				Fields: []FieldError{{Field: "author", Message: "Unknown author"}},
			}
		}
	}

	st := &Startup{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Slug:        s.uniqueSlugLocked(Slugify(in.Title)),
		AuthorID:    in.AuthorID,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Image:       in.Image,
		Pitch:       in.Pitch,
		CreatedAt:   s.now(),
	}
	s.startups[st.Slug] = st

	copied := *st
	return &copied, nil
}

func (s *MemoryStore) uniqueSlugLocked(base string) string {
	if base == "" {
		base = "startup"
	}
	slug := base
	for i := 2; ; i++ {
		if _, taken := s.startups[slug]; !taken {
			return slug
		}
		slug = base + "-" + strconv.Itoa(i)
	}
}

func (s *MemoryStore) Startup(_ context.Context, slug string) (*Startup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.startups[slug]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *st
	return &copied, nil
}

func (s *MemoryStore) ListStartups(_ context.Context, query string) ([]Startup, error) {
	query = strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	out := make([]Startup, 0, len(s.startups))
	for _, st := range s.startups {
		if query != "" && !matches(st, query) {
			continue
		}
		out = append(out, *st)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Slug < out[j].Slug
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func matches(st *Startup, query string) bool {
	return strings.Contains(strings.ToLower(st.Title), query) ||
		strings.Contains(strings.ToLower(st.Category), query) ||
		strings.Contains(strings.ToLower(st.Description), query)
}

// IncrementViews bumps the view counter and returns the new value.
func (s *MemoryStore) IncrementViews(_ context.Context, slug string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.startups[slug]
	if !ok {
		return 0, ErrNotFound
	}
	st.Views++
	return st.Views, nil
}

func (s *MemoryStore) CreateAuthor(_ context.Context, a Author) (*Author, error) {
	values := map[string]any{"name": a.Name, "username": a.Username, "email": a.Email, "bio": a.Bio}
	if err := AuthorSchema.Validate(values); err != nil {
		return nil, err
	}

	a.ID = uuid.NewString()
	a.Name = strings.TrimSpace(a.Name)

	s.mu.Lock()
	s.authors[a.ID] = &a
	s.mu.Unlock()

	copied := a
	return &copied, nil
}

func (s *MemoryStore) Author(_ context.Context, id string) (*Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.authors[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}
