package account

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"intake/internal/registration/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// InMemoryStore keeps accounts in maps for tests and local runs.
type InMemoryStore struct {
	mu         sync.RWMutex
	persons    map[id.AccountID]*models.Person
	byNational map[id.NationalID]id.AccountID
	principals map[id.AccountID]*models.Principal
	usernames  map[string]id.AccountID
	emails     map[string]id.AccountID
	roles      map[id.AccountID]map[string]struct{}
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		persons:    make(map[id.AccountID]*models.Person),
		byNational: make(map[id.NationalID]id.AccountID),
		principals: make(map[id.AccountID]*models.Principal),
		usernames:  make(map[string]id.AccountID),
		emails:     make(map[string]id.AccountID),
		roles:      make(map[id.AccountID]map[string]struct{}),
	}
}

func (s *InMemoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.emails[email]
	return ok, nil
}

func (s *InMemoryStore) UsernameExists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.usernames[username]
	return ok, nil
}

func (s *InMemoryStore) FindByNationalID(_ context.Context, nationalID id.NationalID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.byNational[nationalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := *s.persons[accountID]
	return &p, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, accountID id.AccountID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) CreatePerson(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[p.ID]; ok {
		return fmt.Errorf("person already exists: %w", sentinel.ErrConflict)
	}
	if _, ok := s.byNational[p.NationalID]; ok {
		return fmt.Errorf("national ID already registered: %w", sentinel.ErrConflict)
	}
	cp := *p
	s.persons[p.ID] = &cp
	s.byNational[p.NationalID] = p.ID
	return nil
}

func (s *InMemoryStore) CreatePrincipal(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[p.PersonID]; !ok {
		return fmt.Errorf("principal without person: %w", sentinel.ErrNotFound)
	}
	if _, ok := s.usernames[p.Username]; ok {
		return fmt.Errorf("username taken: %w", sentinel.ErrConflict)
	}
	if _, ok := s.emails[p.Email]; ok {
		return fmt.Errorf("email taken: %w", sentinel.ErrConflict)
	}
	cp := *p
	s.principals[p.PersonID] = &cp
	s.usernames[p.Username] = p.PersonID
	s.emails[p.Email] = p.PersonID
	return nil
}

func (s *InMemoryStore) AssignRole(_ context.Context, accountID id.AccountID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.principals[accountID]; !ok {
		return fmt.Errorf("role without principal: %w", sentinel.ErrNotFound)
	}
	if s.roles[accountID] == nil {
		s.roles[accountID] = make(map[string]struct{})
	}
	s.roles[accountID][role] = struct{}{}
	return nil
}

func (s *InMemoryStore) UpdateRegistrationStatus(_ context.Context, accountID id.AccountID, status models.RegistrationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[accountID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.Status = status
	return nil
}

func (s *InMemoryStore) Roles(_ context.Context, accountID id.AccountID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var roles []string
	for r := range s.roles[accountID] {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles, nil
}

// DeletePerson removes a person and everything attached to it. The in-memory
// transaction uses it to undo a partially created account.
func (s *InMemoryStore) DeletePerson(_ context.Context, accountID id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(accountID)
	return nil
}

func (s *InMemoryStore) ReleaseIncomplete(_ context.Context, accountID id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[accountID]
	if !ok || p.Status != models.StatusIncomplete {
		return sentinel.ErrNotFound
	}
	s.deleteLocked(accountID)
	return nil
}

func (s *InMemoryStore) deleteLocked(accountID id.AccountID) {
	p, ok := s.persons[accountID]
	if !ok {
		return
	}
	delete(s.byNational, p.NationalID)
	delete(s.persons, accountID)
	if pr, ok := s.principals[accountID]; ok {
		delete(s.usernames, pr.Username)
		delete(s.emails, pr.Email)
		delete(s.principals, accountID)
	}
	delete(s.roles, accountID)
}

// Restorer captures accountID as it is now and returns a function that puts
// it back. The in-memory transaction uses it to undo a release.
func (s *InMemoryStore) Restorer(_ context.Context, accountID id.AccountID) func(context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[accountID]
	if !ok {
		return func(context.Context) {}
	}
	person := *p
	var principal *models.Principal
	if pr, ok := s.principals[accountID]; ok {
		cp := *pr
		principal = &cp
	}
	roles := make(map[string]struct{}, len(s.roles[accountID]))
	for r := range s.roles[accountID] {
		roles[r] = struct{}{}
	}

	return func(context.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.persons[accountID] = &person
		s.byNational[person.NationalID] = accountID
		if principal != nil {
			s.principals[accountID] = principal
			s.usernames[principal.Username] = accountID
			s.emails[principal.Email] = accountID
		}
		if len(roles) > 0 {
			s.roles[accountID] = roles
		}
	}
}
