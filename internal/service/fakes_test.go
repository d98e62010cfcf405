package service

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/credential-service/internal/model"
	"github.com/iliyamo/credential-service/internal/provider"
	"github.com/iliyamo/credential-service/internal/queue"
	"github.com/iliyamo/credential-service/internal/repository"
)

type fakeUsers struct {
	mu     sync.Mutex
	rows   []model.User
	dupOn  bool // Create reports a duplicate even though Exists said no
	getErr error
}

func (f *fakeUsers) Create(_ context.Context, u model.User) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dupOn {
		return 0, repository.ErrDuplicate
	}
	u.ID = uint64(len(f.rows) + 1)
	f.rows = append(f.rows, u)
	return u.ID, nil
}

func (f *fakeUsers) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) GetByIdentifier(_ context.Context, identifier string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return model.User{}, f.getErr
	}
	for _, u := range f.rows {
		if u.Email == identifier || u.Username == identifier {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

type fakeKeys struct {
	mu   sync.Mutex
	rows []model.APIKey
}

func (f *fakeKeys) Create(_ context.Context, k model.APIKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k.ID = uint64(len(f.rows) + 1)
	f.rows = append(f.rows, k)
	return k.ID, nil
}

func (f *fakeKeys) GetByHash(_ context.Context, hash string) (model.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.rows {
		if k.KeyHash == hash {
			return k, nil
		}
	}
	return model.APIKey{}, repository.ErrNotFound
}

func (f *fakeKeys) TouchLastUsed(_ context.Context, id uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			t := at
			f.rows[i].LastUsed = &t
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeKeys) ListByUser(_ context.Context, userID uint64) ([]model.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.APIKey{}
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].UserID == userID {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

type fakeTokens struct {
	mu   sync.Mutex
	rows map[uint64]model.LinkedAccountToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{rows: map[uint64]model.LinkedAccountToken{}}
}

func (f *fakeTokens) Upsert(_ context.Context, t model.LinkedAccountToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[t.UserID] = t
	return nil
}

func (f *fakeTokens) Get(_ context.Context, userID uint64, p string) (model.LinkedAccountToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[userID]
	if !ok || t.Provider != p {
		return model.LinkedAccountToken{}, repository.ErrNotFound
	}
	return t, nil
}

type fakeProvider struct {
	token       provider.Token
	exchangeErr error
	verifyErr   error
	codes       []string
}

func (f *fakeProvider) Name() string { return "tiktok" }

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.example.com/auth?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (provider.Token, error) {
	f.codes = append(f.codes, code)
	if f.exchangeErr != nil {
		return provider.Token{}, f.exchangeErr
	}
	return f.token, nil
}

func (f *fakeProvider) VerifyToken(context.Context, string) error { return f.verifyErr }

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AuthEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
