package handler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avelhart/hearthside-auth/internal/auth"
	"github.com/avelhart/hearthside-auth/internal/model"
	"github.com/avelhart/hearthside-auth/internal/oauth"
	"github.com/avelhart/hearthside-auth/internal/queue"
	"github.com/avelhart/hearthside-auth/internal/repository"
)

// In-memory store implementations mirroring the repository semantics,
// including the rotation state machine, so handlers can be exercised
// without MySQL.

type memUsers struct {
	mu     sync.Mutex
	seq    int
	users  map[string]model.User
	creds  map[string]model.Credential
	roles  map[string]map[string]bool
	logins map[string]string // provider+"\x00"+pid -> user id
}

func newMemUsers() *memUsers {
	return &memUsers{
		users:  map[string]model.User{},
		creds:  map[string]model.Credential{},
		roles:  map[string]map[string]bool{},
		logins: map[string]string{},
	}
}

func (m *memUsers) nextID() string {
	m.seq++
	return fmt.Sprintf("01TESTUSER%016d", m.seq)
}

func (m *memUsers) checkUnique(email, slug string) error {
	for _, u := range m.users {
		if u.Email == email {
			return repository.ErrDuplicateEmail
		}
		if u.Slug == slug {
			return repository.ErrDuplicateSlug
		}
	}
	return nil
}

func (m *memUsers) Create(_ context.Context, email, displayName, slug, passwordHash string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUnique(email, slug); err != nil {
		return model.User{}, err
	}
	u := model.User{ID: m.nextID(), Email: email, DisplayName: displayName, Slug: slug, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.users[u.ID] = u
	m.creds[u.ID] = model.Credential{UserID: u.ID, PasswordHash: passwordHash, PasswordChangedAt: time.Now()}
	m.roles[u.ID] = map[string]bool{model.RoleUser: true}
	return u, nil
}

func (m *memUsers) CreateWithLogin(_ context.Context, email, displayName, slug, provider, providerUserID string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := provider + "\x00" + providerUserID
	if _, ok := m.logins[key]; ok {
		return model.User{}, repository.ErrDuplicateExternalLogin
	}
	if err := m.checkUnique(email, slug); err != nil {
		return model.User{}, err
	}
	u := model.User{ID: m.nextID(), Email: email, DisplayName: displayName, Slug: slug, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.users[u.ID] = u
	m.roles[u.ID] = map[string]bool{model.RoleUser: true}
	m.logins[key] = u.ID
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetCredential(_ context.Context, userID string) (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[userID]
	if !ok {
		return model.Credential{}, repository.ErrNotFound
	}
	return c, nil
}

func (m *memUsers) SetPassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[userID] = model.Credential{UserID: userID, PasswordHash: passwordHash, PasswordChangedAt: time.Now()}
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id, email, displayName, slug string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	for _, other := range m.users {
		if other.ID == id {
			continue
		}
		if other.Email == email {
			return model.User{}, repository.ErrDuplicateEmail
		}
		if other.Slug == slug {
			return model.User{}, repository.ErrDuplicateSlug
		}
	}
	u.Email, u.DisplayName, u.Slug, u.UpdatedAt = email, displayName, slug, time.Now()
	m.users[id] = u
	return u, nil
}

func (m *memUsers) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = false
	m.users[id] = u
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	delete(m.creds, id)
	delete(m.roles, id)
	return nil
}

// RoleStore

func (m *memUsers) RolesForUser(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for r := range m.roles[userID] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memUsers) Grant(_ context.Context, userID, roleName string, _ *string) error {
	if !model.KnownRole(roleName) {
		return repository.ErrUnknownRole
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[userID] == nil {
		m.roles[userID] = map[string]bool{}
	}
	m.roles[userID][roleName] = true
	return nil
}

func (m *memUsers) Revoke(_ context.Context, userID, roleName string) error {
	if !model.KnownRole(roleName) {
		return repository.ErrUnknownRole
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles[userID], roleName)
	return nil
}

// LoginStore

func (m *memUsers) FindUser(_ context.Context, provider, providerUserID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.logins[provider+"\x00"+providerUserID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return id, nil
}

func (m *memUsers) Link(_ context.Context, provider, providerUserID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := provider + "\x00" + providerUserID
	if _, ok := m.logins[key]; ok {
		return repository.ErrDuplicateExternalLogin
	}
	m.logins[key] = userID
	return nil
}

// memRefresh implements RefreshStore with the same chain state machine as
// the SQL repository; the mutex stands in for the row lock.

type memRefreshRow struct {
	chainID string
	userID  string
	status  model.RefreshTokenStatus
	exp     time.Time
}

type memRefresh struct {
	mu   sync.Mutex
	ttl  time.Duration
	rows map[string]*memRefreshRow // by secret hash
}

func newMemRefresh(ttl time.Duration) *memRefresh {
	return &memRefresh{ttl: ttl, rows: map[string]*memRefreshRow{}}
}

func (m *memRefresh) Issue(_ context.Context, userID, _, _ string) (string, time.Time, error) {
	secret, err := auth.NewSecret()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := time.Now().UTC().Add(m.ttl)
	m.mu.Lock()
	m.rows[auth.HashSecret(secret)] = &memRefreshRow{chainID: uuid.NewString(), userID: userID, status: model.RefreshActive, exp: exp}
	m.mu.Unlock()
	return secret, exp, nil
}

func (m *memRefresh) Rotate(_ context.Context, secret, _, _ string) (string, string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[auth.HashSecret(secret)]
	if !ok {
		return "", "", time.Time{}, repository.ErrTokenInvalid
	}
	switch model.ClassifyRotation(row.status, row.exp, time.Now().UTC()) {
	case model.RotationExpired:
		return "", "", time.Time{}, repository.ErrTokenExpired
	case model.RotationRevoked:
		return "", "", time.Time{}, repository.ErrTokenInvalid
	case model.RotationReused:
		m.revokeChainLocked(row.chainID)
		return "", "", time.Time{}, repository.ErrTokenReused
	}
	newSecret, err := auth.NewSecret()
	if err != nil {
		return "", "", time.Time{}, err
	}
	row.status = model.RefreshRotated
	exp := time.Now().UTC().Add(m.ttl)
	m.rows[auth.HashSecret(newSecret)] = &memRefreshRow{chainID: row.chainID, userID: row.userID, status: model.RefreshActive, exp: exp}
	return row.userID, newSecret, exp, nil
}

func (m *memRefresh) Revoke(_ context.Context, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[auth.HashSecret(secret)]
	if !ok {
		return repository.ErrTokenInvalid
	}
	m.revokeChainLocked(row.chainID)
	return nil
}

func (m *memRefresh) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.userID == userID && row.status == model.RefreshActive {
			row.status = model.RefreshRevoked
		}
	}
	return nil
}

func (m *memRefresh) revokeChainLocked(chainID string) {
	for _, row := range m.rows {
		if row.chainID == chainID && row.status == model.RefreshActive {
			row.status = model.RefreshRevoked
		}
	}
}

// expireAll backdates every row, for expiry tests.
func (m *memRefresh) expireAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		row.exp = time.Now().UTC().Add(-time.Minute)
	}
}

// memEphemeral implements EphemeralStore with per-purpose namespaces and
// the reset-only used_at marker.

type memEphemeralRow struct {
	userID string
	exp    time.Time
	used   bool
}

type memEphemeral struct {
	mu   sync.Mutex
	ttl  time.Duration
	rows map[model.TokenPurpose]map[string]*memEphemeralRow
}

func newMemEphemeral(ttl time.Duration) *memEphemeral {
	return &memEphemeral{ttl: ttl, rows: map[model.TokenPurpose]map[string]*memEphemeralRow{}}
}

func (m *memEphemeral) Issue(_ context.Context, userID string, purpose model.TokenPurpose) (string, error) {
	secret, err := auth.NewSecret()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[purpose] == nil {
		m.rows[purpose] = map[string]*memEphemeralRow{}
	}
	m.rows[purpose][auth.HashSecret(secret)] = &memEphemeralRow{userID: userID, exp: time.Now().UTC().Add(m.ttl)}
	return secret, nil
}

func (m *memEphemeral) Consume(_ context.Context, raw string, purpose model.TokenPurpose) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[purpose][auth.HashSecret(raw)]
	if !ok {
		return "", repository.ErrNotFound
	}
	if purpose == model.PurposePasswordReset && row.used {
		return "", repository.ErrTokenUsed
	}
	if time.Now().UTC().After(row.exp) {
		return "", repository.ErrTokenExpired
	}
	if purpose == model.PurposePasswordReset {
		row.used = true
	} else {
		delete(m.rows[purpose], auth.HashSecret(raw))
	}
	return row.userID, nil
}

func (m *memEphemeral) expireAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, byHash := range m.rows {
		for _, row := range byHash {
			row.exp = time.Now().UTC().Add(-time.Minute)
		}
	}
}

// memSuppressions records Suppress calls.

type memSuppressions struct {
	mu      sync.Mutex
	entries map[string]model.EmailSuppression
}

func newMemSuppressions() *memSuppressions {
	return &memSuppressions{entries: map[string]model.EmailSuppression{}}
}

func (m *memSuppressions) Suppress(_ context.Context, email string, transactional, marketing bool, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.entries[email]
	s.Email = email
	s.SuppressTransactional = s.SuppressTransactional || transactional
	s.SuppressMarketing = s.SuppressMarketing || marketing
	s.Reason = reason
	if reason == model.SuppressionBounce {
		s.BounceCount++
	}
	m.entries[email] = s
	return nil
}

// memRequests implements RequestStore.

type memRequests struct {
	mu   sync.Mutex
	seq  int
	rows map[string]model.AccessRequest
}

func newMemRequests() *memRequests { return &memRequests{rows: map[string]model.AccessRequest{}} }

func (m *memRequests) Create(_ context.Context, userID, roleName, reason string) (model.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.UserID == userID && a.RoleName == roleName && a.Status == model.RequestPending {
			return model.AccessRequest{}, repository.ErrDuplicateRequest
		}
	}
	m.seq++
	a := model.AccessRequest{
		ID: fmt.Sprintf("req-%d", m.seq), UserID: userID, RoleName: roleName,
		Reason: reason, Status: model.RequestPending, CreatedAt: time.Now(),
	}
	m.rows[a.ID] = a
	return a, nil
}

func (m *memRequests) ListByStatus(_ context.Context, status string) ([]model.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AccessRequest
	for _, a := range m.rows {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRequests) Decide(_ context.Context, id, adminID string, approve bool) (model.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok || a.Status != model.RequestPending {
		return model.AccessRequest{}, repository.ErrNotFound
	}
	if approve {
		a.Status = model.RequestApproved
	} else {
		a.Status = model.RequestRejected
	}
	now := time.Now()
	a.DecidedBy, a.DecidedAt = &adminID, &now
	m.rows[id] = a
	return a, nil
}

// fakeMailer records events; err, when set, is returned from Send.

type fakeMailer struct {
	mu     sync.Mutex
	err    error
	events []queue.EmailRequestedEvent
}

func (f *fakeMailer) Send(_ context.Context, ev queue.EmailRequestedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeMailer) sent() []queue.EmailRequestedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.EmailRequestedEvent(nil), f.events...)
}

// fakeExchanger returns a fixed profile for any code.

type fakeExchanger struct {
	profile oauth.Profile
	err     error
}

func (f *fakeExchanger) Exchange(context.Context, string) (oauth.Profile, error) {
	return f.profile, f.err
}
