package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// --- Mock implementations shared by application tests ---

type mockCredentialStore struct {
	mu    sync.Mutex
	creds map[string]model.Credential
	err   error
}

func newMockCredentialStore(creds ...model.Credential) *mockCredentialStore {
	m := &mockCredentialStore{creds: make(map[string]model.Credential)}
	for _, c := range creds {
		m.creds[c.ID] = c
	}
	return m
}

func (m *mockCredentialStore) Insert(_ context.Context, cred model.Credential) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if existing, ok := m.creds[cred.ID]; ok {
		return &existing, nil
	}
	cred.Proof = nil
	m.creds[cred.ID] = cred
	return &cred, nil
}

func (m *mockCredentialStore) InsertReverification(_ context.Context, child model.Credential, parentID string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	parent, ok := m.creds[parentID]
	if !ok {
		return nil, model.ErrParentNotFound
	}
	if parent.ReverifiedID != nil {
		return nil, model.ErrAlreadyReverified
	}
	child.Proof = nil
	m.creds[child.ID] = child
	parent.ReverifiedID = &child.ID
	m.creds[parentID] = parent
	return &child, nil
}

func (m *mockCredentialStore) Get(_ context.Context, id string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.creds[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *mockCredentialStore) GetMany(_ context.Context, ids []string) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Credential
	for _, id := range ids {
		if c, ok := m.creds[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCredentialStore) SetVault(_ context.Context, id string, vaultID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[id]
	if !ok {
		return model.ErrCredentialNotFound
	}
	c.VaultID = vaultID
	m.creds[id] = c
	return nil
}

func (m *mockCredentialStore) ListByVault(_ context.Context, vaultID string) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Credential
	for _, c := range m.creds {
		if c.VaultID != nil && *c.VaultID == vaultID && c.DeletedAt == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockActionStore struct {
	mu      sync.Mutex
	actions map[string]model.Action
}

func newMockActionStore(actions ...model.Action) *mockActionStore {
	m := &mockActionStore{actions: make(map[string]model.Action)}
	for _, a := range actions {
		m.actions[a.ID] = a
	}
	return m
}

func (m *mockActionStore) Upsert(_ context.Context, action model.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action.ID] = action
	return nil
}

func (m *mockActionStore) Get(_ context.Context, id string) (*model.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *mockActionStore) ListAll(_ context.Context) ([]model.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Action, 0, len(m.actions))
	for _, a := range m.actions {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockActionStore) ListVisible(ctx context.Context, communityID string) ([]model.Action, error) {
	all, _ := m.ListAll(ctx)
	var out []model.Action
	for _, a := range all {
		if a.Hidden {
			continue
		}
		if communityID != "" && (a.CommunityID == nil || *a.CommunityID != communityID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type mockExecutionStore struct {
	mu    sync.Mutex
	execs []model.ActionExecution
	err   error
}

func (m *mockExecutionStore) Append(_ context.Context, exec model.ActionExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.execs = append(m.execs, exec)
	return nil
}

func (m *mockExecutionStore) ListByAction(_ context.Context, actionID string) ([]model.ActionExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ActionExecution
	for _, e := range m.execs {
		if e.ActionID == actionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockExecutionStore) all() []model.ActionExecution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ActionExecution(nil), m.execs...)
}

type mockDedupStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMockDedupStore() *mockDedupStore {
	return &mockDedupStore{keys: make(map[string]bool)}
}

func (m *mockDedupStore) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockDedupStore) Refresh(_ context.Context, _ string, _ time.Duration) error { return nil }

func (m *mockDedupStore) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

type mockVerifier struct {
	ok       bool
	err      error
	metadata model.CredentialMetadata
}

func (m *mockVerifier) Verify(_ context.Context, _ []byte, _ []string) (bool, error) {
	return m.ok, m.err
}

func (m *mockVerifier) Parse(_ []string) (model.CredentialMetadata, error) {
	return m.metadata, nil
}

type mockVerifierRegistry struct {
	verifier driven.ProofVerifier
}

func (m *mockVerifierRegistry) Verifier(credType model.CredentialType, version string) (driven.ProofVerifier, error) {
	if m.verifier == nil || credType != model.CredentialTypeERC20Balance || version != "1" {
		return nil, model.ErrUnknownVerifier
	}
	return m.verifier, nil
}

type mockChainClient struct {
	mu          sync.Mutex
	storageHash string
	timestamp   time.Time
	blockCalls  int
	proofCalls  int
	gotKeys     []string
	err         error
}

func (m *mockChainClient) GetBlock(_ context.Context, _, blockNumber uint64) (*driven.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockCalls++
	if m.err != nil {
		return nil, m.err
	}
	return &driven.Block{Number: blockNumber, Timestamp: m.timestamp}, nil
}

func (m *mockChainClient) GetStorageProof(_ context.Context, _ uint64, _ string, keys []string, _ uint64) (*driven.StorageProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proofCalls++
	m.gotKeys = keys
	if m.err != nil {
		return nil, m.err
	}
	return &driven.StorageProof{StorageHash: m.storageHash}, nil
}

type mockSocialClient struct {
	mu       sync.Mutex
	platform model.Platform
	posts    map[string]model.PostContent
	created  []model.PostContent
	deleted  []string
	nextID   int
	delay    time.Duration
	err      error
	panicMsg string
}

func newMockSocialClient(platform model.Platform) *mockSocialClient {
	return &mockSocialClient{platform: platform, posts: make(map[string]model.PostContent)}
}

func (m *mockSocialClient) Platform() model.Platform { return m.platform }

func (m *mockSocialClient) CreatePost(_ context.Context, _ string, content model.PostContent) (string, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.nextID++
	id := fmt.Sprintf("%s-%d", m.platform, m.nextID)
	m.posts[id] = content
	m.created = append(m.created, content)
	return id, nil
}

func (m *mockSocialClient) DeletePost(_ context.Context, _, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.posts[postID]; !ok {
		return driven.ErrPostNotFound
	}
	delete(m.posts, postID)
	m.deleted = append(m.deleted, postID)
	return nil
}

func (m *mockSocialClient) GetPost(_ context.Context, postID string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.posts[postID]
	if !ok {
		return nil, driven.ErrPostNotFound
	}
	return &model.Post{ID: postID, Platform: m.platform, Content: content}, nil
}

func (m *mockSocialClient) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

type mockPostLinkStore struct {
	mu      sync.Mutex
	links   map[string]model.PostLink
	saveErr error
}

func newMockPostLinkStore() *mockPostLinkStore {
	return &mockPostLinkStore{links: make(map[string]model.PostLink)}
}

func linkKey(source string, platform model.Platform) string { return source + "|" + string(platform) }

func (m *mockPostLinkStore) Save(_ context.Context, link model.PostLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.links[linkKey(link.SourcePostID, link.TargetPlatform)] = link
	return nil
}

func (m *mockPostLinkStore) Find(_ context.Context, source string, platform model.Platform) (*model.PostLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[linkKey(source, platform)]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *mockPostLinkStore) FindByTarget(_ context.Context, target string, platform model.Platform) (*model.PostLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.TargetPostID == target && l.TargetPlatform == platform {
			return &l, nil
		}
	}
	return nil, nil
}

func (m *mockPostLinkStore) Delete(_ context.Context, source string, platform model.Platform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, linkKey(source, platform))
	return nil
}
