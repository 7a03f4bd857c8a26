package services

import (
	"context"
	"time"

	"github.com/ledgerclerk/clerk/internal/core/domain"
	"github.com/ledgerclerk/clerk/internal/upstream"
	"github.com/stretchr/testify/mock"
)

type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) SaveLink(ctx context.Context, link domain.Link) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockLinkRepository) UpdateLink(ctx context.Context, link domain.Link) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockLinkRepository) UpdateSyncCursor(ctx context.Context, itemID, cursor string) error {
	args := m.Called(ctx, itemID, cursor)
	return args.Error(0)
}

func (m *MockLinkRepository) FindLinkByItemID(ctx context.Context, itemID string) (*domain.Link, error) {
	args := m.Called(ctx, itemID)
	if link, ok := args.Get(0).(*domain.Link); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLinkRepository) ListLinks(ctx context.Context) ([]domain.Link, error) {
	args := m.Called(ctx)
	if links, ok := args.Get(0).([]domain.Link); ok {
		return links, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLinkRepository) DeleteLink(ctx context.Context, itemID string) (*domain.Link, error) {
	args := m.Called(ctx, itemID)
	if link, ok := args.Get(0).(*domain.Link); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if account, ok := args.Get(0).(*domain.Account); ok {
		return account, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) ListAccountsByItem(ctx context.Context, itemID string) ([]domain.Account, error) {
	args := m.Called(ctx, itemID)
	if accounts, ok := args.Get(0).([]domain.Account); ok {
		return accounts, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockInstitutionRepository struct {
	mock.Mock
}

func (m *MockInstitutionRepository) SaveInstitution(ctx context.Context, institution domain.Institution) error {
	args := m.Called(ctx, institution)
	return args.Error(0)
}

func (m *MockInstitutionRepository) ListInstitutions(ctx context.Context) ([]domain.Institution, error) {
	args := m.Called(ctx)
	if institutions, ok := args.Get(0).([]domain.Institution); ok {
		return institutions, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) SaveTransaction(ctx context.Context, itemID, upstreamID string, txn domain.Transaction, sourcePayload []byte) error {
	args := m.Called(ctx, itemID, upstreamID, txn, sourcePayload)
	return args.Error(0)
}

func (m *MockTransactionRepository) TransactionByUpstreamID(ctx context.Context, itemID, upstreamID string) (string, error) {
	args := m.Called(ctx, itemID, upstreamID)
	return args.String(0), args.Error(1)
}

func (m *MockTransactionRepository) UpdateSourcePayload(ctx context.Context, txnID string, sourcePayload []byte) error {
	args := m.Called(ctx, txnID, sourcePayload)
	return args.Error(0)
}

func (m *MockTransactionRepository) PromoteTransaction(ctx context.Context, txnID, itemID, upstreamID string, txn domain.Transaction, sourcePayload []byte) error {
	args := m.Called(ctx, txnID, itemID, upstreamID, txn, sourcePayload)
	return args.Error(0)
}

func (m *MockTransactionRepository) DeleteTransaction(ctx context.Context, txnID string) error {
	args := m.Called(ctx, txnID)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListTransactions(ctx context.Context, begin, until *time.Time) ([]domain.Transaction, error) {
	args := m.Called(ctx, begin, until)
	if txns, ok := args.Get(0).([]domain.Transaction); ok {
		return txns, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ListAccounts(ctx context.Context, accessToken string) ([]upstream.RawAccount, error) {
	args := m.Called(ctx, accessToken)
	if accounts, ok := args.Get(0).([]upstream.RawAccount); ok {
		return accounts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) GetItem(ctx context.Context, accessToken string) (upstream.Item, error) {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(upstream.Item), args.Error(1)
}

func (m *MockProvider) SyncTransactions(ctx context.Context, accessToken, cursor string, pageSize int) (upstream.SyncPage, error) {
	args := m.Called(ctx, accessToken, cursor, pageSize)
	return args.Get(0).(upstream.SyncPage), args.Error(1)
}

func (m *MockProvider) ListInstitutions(ctx context.Context, countryCodes []string) ([]domain.Institution, error) {
	args := m.Called(ctx, countryCodes)
	if institutions, ok := args.Get(0).([]domain.Institution); ok {
		return institutions, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) RevokeAccessGrant(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

// scriptedSource replays a fixed event stream without touching the provider.
type scriptedSource struct {
	events []upstream.ChangeEvent
	cursor string
	err    error
}

func (s *scriptedSource) Pull(ctx context.Context, cursor string) ([]upstream.ChangeEvent, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return s.events, s.cursor, nil
}
