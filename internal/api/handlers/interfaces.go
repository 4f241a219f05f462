package handlers

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/harisshahh/PocketSage/internal/enrich"
	"github.com/harisshahh/PocketSage/internal/plaidclient"
	"github.com/harisshahh/PocketSage/internal/store"
)

// Store is the persistence surface the handlers depend on.
type Store interface {
	SaveManualTransaction(ctx context.Context, userID string, tx store.ManualTransaction) (string, error)
	SaveCredential(ctx context.Context, userID, publicToken, accessToken, itemID string) error
	GetCredential(ctx context.Context, userID string) (store.Credential, error)
}

// Aggregator is the Plaid surface the handlers depend on.
type Aggregator interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error)
	FetchTransactions(ctx context.Context, accessToken string, start, end civil.Date) ([]plaidclient.Transaction, error)
}

// Adviser answers free-text financial queries.
type Adviser interface {
	Advise(ctx context.Context, query string) (string, error)
}

// Enricher augments fetched transactions with model-derived categories.
type Enricher interface {
	Enrich(ctx context.Context, txs []plaidclient.Transaction) []enrich.Transaction
}
