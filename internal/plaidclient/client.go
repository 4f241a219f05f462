package plaidclient

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/rs/zerolog"
)

// clientName is shown to the user inside the Plaid Link UI.
const clientName = "PocketSage"

// UncategorizedPlaid is used when Plaid returns no category for a
// transaction.
const UncategorizedPlaid = "Uncategorized"

// Transaction is a single transaction as fetched from Plaid, reduced to the
// fields this service cares about.
type Transaction struct {
	PlaidID    string
	Name       string
	Amount     float64
	Date       string // YYYY-MM-DD
	Categories []string
}

// PrimaryCategory returns Plaid's first category for the transaction, or
// the uncategorized sentinel when the list is empty.
func (t Transaction) PrimaryCategory() string {
	if len(t.Categories) == 0 {
		return UncategorizedPlaid
	}
	return t.Categories[0]
}

// Config holds the Plaid API credentials and environment.
type Config struct {
	ClientID   string
	Secret     string
	Env        string // sandbox | development | production
	WebhookURL string // optional; included in link sessions when set
}

// Client wraps the Plaid API for link-session creation, token exchange and
// transaction fetching.
type Client struct {
	api     *plaid.APIClient
	webhook string
	log     zerolog.Logger
}

// New creates a Plaid client from the given configuration. Unknown
// environment names fall back to sandbox, matching the original service.
func New(cfg Config, log zerolog.Logger) *Client {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	configuration.UseEnvironment(environment(cfg.Env))

	return &Client{
		api:     plaid.NewAPIClient(configuration),
		webhook: cfg.WebhookURL,
		log:     log,
	}
}

func environment(env string) plaid.Environment {
	switch env {
	case "production":
		return plaid.Production
	case "development":
		return plaid.Development
	default:
		return plaid.Sandbox
	}
}

// CreateLinkToken requests a short-lived link session token scoped to the
// transactions product for the given user.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{ClientUserId: userID}
	request := plaid.NewLinkTokenCreateRequest(clientName, "en", []plaid.CountryCode{plaid.COUNTRYCODE_US}, user)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	if c.webhook != "" {
		request.SetWebhook(c.webhook)
	}

	resp, _, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", c.wrapError("CreateLinkToken", err)
	}

	return resp.GetLinkToken(), nil
}

// ExchangePublicToken exchanges a short-lived public token for a durable
// access token and item ID. Persisting the pair is the caller's job.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)

	resp, _, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", c.wrapError("ExchangePublicToken", err)
	}

	return resp.GetAccessToken(), resp.GetItemId(), nil
}

// FetchTransactions fetches all transactions for the credential in the
// inclusive date range. Only the first page is fetched.
func (c *Client) FetchTransactions(ctx context.Context, accessToken string, start, end civil.Date) ([]Transaction, error) {
	request := plaid.NewTransactionsGetRequest(accessToken, start.String(), end.String())

	resp, _, err := c.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
	if err != nil {
		return nil, c.wrapError("FetchTransactions", err)
	}

	raw := resp.GetTransactions()
	txs := make([]Transaction, 0, len(raw))
	for _, tx := range raw {
		txs = append(txs, Transaction{
			PlaidID:    tx.GetTransactionId(),
			Name:       tx.GetName(),
			Amount:     tx.GetAmount(),
			Date:       tx.GetDate(),
			Categories: tx.GetCategory(),
		})
	}

	c.log.Info().
		Int("count", len(txs)).
		Str("start_date", start.String()).
		Str("end_date", end.String()).
		Msg("Fetched transactions from Plaid")

	return txs, nil
}

// wrapError surfaces Plaid's structured error message when the failure came
// from the Plaid API, and a generic wrapped error otherwise.
func (c *Client) wrapError(op string, err error) error {
	if plaidErr, convErr := plaid.ToPlaidError(err); convErr == nil {
		c.log.Error().
			Str("op", op).
			Str("error_code", plaidErr.GetErrorCode()).
			Str("error_message", plaidErr.GetErrorMessage()).
			Msg("Plaid API error")
		return fmt.Errorf("%s: plaid: %s", op, plaidErr.GetErrorMessage())
	}
	return fmt.Errorf("%s: %w", op, err)
}
