package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/harisshahh/PocketSage/internal/api/middleware"
	"github.com/harisshahh/PocketSage/internal/plaidclient"
	"github.com/harisshahh/PocketSage/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultUserID is the identity used when the client does not supply one.
// Only a single identity is supported today, but every operation below the
// HTTP edge takes the user ID as a parameter.
const DefaultUserID = "user1"

// userID resolves the caller identity from the X-User-ID header.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return DefaultUserID
}

// Root handles GET / as a liveness check.
func Root(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "PocketSage API is running.",
	})
}

// TransactionsHandler handles manual transaction entry.
type TransactionsHandler struct {
	store Store
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: store, log: log}
}

type createTransactionRequest struct {
	Amount   *decimal.Decimal `json:"amount"`
	Date     string           `json:"date"`
	Category string           `json:"category"`
	Name     string           `json:"name"`
}

func (req *createTransactionRequest) validate() string {
	switch {
	case req.Amount == nil:
		return "amount is required"
	case req.Date == "":
		return "date is required"
	case req.Category == "":
		return "category is required"
	case req.Name == "":
		return "name is required"
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return "date must be formatted as YYYY-MM-DD"
	}
	return ""
}

// Create handles POST /transactions
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if msg := req.validate(); msg != "" {
		middleware.WriteError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	tx := store.ManualTransaction{
		Amount:   req.Amount.InexactFloat64(),
		Date:     req.Date,
		Category: req.Category,
		Name:     req.Name,
	}

	id, err := h.store.SaveManualTransaction(ctx, userID(r), tx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to save manual transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"id":      id,
		"message": "Transaction saved successfully!",
	})
}

// PlaidHandler handles account linking and transaction fetching.
type PlaidHandler struct {
	plaid    Aggregator
	store    Store
	enricher Enricher
	log      zerolog.Logger
}

// NewPlaidHandler creates a new Plaid handler.
func NewPlaidHandler(plaid Aggregator, store Store, enricher Enricher, log zerolog.Logger) *PlaidHandler {
	return &PlaidHandler{
		plaid:    plaid,
		store:    store,
		enricher: enricher,
		log:      log,
	}
}

// CreateLinkToken handles POST /plaid/create_link_token
func (h *PlaidHandler) CreateLinkToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	linkToken, err := h.plaid.CreateLinkToken(ctx, userID(r))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create link token")
		middleware.WriteError(w, http.StatusInternalServerError, "Plaid Link Token error: "+err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"link_token": linkToken,
	})
}

// SetAccessToken handles POST /plaid/set_access_token
func (h *PlaidHandler) SetAccessToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		PublicToken string `json:"public_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PublicToken == "" {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "public_token is required")
		return
	}

	accessToken, itemID, err := h.plaid.ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to exchange public token")
		middleware.WriteError(w, http.StatusInternalServerError, "Plaid Token Exchange error: "+err.Error())
		return
	}

	// Persisting the credential is a required side effect of a successful
	// exchange; its failure fails the request.
	if err := h.store.SaveCredential(ctx, userID(r), req.PublicToken, accessToken, itemID); err != nil {
		h.log.Error().Err(err).Str("item_id", itemID).Msg("Failed to store exchanged credential")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save access token")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Token exchange successful and access token saved.",
		"item_id": itemID,
	})
}

// ListTransactions handles GET /plaid/transactions
func (h *PlaidHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := userID(r)

	cred, err := h.store.GetCredential(ctx, uid)
	if errors.Is(err, store.ErrNotLinked) {
		middleware.WriteError(w, http.StatusInternalServerError, "No linked bank account. Exchange a public token first.")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("Failed to load credential")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load linked account")
		return
	}

	start, end := plaidclient.TrailingWindow(time.Now(), plaidclient.TransactionWindowDays)

	txs, err := h.plaid.FetchTransactions(ctx, cred.AccessToken, start, end)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("Failed to fetch transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Plaid Transactions error: "+err.Error())
		return
	}

	enriched := h.enricher.Enrich(ctx, txs)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Transactions fetched and categorized successfully.",
		"transactions": enriched,
	})
}

// AdviceHandler handles free-text advice queries.
type AdviceHandler struct {
	adviser Adviser
	log     zerolog.Logger
}

// NewAdviceHandler creates a new advice handler.
func NewAdviceHandler(adviser Adviser, log zerolog.Logger) *AdviceHandler {
	return &AdviceHandler{adviser: adviser, log: log}
}

// GetAdvice handles POST /gemini/advice
func (h *AdviceHandler) GetAdvice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == "" {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "query is required")
		return
	}

	advice, err := h.adviser.Advise(ctx, req.Query)
	if err != nil {
		h.log.Error().Err(err).Msg("Advice query failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Gemini API Error: "+err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"advice": advice,
	})
}
