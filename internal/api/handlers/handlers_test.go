package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/harisshahh/PocketSage/internal/enrich"
	"github.com/harisshahh/PocketSage/internal/plaidclient"
	"github.com/harisshahh/PocketSage/internal/store"
	"github.com/rs/zerolog"
)

// mockStore is a hand-rolled mock for the Store interface.
type mockStore struct {
	saveTransactionFunc func(ctx context.Context, userID string, tx store.ManualTransaction) (string, error)
	saveCredentialFunc  func(ctx context.Context, userID, publicToken, accessToken, itemID string) error
	getCredentialFunc   func(ctx context.Context, userID string) (store.Credential, error)

	savedCredentials []store.Credential
	saveCalls        int
}

func (m *mockStore) SaveManualTransaction(ctx context.Context, userID string, tx store.ManualTransaction) (string, error) {
	m.saveCalls++
	if m.saveTransactionFunc != nil {
		return m.saveTransactionFunc(ctx, userID, tx)
	}
	return "generated-id-1", nil
}

func (m *mockStore) SaveCredential(ctx context.Context, userID, publicToken, accessToken, itemID string) error {
	if m.saveCredentialFunc != nil {
		return m.saveCredentialFunc(ctx, userID, publicToken, accessToken, itemID)
	}
	// Overwrite semantics: one credential per user identity.
	m.savedCredentials = []store.Credential{{
		AccessToken:     accessToken,
		ItemID:          itemID,
		LastPublicToken: publicToken,
	}}
	return nil
}

func (m *mockStore) GetCredential(ctx context.Context, userID string) (store.Credential, error) {
	if m.getCredentialFunc != nil {
		return m.getCredentialFunc(ctx, userID)
	}
	return store.Credential{}, store.ErrNotLinked
}

// mockAggregator is a hand-rolled mock for the Aggregator interface.
type mockAggregator struct {
	createLinkTokenFunc   func(ctx context.Context, userID string) (string, error)
	exchangeFunc          func(ctx context.Context, publicToken string) (string, string, error)
	fetchTransactionsFunc func(ctx context.Context, accessToken string, start, end civil.Date) ([]plaidclient.Transaction, error)
}

func (m *mockAggregator) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	if m.createLinkTokenFunc != nil {
		return m.createLinkTokenFunc(ctx, userID)
	}
	return "link-sandbox-token", nil
}

func (m *mockAggregator) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	if m.exchangeFunc != nil {
		return m.exchangeFunc(ctx, publicToken)
	}
	return "access-sandbox-token", "item-1", nil
}

func (m *mockAggregator) FetchTransactions(ctx context.Context, accessToken string, start, end civil.Date) ([]plaidclient.Transaction, error) {
	if m.fetchTransactionsFunc != nil {
		return m.fetchTransactionsFunc(ctx, accessToken, start, end)
	}
	return nil, nil
}

// mockAdviser is a hand-rolled mock for the Adviser interface.
type mockAdviser struct {
	adviseFunc func(ctx context.Context, query string) (string, error)
}

func (m *mockAdviser) Advise(ctx context.Context, query string) (string, error) {
	if m.adviseFunc != nil {
		return m.adviseFunc(ctx, query)
	}
	return "Spend less than you earn.", nil
}

// stubClassifier labels everything identically; used with the real Enricher.
type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, description string) string {
	return "Miscellaneous"
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestRoot(t *testing.T) {
	rec := httptest.NewRecorder()
	Root(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "PocketSage API is running." {
		t.Errorf("message = %v", body["message"])
	}
}

func TestCreateTransaction_Success(t *testing.T) {
	st := &mockStore{}
	h := NewTransactionsHandler(st, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/transactions",
		strings.NewReader(`{"amount": -42.50, "date": "2026-03-01", "category": "Groceries", "name": "TESCO"}`))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	if id, _ := body["id"].(string); id == "" {
		t.Error("response must contain a non-empty generated id")
	}
	if st.saveCalls != 1 {
		t.Errorf("store called %d times, want 1", st.saveCalls)
	}
}

func TestCreateTransaction_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed JSON", `{"amount":`, http.StatusBadRequest},
		{"missing amount", `{"date": "2026-03-01", "category": "Rent", "name": "LANDLORD"}`, http.StatusUnprocessableEntity},
		{"missing name", `{"amount": 10, "date": "2026-03-01", "category": "Rent"}`, http.StatusUnprocessableEntity},
		{"bad date format", `{"amount": 10, "date": "03/01/2026", "category": "Rent", "name": "LANDLORD"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &mockStore{}
			h := NewTransactionsHandler(st, zerolog.Nop())

			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Create(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if st.saveCalls != 0 {
				t.Errorf("store must not be called on invalid input, got %d calls", st.saveCalls)
			}
		})
	}
}

func TestCreateTransaction_StorageFailure(t *testing.T) {
	st := &mockStore{
		saveTransactionFunc: func(ctx context.Context, userID string, tx store.ManualTransaction) (string, error) {
			return "", errors.New("firestore unavailable")
		},
	}
	h := NewTransactionsHandler(st, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/transactions",
		strings.NewReader(`{"amount": 5, "date": "2026-03-01", "category": "Income", "name": "REFUND"}`))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	// Storage failures are request failures, not success-shaped payloads.
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] == nil {
		t.Error("expected error field in response")
	}
}

func TestCreateLinkToken(t *testing.T) {
	h := NewPlaidHandler(&mockAggregator{}, &mockStore{}, enrich.New(stubClassifier{}, 1), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.CreateLinkToken(rec, httptest.NewRequest(http.MethodPost, "/plaid/create_link_token", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["link_token"] != "link-sandbox-token" {
		t.Errorf("link_token = %v", body["link_token"])
	}
}

func TestCreateLinkToken_PlaidError(t *testing.T) {
	agg := &mockAggregator{
		createLinkTokenFunc: func(ctx context.Context, userID string) (string, error) {
			return "", errors.New("plaid: INVALID_API_KEYS")
		},
	}
	h := NewPlaidHandler(agg, &mockStore{}, enrich.New(stubClassifier{}, 1), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.CreateLinkToken(rec, httptest.NewRequest(http.MethodPost, "/plaid/create_link_token", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeBody(t, rec)
	if msg, _ := body["error"].(string); !strings.Contains(msg, "INVALID_API_KEYS") {
		t.Errorf("error should carry the upstream message, got %q", msg)
	}
}

func TestSetAccessToken_StoresExchangedCredential(t *testing.T) {
	st := &mockStore{}
	agg := &mockAggregator{
		exchangeFunc: func(ctx context.Context, publicToken string) (string, string, error) {
			return "access-" + publicToken, "item-" + publicToken, nil
		},
	}
	h := NewPlaidHandler(agg, st, enrich.New(stubClassifier{}, 1), zerolog.Nop())

	exchange := func(publicToken string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/plaid/set_access_token",
			strings.NewReader(`{"public_token": "`+publicToken+`"}`))
		rec := httptest.NewRecorder()
		h.SetAccessToken(rec, req)
		return rec
	}

	rec := exchange("public-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body)
	}
	if body := decodeBody(t, rec); body["item_id"] != "item-public-a" {
		t.Errorf("item_id = %v", body["item_id"])
	}

	// A second exchange replaces, never appends.
	exchange("public-b")
	if len(st.savedCredentials) != 1 {
		t.Fatalf("stored %d credentials, want exactly 1", len(st.savedCredentials))
	}
	if got := st.savedCredentials[0].AccessToken; got != "access-public-b" {
		t.Errorf("stored access token = %q, want the latest exchange result", got)
	}
}

func TestSetAccessToken_SaveFailureFailsRequest(t *testing.T) {
	st := &mockStore{
		saveCredentialFunc: func(ctx context.Context, userID, publicToken, accessToken, itemID string) error {
			return errors.New("firestore write failed")
		},
	}
	h := NewPlaidHandler(&mockAggregator{}, st, enrich.New(stubClassifier{}, 1), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/plaid/set_access_token",
		strings.NewReader(`{"public_token": "public-x"}`))
	rec := httptest.NewRecorder()

	h.SetAccessToken(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestSetAccessToken_MissingToken(t *testing.T) {
	h := NewPlaidHandler(&mockAggregator{}, &mockStore{}, enrich.New(stubClassifier{}, 1), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/plaid/set_access_token", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.SetAccessToken(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestListTransactions_NoLinkedAccount(t *testing.T) {
	h := NewPlaidHandler(&mockAggregator{}, &mockStore{}, enrich.New(stubClassifier{}, 1), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/plaid/transactions", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeBody(t, rec)
	if msg, _ := body["error"].(string); !strings.Contains(msg, "No linked bank account") {
		t.Errorf("error = %q, want no-linked-account message", msg)
	}
}

func TestListTransactions_EnrichedInOrder(t *testing.T) {
	st := &mockStore{
		getCredentialFunc: func(ctx context.Context, userID string) (store.Credential, error) {
			return store.Credential{AccessToken: "access-token"}, nil
		},
	}
	agg := &mockAggregator{
		fetchTransactionsFunc: func(ctx context.Context, accessToken string, start, end civil.Date) ([]plaidclient.Transaction, error) {
			if accessToken != "access-token" {
				t.Errorf("fetch used access token %q", accessToken)
			}
			return []plaidclient.Transaction{
				{PlaidID: "p1", Name: "STARBUCKS #4567", Amount: 4.75, Date: "2026-03-02", Categories: []string{"Food and Drink"}},
				{PlaidID: "p2", Name: "TFL TRAVEL", Amount: 2.80, Date: "2026-03-03"},
			}, nil
		},
	}
	h := NewPlaidHandler(agg, st, enrich.New(stubClassifier{}, 1), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/plaid/transactions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body)
	}

	body := decodeBody(t, rec)
	txs, ok := body["transactions"].([]interface{})
	if !ok || len(txs) != 2 {
		t.Fatalf("transactions = %v, want 2 entries", body["transactions"])
	}

	first := txs[0].(map[string]interface{})
	if first["plaid_id"] != "p1" {
		t.Errorf("order not preserved, first = %v", first["plaid_id"])
	}
	if first["category_plaid"] != "Food and Drink" {
		t.Errorf("category_plaid = %v", first["category_plaid"])
	}
	if first["category_nlp"] != "Miscellaneous" {
		t.Errorf("category_nlp = %v", first["category_nlp"])
	}

	second := txs[1].(map[string]interface{})
	if second["category_plaid"] != plaidclient.UncategorizedPlaid {
		t.Errorf("empty Plaid category should map to sentinel, got %v", second["category_plaid"])
	}
}

func TestGetAdvice_Success(t *testing.T) {
	h := NewAdviceHandler(&mockAdviser{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/gemini/advice",
		strings.NewReader(`{"query": "should I pay off debt first?"}`))
	rec := httptest.NewRecorder()

	h.GetAdvice(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["advice"] != "Spend less than you earn." {
		t.Errorf("advice = %v", body["advice"])
	}
}

func TestGetAdvice_DegradedModeIsNotAnError(t *testing.T) {
	adviser := &mockAdviser{
		adviseFunc: func(ctx context.Context, query string) (string, error) {
			return "AI assistance is currently not available.", nil
		},
	}
	h := NewAdviceHandler(adviser, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/gemini/advice", strings.NewReader(`{"query": "hello"}`))
	rec := httptest.NewRecorder()

	h.GetAdvice(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("degraded mode must be HTTP 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["advice"] != "AI assistance is currently not available." {
		t.Errorf("advice = %v", body["advice"])
	}
}

func TestGetAdvice_UpstreamFailure(t *testing.T) {
	adviser := &mockAdviser{
		adviseFunc: func(ctx context.Context, query string) (string, error) {
			return "", errors.New("model overloaded")
		},
	}
	h := NewAdviceHandler(adviser, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/gemini/advice", strings.NewReader(`{"query": "hello"}`))
	rec := httptest.NewRecorder()

	h.GetAdvice(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestGetAdvice_EmptyQuery(t *testing.T) {
	h := NewAdviceHandler(&mockAdviser{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/gemini/advice", strings.NewReader(`{"query": ""}`))
	rec := httptest.NewRecorder()

	h.GetAdvice(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestUserID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := userID(req); got != DefaultUserID {
		t.Errorf("userID = %q, want default %q", got, DefaultUserID)
	}

	req.Header.Set("X-User-ID", "alice")
	if got := userID(req); got != "alice" {
		t.Errorf("userID = %q, want alice", got)
	}
}
