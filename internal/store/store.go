package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore collection names, unchanged from the original deployment so
// existing documents remain readable.
const (
	transactionsCollection = "transactions"
	tokensCollection       = "plaid_tokens"
)

// ErrNotLinked is returned by GetCredential when the user has never
// completed a token exchange. Storage failures are reported separately.
var ErrNotLinked = errors.New("no linked credential for user")

// ManualTransaction is a user-entered transaction. Immutable once stored;
// there is no update or delete path.
type ManualTransaction struct {
	Amount    float64   `firestore:"amount"`
	Date      string    `firestore:"date"` // YYYY-MM-DD
	Category  string    `firestore:"category"`
	Name      string    `firestore:"name"`
	UserID    string    `firestore:"user_id"`
	CreatedAt time.Time `firestore:"created_at,serverTimestamp"`
}

// Credential is the single durable Plaid credential per user. Each
// successful exchange overwrites the whole document; no history is kept.
type Credential struct {
	AccessToken     string    `firestore:"access_token"`
	ItemID          string    `firestore:"item_id"`
	LastPublicToken string    `firestore:"last_public_token"`
	CreatedAt       time.Time `firestore:"created_at,serverTimestamp"`
}

// Store persists application state in Firestore.
type Store struct {
	client *firestore.Client
	log    zerolog.Logger
}

// New creates a Firestore-backed store for the given project.
func New(ctx context.Context, projectID string, log zerolog.Logger, opts ...option.ClientOption) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("store.New: project ID is required")
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("store.New: firestore client: %w", err)
	}

	return &Store{client: client, log: log}, nil
}

// Close releases the underlying Firestore client.
func (s *Store) Close() error {
	return s.client.Close()
}

// SaveManualTransaction writes a new transaction document and returns its
// generated ID. The creation timestamp is assigned by the Firestore server.
func (s *Store) SaveManualTransaction(ctx context.Context, userID string, tx ManualTransaction) (string, error) {
	tx.UserID = userID

	doc := s.client.Collection(transactionsCollection).Doc(uuid.NewString())
	if _, err := doc.Set(ctx, tx); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to save manual transaction")
		return "", fmt.Errorf("SaveManualTransaction: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("transaction_id", doc.ID).
		Str("name", tx.Name).
		Msg("Manual transaction saved")

	return doc.ID, nil
}

// SaveCredential upserts the single credential document for the user.
// The write is a full overwrite: a second exchange replaces, never appends.
func (s *Store) SaveCredential(ctx context.Context, userID, publicToken, accessToken, itemID string) error {
	cred := Credential{
		AccessToken:     accessToken,
		ItemID:          itemID,
		LastPublicToken: publicToken,
	}

	if _, err := s.client.Collection(tokensCollection).Doc(userID).Set(ctx, cred); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to save Plaid credential")
		return fmt.Errorf("SaveCredential: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("item_id", itemID).
		Msg("Plaid credential saved")

	return nil
}

// GetCredential returns the stored credential for the user. A missing
// document yields ErrNotLinked; any other failure is a storage error.
func (s *Store) GetCredential(ctx context.Context, userID string) (Credential, error) {
	snap, err := s.client.Collection(tokensCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Credential{}, ErrNotLinked
	}
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to read Plaid credential")
		return Credential{}, fmt.Errorf("GetCredential: %w", err)
	}

	var cred Credential
	if err := snap.DataTo(&cred); err != nil {
		return Credential{}, fmt.Errorf("GetCredential: decoding document: %w", err)
	}

	return cred, nil
}
