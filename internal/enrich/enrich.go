package enrich

import (
	"context"

	"github.com/harisshahh/PocketSage/internal/plaidclient"
	"golang.org/x/sync/errgroup"
)

// Classifier assigns a category label to a raw transaction description.
// Implementations must not fail: any upstream problem maps to a sentinel
// label, so enrichment always produces a complete result.
type Classifier interface {
	Classify(ctx context.Context, description string) string
}

// Transaction is a fetched transaction augmented with the model-derived
// category. Ephemeral: built per request, never persisted.
type Transaction struct {
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	Name          string  `json:"name"`
	CategoryPlaid string  `json:"category_plaid"`
	CategoryNLP   string  `json:"category_nlp"`
	PlaidID       string  `json:"plaid_id"`
}

// Enricher classifies fetched transactions with at most limit concurrent
// model calls. Limit 1 keeps classification strictly sequential.
type Enricher struct {
	classifier Classifier
	limit      int
}

// New creates an Enricher. A limit below 1 is treated as 1.
func New(classifier Classifier, limit int) *Enricher {
	if limit < 1 {
		limit = 1
	}
	return &Enricher{classifier: classifier, limit: limit}
}

// Enrich classifies every transaction and returns the enriched list in the
// same order and with the same count as the input. Results are written by
// index, so ordering holds regardless of the concurrency limit.
func (e *Enricher) Enrich(ctx context.Context, txs []plaidclient.Transaction) []Transaction {
	out := make([]Transaction, len(txs))

	var g errgroup.Group
	g.SetLimit(e.limit)

	for i, tx := range txs {
		i, tx := i, tx
		g.Go(func() error {
			out[i] = Transaction{
				Amount:        tx.Amount,
				Date:          tx.Date,
				Name:          tx.Name,
				CategoryPlaid: tx.PrimaryCategory(),
				CategoryNLP:   e.classifier.Classify(ctx, tx.Name),
				PlaidID:       tx.PlaidID,
			}
			return nil
		})
	}

	// Classification never fails; Wait only synchronizes the workers.
	_ = g.Wait()

	return out
}
