package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"finsight/internal/access"
	"finsight/internal/cache"
	"finsight/internal/core"
	"finsight/internal/log"
)

// TransactionStore is the part of the ledger the service writes to.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) error
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error)
	SetTransactionCategory(ctx context.Context, id string, categoryID *int64) error
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// Classifier proposes categories and receives corrections.
type Classifier interface {
	Classify(ctx context.Context, description string, typ core.TransactionType) *core.Prediction
	SendFeedback(ctx context.Context, description, correctSlug string)
}

// TransactionDraft is the input of Create.
type TransactionDraft struct {
	UserID       string
	Amount       core.Money
	Type         core.TransactionType
	Date         time.Time
	Description  string
	CategoryID   *int64
	IncomeSource string
}

const (
	categoryCacheSize = 64
	categoryCacheTTL  = 10 * time.Minute
)

// TransactionService records ledger entries and runs the classifier
// suggestion and feedback workflow around them.
type TransactionService struct {
	store      TransactionStore
	classifier Classifier
	categories *cache.LRUCache[core.Category]
	now        func() time.Time
	logger     *log.Logger
}

func NewTransactionService(store TransactionStore, classifier Classifier, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionService{
		store:      store,
		classifier: classifier,
		categories: cache.NewLRUCache[core.Category](categoryCacheSize, categoryCacheTTL),
		now:        time.Now,
		logger:     logger.WithComponent(log.ComponentLedger),
	}
}

// CategoryCache exposes the lookup cache so it can be registered for
// periodic cleanup.
func (s *TransactionService) CategoryCache() *cache.LRUCache[core.Category] {
	return s.categories
}

// Create validates and stores a transaction. Income is filed under the
// income category with full confidence; expenses get the classifier's
// suggestion when it answers in time. A missing suggestion never fails the
// call.
func (s *TransactionService) Create(ctx context.Context, req core.Requester, d TransactionDraft) (core.Transaction, error) {
	if err := access.Scope(req, d.UserID); err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		ID:           uuid.NewString(),
		UserID:       d.UserID,
		Amount:       d.Amount,
		Type:         d.Type,
		Date:         d.Date.UTC().Truncate(time.Second),
		Description:  d.Description,
		CategoryID:   d.CategoryID,
		IncomeSource: d.IncomeSource,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.Transaction{}, core.Validationf("%v", err)
	}
	if t.CategoryID != nil {
		if _, err := s.categoryByID(ctx, *t.CategoryID); err != nil {
			return core.Transaction{}, err
		}
	}

	if p := s.suggest(ctx, t); p != nil {
		if c, err := s.categoryBySlug(ctx, p.CategorySlug); err == nil {
			confidence := p.Confidence
			t.SuggestedCategoryID = &c.ID
			t.CategoryConfidence = &confidence
			if t.CategoryID == nil {
				t.CategoryID = &c.ID
			}
		} else {
			s.logger.Warn("Classifier suggested an unknown category",
				log.FieldCategory, p.CategorySlug,
				log.FieldError, err)
		}
	}

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.logger.Info("Transaction recorded",
		log.FieldTxID, t.ID,
		log.FieldUserID, t.UserID,
		log.FieldAmountCents, t.Amount.Cents,
		"suggested", t.SuggestedCategoryID != nil)
	return t, nil
}

func (s *TransactionService) suggest(ctx context.Context, t core.Transaction) *core.Prediction {
	if t.Type == core.Income {
		return &core.Prediction{CategorySlug: core.IncomeSlug, Confidence: 1}
	}
	if s.classifier == nil {
		return nil
	}
	return s.classifier.Classify(ctx, t.Description, t.Type)
}

// Recategorize sets the user's chosen category. When it differs from the
// classifier's suggestion the correction is sent back as feedback without
// waiting for it.
func (s *TransactionService) Recategorize(ctx context.Context, req core.Requester, id, slug string) (core.Transaction, error) {
	t, err := access.Authorize(ctx, req, "transaction", id, s.store.GetTransaction)
	if err != nil {
		return core.Transaction{}, err
	}

	c, err := s.categoryBySlug(ctx, slug)
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.SetTransactionCategory(ctx, t.ID, &c.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, core.NotFoundf("transaction %s not found", id)
		}
		return core.Transaction{}, fmt.Errorf("recategorize transaction: %w", err)
	}
	t.CategoryID = &c.ID

	corrected := t.SuggestedCategoryID == nil || *t.SuggestedCategoryID != c.ID
	if corrected && t.Type == core.Expense && s.classifier != nil {
		s.classifier.SendFeedback(ctx, t.Description, c.Slug)
	}

	s.logger.Info("Transaction recategorized",
		log.FieldTxID, t.ID,
		log.FieldCategory, c.Slug,
		"feedback", corrected && t.Type == core.Expense)
	return t, nil
}

// List returns the transactions of userID dated within [from, to].
func (s *TransactionService) List(ctx context.Context, req core.Requester, userID string, from, to time.Time) ([]core.Transaction, error) {
	if err := access.Scope(req, userID); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, core.Validationf("to must not be before from")
	}
	txs, err := s.store.ListTransactions(ctx, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Categories returns every category.
func (s *TransactionService) Categories(ctx context.Context) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	for _, c := range cats {
		s.categories.Set(c.Slug, c)
		s.categories.Set(idKey(c.ID), c)
	}
	return cats, nil
}

func (s *TransactionService) categoryBySlug(ctx context.Context, slug string) (core.Category, error) {
	c, err := s.categories.GetOrLoad(ctx, slug, func(ctx context.Context) (core.Category, error) {
		return s.store.GetCategoryBySlug(ctx, slug)
	})
	if errors.Is(err, core.ErrNotFound) {
		return core.Category{}, core.Validationf("unknown category %q", slug)
	}
	return c, err
}

func (s *TransactionService) categoryByID(ctx context.Context, id int64) (core.Category, error) {
	c, err := s.categories.GetOrLoad(ctx, idKey(id), func(ctx context.Context) (core.Category, error) {
		return s.store.GetCategory(ctx, id)
	})
	if errors.Is(err, core.ErrNotFound) {
		return core.Category{}, core.Validationf("category %d does not exist", id)
	}
	return c, err
}

func idKey(id int64) string {
	return "#" + strconv.FormatInt(id, 10)
}
