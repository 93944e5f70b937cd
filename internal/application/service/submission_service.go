package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/garyjia/approval-workflow/internal/application/dispatcher"
	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/event"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// MaxReceiptBytes caps a single receipt upload
const MaxReceiptBytes = 10 << 20

// MaxAmount bounds a single request's monetary amount
const MaxAmount = 1e12

// finiteAmount rejects NaN and infinities, which form binding accepts
var finiteAmount = validation.By(func(value interface{}) error {
	v, ok := value.(float64)
	if ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return errors.New("must be a finite number")
	}
	return nil
})

// ExpenseInput is the submission form for an expense claim
type ExpenseInput struct {
	Title       string  `json:"title" form:"title"`
	Amount      float64 `json:"amount" form:"amount"`
	Category    string  `json:"category" form:"category"`
	Description string  `json:"description" form:"description"`
}

// Validate checks the expense form
func (in ExpenseInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Amount, finiteAmount, validation.Min(0.0), validation.Max(MaxAmount)),
		validation.Field(&in.Category, validation.In(entity.Categories...)),
		validation.Field(&in.Description, validation.Length(0, 2000)),
	)
}

// PurchaseOrderInput is the submission form for a purchase order
type PurchaseOrderInput struct {
	VendorName  string  `json:"vendor_name"`
	ItemDetails string  `json:"item_details"`
	TotalCost   float64 `json:"total_cost"`
}

// Validate checks the purchase order form
func (in PurchaseOrderInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.VendorName, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.ItemDetails, validation.Required),
		validation.Field(&in.TotalCost, finiteAmount, validation.Min(0.0), validation.Max(MaxAmount)),
	)
}

// Receipt is an uploaded file attached to an expense claim
type Receipt struct {
	Name        string
	ContentType string
	Content     []byte
}

// SubmissionService creates new requests in the initial approval state
type SubmissionService interface {
	SubmitExpense(ctx context.Context, actor entity.Actor, in ExpenseInput, receipt *Receipt) (*entity.ExpenseClaim, error)
	SubmitPurchaseOrder(ctx context.Context, actor entity.Actor, in PurchaseOrderInput) (*entity.PurchaseOrder, error)
}

type submissionServiceImpl struct {
	requests   port.RequestRepository
	profiles   port.ProfileRepository
	history    port.HistoryRepository
	txManager  port.TransactionManager
	store      port.ObjectStore
	inspector  port.ReceiptInspector
	dispatcher dispatcher.Dispatcher
	metrics    port.Metrics
	logger     Logger
	now        func() time.Time
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(
	requests port.RequestRepository,
	profiles port.ProfileRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	store port.ObjectStore,
	inspector port.ReceiptInspector,
	d dispatcher.Dispatcher,
	metrics port.Metrics,
	logger Logger,
) SubmissionService {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &submissionServiceImpl{
		requests:   requests,
		profiles:   profiles,
		history:    history,
		txManager:  txManager,
		store:      store,
		inspector:  inspector,
		dispatcher: d,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *submissionServiceImpl) SubmitExpense(ctx context.Context, actor entity.Actor, in ExpenseInput, receipt *Receipt) (*entity.ExpenseClaim, error) {
	profile, err := requireProfile(ctx, s.profiles, actor)
	if err != nil {
		return nil, err
	}
	if in.Category == "" {
		in.Category = entity.CategoryGeneral
	}
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	claim := &entity.ExpenseClaim{
		ID:          uuid.NewString(),
		UserID:      actor.ID,
		Title:       strings.TrimSpace(in.Title),
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Status:      domainwf.InitialState,
		CreatedAt:   s.now(),
	}

	var receiptKey string
	if receipt != nil && len(receipt.Content) > 0 {
		url, key, err := s.storeReceipt(ctx, actor.ID, receipt)
		if err != nil {
			return nil, err
		}
		claim.ReceiptURL = url
		receiptKey = key
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requests.CreateExpense(txCtx, claim); err != nil {
			return err
		}
		return s.recordSubmission(txCtx, entity.KindExpense, claim.ID, profile)
	})
	if err != nil {
		if receiptKey != "" {
			// the uploaded object would be orphaned
			if derr := s.store.Delete(ctx, receiptKey); derr != nil {
				s.logger.Error("Failed to remove orphaned receipt", "key", receiptKey, "error", derr)
			}
		}
		return nil, fmt.Errorf("%w: create expense: %v", ErrPersistence, err)
	}

	s.logger.Info("Expense submitted", "id", claim.ID, "user_id", actor.ID, "amount", claim.Amount)
	s.announce(ctx, claim)
	return claim, nil
}

func (s *submissionServiceImpl) SubmitPurchaseOrder(ctx context.Context, actor entity.Actor, in PurchaseOrderInput) (*entity.PurchaseOrder, error) {
	profile, err := requireProfile(ctx, s.profiles, actor)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	po := &entity.PurchaseOrder{
		ID:          uuid.NewString(),
		RequesterID: actor.ID,
		VendorName:  strings.TrimSpace(in.VendorName),
		ItemDetails: in.ItemDetails,
		TotalCost:   in.TotalCost,
		Status:      domainwf.InitialState,
		CreatedAt:   s.now(),
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requests.CreatePurchaseOrder(txCtx, po); err != nil {
			return err
		}
		return s.recordSubmission(txCtx, entity.KindPurchaseOrder, po.ID, profile)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create purchase order: %v", ErrPersistence, err)
	}

	s.logger.Info("Purchase order submitted", "id", po.ID, "user_id", actor.ID, "total_cost", po.TotalCost)
	s.announce(ctx, po)
	return po, nil
}

func (s *submissionServiceImpl) storeReceipt(ctx context.Context, userID string, r *Receipt) (string, string, error) {
	if len(r.Content) > MaxReceiptBytes {
		return "", "", validationError(validation.Errors{
			"receipt": validation.NewError("validation_receipt_too_large", "receipt exceeds 10MB"),
		})
	}
	if s.inspector != nil {
		if err := s.inspector.Inspect(ctx, r.Name, r.Content); err != nil {
			return "", "", validationError(validation.Errors{"receipt": err})
		}
	}

	key := ReceiptKey(userID, r.Name, s.now())
	url, err := s.store.Put(ctx, key, r.ContentType, bytes.NewReader(r.Content), int64(len(r.Content)))
	if err != nil {
		s.logger.Error("Failed to upload receipt", "key", key, "error", err)
		return "", "", fmt.Errorf("%w: upload receipt: %v", ErrPersistence, err)
	}
	return url, key, nil
}

// ReceiptKey is the object key for a receipt: receipts/<userID>/<unixMillis>_<name>
func ReceiptKey(userID, name string, at time.Time) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "receipt"
	}
	return fmt.Sprintf("receipts/%s/%d_%s", userID, at.UnixMilli(), base)
}

func (s *submissionServiceImpl) recordSubmission(ctx context.Context, kind entity.RequestKind, id string, by *entity.Profile) error {
	return s.history.Create(ctx, &entity.HistoryEntry{
		Kind:       kind,
		RequestID:  id,
		ActorID:    by.ID,
		ActorRole:  by.Role,
		Action:     entity.ActionSubmit,
		FromStatus: "",
		ToStatus:   domainwf.InitialState,
		CreatedAt:  s.now(),
	})
}

func (s *submissionServiceImpl) announce(ctx context.Context, r entity.Request) {
	s.metrics.ObserveSubmission(r.GetKind())
	if s.dispatcher == nil {
		return
	}
	owner, _ := domainwf.Owner(r.GetStatus())
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeRequestSubmitted, string(r.GetKind()), r.GetID(), r.GetSubmitterID(), map[string]interface{}{
		event.KeyToStatus:    r.GetStatus().String(),
		event.KeyAmount:      r.GetAmount(),
		event.KeySubmitterID: r.GetSubmitterID(),
		event.KeyTitle:       r.Describe(),
		event.KeyNextRole:    owner.String(),
	}))
}
