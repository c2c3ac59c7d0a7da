package pay

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"cropconnect/db"
	"cropconnect/globals"
	"cropconnect/models"
	"cropconnect/utils"
)

// Service owns gateway orders, signature checks and the ledger.
type Service struct {
	gateway Gateway
	orders  GatewayOrders
	ledger  Ledger
}

func NewService(gateway Gateway, orders GatewayOrders, ledger Ledger) *Service {
	return &Service{gateway: gateway, orders: orders, ledger: ledger}
}

// Claim describes what a gateway payment is being spent on.
type Claim struct {
	UserID  string
	Purpose models.ReferenceType
	// ReferenceID is the booking the gateway order was opened for. Market
	// orders open theirs before the order exists, so it is empty.
	ReferenceID string
	// UsedBy is the record the payment settles.
	UsedBy string
	Amount float64
}

// Confirm checks a checkout result and consumes its gateway order. The order
// must exist, match every field of c and be signed by the gateway. A gateway
// order is consumed by one record only.
func (s *Service) Confirm(ctx context.Context, c Claim, v models.PaymentVerification) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if !s.gateway.VerifySignature(v.OrderID, v.PaymentID, v.Signature) {
		log.Printf("[pay] signature mismatch order=%s payment=%s", v.OrderID, v.PaymentID)
		return ErrSignatureMismatch
	}
	order, err := s.orders.Get(ctx, v.OrderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrUnknownGatewayOrder
		}
		return err
	}
	if order.UserID != c.UserID || order.Purpose != c.Purpose || order.ReferenceID != c.ReferenceID {
		log.Printf("[pay] order %s opened for %s/%s, claimed for %s/%s", v.OrderID, order.Purpose, order.ReferenceID, c.Purpose, c.ReferenceID)
		return ErrUnknownGatewayOrder
	}
	if order.Amount != models.ToPaise(c.Amount) {
		log.Printf("[pay] amount mismatch order=%s paid=%d expected=%d", v.OrderID, order.Amount, models.ToPaise(c.Amount))
		return ErrAmountMismatch
	}
	if err := s.orders.Consume(ctx, v.OrderID, c.UsedBy); err != nil {
		if errors.Is(err, ErrPaymentUsed) {
			log.Printf("[pay] order %s already used, rejected for %s", v.OrderID, c.UsedBy)
		}
		return err
	}
	return nil
}

// Release frees a consumed gateway order after the settling write failed.
func (s *Service) Release(ctx context.Context, orderID, usedBy string) {
	if err := s.orders.Release(context.WithoutCancel(ctx), orderID, usedBy); err != nil {
		log.Printf("[pay] release gateway order %s: %v", orderID, err)
	}
}

// Record appends a successful ledger entry. Failures are logged, never returned,
// because the payment itself has already happened.
func (s *Service) Record(ctx context.Context, txn models.Transaction) {
	if txn.TransactionID == "" {
		txn.TransactionID = utils.GetUUID()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	if txn.Currency == "" {
		txn.Currency = globals.Currency
	}
	if txn.Status == "" {
		txn.Status = models.TxnSuccess
	}
	if err := s.ledger.Record(context.WithoutCancel(ctx), txn); err != nil {
		log.Printf("[pay] ledger record %s/%s: %v", txn.ReferenceType, txn.ReferenceID, err)
	}
}

func (s *Service) Transactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	return s.ledger.ForUser(ctx, userID)
}

// CreateGatewayOrder creates a payment order for the amount in rupees.
func (s *Service) CreateGatewayOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	var in struct {
		Amount      float64              `json:"amount"`
		Purpose     models.ReferenceType `json:"purpose"`
		ReferenceID string               `json:"referenceId"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	paise := models.ToPaise(in.Amount)
	if paise < 100 {
		utils.RespondWithError(w, http.StatusBadRequest, "amount must be at least 1 rupee")
		return
	}
	if in.Purpose == "" {
		in.Purpose = models.RefOrder
	}
	if in.Purpose != models.RefOrder && in.Purpose != models.RefBooking {
		utils.RespondWithError(w, http.StatusBadRequest, "purpose must be order or booking")
		return
	}
	if in.Purpose == models.RefBooking && in.ReferenceID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "referenceId is required for a booking payment")
		return
	}
	if in.Purpose == models.RefOrder {
		in.ReferenceID = ""
	}

	receipt := "rcpt_" + utils.GenerateRandomString(12)
	created, err := s.gateway.CreateOrder(ctx, paise, receipt)
	if err != nil {
		log.Printf("[pay] create gateway order: %v", err)
		utils.RespondWithError(w, http.StatusBadGateway, "Failed to create payment order")
		return
	}

	record := models.GatewayOrder{
		ID:          created.ID,
		Purpose:     in.Purpose,
		ReferenceID: in.ReferenceID,
		UserID:      utils.GetUserIDFromRequest(r),
		Amount:      created.Amount,
		Currency:    created.Currency,
		Receipt:     receipt,
		CreatedAt:   time.Now(),
	}
	if err := s.orders.Save(ctx, record); err != nil {
		log.Printf("[pay] save gateway order %s: %v", created.ID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create payment order")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"key":     s.gateway.KeyID(),
		"order": utils.M{
			"id":       created.ID,
			"amount":   created.Amount,
			"currency": created.Currency,
		},
	})
}

func (s *Service) ListTransactions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	txns, err := s.Transactions(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		log.Printf("[pay] list transactions: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch transactions")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "transactions": txns})
}

// PaymentError maps Confirm failures onto a status and message.
func PaymentError(err error) (int, string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, ErrSignatureMismatch):
		return http.StatusBadRequest, "Payment verification failed"
	case errors.Is(err, ErrAmountMismatch):
		return http.StatusBadRequest, "Paid amount does not match the total"
	case errors.Is(err, ErrUnknownGatewayOrder):
		return http.StatusBadRequest, "Unknown payment order"
	case errors.Is(err, ErrPaymentUsed):
		return http.StatusConflict, "This payment was already used"
	}
	return http.StatusInternalServerError, "Payment verification failed"
}
