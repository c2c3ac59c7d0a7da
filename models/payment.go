package models

import "time"

type ReferenceType string

const (
	RefBooking ReferenceType = "booking"
	RefOrder   ReferenceType = "order"
)

type Category string

const (
	CategoryTractor Category = "tractor"
	CategoryWorker  Category = "worker"
	CategoryMarket  Category = "market"
)

// CategoryOf maps a service kind onto its ledger category.
func CategoryOf(kind ServiceKind) Category {
	if kind == ServiceTractor {
		return CategoryTractor
	}
	return CategoryWorker
}

type TxnMethod string

const (
	MethodRazorpay TxnMethod = "razorpay"
	MethodCash     TxnMethod = "cash"
)

type TxnStatus string

const (
	TxnSuccess TxnStatus = "success"
	TxnFailed  TxnStatus = "failed"
)

// Transaction is one ledger entry recording money moving from payer to payee.
type Transaction struct {
	TransactionID    string        `json:"transactionId" bson:"transactionId"`
	PayerID          string        `json:"payerId" bson:"payerId"`
	PayeeID          string        `json:"payeeId" bson:"payeeId"`
	ReferenceType    ReferenceType `json:"referenceType" bson:"referenceType"`
	ReferenceID      string        `json:"referenceId" bson:"referenceId"`
	Category         Category      `json:"category" bson:"category"`
	Amount           float64       `json:"amount" bson:"amount"`
	Currency         string        `json:"currency" bson:"currency"`
	Method           TxnMethod     `json:"method" bson:"method"`
	Status           TxnStatus     `json:"status" bson:"status"`
	GatewayPaymentID string        `json:"gatewayPaymentId,omitempty" bson:"gatewayPaymentId,omitempty"`
	Description      string        `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt        time.Time     `json:"createdAt" bson:"createdAt"`
}

// GatewayOrder is the payment order created with the gateway before collection.
type GatewayOrder struct {
	ID          string        `json:"id" bson:"id"`
	Purpose     ReferenceType `json:"purpose" bson:"purpose"`
	ReferenceID string        `json:"referenceId,omitempty" bson:"referenceId,omitempty"`
	UserID      string        `json:"userId" bson:"userId"`
	Amount      int64         `json:"amount" bson:"amount"`
	Currency    string        `json:"currency" bson:"currency"`
	Receipt     string        `json:"receipt" bson:"receipt"`
	// UsedBy is the booking or order the payment settled; empty until consumed.
	UsedBy    string    `json:"usedBy,omitempty" bson:"usedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// PaymentVerification carries the three identifiers returned by the checkout widget.
type PaymentVerification struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func (p PaymentVerification) Validate() error {
	switch {
	case isBlank(p.OrderID):
		return FieldError("razorpay_order_id", "is required")
	case isBlank(p.PaymentID):
		return FieldError("razorpay_payment_id", "is required")
	case isBlank(p.Signature):
		return FieldError("razorpay_signature", "is required")
	}
	return nil
}

// IdempotencyRecord stores the outcome of a mutation sent with an Idempotency-Key.
// Status is zero while the first request is still running.
type IdempotencyRecord struct {
	Key         string    `bson:"key"`
	Method      string    `bson:"method"`
	Path        string    `bson:"path"`
	UserID      string    `bson:"userId"`
	RequestHash string    `bson:"requestHash"`
	Status      int       `bson:"status,omitempty"`
	Body        []byte    `bson:"body,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
	ExpiresAt   time.Time `bson:"expiresAt"`
}
