package pay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"

	"cropconnect/globals"
)

var (
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrSignatureMismatch    = errors.New("payment signature mismatch")
	ErrAmountMismatch       = errors.New("paid amount does not match")
	ErrUnknownGatewayOrder  = errors.New("unknown payment order")
	ErrPaymentUsed          = errors.New("payment already used")
)

// CreatedOrder is the gateway's view of a created payment order.
type CreatedOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status,omitempty"`
}

// Gateway creates payment orders and verifies checkout signatures.
type Gateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, receipt string) (CreatedOrder, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

// orderAPI is the slice of the Razorpay SDK the gateway uses.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway talks to the Razorpay orders API through the official SDK.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	orders    orderAPI
}

func NewRazorpayGateway(keyID, keySecret string) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		log.Printf("[pay][gateway] missing RAZORPAY_KEY_ID or RAZORPAY_KEY_SECRET")
		return nil, ErrGatewayNotConfigured
	}
	client := razorpay.NewClient(keyID, keySecret)
	log.Printf("[pay][gateway] razorpay client initialized")
	return &RazorpayGateway{keyID: keyID, keySecret: keySecret, orders: client.Order}, nil
}

func (g *RazorpayGateway) KeyID() string { return g.keyID }

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountPaise int64, receipt string) (CreatedOrder, error) {
	if err := ctx.Err(); err != nil {
		return CreatedOrder{}, err
	}
	body, err := g.orders.Create(map[string]interface{}{
		"amount":   amountPaise,
		"currency": globals.Currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		log.Printf("[pay][gateway] create order failed err=%v", err)
		return CreatedOrder{}, err
	}
	out, err := decodeOrder(body)
	if err != nil {
		return CreatedOrder{}, err
	}
	log.Printf("[pay][gateway] create order success id=%s amount=%d", out.ID, out.Amount)
	return out, nil
}

func decodeOrder(body map[string]interface{}) (CreatedOrder, error) {
	var out CreatedOrder
	out.ID, _ = body["id"].(string)
	out.Currency, _ = body["currency"].(string)
	out.Receipt, _ = body["receipt"].(string)
	out.Status, _ = body["status"].(string)
	switch v := body["amount"].(type) {
	case float64:
		out.Amount = int64(v)
	case int64:
		out.Amount = v
	case int:
		out.Amount = int64(v)
	}
	if out.ID == "" {
		return CreatedOrder{}, fmt.Errorf("gateway order response has no id")
	}
	return out, nil
}

func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verify(g.keySecret, orderID, paymentID, signature)
}

func verify(secret, orderID, paymentID, signature string) bool {
	return rzputils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, secret)
}

// MockGateway issues local order ids and signs with its own secret.
type MockGateway struct {
	Secret string
}

const mockSecret = "mock_razorpay_secret"

func NewMockGateway() *MockGateway {
	log.Printf("[pay][gateway] mock mode enabled")
	return &MockGateway{Secret: mockSecret}
}

func (m *MockGateway) KeyID() string { return "rzp_test_mock" }

func (m *MockGateway) CreateOrder(_ context.Context, amountPaise int64, receipt string) (CreatedOrder, error) {
	id := "order_mock_" + strconv.FormatInt(time.Now().UTC().UnixNano(), 36)
	log.Printf("[pay][gateway] mock create order id=%s amount=%d", id, amountPaise)
	return CreatedOrder{ID: id, Amount: amountPaise, Currency: globals.Currency, Receipt: receipt, Status: "created"}, nil
}

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return verify(m.Secret, orderID, paymentID, signature)
}

// Sign returns the signature the checkout widget would hand back.
func (m *MockGateway) Sign(orderID, paymentID string) string {
	return Sign(m.Secret, orderID, paymentID)
}

// Sign computes hex(HMAC_SHA256(secret, orderID + "|" + paymentID)), the
// value the checkout widget returns. The SDK only verifies.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewGateway picks the mock when mock is set, Razorpay otherwise.
func NewGateway(mock bool, keyID, keySecret string) (Gateway, error) {
	if mock {
		return NewMockGateway(), nil
	}
	return NewRazorpayGateway(keyID, keySecret)
}
