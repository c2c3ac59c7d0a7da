package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"cropconnect/db"
	"cropconnect/models"
	"cropconnect/mq"
	"cropconnect/pay"
	"cropconnect/rdx"
	"cropconnect/utils"
)

// Stock is the listing side of checkout.
type Stock interface {
	Get(ctx context.Context, cropID string) (models.Crop, error)
	DecrementStock(ctx context.Context, cropID string, n int) error
	RestoreStock(ctx context.Context, cropID string, n int) error
}

type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

type Payments interface {
	Confirm(ctx context.Context, c pay.Claim, v models.PaymentVerification) error
	Release(ctx context.Context, orderID, usedBy string)
	Record(ctx context.Context, txn models.Transaction)
}

type Service struct {
	orders        Store
	stock         Stock
	cart          CartClearer
	locker        Locker
	payments      Payments
	events        mq.Emitter
	receiptSecret []byte
	now           func() time.Time
}

func NewService(orders Store, stock Stock, cart CartClearer, locker Locker, payments Payments, events mq.Emitter, receiptSecret string) *Service {
	if events == nil {
		events = mq.Discard{}
	}
	return &Service{
		orders:        orders,
		stock:         stock,
		cart:          cart,
		locker:        locker,
		payments:      payments,
		events:        events,
		receiptSecret: []byte(receiptSecret),
		now:           time.Now,
	}
}

type lineInput struct {
	CropID   string `json:"cropId"`
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type checkoutInput struct {
	Items          []lineInput               `json:"items"`
	PaymentMethod  models.OrderPaymentMethod `json:"paymentMethod"`
	VehicleDetails models.VehicleDetails     `json:"vehicleDetails"`
	PickupSchedule struct {
		Date     string `json:"date"`
		TimeSlot string `json:"timeSlot"`
	} `json:"pickupSchedule"`
	PickupDate      string `json:"pickupDate"`
	DeliveryAddress string `json:"deliveryAddress"`
	models.PaymentVerification
}

// lines merges repeated crops and checks every quantity.
func (in checkoutInput) lines() ([]lineInput, error) {
	if len(in.Items) == 0 {
		return nil, models.FieldError("items", "must not be empty")
	}
	index := map[string]int{}
	var out []lineInput
	for _, it := range in.Items {
		id := utils.FirstNonEmpty(it.CropID, it.ItemID)
		if id == "" {
			return nil, models.FieldError("cropId", "is required")
		}
		if it.Quantity < 1 {
			return nil, models.FieldError("quantity", "must be at least 1")
		}
		if i, ok := index[id]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, lineInput{CropID: id, Quantity: it.Quantity})
	}
	return out, nil
}

func (in checkoutInput) pickup() models.PickupSchedule {
	return models.PickupSchedule{
		Date:     utils.ParseDate(utils.FirstNonEmpty(in.PickupSchedule.Date, in.PickupDate)),
		TimeSlot: strings.TrimSpace(in.PickupSchedule.TimeSlot),
	}
}

func respondStock(w http.ResponseWriter, serr *models.StockError) {
	utils.RespondWithErrorFields(w, http.StatusConflict, serr.Error(), utils.M{
		"availableQuantity": serr.Available,
		"cropId":            serr.CropID,
	})
}

func respondValidation(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		utils.RespondWithError(w, http.StatusBadRequest, verr.Message)
		return
	}
	utils.RespondWithError(w, http.StatusBadRequest, err.Error())
}

// priced rebuilds order lines from live listings.
func (s *Service) priced(ctx context.Context, buyerID string, lines []lineInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		crop, err := s.stock.Get(ctx, l.CropID)
		if errors.Is(err, db.ErrNotFound) {
			return nil, &models.StockError{CropID: l.CropID}
		}
		if err != nil {
			return nil, err
		}
		if crop.SellerID == buyerID {
			return nil, models.Invalid("items", "You cannot buy your own listing")
		}
		if l.Quantity > crop.QuantityAvailable {
			return nil, &models.StockError{CropID: crop.CropID, CropName: crop.CropName, Available: crop.QuantityAvailable}
		}
		items = append(items, models.OrderItem{
			CropID:    crop.CropID,
			CropName:  crop.CropName,
			SellerID:  crop.SellerID,
			Quantity:  l.Quantity,
			Unit:      crop.Unit,
			UnitPrice: crop.PricePerUnit,
			Total:     models.LineTotal(crop.PricePerUnit, l.Quantity),
		})
	}
	return items, nil
}

// reserve decrements stock for every line, undoing earlier lines on failure.
func (s *Service) reserve(ctx context.Context, items []models.OrderItem) error {
	for i, it := range items {
		if err := s.stock.DecrementStock(ctx, it.CropID, it.Quantity); err != nil {
			s.release(ctx, items[:i])
			return err
		}
	}
	return nil
}

func (s *Service) release(ctx context.Context, items []models.OrderItem) {
	ctx = context.WithoutCancel(ctx)
	for _, it := range items {
		if err := s.stock.RestoreStock(ctx, it.CropID, it.Quantity); err != nil {
			log.Printf("[orders] restore stock %s +%d: %v", it.CropID, it.Quantity, err)
		}
	}
}

// CreateOrder turns submitted lines into an order at live prices. Razorpay
// orders must carry a verified payment for exactly the recomputed total.
func (s *Service) CreateOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var in checkoutInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	lines, err := in.lines()
	if err != nil {
		respondValidation(w, err)
		return
	}
	if !in.PaymentMethod.Valid() {
		utils.RespondWithError(w, http.StatusBadRequest, "paymentMethod must be razorpay or payAfterDelivery")
		return
	}
	if err := in.VehicleDetails.Validate(); err != nil {
		respondValidation(w, err)
		return
	}
	pickup := in.pickup()
	if err := pickup.Validate(); err != nil {
		respondValidation(w, err)
		return
	}
	if in.PaymentMethod == models.PayRazorpay {
		if err := in.PaymentVerification.Validate(); err != nil {
			respondValidation(w, err)
			return
		}
	}

	buyerID := utils.GetUserIDFromRequest(r)
	unlock, err := s.locker.Lock(ctx, "checkout:"+buyerID, 30*time.Second)
	if err != nil {
		if errors.Is(err, rdx.ErrLocked) {
			utils.RespondWithError(w, http.StatusConflict, "A checkout is already in progress")
			return
		}
		log.Printf("[orders] checkout lock %s: %v", buyerID, err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Service is busy, please try again")
		return
	}
	defer unlock()

	items, err := s.priced(ctx, buyerID, lines)
	var serr *models.StockError
	switch {
	case errors.As(err, &serr):
		respondStock(w, serr)
		return
	case err != nil:
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			respondValidation(w, err)
			return
		}
		log.Printf("[orders] price lines: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create order")
		return
	}
	total := models.OrderTotal(items)

	order := models.Order{
		OrderID:         utils.GetUUID(),
		BuyerID:         buyerID,
		SellerIDs:       models.SellersOf(items),
		Items:           items,
		TotalAmount:     total,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		Status:          models.OrderPending,
		VehicleDetails:  in.VehicleDetails,
		PickupSchedule:  pickup,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
	}
	if in.PaymentMethod == models.PayRazorpay {
		claim := pay.Claim{UserID: buyerID, Purpose: models.RefOrder, UsedBy: order.OrderID, Amount: total}
		if err := s.payments.Confirm(ctx, claim, in.PaymentVerification); err != nil {
			code, msg := pay.PaymentError(err)
			utils.RespondWithError(w, code, msg)
			return
		}
		order.PaymentStatus = models.PaymentPaid
		order.GatewayOrderID = in.OrderID
		order.GatewayPaymentID = in.PaymentID
	}

	if err := s.reserve(ctx, items); err != nil {
		s.releasePayment(ctx, order)
		if errors.As(err, &serr) {
			if order.PaymentStatus == models.PaymentPaid {
				log.Printf("[orders] payment %s captured but stock ran out for %s", order.GatewayPaymentID, serr.CropID)
			}
			respondStock(w, serr)
			return
		}
		log.Printf("[orders] reserve stock: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create order")
		return
	}

	order.CreatedAt = s.now()
	order.UpdatedAt = order.CreatedAt
	if err := s.orders.Create(ctx, order); err != nil {
		s.release(ctx, items)
		s.releasePayment(ctx, order)
		if errors.Is(err, db.ErrDuplicate) {
			utils.RespondWithError(w, http.StatusConflict, "This payment was already used for another order")
			return
		}
		log.Printf("[orders] create order: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create order")
		return
	}

	if order.PaymentStatus == models.PaymentPaid {
		s.recordPayment(ctx, order, models.MethodRazorpay)
	}
	if err := s.cart.Clear(ctx, buyerID); err != nil {
		log.Printf("[orders] clear cart of %s: %v", buyerID, err)
	}
	for _, seller := range order.SellerIDs {
		s.events.Emit(ctx, mq.Event{
			Type:    mq.OrderCreated,
			UserID:  seller,
			Title:   "New order",
			Message: fmt.Sprintf("New order %s worth ₹%.2f", shortID(order.OrderID), order.SellerTotal(seller)),
			Data:    map[string]interface{}{"orderId": order.OrderID, "paymentStatus": order.PaymentStatus},
		})
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "order": order})
}

func (s *Service) releasePayment(ctx context.Context, o models.Order) {
	if o.GatewayOrderID != "" {
		s.payments.Release(ctx, o.GatewayOrderID, o.OrderID)
	}
}

// recordPayment writes one ledger entry per seller.
func (s *Service) recordPayment(ctx context.Context, o models.Order, method models.TxnMethod) {
	for _, seller := range o.SellerIDs {
		s.recordShare(ctx, o, seller, method)
	}
}

func (s *Service) recordShare(ctx context.Context, o models.Order, seller string, method models.TxnMethod) {
	s.payments.Record(ctx, models.Transaction{
		PayerID:          o.BuyerID,
		PayeeID:          seller,
		ReferenceType:    models.RefOrder,
		ReferenceID:      o.OrderID,
		Category:         models.CategoryMarket,
		Amount:           o.SellerTotal(seller),
		Method:           method,
		GatewayPaymentID: o.GatewayPaymentID,
		Description:      "Market order " + shortID(o.OrderID),
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *Service) BuyerOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, err := s.orders.ForBuyer(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		log.Printf("[orders] buyer orders: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "orders": list})
}

func (s *Service) SellerOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, err := s.orders.ForSeller(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		log.Printf("[orders] seller orders: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "orders": list})
}

// Order returns one order by id.
func (s *Service) Order(ctx context.Context, id string) (models.Order, error) {
	return s.orders.Get(ctx, id)
}

// OrdersFor lists orders where userID is buyer or seller, buyer side first.
func (s *Service) OrdersFor(ctx context.Context, userID string) (bought, sold []models.Order, err error) {
	if bought, err = s.orders.ForBuyer(ctx, userID); err != nil {
		return nil, nil, err
	}
	if sold, err = s.orders.ForSeller(ctx, userID); err != nil {
		return nil, nil, err
	}
	return bought, sold, nil
}

// partyOrder loads the order and hides it from anyone but its buyer and sellers.
func (s *Service) partyOrder(ctx context.Context, w http.ResponseWriter, r *http.Request, ps httprouter.Params) (models.Order, bool) {
	o, err := s.orders.Get(ctx, ps.ByName("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Order not found")
			return o, false
		}
		log.Printf("[orders] get %s: %v", ps.ByName("id"), err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch order")
		return o, false
	}
	userID := utils.GetUserIDFromRequest(r)
	if o.BuyerID != userID && !o.HasSeller(userID) {
		utils.RespondWithError(w, http.StatusNotFound, "Order not found")
		return o, false
	}
	return o, true
}

func (s *Service) GetOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, ok := s.partyOrder(ctx, w, r, ps)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "order": o})
}
