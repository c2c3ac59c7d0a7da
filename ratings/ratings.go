package ratings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"cropconnect/db"
	"cropconnect/models"
	"cropconnect/mq"
	"cropconnect/utils"
)

const statsTTL = 10 * time.Minute

// Cache holds computed stats per ratee.
type Cache interface {
	CacheGet(ctx context.Context, key string) ([]byte, bool)
	CacheSet(ctx context.Context, key string, val []byte, ttl time.Duration)
	CacheDel(ctx context.Context, keys ...string)
}

type OrderLookup interface {
	Order(ctx context.Context, id string) (models.Order, error)
}

type BookingLookup interface {
	Booking(ctx context.Context, id string) (models.Booking, error)
	Requirement(ctx context.Context, id string) (models.Requirement, error)
}

var (
	errNotCompleted = errors.New("transaction is not completed")
	errNotParty     = errors.New("not a party to the transaction")
)

type Handler struct {
	ratings  Store
	cache    Cache
	orders   OrderLookup
	bookings BookingLookup
	events   mq.Emitter
}

func NewHandler(ratings Store, cache Cache, orders OrderLookup, bookings BookingLookup, events mq.Emitter) *Handler {
	if events == nil {
		events = mq.Discard{}
	}
	return &Handler{ratings: ratings, cache: cache, orders: orders, bookings: bookings, events: events}
}

func statsKey(userID string) string { return "ratings:stats:" + userID }

// parties returns the users of the referenced transaction once it is completed.
func (h *Handler) parties(ctx context.Context, r models.Rating) ([]string, error) {
	kind, id := r.Reference()
	switch kind {
	case "order":
		o, err := h.orders.Order(ctx, id)
		if err != nil {
			return nil, err
		}
		if o.Status != models.OrderCompleted {
			return nil, errNotCompleted
		}
		return append([]string{o.BuyerID}, o.SellerIDs...), nil
	case "booking":
		b, err := h.bookings.Booking(ctx, id)
		if err != nil {
			return nil, err
		}
		if b.Status != models.BookingCompleted {
			return nil, errNotCompleted
		}
		return []string{b.FarmerID, b.ProviderID}, nil
	case "hireRequest":
		req, err := h.bookings.Requirement(ctx, id)
		if err != nil {
			return nil, err
		}
		if req.Status != models.RequirementCompleted {
			return nil, errNotCompleted
		}
		parties := []string{req.FarmerID}
		if req.BookingID != "" {
			if b, err := h.bookings.Booking(ctx, req.BookingID); err == nil {
				parties = append(parties, b.ProviderID)
			}
		}
		return parties, nil
	}
	return nil, db.ErrNotFound
}

func (h *Handler) verify(ctx context.Context, r models.Rating) error {
	parties, err := h.parties(ctx, r)
	if err != nil {
		return err
	}
	if !slices.Contains(parties, r.RaterID) || !slices.Contains(parties, r.RateeID) {
		return errNotParty
	}
	return nil
}

func respondVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Related transaction not found")
	case errors.Is(err, errNotCompleted):
		utils.RespondWithError(w, http.StatusBadRequest, "You can rate only after the transaction is completed")
	case errors.Is(err, errNotParty):
		utils.RespondWithError(w, http.StatusForbidden, "Both users must be parties to the transaction")
	default:
		log.Printf("[ratings] verify: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to verify transaction")
	}
}

func respondInvalid(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		utils.RespondWithError(w, http.StatusBadRequest, verr.Message)
		return
	}
	utils.RespondWithError(w, http.StatusBadRequest, err.Error())
}

// CreateRating records a verified rating for a completed order, booking or hire request.
func (h *Handler) CreateRating(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in models.Rating
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	now := time.Now()
	rating := models.Rating{
		RatingID:           utils.GetUUID(),
		RaterID:            utils.GetUserIDFromRequest(r),
		RateeID:            strings.TrimSpace(in.RateeID),
		RatingType:         in.RatingType,
		Rating:             in.Rating,
		Review:             strings.TrimSpace(in.Review),
		RelatedOrder:       in.RelatedOrder,
		RelatedBooking:     in.RelatedBooking,
		RelatedHireRequest: in.RelatedHireRequest,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := rating.Validate(); err != nil {
		respondInvalid(w, err)
		return
	}
	if err := h.verify(ctx, rating); err != nil {
		respondVerifyError(w, err)
		return
	}
	rating.IsVerifiedTransaction = true

	if err := h.ratings.Create(ctx, rating); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			utils.RespondWithError(w, http.StatusConflict, "You have already rated this user for this transaction")
			return
		}
		log.Printf("[ratings] create: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save rating")
		return
	}
	h.cache.CacheDel(ctx, statsKey(rating.RateeID))

	h.events.Emit(ctx, mq.Event{
		Type:    mq.RatingReceived,
		UserID:  rating.RateeID,
		Title:   "New rating",
		Message: fmt.Sprintf("You received a %d star rating", rating.Rating),
		Data:    map[string]interface{}{"ratingId": rating.RatingID},
	})
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"success": true, "rating": rating})
}

func (h *Handler) ownRating(ctx context.Context, w http.ResponseWriter, r *http.Request, ps httprouter.Params) (models.Rating, bool) {
	rating, err := h.ratings.Get(ctx, ps.ByName("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Rating not found")
			return rating, false
		}
		log.Printf("[ratings] get %s: %v", ps.ByName("id"), err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch rating")
		return rating, false
	}
	if rating.RaterID != utils.GetUserIDFromRequest(r) {
		utils.RespondWithError(w, http.StatusForbidden, "You can only change your own ratings")
		return rating, false
	}
	return rating, true
}

// UpdateRating edits the score or review of the caller's rating.
func (h *Handler) UpdateRating(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		Rating *int    `json:"rating"`
		Review *string `json:"review"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	rating, ok := h.ownRating(ctx, w, r, ps)
	if !ok {
		return
	}
	if in.Rating != nil {
		if err := models.ValidateScore(*in.Rating); err != nil {
			respondInvalid(w, err)
			return
		}
		rating.Rating = *in.Rating
	}
	if in.Review != nil {
		review := strings.TrimSpace(*in.Review)
		if err := models.ValidateReview(review); err != nil {
			respondInvalid(w, err)
			return
		}
		rating.Review = review
	}
	rating.IsEdited = true
	rating.UpdatedAt = time.Now()
	if err := h.ratings.Update(ctx, rating); err != nil {
		log.Printf("[ratings] update %s: %v", rating.RatingID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update rating")
		return
	}
	h.cache.CacheDel(ctx, statsKey(rating.RateeID))
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "rating": rating})
}

func (h *Handler) DeleteRating(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rating, ok := h.ownRating(ctx, w, r, ps)
	if !ok {
		return
	}
	if err := h.ratings.Delete(ctx, rating.RatingID); err != nil && !errors.Is(err, db.ErrNotFound) {
		log.Printf("[ratings] delete %s: %v", rating.RatingID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete rating")
		return
	}
	h.cache.CacheDel(ctx, statsKey(rating.RateeID))
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "message": "Rating deleted"})
}

// UserRatings pages through the ratings a user received, newest first.
func (h *Handler) UserRatings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	skip, limit := utils.ParsePagination(r, 10, 50)
	list, total, err := h.ratings.ForRatee(ctx, ps.ByName("userId"), skip, limit)
	if err != nil {
		log.Printf("[ratings] list for %s: %v", ps.ByName("userId"), err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch ratings")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success": true,
		"ratings": list,
		"total":   total,
		"page":    skip/limit + 1,
		"limit":   limit,
	})
}

// Stats returns the ratee's aggregate, served from cache when fresh.
func (h *Handler) Stats(ctx context.Context, userID string) (models.RatingStats, error) {
	key := statsKey(userID)
	if raw, ok := h.cache.CacheGet(ctx, key); ok {
		var stats models.RatingStats
		if err := json.Unmarshal(raw, &stats); err == nil {
			return stats, nil
		}
	}
	stats, err := h.ratings.Stats(ctx, userID)
	if err != nil {
		return stats, err
	}
	if raw, err := json.Marshal(stats); err == nil {
		h.cache.CacheSet(ctx, key, raw, statsTTL)
	}
	return stats, nil
}

func (h *Handler) UserStats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.Stats(ctx, ps.ByName("userId"))
	if err != nil {
		log.Printf("[ratings] stats for %s: %v", ps.ByName("userId"), err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch rating stats")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "stats": stats})
}

// MyRatings lists ratings the caller has given.
func (h *Handler) MyRatings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	list, err := h.ratings.ByRater(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		log.Printf("[ratings] mine: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch ratings")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "ratings": list})
}
