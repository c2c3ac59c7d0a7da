package models

import (
	"math"
	"time"
	"unicode/utf8"
)

const MaxReviewLength = 500

// Rating is a 1..5 score one party gives the other after a transaction.
type Rating struct {
	RatingID              string    `json:"ratingId" bson:"ratingId"`
	RaterID               string    `json:"raterId" bson:"raterId"`
	RateeID               string    `json:"rateeId" bson:"rateeId"`
	RatingType            string    `json:"ratingType,omitempty" bson:"ratingType,omitempty"`
	Rating                int       `json:"rating" bson:"rating"`
	Review                string    `json:"review,omitempty" bson:"review,omitempty"`
	RelatedOrder          string    `json:"relatedOrder,omitempty" bson:"relatedOrder,omitempty"`
	RelatedBooking        string    `json:"relatedBooking,omitempty" bson:"relatedBooking,omitempty"`
	RelatedHireRequest    string    `json:"relatedHireRequest,omitempty" bson:"relatedHireRequest,omitempty"`
	IsVerifiedTransaction bool      `json:"isVerifiedTransaction" bson:"isVerifiedTransaction"`
	IsEdited              bool      `json:"isEdited" bson:"isEdited"`
	CreatedAt             time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Reference returns the kind and id of the single related record.
func (r Rating) Reference() (string, string) {
	switch {
	case r.RelatedOrder != "":
		return "order", r.RelatedOrder
	case r.RelatedBooking != "":
		return "booking", r.RelatedBooking
	case r.RelatedHireRequest != "":
		return "hireRequest", r.RelatedHireRequest
	}
	return "", ""
}

func (r Rating) referenceCount() int {
	n := 0
	for _, s := range []string{r.RelatedOrder, r.RelatedBooking, r.RelatedHireRequest} {
		if s != "" {
			n++
		}
	}
	return n
}

func ValidateScore(score int) error {
	if score < 1 || score > 5 {
		return FieldError("rating", "must be between 1 and 5")
	}
	return nil
}

func ValidateReview(review string) error {
	if utf8.RuneCountInString(review) > MaxReviewLength {
		return Invalid("review", "Review cannot exceed 500 characters")
	}
	return nil
}

// Validate runs the checks a new rating must pass before submission.
func (r Rating) Validate() error {
	if err := ValidateScore(r.Rating); err != nil {
		return err
	}
	if isBlank(r.RateeID) {
		return FieldError("rateeId", "is required")
	}
	if r.RaterID != "" && r.RaterID == r.RateeID {
		return Invalid("rateeId", "You cannot rate yourself")
	}
	if err := ValidateReview(r.Review); err != nil {
		return err
	}
	if r.referenceCount() != 1 {
		return Invalid("related", "exactly one of relatedOrder, relatedBooking or relatedHireRequest is required")
	}
	return nil
}

type RatingStats struct {
	AverageRating float64     `json:"averageRating" bson:"averageRating"`
	TotalRatings  int         `json:"totalRatings" bson:"totalRatings"`
	Distribution  map[int]int `json:"distribution" bson:"distribution"`
}

func EmptyDistribution() map[int]int {
	return map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
}

// ComputeRatingStats averages the scores to one decimal place.
func ComputeRatingStats(ratings []Rating) RatingStats {
	stats := RatingStats{Distribution: EmptyDistribution()}
	sum := 0
	for _, r := range ratings {
		if r.Rating < 1 || r.Rating > 5 {
			continue
		}
		stats.Distribution[r.Rating]++
		stats.TotalRatings++
		sum += r.Rating
	}
	if stats.TotalRatings > 0 {
		stats.AverageRating = RoundAverage(float64(sum) / float64(stats.TotalRatings))
	}
	return stats
}

func RoundAverage(avg float64) float64 {
	return math.Round(avg*10) / 10
}
