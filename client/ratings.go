package client

import (
	"context"
	"fmt"
	"net/url"

	"cropconnect/models"
)

// Ratings submits and edits the signed-in user's ratings. Every mutation
// re-reads the ratee's stats so the caller can refresh what it shows.
type Ratings struct {
	api     *Transport
	session *Session
	guard   guard
}

func NewRatings(api *Transport, session *Session) *Ratings {
	return &Ratings{api: api, session: session}
}

type RatingPage struct {
	Ratings []models.Rating `json:"ratings"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
}

func (r *Ratings) Stats(ctx context.Context, userID string) (models.RatingStats, error) {
	var res struct {
		Stats models.RatingStats `json:"stats"`
	}
	err := r.api.Do(ctx, "GET", "/api/ratings/user/"+url.PathEscape(userID)+"/stats", nil, &res)
	return res.Stats, err
}

func (r *Ratings) UserRatings(ctx context.Context, userID string, page, limit int) (RatingPage, error) {
	var res RatingPage
	path := fmt.Sprintf("/api/ratings/user/%s?page=%d&limit=%d", url.PathEscape(userID), max(page, 1), max(limit, 1))
	err := r.api.Do(ctx, "GET", path, nil, &res)
	return res, err
}

func (r *Ratings) Mine(ctx context.Context) ([]models.Rating, error) {
	var res struct {
		Ratings []models.Rating `json:"ratings"`
	}
	err := r.api.Do(ctx, "GET", "/api/ratings/mine", nil, &res)
	return res.Ratings, err
}

// SubmitRating posts a new rating and returns it with the ratee's fresh stats.
func (r *Ratings) SubmitRating(ctx context.Context, in models.Rating) (models.Rating, models.RatingStats, error) {
	in.RaterID = r.session.User().UserID
	if err := in.Validate(); err != nil {
		return models.Rating{}, models.RatingStats{}, err
	}
	var saved models.Rating
	err := r.guard.run("rate:"+in.RateeID, func() error {
		var res struct {
			Rating models.Rating `json:"rating"`
		}
		if err := r.api.Do(ctx, "POST", "/api/ratings", in, &res, NoRetry()); err != nil {
			return err
		}
		saved = res.Rating
		return nil
	})
	if err != nil {
		return models.Rating{}, models.RatingStats{}, err
	}
	stats, err := r.Stats(ctx, in.RateeID)
	return saved, stats, err
}

// RatingEdit changes the score, the review or both. Nil fields are left alone.
type RatingEdit struct {
	Rating *int    `json:"rating,omitempty"`
	Review *string `json:"review,omitempty"`
}

func (r *Ratings) EditRating(ctx context.Context, existing models.Rating, edit RatingEdit) (models.Rating, models.RatingStats, error) {
	if err := r.owned(existing); err != nil {
		return models.Rating{}, models.RatingStats{}, err
	}
	if edit.Rating == nil && edit.Review == nil {
		return models.Rating{}, models.RatingStats{}, models.Invalid("rating", "Nothing to update")
	}
	if edit.Rating != nil {
		if err := models.ValidateScore(*edit.Rating); err != nil {
			return models.Rating{}, models.RatingStats{}, err
		}
	}
	if edit.Review != nil {
		if err := models.ValidateReview(*edit.Review); err != nil {
			return models.Rating{}, models.RatingStats{}, err
		}
	}
	var res struct {
		Rating models.Rating `json:"rating"`
	}
	path := "/api/ratings/" + url.PathEscape(existing.RatingID)
	if err := r.api.Do(ctx, "PUT", path, edit, &res, NoRetry()); err != nil {
		return models.Rating{}, models.RatingStats{}, err
	}
	stats, err := r.Stats(ctx, existing.RateeID)
	return res.Rating, stats, err
}

// DeleteRating removes the rating once confirm returns true.
func (r *Ratings) DeleteRating(ctx context.Context, existing models.Rating, confirm func() bool) (models.RatingStats, error) {
	if err := r.owned(existing); err != nil {
		return models.RatingStats{}, err
	}
	if confirm == nil || !confirm() {
		return models.RatingStats{}, ErrNotConfirmed
	}
	path := "/api/ratings/" + url.PathEscape(existing.RatingID)
	if err := r.api.Do(ctx, "DELETE", path, nil, nil, NoRetry()); err != nil {
		return models.RatingStats{}, err
	}
	return r.Stats(ctx, existing.RateeID)
}

func (r *Ratings) owned(existing models.Rating) error {
	if existing.RaterID != r.session.User().UserID {
		return models.Invalid("raterId", "You can only change your own ratings")
	}
	return nil
}
