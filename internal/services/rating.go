package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chachabrian/mooveit-booking/internal/apperrors"
	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/internal/repository"
)

type RatingRequest struct {
	RaterID string `json:"raterId" validate:"required"`
	RateeID string `json:"rateeId" validate:"required"`
	Score   int    `json:"rating" validate:"min=1,max=5"`
	Review  string `json:"review" validate:"max=1000"`
}

// RatingService records ratings and keeps each ratee's running mean. It is
// the only writer of rating and total_ratings.
type RatingService struct {
	store repository.Store
	log   *logrus.Logger
}

func NewRatingService(store repository.Store, log *logrus.Logger) *RatingService {
	return &RatingService{store: store, log: log}
}

// SubmitRating inserts the rating and folds it into the ratee's profile in one
// transaction. A rater may rate a given ratee only once.
func (s *RatingService) SubmitRating(ctx context.Context, req RatingRequest) (*models.UserRating, error) {
	req.RaterID = strings.TrimSpace(req.RaterID)
	req.RateeID = strings.TrimSpace(req.RateeID)
	req.Review = strings.TrimSpace(req.Review)

	if req.RaterID != "" && req.RaterID == req.RateeID {
		return nil, apperrors.ErrSelfRating
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	rating := &models.UserRating{
		ID:      uuid.NewString(),
		RaterID: req.RaterID,
		RateeID: req.RateeID,
		Rating:  req.Score,
		Review:  req.Review,
	}

	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		if _, err := tx.Profiles().Get(req.RaterID); err != nil {
			return notFound(err, "rater profile")
		}
		if _, err := tx.Profiles().Get(req.RateeID); err != nil {
			return notFound(err, "ratee profile")
		}

		exists, err := tx.Ratings().Exists(req.RaterID, req.RateeID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.ErrDuplicateRating
		}
		if err := tx.Ratings().Create(rating); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.Wrap(apperrors.ErrDuplicateRating, err)
			}
			return err
		}
		return tx.Profiles().ApplyRating(req.RateeID, req.Score)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// Unique index fired at commit.
		return nil, apperrors.Wrap(apperrors.ErrDuplicateRating, err)
	}
	if err != nil {
		return nil, storeError(err)
	}

	s.log.WithFields(logrus.Fields{
		"rating_id": rating.ID,
		"rater_id":  rating.RaterID,
		"ratee_id":  rating.RateeID,
		"score":     rating.Rating,
	}).Info("Rating submitted")
	return rating, nil
}
