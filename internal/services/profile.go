package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chachabrian/mooveit-booking/internal/apperrors"
	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/internal/repository"
)

type CreateProfileRequest struct {
	Name     string          `json:"name" validate:"required"`
	Age      int             `json:"age" validate:"gte=0,lte=130"`
	UserType models.UserType `json:"userType" validate:"omitempty,oneof=new experienced"`
}

// UpdateProfileRequest leaves nil fields untouched. Rating fields are not
// writable here.
type UpdateProfileRequest struct {
	Name     *string          `json:"name" validate:"omitempty,min=1"`
	Age      *int             `json:"age" validate:"omitempty,gte=0,lte=130"`
	UserType *models.UserType `json:"userType" validate:"omitempty,oneof=new experienced"`
}

type ProfileService struct {
	store repository.Store
	log   *logrus.Logger
}

func NewProfileService(store repository.Store, log *logrus.Logger) *ProfileService {
	return &ProfileService{store: store, log: log}
}

func (s *ProfileService) CreateProfile(ctx context.Context, profileID string, req CreateProfileRequest) (*models.UserProfile, error) {
	req.Name = strings.TrimSpace(req.Name)
	if profileID == "" {
		return nil, apperrors.Validation("id", "is required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.UserType == "" {
		req.UserType = models.UserTypeNew
	}

	profile := &models.UserProfile{
		ID:       profileID,
		Name:     req.Name,
		Age:      req.Age,
		UserType: req.UserType,
	}
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		return tx.Profiles().Create(profile)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperrors.Wrap(apperrors.ErrProfileExists, err)
	}
	if err != nil {
		return nil, storeError(err)
	}

	s.log.WithField("profile_id", profileID).Info("Profile created")
	return profile, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, profileID string) (*models.UserProfile, error) {
	var profile *models.UserProfile
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		profile, err = tx.Profiles().Get(profileID)
		return notFound(err, "profile")
	})
	return profile, storeError(err)
}

func (s *ProfileService) UpdateProfile(ctx context.Context, profileID, requesterID string, req UpdateProfileRequest) (*models.UserProfile, error) {
	if profileID != requesterID {
		return nil, apperrors.ErrNotOwner
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var profile *models.UserProfile
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		err := tx.Profiles().Update(profileID, repository.ProfileUpdate{
			Name:     req.Name,
			Age:      req.Age,
			UserType: req.UserType,
		})
		if err != nil {
			return notFound(err, "profile")
		}
		profile, err = tx.Profiles().Get(profileID)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	return profile, nil
}

func (s *ProfileService) ListRatings(ctx context.Context, rateeID string) ([]models.UserRating, error) {
	var ratings []models.UserRating
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		if _, err := tx.Profiles().Get(rateeID); err != nil {
			return notFound(err, "profile")
		}
		var err error
		ratings, err = tx.Ratings().ListByRatee(rateeID)
		return err
	})
	return ratings, storeError(err)
}
