package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/tastyhub/api/internal/domain"
	"github.com/tastyhub/api/internal/repositories"
)

var (
	// ErrProfileInvalidInput marks rejected profile updates.
	ErrProfileInvalidInput = errors.New("profile: invalid input")
	// ErrProfileNotFound is returned when the profile does not exist.
	ErrProfileNotFound = errors.New("profile: not found")
	// ErrProfileUnavailable wraps transient persistence failures.
	ErrProfileUnavailable = errors.New("profile: temporarily unavailable")
)

// ProfileServiceDeps bundles collaborators required to construct the profile service.
type ProfileServiceDeps struct {
	Profiles repositories.ProfileRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type profileService struct {
	profiles repositories.ProfileRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewProfileService wires dependencies into a concrete ProfileService implementation.
func NewProfileService(deps ProfileServiceDeps) (ProfileService, error) {
	if deps.Profiles == nil {
		return nil, errors.New("profile service: profile repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &profileService{
		profiles: deps.Profiles,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Get loads a profile by auth UID.
func (s *profileService) Get(ctx context.Context, profileID string) (domain.UserProfile, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return domain.UserProfile{}, fmt.Errorf("%w: profile id is required", ErrProfileInvalidInput)
	}
	profile, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		return domain.UserProfile{}, s.translateProfileError(err)
	}
	return profile, nil
}

// GetByUsername loads a profile by its username.
func (s *profileService) GetByUsername(ctx context.Context, username string) (domain.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.UserProfile{}, fmt.Errorf("%w: username is required", ErrProfileInvalidInput)
	}
	profile, err := s.profiles.FindByUsername(ctx, username)
	if err != nil {
		return domain.UserProfile{}, s.translateProfileError(err)
	}
	return profile, nil
}

// Upsert creates or updates the caller's profile with the supplied details.
func (s *profileService) Upsert(ctx context.Context, profileID string, update ProfileUpdate) (domain.UserProfile, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return domain.UserProfile{}, fmt.Errorf("%w: profile id is required", ErrProfileInvalidInput)
	}

	profile, err := s.profiles.FindByID(ctx, profileID)
	if err != nil {
		if !isNotFound(err) {
			return domain.UserProfile{}, s.translateProfileError(err)
		}
		profile = domain.UserProfile{ID: profileID}
	}

	if username := strings.TrimSpace(update.Username); username != "" {
		if existing, err := s.profiles.FindByUsername(ctx, username); err == nil && existing.ID != profileID {
			return domain.UserProfile{}, fmt.Errorf("%w: username %q is taken", ErrProfileInvalidInput, username)
		} else if err != nil && !isNotFound(err) {
			return domain.UserProfile{}, s.translateProfileError(err)
		}
		profile.Username = username
	}
	if email := strings.TrimSpace(update.Email); email != "" {
		profile.Email = email
	}
	profile.DefaultPhoneNumber = strings.TrimSpace(update.PhoneNumber)
	profile.DefaultStreetAddress1 = strings.TrimSpace(update.StreetAddress1)
	profile.DefaultStreetAddress2 = strings.TrimSpace(update.StreetAddress2)
	profile.DefaultTownOrCity = strings.TrimSpace(update.TownOrCity)
	profile.DefaultCounty = strings.TrimSpace(update.County)
	profile.DefaultPostcode = strings.TrimSpace(update.Postcode)
	profile.DefaultLocality = strings.TrimSpace(update.Locality)

	saved, err := s.profiles.Upsert(ctx, profile)
	if err != nil {
		return domain.UserProfile{}, s.translateProfileError(err)
	}
	s.logger(ctx, "profile.upserted", map[string]any{"profile_id": saved.ID})
	return saved, nil
}

// Delete removes a profile. Orders keep their address snapshots.
func (s *profileService) Delete(ctx context.Context, profileID string) error {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return fmt.Errorf("%w: profile id is required", ErrProfileInvalidInput)
	}
	if err := s.profiles.Delete(ctx, profileID); err != nil {
		return s.translateProfileError(err)
	}
	return nil
}

func (s *profileService) translateProfileError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrProfileInvalidInput) || errors.Is(err, ErrProfileNotFound) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrProfileNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
}
