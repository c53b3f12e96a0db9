package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/tastyhub/api/internal/domain"
)

func newTestProfileService(t *testing.T, profiles *stubProfileRepository) ProfileService {
	t.Helper()
	svc, err := NewProfileService(ProfileServiceDeps{
		Profiles: profiles,
		Clock:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewProfileService: %v", err)
	}
	return svc
}

func TestProfileServiceUpsertCreates(t *testing.T) {
	profiles := &stubProfileRepository{}
	svc := newTestProfileService(t, profiles)

	profile, err := svc.Upsert(context.Background(), "user-1", ProfileUpdate{
		Username:       "jordan",
		Email:          "jordan@example.com",
		PhoneNumber:    "07700900000",
		StreetAddress1: "1 High Street",
		TownOrCity:     "Leeds",
		Postcode:       "LS1 1AA",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if profile.ID != "user-1" || profile.Username != "jordan" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.DefaultStreetAddress1 != "1 High Street" {
		t.Fatalf("expected default address saved, got %+v", profile)
	}
}

func TestProfileServiceUpsertRejectsTakenUsername(t *testing.T) {
	profiles := &stubProfileRepository{
		profiles: map[string]domain.UserProfile{
			"user-2": {ID: "user-2", Username: "jordan"},
		},
	}
	svc := newTestProfileService(t, profiles)

	_, err := svc.Upsert(context.Background(), "user-1", ProfileUpdate{Username: "jordan"})
	if !errors.Is(err, ErrProfileInvalidInput) {
		t.Fatalf("expected ErrProfileInvalidInput, got %v", err)
	}
}

func TestProfileServiceUpsertKeepsExistingFields(t *testing.T) {
	profiles := &stubProfileRepository{
		profiles: map[string]domain.UserProfile{
			"user-1": {ID: "user-1", Username: "jordan", Email: "jordan@example.com"},
		},
	}
	svc := newTestProfileService(t, profiles)

	profile, err := svc.Upsert(context.Background(), "user-1", ProfileUpdate{PhoneNumber: "07700900123"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if profile.Username != "jordan" || profile.Email != "jordan@example.com" {
		t.Fatalf("expected identity fields preserved, got %+v", profile)
	}
	if profile.DefaultPhoneNumber != "07700900123" {
		t.Fatalf("expected phone updated, got %+v", profile)
	}
}

func TestProfileServiceGetMissing(t *testing.T) {
	svc := newTestProfileService(t, &stubProfileRepository{})

	if _, err := svc.Get(context.Background(), "user-404"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestProfileServiceGetByUsername(t *testing.T) {
	profiles := &stubProfileRepository{
		profiles: map[string]domain.UserProfile{
			"user-1": {ID: "user-1", Username: "jordan"},
		},
	}
	svc := newTestProfileService(t, profiles)

	profile, err := svc.GetByUsername(context.Background(), "jordan")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if profile.ID != "user-1" {
		t.Fatalf("expected user-1, got %s", profile.ID)
	}
}

func TestProfileServiceRequiresID(t *testing.T) {
	svc := newTestProfileService(t, &stubProfileRepository{})

	if _, err := svc.Get(context.Background(), " "); !errors.Is(err, ErrProfileInvalidInput) {
		t.Fatalf("expected ErrProfileInvalidInput, got %v", err)
	}
	if err := svc.Delete(context.Background(), ""); !errors.Is(err, ErrProfileInvalidInput) {
		t.Fatalf("expected ErrProfileInvalidInput, got %v", err)
	}
}
