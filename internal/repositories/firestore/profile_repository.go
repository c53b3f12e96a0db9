package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/tastyhub/api/internal/domain"
	pfirestore "github.com/tastyhub/api/internal/platform/firestore"
	"github.com/tastyhub/api/internal/repositories"
)

const profileCollection = "profiles"

// ProfileRepository persists customer profiles keyed by auth UID.
type ProfileRepository struct {
	base     *pfirestore.BaseRepository[profileDocument]
	provider *pfirestore.Provider
}

// NewProfileRepository constructs a Firestore-backed profile repository.
func NewProfileRepository(provider *pfirestore.Provider) (*ProfileRepository, error) {
	if provider == nil {
		return nil, errors.New("profile repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[profileDocument](provider, profileCollection)
	return &ProfileRepository{base: base, provider: provider}, nil
}

var _ repositories.ProfileRepository = (*ProfileRepository)(nil)

// Upsert writes the profile document keyed by the profile id.
func (r *ProfileRepository) Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if err := r.ready(); err != nil {
		return domain.UserProfile{}, err
	}
	if strings.TrimSpace(profile.ID) == "" {
		return domain.UserProfile{}, errors.New("profile id is required")
	}

	now := time.Now().UTC()
	doc := fromDomainUserProfile(profile, now)
	if _, err := r.base.Set(ctx, profile.ID, doc); err != nil {
		return domain.UserProfile{}, err
	}
	return toDomainUserProfile(profile.ID, doc), nil
}

// FindByID loads a profile by its auth UID.
func (r *ProfileRepository) FindByID(ctx context.Context, profileID string) (domain.UserProfile, error) {
	if err := r.ready(); err != nil {
		return domain.UserProfile{}, err
	}
	doc, err := r.base.Get(ctx, profileID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return toDomainUserProfile(doc.ID, doc.Data), nil
}

// FindByUsername loads a profile by its unique username.
func (r *ProfileRepository) FindByUsername(ctx context.Context, username string) (domain.UserProfile, error) {
	if err := r.ready(); err != nil {
		return domain.UserProfile{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.UserProfile{}, errors.New("username is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("username", "==", username).Limit(1)
	})
	if err != nil {
		return domain.UserProfile{}, err
	}
	if len(docs) == 0 {
		return domain.UserProfile{}, pfirestore.WrapError("profiles.findByUsername", status.Error(codes.NotFound, "username not found"))
	}
	return toDomainUserProfile(docs[0].ID, docs[0].Data), nil
}

// Delete removes the profile. Orders referencing it keep their snapshot data.
func (r *ProfileRepository) Delete(ctx context.Context, profileID string) error {
	if err := r.ready(); err != nil {
		return err
	}
	ref, err := r.base.DocumentRef(ctx, profileID)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("profiles.delete", err)
	}
	return nil
}

func (r *ProfileRepository) ready() error {
	if r == nil || r.base == nil {
		return errors.New("profile repository not initialised")
	}
	return nil
}

type profileDocument struct {
	Username       string    `firestore:"username"`
	Email          string    `firestore:"email"`
	PhoneNumber    string    `firestore:"phoneNumber,omitempty"`
	StreetAddress1 string    `firestore:"streetAddress1,omitempty"`
	StreetAddress2 string    `firestore:"streetAddress2,omitempty"`
	TownOrCity     string    `firestore:"townOrCity,omitempty"`
	County         string    `firestore:"county,omitempty"`
	Postcode       string    `firestore:"postcode,omitempty"`
	Locality       string    `firestore:"locality,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func fromDomainUserProfile(profile domain.UserProfile, now time.Time) profileDocument {
	doc := profileDocument{
		Username:       strings.TrimSpace(profile.Username),
		Email:          strings.ToLower(strings.TrimSpace(profile.Email)),
		PhoneNumber:    strings.TrimSpace(profile.DefaultPhoneNumber),
		StreetAddress1: strings.TrimSpace(profile.DefaultStreetAddress1),
		StreetAddress2: strings.TrimSpace(profile.DefaultStreetAddress2),
		TownOrCity:     strings.TrimSpace(profile.DefaultTownOrCity),
		County:         strings.TrimSpace(profile.DefaultCounty),
		Postcode:       strings.TrimSpace(profile.DefaultPostcode),
		Locality:       strings.TrimSpace(profile.DefaultLocality),
		CreatedAt:      profile.CreatedAt,
		UpdatedAt:      now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}

func toDomainUserProfile(id string, doc profileDocument) domain.UserProfile {
	return domain.UserProfile{
		ID:                    id,
		Username:              doc.Username,
		Email:                 doc.Email,
		DefaultPhoneNumber:    doc.PhoneNumber,
		DefaultStreetAddress1: doc.StreetAddress1,
		DefaultStreetAddress2: doc.StreetAddress2,
		DefaultTownOrCity:     doc.TownOrCity,
		DefaultCounty:         doc.County,
		DefaultPostcode:       doc.Postcode,
		DefaultLocality:       doc.Locality,
		CreatedAt:             doc.CreatedAt,
		UpdatedAt:             doc.UpdatedAt,
	}
}
