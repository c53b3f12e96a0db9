package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tastyhub/api/internal/platform/auth"
)

type stubSigner struct {
	email string
	calls int
	err   error
}

func (s *stubSigner) Email() string { return s.email }

func (s *stubSigner) SignBytes(context.Context, []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls++
	return []byte("signature"), nil
}

func newTestClient(t *testing.T, at time.Time) (*Client, *stubSigner) {
	t.Helper()
	signer := &stubSigner{email: "uploads@tastyhub-dev.iam.gserviceaccount.com"}
	client, err := NewClient(signer, WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, signer
}

func TestSignedURLUploadIncludesConstraintHeaders(t *testing.T) {
	now := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)
	client, signer := newTestClient(t, now)

	res, err := client.SignedURL(context.Background(), "tastyhub-media", "menu/dishes/dish123/images/upload456/plate.png", SignedURLOptions{
		Upload: &UploadOptions{
			ContentType:         "image/png",
			ContentMD5:          "xN0dYbCPv0CM0k9d1u8G7g==",
			RequireMD5:          true,
			AllowedContentTypes: []string{"image/png", "image/jpeg"},
			MaxSize:             1 << 20,
			ExpiresIn:           10 * time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}

	if res.Method != httpMethodPut {
		t.Errorf("method = %s, want PUT", res.Method)
	}
	if want := now.Add(10 * time.Minute); !res.ExpiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", res.ExpiresAt, want)
	}
	wantHeaders := map[string]string{
		"Content-Type":                "image/png",
		"Content-MD5":                 "xN0dYbCPv0CM0k9d1u8G7g==",
		"x-goog-content-length-range": "0,1048576",
	}
	for key, want := range wantHeaders {
		if got := res.Headers[key]; got != want {
			t.Errorf("header %s = %q, want %q", key, got, want)
		}
	}

	parsed, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("parse signed URL: %v", err)
	}
	if !strings.Contains(parsed.RawQuery, "X-Goog-Signature=") {
		t.Errorf("signature missing from query: %s", parsed.RawQuery)
	}
	if signer.calls == 0 {
		t.Error("signer was never invoked")
	}
}

func TestSignedURLUploadValidation(t *testing.T) {
	client, _ := newTestClient(t, time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC))

	cases := []struct {
		name    string
		upload  UploadOptions
		wantErr error
	}{
		{
			name:    "missing content type",
			upload:  UploadOptions{Method: "PUT"},
			wantErr: errContentTypeMissing,
		},
		{
			name: "content type outside allow list",
			upload: UploadOptions{
				ContentType:         "application/pdf",
				AllowedContentTypes: []string{"image/*"},
			},
			wantErr: errContentTypeDenied,
		},
		{
			name: "md5 required but absent",
			upload: UploadOptions{
				ContentType: "image/png",
				RequireMD5:  true,
			},
			wantErr: errMD5Required,
		},
		{
			name: "md5 not base64",
			upload: UploadOptions{
				ContentType: "image/png",
				ContentMD5:  "not-base-64!",
			},
			wantErr: errMD5Invalid,
		},
		{
			name: "delete method rejected",
			upload: UploadOptions{
				Method:      "DELETE",
				ContentType: "image/png",
			},
			wantErr: errMethodNotAllowed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.SignedURL(context.Background(), "tastyhub-media", "menu/dishes/d1/images/u1/a.png", SignedURLOptions{Upload: &tc.upload})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSignedURLUploadAllowsWildcardContentType(t *testing.T) {
	client, _ := newTestClient(t, time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC))

	_, err := client.SignedURL(context.Background(), "tastyhub-media", "menu/dishes/d1/images/u1/a.webp", SignedURLOptions{
		Upload: &UploadOptions{
			ContentType:         "image/webp",
			AllowedContentTypes: []string{"image/*"},
		},
	})
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
}

func TestSignedURLDownloadDeniesOtherCustomers(t *testing.T) {
	client, _ := newTestClient(t, time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC))

	_, err := client.SignedURL(context.Background(), "tastyhub-media", "menu/dishes/d1/images/u1/a.png", SignedURLOptions{
		Download: &DownloadOptions{
			OwnerID:  "owner-123",
			Identity: &auth.Identity{UID: "other-456"},
		},
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestSignedURLDownloadAllowsStaff(t *testing.T) {
	now := time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC)
	client, _ := newTestClient(t, now)

	res, err := client.SignedURL(context.Background(), "tastyhub-media", "menu/dishes/d1/images/u1/a.png", SignedURLOptions{
		Download: &DownloadOptions{
			OwnerID:   "owner-123",
			Identity:  &auth.Identity{UID: "staff-1", Roles: []string{auth.RoleStaff}},
			ExpiresIn: 5 * time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if res.Method != httpMethodGet {
		t.Errorf("method = %s, want GET", res.Method)
	}
	if want := now.Add(5 * time.Minute); !res.ExpiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", res.ExpiresAt, want)
	}
}

func TestSignedURLDownloadCapsExpiry(t *testing.T) {
	client, _ := newTestClient(t, time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC))

	_, err := client.SignedURL(context.Background(), "tastyhub-media", "menu/dishes/d1/images/u1/a.png", SignedURLOptions{
		Download: &DownloadOptions{
			OwnerID:   "owner",
			Identity:  &auth.Identity{UID: "owner", Roles: []string{auth.RoleUser}},
			ExpiresIn: 30 * time.Minute,
		},
	})
	if !errors.Is(err, errExpiryTooLong) {
		t.Fatalf("err = %v, want errExpiryTooLong", err)
	}
}

func TestSignedURLRejectsConflictingIntents(t *testing.T) {
	client, _ := newTestClient(t, time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC))

	_, err := client.SignedURL(context.Background(), "tastyhub-media", "menu/dishes/d1/images/u1/a.png", SignedURLOptions{
		Upload:   &UploadOptions{ContentType: "image/png"},
		Download: &DownloadOptions{AllowAnonymous: true},
	})
	if !errors.Is(err, errBothIntents) {
		t.Fatalf("err = %v, want errBothIntents", err)
	}
}
