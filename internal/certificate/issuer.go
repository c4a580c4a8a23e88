package certificate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrCorrupt = errors.New("certificate artifact is corrupt")

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Request carries everything needed to issue one certificate. Identity is resolved from
// IssuedAt first, then ExistingURL, then CompletedAt.
type Request struct {
	UserID       string
	AssessmentID uint
	CompletedAt  time.Time
	IssuedAt     *time.Time
	ExistingURL  string
	Data         Data
}

type Issued struct {
	Identity Identity
	Serial   string
	URL      string
	Rendered bool
}

type Issuer struct {
	store    Store
	renderer Renderer
	logger   *slog.Logger
	group    singleflight.Group
}

func NewIssuer(store Store, renderer Renderer, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{store: store, renderer: renderer, logger: logger}
}

// ResolveIdentity picks the identity a request maps to, without touching storage.
func ResolveIdentity(req Request) Identity {
	if req.IssuedAt != nil && !req.IssuedAt.IsZero() {
		return NewIdentity(req.UserID, req.AssessmentID, *req.IssuedAt)
	}
	if req.ExistingURL != "" {
		if id, ok := ParseIdentity(req.ExistingURL); ok && id.UserID == req.UserID && id.AssessmentID == req.AssessmentID {
			return id
		}
	}
	return NewIdentity(req.UserID, req.AssessmentID, req.CompletedAt)
}

// Issue returns the certificate for req, rendering it only if it is not already stored.
// Concurrent calls for one identity share a single render.
func (i *Issuer) Issue(ctx context.Context, req Request) (*Issued, error) {
	id := ResolveIdentity(req)
	if !id.Valid() {
		return nil, fmt.Errorf("invalid certificate identity for user %q assessment %d", req.UserID, req.AssessmentID)
	}
	key := id.Key()

	v, err, _ := i.group.Do(key, func() (interface{}, error) {
		issued := &Issued{Identity: id, Serial: id.Serial(), URL: i.store.URL(key)}

		exists, err := i.store.Exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check certificate: %w", err)
		}
		if exists {
			return issued, nil
		}

		if err := i.render(ctx, id, req); err != nil {
			return nil, err
		}

		i.logger.Info("Certificate rendered", "key", key, "user_id", req.UserID, "assessment_id", req.AssessmentID)
		issued.Rendered = true
		return issued, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Issued), nil
}

// Fetch returns the artifact bytes for id. A missing artifact yields ErrNotFound, a
// truncated or foreign one ErrCorrupt; both are repairable through Issue.
func (i *Issuer) Fetch(ctx context.Context, id Identity) ([]byte, string, error) {
	rc, err := i.store.Open(ctx, id.Key())
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read certificate: %w", err)
	}
	if !bytes.HasPrefix(body, pngSignature) {
		return nil, "", ErrCorrupt
	}
	return body, i.renderer.ContentType(), nil
}

// Replace re-renders the artifact under the same identity, overwriting a corrupt one.
func (i *Issuer) Replace(ctx context.Context, req Request) (*Issued, error) {
	id := ResolveIdentity(req)
	if !id.Valid() {
		return nil, fmt.Errorf("invalid certificate identity for user %q assessment %d", req.UserID, req.AssessmentID)
	}
	if err := i.render(ctx, id, req); err != nil {
		return nil, err
	}
	i.logger.Info("Certificate replaced", "key", id.Key(), "user_id", req.UserID)
	return &Issued{Identity: id, Serial: id.Serial(), URL: i.store.URL(id.Key()), Rendered: true}, nil
}

func (i *Issuer) render(ctx context.Context, id Identity, req Request) error {
	data := req.Data
	data.Serial = id.Serial()
	if data.CompletedAt.IsZero() {
		data.CompletedAt = req.CompletedAt
	}

	var buf bytes.Buffer
	if err := i.renderer.Render(&buf, data); err != nil {
		return fmt.Errorf("failed to render certificate: %w", err)
	}
	if err := i.store.Put(ctx, id.Key(), &buf, i.renderer.ContentType()); err != nil {
		return fmt.Errorf("failed to store certificate: %w", err)
	}
	return nil
}
