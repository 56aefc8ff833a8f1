package service

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docshare/internal/audit"
	"docshare/internal/config"
	"docshare/internal/metrics"
	"docshare/internal/model"
	"docshare/internal/repository"
)

var (
	ErrNoActiveDocument        = errors.New("no active document to share")
	ErrInvalidSnapshot         = errors.New("document snapshot must be a JSON object or markup string")
	ErrUnsupportedDocumentType = errors.New("document type cannot be shared")
	ErrShareNotFound           = errors.New("share not found")
	ErrInvalidRole             = errors.New("role is not declared on this share")
	ErrEmptySignature          = errors.New("signature image is empty")
	ErrRoleAlreadySigned       = errors.New("role has already signed")
	ErrAccessDenied            = errors.New("access password does not match")
	ErrStoreUnavailable        = errors.New("share store unavailable")
)

const (
	maxIDAttempts  = 5
	maxCASAttempts = 10
)

// CreateShareInput is the owner's request to freeze and share a document.
type CreateShareInput struct {
	DocumentType model.DocumentType `json:"documentType"`
	Snapshot     json.RawMessage    `json:"documentSnapshot"`
	// Password is optional; one is generated when empty.
	Password string `json:"accessPassword,omitempty"`
}

// SignatureInput carries a captured signature image, usually a data: URL.
type SignatureInput struct {
	ImageData string `json:"imageData"`
}

// ListFilter narrows ListShares. An empty Status matches every record.
type ListFilter struct {
	Status model.ShareStatus
}

// Auditor receives one call per state change. Implementations must not fail the caller.
type Auditor interface {
	Record(ctx context.Context, action, shareID string, details map[string]any)
}

// SharingService defines the use cases of the document sharing workflow.
type SharingService interface {
	// CreateShare freezes the snapshot into a new pending record.
	CreateShare(ctx context.Context, in CreateShareInput) (*model.ShareResult, error)

	// SubmitSignature fills the role slot of a share. A slot is written once.
	SubmitSignature(ctx context.Context, shareID string, role model.Role, in SignatureInput) error

	// GetStatus returns nil, nil when the share does not exist.
	GetStatus(ctx context.Context, shareID string) (*model.SignatureStatus, error)

	// GetCompletedDocument returns nil, nil unless every slot is signed.
	GetCompletedDocument(ctx context.Context, shareID string) (*model.CompletedDocument, error)

	// DeleteShare removes the record and its notification mark.
	DeleteShare(ctx context.Context, shareID string) error

	// ListShares returns summaries, newest first.
	ListShares(ctx context.Context, filter ListFilter) ([]model.ShareSummary, error)

	// OpenShare returns the record to a signing party holding the access password.
	OpenShare(ctx context.Context, shareID, password string) (*model.ShareRecord, error)
}

// sharingService is a concrete implementation of SharingService.
type sharingService struct {
	store       repository.KeyValueStore
	policy      config.Policy
	shareable   map[model.DocumentType]struct{}
	roles       []model.Role
	labels      map[model.Role]string
	now         func() time.Time
	loc         *time.Location
	passwordLen int
	auditor     Auditor
	metrics     *metrics.Sharing
}

// Option configures the sharing service.
type Option func(*sharingService)

// WithPolicy replaces the default sharing policy.
func WithPolicy(p config.Policy) Option {
	return func(s *sharingService) { s.policy = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *sharingService) { s.now = now }
}

// WithLocation sets the time zone used in the rendered signatures section.
func WithLocation(loc *time.Location) Option {
	return func(s *sharingService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithPasswordLength sets the length of generated access passwords.
func WithPasswordLength(n int) Option {
	return func(s *sharingService) {
		if n > 0 {
			s.passwordLen = n
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(s *sharingService) { s.auditor = a }
}

func WithMetrics(m *metrics.Sharing) Option {
	return func(s *sharingService) { s.metrics = m }
}

// NewSharingService constructs a SharingService over an injected store.
func NewSharingService(store repository.KeyValueStore, opts ...Option) SharingService {
	s := &sharingService{
		store:       store,
		policy:      config.DefaultPolicy(),
		now:         time.Now,
		loc:         time.UTC,
		passwordLen: DefaultPasswordLength,
	}
	for _, o := range opts {
		o(s)
	}

	s.shareable = make(map[model.DocumentType]struct{}, len(s.policy.ShareableTypes))
	for _, t := range s.policy.ShareableTypes {
		s.shareable[model.DocumentType(t)] = struct{}{}
	}
	s.labels = make(map[model.Role]string, len(s.policy.Roles))
	for _, r := range s.policy.Roles {
		s.roles = append(s.roles, model.Role(r.Name))
		s.labels[model.Role(r.Name)] = r.Label
	}
	return s
}

func (s *sharingService) CreateShare(ctx context.Context, in CreateShareInput) (*model.ShareResult, error) {
	snapshot, err := normalizeSnapshot(in.Snapshot)
	if err != nil {
		return nil, err
	}
	if _, ok := s.shareable[in.DocumentType]; !ok {
		return nil, ErrUnsupportedDocumentType
	}

	password := strings.TrimSpace(in.Password)
	if password == "" {
		if password, err = GeneratePassword(s.passwordLen); err != nil {
			return nil, fmt.Errorf("generate password: %w", err)
		}
	}

	createdAt := s.now().UTC()
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate share id: %w", err)
		}

		rec := model.NewShareRecord(id.String(), password, in.DocumentType, snapshot, s.roles, createdAt)
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode share record: %w", err)
		}

		_, err = s.store.Create(ctx, model.ShareKey(rec.ShareID), string(raw))
		if errors.Is(err, repository.ErrKeyExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("share.id", rec.ShareID),
			attribute.String("share.document_type", string(rec.DocumentType)),
		)
		s.metrics.ShareCreated()
		s.audit(ctx, audit.ActionShareCreated, rec.ShareID, map[string]any{
			"documentType": string(rec.DocumentType),
		})
		return &model.ShareResult{ShareID: rec.ShareID, AccessPassword: password}, nil
	}
	return nil, fmt.Errorf("%w: no free share id after %d attempts", ErrStoreUnavailable, maxIDAttempts)
}

func (s *sharingService) SubmitSignature(ctx context.Context, shareID string, role model.Role, in SignatureInput) error {
	if strings.TrimSpace(in.ImageData) == "" {
		return ErrEmptySignature
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		rec, version, err := s.load(ctx, shareID)
		if err != nil {
			return err
		}
		if !rec.HasRole(role) {
			return ErrInvalidRole
		}
		if rec.Signed(role) {
			return ErrRoleAlreadySigned
		}

		if rec.Signatures == nil {
			rec.Signatures = make(map[model.Role]*model.SignatureEntry, len(rec.Roles))
		}
		rec.Signatures[role] = &model.SignatureEntry{ImageData: in.ImageData, SignedAt: s.now().UTC()}
		rec.RefreshStatus()

		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode share record: %w", err)
		}

		_, err = s.store.Update(ctx, model.ShareKey(shareID), string(raw), version)
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			// Another slot was written concurrently; re-read and re-check.
			trace.SpanFromContext(ctx).AddEvent("share_version_conflict",
				trace.WithAttributes(attribute.Int("attempt", attempt+1)))
			continue
		case errors.Is(err, repository.ErrNotFound):
			return ErrShareNotFound
		case err != nil:
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("share.id", shareID),
			attribute.String("share.role", string(role)),
			attribute.String("share.status", string(rec.Status)),
		)
		s.metrics.SignatureSubmitted(string(role))
		s.audit(ctx, audit.ActionSignatureSubmitted, shareID, map[string]any{"role": string(role)})
		if rec.Status == model.StatusCompleted {
			s.metrics.ShareCompleted()
			s.audit(ctx, audit.ActionShareCompleted, shareID, nil)
		}
		return nil
	}
	return fmt.Errorf("%w: too many concurrent updates on share %s", ErrStoreUnavailable, shareID)
}

func (s *sharingService) GetStatus(ctx context.Context, shareID string) (*model.SignatureStatus, error) {
	rec, _, err := s.load(ctx, shareID)
	if errors.Is(err, ErrShareNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	signed := make(map[model.Role]bool, len(rec.Roles))
	for _, r := range rec.Roles {
		signed[r] = rec.Signed(r)
	}
	return &model.SignatureStatus{
		ShareID:   rec.ShareID,
		Signed:    signed,
		AllSigned: rec.AllSigned(),
		Status:    rec.Status,
	}, nil
}

func (s *sharingService) GetCompletedDocument(ctx context.Context, shareID string) (*model.CompletedDocument, error) {
	rec, _, err := s.load(ctx, shareID)
	if errors.Is(err, ErrShareNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !rec.AllSigned() {
		return nil, nil
	}

	sigs := make([]model.RenderedSignature, 0, len(rec.Roles))
	for _, r := range rec.Roles {
		entry := rec.Signatures[r]
		sigs = append(sigs, model.RenderedSignature{
			Role:      r,
			Label:     s.label(r),
			ImageData: entry.ImageData,
			SignedAt:  entry.SignedAt,
		})
	}

	section, err := renderSignaturesSection(sigs, s.loc)
	if err != nil {
		return nil, fmt.Errorf("render signatures section: %w", err)
	}

	return &model.CompletedDocument{
		ShareID:           rec.ShareID,
		DocumentType:      rec.DocumentType,
		Snapshot:          rec.Snapshot,
		Signatures:        sigs,
		SignaturesSection: section,
		CompletedAt:       rec.CompletedAt(),
	}, nil
}

func (s *sharingService) DeleteShare(ctx context.Context, shareID string) error {
	if _, _, err := s.load(ctx, shareID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, model.ShareKey(shareID)); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if err := s.store.Delete(ctx, model.NotifiedKey(shareID)); err != nil {
		return fmt.Errorf("%w: delete notification mark: %w", ErrStoreUnavailable, err)
	}

	s.audit(ctx, audit.ActionShareDeleted, shareID, nil)
	return nil
}

func (s *sharingService) ListShares(ctx context.Context, filter ListFilter) ([]model.ShareSummary, error) {
	entries, err := s.store.List(ctx, model.ShareKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	out := make([]model.ShareSummary, 0, len(entries))
	for _, e := range entries {
		var rec model.ShareRecord
		if err := json.Unmarshal([]byte(e.Value), &rec); err != nil {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		signed := make(map[model.Role]bool, len(rec.Roles))
		for _, r := range rec.Roles {
			signed[r] = rec.Signed(r)
		}
		out = append(out, model.ShareSummary{
			ShareID:      rec.ShareID,
			DocumentType: rec.DocumentType,
			CreatedAt:    rec.CreatedAt,
			Status:       rec.Status,
			Signed:       signed,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ShareID > out[j].ShareID
	})
	return out, nil
}

func (s *sharingService) OpenShare(ctx context.Context, shareID, password string) (*model.ShareRecord, error) {
	rec, _, err := s.load(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(rec.AccessPassword)) != 1 {
		return nil, ErrAccessDenied
	}
	return rec, nil
}

// load reads and decodes a share record along with its store version.
func (s *sharingService) load(ctx context.Context, shareID string) (*model.ShareRecord, int64, error) {
	if shareID == "" {
		return nil, 0, ErrShareNotFound
	}
	e, err := s.store.Get(ctx, model.ShareKey(shareID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, ErrShareNotFound
		}
		return nil, 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	var rec model.ShareRecord
	if err := json.Unmarshal([]byte(e.Value), &rec); err != nil {
		return nil, 0, fmt.Errorf("decode share record %s: %w", shareID, err)
	}
	return &rec, e.Version, nil
}

func (s *sharingService) label(r model.Role) string {
	if l, ok := s.labels[r]; ok && l != "" {
		return l
	}
	return string(r)
}

func (s *sharingService) audit(ctx context.Context, action, shareID string, details map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, action, shareID, details)
}

// normalizeSnapshot accepts a JSON object of form fields or a JSON string of
// rendered markup. Absent, null, {} and blank markup mean there is nothing to share.
func normalizeSnapshot(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrNoActiveDocument
	}
	if !json.Valid(trimmed) {
		return nil, ErrInvalidSnapshot
	}

	switch trimmed[0] {
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, ErrInvalidSnapshot
		}
		if len(fields) == 0 {
			return nil, ErrNoActiveDocument
		}
	case '"':
		var markup string
		if err := json.Unmarshal(trimmed, &markup); err != nil {
			return nil, ErrInvalidSnapshot
		}
		if strings.TrimSpace(markup) == "" {
			return nil, ErrNoActiveDocument
		}
	default:
		return nil, ErrInvalidSnapshot
	}

	out := make(json.RawMessage, len(trimmed))
	copy(out, trimmed)
	return out, nil
}
