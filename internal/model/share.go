package model

import (
	"encoding/json"
	"time"
)

// DocumentType identifies which paper form a snapshot was taken from.
type DocumentType string

const (
	DocumentArretTravail           DocumentType = "arret-travail"
	DocumentCertificatNaissance    DocumentType = "certificat-naissance"
	DocumentFactureHospitalisation DocumentType = "facture-hospitalisation"
)

// KnownDocumentTypes lists every template the editor can render.
var KnownDocumentTypes = []DocumentType{
	DocumentArretTravail,
	DocumentCertificatNaissance,
	DocumentFactureHospitalisation,
}

// Known reports whether t is one of the editor's templates.
func (t DocumentType) Known() bool {
	for _, k := range KnownDocumentTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Role names a signing slot on a shared document.
type Role string

const (
	RoleMother Role = "mother"
	RoleFather Role = "father"
)

// ShareStatus is derived from the signature slots.
type ShareStatus string

const (
	StatusPending   ShareStatus = "pending"
	StatusCompleted ShareStatus = "completed"
)

// Store key namespaces.
const (
	ShareKeyPrefix    = "share:"
	NotifiedKeyPrefix = "notified:"
	AuditKeyPrefix    = "audit:"
)

// ShareKey returns the store key of a share record.
func ShareKey(shareID string) string { return ShareKeyPrefix + shareID }

// NotifiedKey returns the store key marking a completion as already reported.
func NotifiedKey(shareID string) string { return NotifiedKeyPrefix + shareID }

// SignatureEntry is one applied signature.
type SignatureEntry struct {
	ImageData string    `json:"imageData"`
	SignedAt  time.Time `json:"signedAt"`
}

// ShareRecord is a frozen document snapshot plus its signature collection state.
// Snapshot is never modified after creation; only Signatures and Status change.
type ShareRecord struct {
	ShareID        string                   `json:"shareId"`
	AccessPassword string                   `json:"accessPassword"`
	DocumentType   DocumentType             `json:"documentType"`
	Snapshot       json.RawMessage          `json:"documentSnapshot"`
	CreatedAt      time.Time                `json:"createdAt"`
	Roles          []Role                   `json:"roles"`
	Signatures     map[Role]*SignatureEntry `json:"signatures"`
	Status         ShareStatus              `json:"status"`
}

// NewShareRecord builds a pending record with one empty slot per role.
func NewShareRecord(id, password string, docType DocumentType, snapshot json.RawMessage, roles []Role, createdAt time.Time) *ShareRecord {
	sigs := make(map[Role]*SignatureEntry, len(roles))
	for _, r := range roles {
		sigs[r] = nil
	}
	rolesCopy := make([]Role, len(roles))
	copy(rolesCopy, roles)
	return &ShareRecord{
		ShareID:        id,
		AccessPassword: password,
		DocumentType:   docType,
		Snapshot:       snapshot,
		CreatedAt:      createdAt,
		Roles:          rolesCopy,
		Signatures:     sigs,
		Status:         StatusPending,
	}
}

// HasRole reports whether r is a declared slot of the record.
func (r *ShareRecord) HasRole(role Role) bool {
	for _, declared := range r.Roles {
		if declared == role {
			return true
		}
	}
	return false
}

// Signed reports whether the slot for role holds a signature.
func (r *ShareRecord) Signed(role Role) bool {
	return r.Signatures[role] != nil
}

// AllSigned reports whether every declared slot holds a signature.
func (r *ShareRecord) AllSigned() bool {
	if len(r.Roles) == 0 {
		return false
	}
	for _, role := range r.Roles {
		if !r.Signed(role) {
			return false
		}
	}
	return true
}

// RefreshStatus recomputes Status from the signature slots.
func (r *ShareRecord) RefreshStatus() {
	if r.AllSigned() {
		r.Status = StatusCompleted
	} else {
		r.Status = StatusPending
	}
}

// CompletedAt is the latest signing time, or zero when not completed.
func (r *ShareRecord) CompletedAt() time.Time {
	if !r.AllSigned() {
		return time.Time{}
	}
	var last time.Time
	for _, role := range r.Roles {
		if at := r.Signatures[role].SignedAt; at.After(last) {
			last = at
		}
	}
	return last
}

// ShareResult is returned to the owner after sharing.
// QRCodeData is the text a client encodes into the share's QR code.
type ShareResult struct {
	ShareID        string `json:"shareId"`
	AccessPassword string `json:"accessPassword"`
	AccessURL      string `json:"accessUrl,omitempty"`
	QRCodeData     string `json:"qrCodeData,omitempty"`
}

// SignatureStatus is the read-only view of a record's signing progress.
type SignatureStatus struct {
	ShareID   string        `json:"shareId"`
	Signed    map[Role]bool `json:"signed"`
	AllSigned bool          `json:"allSigned"`
	Status    ShareStatus   `json:"status"`
}

// RenderedSignature is one signature as it appears on the completed document.
type RenderedSignature struct {
	Role      Role      `json:"role"`
	Label     string    `json:"label"`
	ImageData string    `json:"imageData"`
	SignedAt  time.Time `json:"signedAt"`
}

// CompletedDocument is the original snapshot plus its signatures section.
type CompletedDocument struct {
	ShareID           string              `json:"shareId"`
	DocumentType      DocumentType        `json:"documentType"`
	Snapshot          json.RawMessage     `json:"documentSnapshot"`
	Signatures        []RenderedSignature `json:"signatures"`
	SignaturesSection string              `json:"signaturesSection"`
	CompletedAt       time.Time           `json:"completedAt"`
}

// ShareSummary is a listing row; it never carries the snapshot or password.
type ShareSummary struct {
	ShareID      string        `json:"shareId"`
	DocumentType DocumentType  `json:"documentType"`
	CreatedAt    time.Time     `json:"createdAt"`
	Status       ShareStatus   `json:"status"`
	Signed       map[Role]bool `json:"signed"`
}
