// README: Supporting documents attached to a driver or a unit.
package document

import (
	"time"

	"truckmatch/internal/types"
)

type OwnerKind string

const (
	OwnerDriver OwnerKind = "driver"
	OwnerUnit   OwnerKind = "unit"
)

// Owner identifies the driver or unit a document belongs to.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   types.ID  `json:"id"`
}

func DriverOwner(id types.ID) Owner { return Owner{Kind: OwnerDriver, ID: id} }
func UnitOwner(id types.ID) Owner   { return Owner{Kind: OwnerUnit, ID: id} }

func (o Owner) Valid() bool {
	return (o.Kind == OwnerDriver || o.Kind == OwnerUnit) && o.ID != ""
}

type Status string

const (
	StatusValid         Status = "valid"
	StatusExpired       Status = "expired"
	StatusRejected      Status = "rejected"
	StatusPendingReview Status = "pending_review"
)

func (s Status) Valid() bool {
	switch s {
	case StatusValid, StatusExpired, StatusRejected, StatusPendingReview:
		return true
	}
	return false
}

type Type string

const (
	TypeLicense            Type = "license"
	TypeInsurance          Type = "insurance"
	TypeRegistration       Type = "registration"
	TypeInspection         Type = "inspection"
	TypePermit             Type = "permit"
	TypeMedicalCertificate Type = "medical_certificate"
	TypeIdentification     Type = "identification"
	TypeOther              Type = "other"
)

var AllTypes = []Type{
	TypeLicense, TypeInsurance, TypeRegistration, TypeInspection,
	TypePermit, TypeMedicalCertificate, TypeIdentification, TypeOther,
}

var knownTypes = func() map[Type]bool {
	m := make(map[Type]bool, len(AllTypes))
	for _, t := range AllTypes {
		m[t] = true
	}
	return m
}()

func (t Type) Valid() bool { return knownTypes[t] }

type Document struct {
	ID             types.ID   `json:"id"`
	Owner          Owner      `json:"owner"`
	Type           Type       `json:"type"`
	URL            string     `json:"url"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CurrentlyValid requires status valid and no expiration at or before now.
func (d Document) CurrentlyValid(now time.Time) bool {
	if d.Status != StatusValid {
		return false
	}
	return d.ExpirationDate == nil || d.ExpirationDate.After(now)
}

// FilterValid keeps the currently valid documents in their original order.
func FilterValid(docs []Document, now time.Time) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.CurrentlyValid(now) {
			out = append(out, d)
		}
	}
	return out
}

var ErrNotFound = types.NotFound("Document not found")
