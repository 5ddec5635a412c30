package models

import "time"

// Role is the storage-level role enum for a person.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleVisitor Role = "visitor"
	RoleUnknown Role = "unknown"
)

// In-memory identity labels produced by the arbiter and refiner.
// These are finer-grained than the storage enum; MapRole collapses them.
const (
	LabelFamily          = "family"
	LabelSuspectedFamily = "suspected_family"
	LabelStranger        = "stranger"
	LabelVisitor         = "visitor"
	LabelDelivery        = "delivery"
	LabelService         = "service"
)

// Resolution methods assigned by the arbiter and the refiner.
const (
	MethodFace                 = "face"
	MethodBody                 = "body"
	MethodSoftBody             = "soft_body"
	MethodNew                  = "new"
	MethodRefinedFromSuspected = "refined_from_suspected"
	MethodRefinedFromStranger  = "refined_from_stranger"
	MethodRefinedFromContext   = "refined_from_context"
)

// Match methods as stored in event_appearances.
const (
	MatchFace        = "face"
	MatchBodyReID    = "body_reid"
	MatchBodyRefined = "body_reid_refined"
	MatchNew         = "new"
	MatchUnknown     = "unknown"
)

// MapRole collapses an in-memory label to the storage role enum.
func MapRole(label string) Role {
	switch label {
	case "owner", LabelFamily:
		return RoleOwner
	case LabelVisitor, LabelDelivery, LabelService:
		return RoleVisitor
	default:
		return RoleUnknown
	}
}

// MapMatchMethod maps a resolution method to the stored match_method enum.
func MapMatchMethod(method string) string {
	switch method {
	case MethodFace:
		return MatchFace
	case MethodBody, MethodSoftBody:
		return MatchBodyReID
	case MethodRefinedFromSuspected, MethodRefinedFromStranger, MethodRefinedFromContext:
		return MatchBodyRefined
	case MethodNew:
		return MatchNew
	default:
		return MatchUnknown
	}
}

type Person struct {
	ID             int64      `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	Role           Role       `json:"role" db:"role"`
	BodyEmbedding  []float32  `json:"-" db:"current_body_embedding"`
	BodyUpdateTime *time.Time `json:"body_update_time,omitempty" db:"body_update_time"`
	FirstSeen      time.Time  `json:"first_seen" db:"first_seen"`
	LastSeen       time.Time  `json:"last_seen" db:"last_seen"`
	Notes          string     `json:"notes" db:"notes"`
}

// Resolution is the identity arbiter's verdict for one detection.
type Resolution struct {
	PersonID   int64   `json:"person_id,omitempty"`
	PersonName string  `json:"person_name,omitempty"`
	Label      string  `json:"label"`
	Method     string  `json:"method"`
	Confidence float32 `json:"confidence"`
}

type PersonFace struct {
	ID          int64     `json:"id" db:"id"`
	PersonID    int64     `json:"person_id" db:"person_id"`
	Embedding   []float32 `json:"-" db:"embedding"`
	SourceImage string    `json:"source_image" db:"source_image"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
