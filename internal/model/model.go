// Package model defines the data types shared across the gateway:
// resource directory entries, column profiles, and query plans.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ResourceStatus is the lifecycle state of a resource.
type ResourceStatus int

const (
	StatusOK ResourceStatus = iota
	StatusGone
)

func (s ResourceStatus) String() string {
	if s == StatusGone {
		return "gone"
	}
	return "ok"
}

// ResourceRef is a directory entry: the mapping from an opaque
// resource_id to the downstream table that backs it.
type ResourceRef struct {
	ResourceID         uuid.UUID
	TableName          string
	Status             ResourceStatus
	DatasetID          *uuid.UUID
	AggregationAllowed bool
	CreatedAt          time.Time
	URL                string
	Metadata           map[string]any
}

// SemanticType is the inferred type of a column, used to decide which
// query operators are legal against it.
type SemanticType int

const (
	TypeString SemanticType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeDate
	TypeDatetime
	TypeJSON
)

func (t SemanticType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	case TypeDatetime:
		return "datetime"
	case TypeJSON:
		return "json"
	default:
		return "string"
	}
}

// Numeric reports whether the numeric aggregation operators (sum,
// avg) are meaningful for this type.
func (t SemanticType) Numeric() bool {
	return t == TypeInt || t == TypeFloat
}

// Orderable reports whether greater/less-than style operators apply.
func (t SemanticType) Orderable() bool {
	switch t {
	case TypeInt, TypeFloat, TypeDate, TypeDatetime:
		return true
	default:
		return false
	}
}

// ProfileColumn describes one column of a resource's backing table.
type ProfileColumn struct {
	Name         string
	SemanticType SemanticType
	Provenance   map[string]any
}

// Profile is the ordered column inventory for a resource, used by the
// parser to validate query suffixes and by the swagger generator to
// build per-resource parameter lists.
type Profile struct {
	ResourceID uuid.UUID
	Columns    []ProfileColumn
}

// Column looks up a column definition by name.
func (p *Profile) Column(name string) (ProfileColumn, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ProfileColumn{}, false
}
