package models

import (
	"strings"
	"time"
)

// ResourceKind tags what a bookable resource is.
type ResourceKind string

const (
	ResourceTeacher      ResourceKind = "TEACHER"
	ResourceRoom         ResourceKind = "ROOM"
	ResourceClassSection ResourceKind = "CLASS_SECTION"
)

// ResourceKinds lists every supported kind in display order.
var ResourceKinds = []ResourceKind{ResourceTeacher, ResourceRoom, ResourceClassSection}

// ParseResourceKind normalises user input into a known kind.
func ParseResourceKind(raw string) (ResourceKind, bool) {
	kind := ResourceKind(strings.ToUpper(strings.TrimSpace(raw)))
	if kind == "VENUE" {
		return ResourceRoom, true
	}
	for _, known := range ResourceKinds {
		if kind == known {
			return kind, true
		}
	}
	return "", false
}

// KindList renders the supported kinds for error messages, e.g. "TEACHER, ROOM, CLASS_SECTION".
func KindList() string {
	names := make([]string, len(ResourceKinds))
	for i, k := range ResourceKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Resource is a bookable entity. ID and Kind never change after registration.
type Resource struct {
	ID          string       `db:"id" json:"id"`
	Kind        ResourceKind `db:"kind" json:"kind"`
	DisplayName string       `db:"display_name" json:"display_name"`
	Version     int64        `db:"version" json:"-"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}
