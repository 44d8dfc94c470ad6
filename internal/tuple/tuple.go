package tuple

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidTuple = errors.New("tuple: invalid tuple")

// Object identifies a resource as type:id, e.g. "document:1".
type Object struct {
	Type string
	ID   string
}

func (o Object) String() string {
	return o.Type + ":" + o.ID
}

func (o Object) IsZero() bool {
	return o.Type == "" && o.ID == ""
}

// ParseObject parses a "type:id" reference.
func ParseObject(s string) (Object, error) {
	idx := strings.Index(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return Object{}, fmt.Errorf("%w: object %q must be type:id", ErrInvalidTuple, s)
	}
	return Object{Type: s[:idx], ID: s[idx+1:]}, nil
}

// Subject is either a concrete object ("user:alice") or a userset reference
// ("group:eng#member") naming every subject holding a relation on an object.
type Subject struct {
	Object   Object
	Relation string
}

// IsUserset reports whether the subject is an indirect userset reference.
func (s Subject) IsUserset() bool {
	return s.Relation != ""
}

func (s Subject) String() string {
	if s.Relation == "" {
		return s.Object.String()
	}
	return s.Object.String() + "#" + s.Relation
}

// ParseSubject parses "type:id" or "type:id#relation".
func ParseSubject(s string) (Subject, error) {
	ref := s
	relation := ""
	if idx := strings.Index(s, "#"); idx >= 0 {
		ref = s[:idx]
		relation = s[idx+1:]
		if relation == "" {
			return Subject{}, fmt.Errorf("%w: subject %q has empty relation", ErrInvalidTuple, s)
		}
	}
	obj, err := ParseObject(ref)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Object: obj, Relation: relation}, nil
}

// Tuple is a single (resource, relation, subject) fact scoped to one vault.
type Tuple struct {
	Resource Object
	Relation string
	Subject  Subject
}

func (t Tuple) String() string {
	return t.Resource.String() + "#" + t.Relation + "@" + t.Subject.String()
}

// Validate rejects structurally incomplete tuples before they reach a store.
func (t Tuple) Validate() error {
	if t.Resource.Type == "" || t.Resource.ID == "" {
		return fmt.Errorf("%w: resource is required", ErrInvalidTuple)
	}
	if strings.TrimSpace(t.Relation) == "" {
		return fmt.Errorf("%w: relation is required", ErrInvalidTuple)
	}
	if t.Subject.Object.Type == "" || t.Subject.Object.ID == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidTuple)
	}
	return nil
}

// New builds a tuple from string forms; convenience for handlers and tests.
func New(resource, relation, subject string) (Tuple, error) {
	res, err := ParseObject(resource)
	if err != nil {
		return Tuple{}, err
	}
	sub, err := ParseSubject(subject)
	if err != nil {
		return Tuple{}, err
	}
	t := Tuple{Resource: res, Relation: strings.TrimSpace(relation), Subject: sub}
	if err := t.Validate(); err != nil {
		return Tuple{}, err
	}
	return t, nil
}

// Filter pins any subset of {resource, relation, subject}. Zero fields match
// everything. ResourceType alone matches all objects of that type.
type Filter struct {
	ResourceType string
	ResourceID   string
	Relation     string
	Subject      *Subject
}

// Match reports whether the tuple satisfies every pinned field.
func (f Filter) Match(t Tuple) bool {
	if f.ResourceType != "" && t.Resource.Type != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && t.Resource.ID != f.ResourceID {
		return false
	}
	if f.Relation != "" && t.Relation != f.Relation {
		return false
	}
	if f.Subject != nil && *f.Subject != t.Subject {
		return false
	}
	return true
}
