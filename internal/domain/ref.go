package domain

import (
	"bytes"
	"encoding/json"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Ref points at a document of type T. It is either unresolved (only ID is
// set) or hydrated (Value holds the document).
type Ref[T any] struct {
	ID    string
	Value *T
}

type idOnly struct {
	ID string `json:"_id" bson:"_id"`
}

func NewRef[T any](id string) Ref[T] {
	return Ref[T]{ID: id}
}

// Hydrate returns a hydrated reference to v.
func Hydrate[T any](v *T) Ref[T] {
	r := Ref[T]{Value: v}
	r.ID = r.RefID()
	return r
}

func (r Ref[T]) IsResolved() bool {
	return r.Value != nil
}

func (r Ref[T]) IsZero() bool {
	return r.Value == nil && r.ID == ""
}

// RefID returns the identifier, preferring the hydrated value's own id.
func (r Ref[T]) RefID() string {
	if r.Value != nil {
		if doc, ok := any(r.Value).(Document); ok && doc.DocID() != "" {
			return doc.DocID()
		}
	}
	return r.ID
}

// Stripped drops the hydrated value and keeps only the identifier.
func (r Ref[T]) Stripped() Ref[T] {
	return Ref[T]{ID: r.RefID()}
}

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.Value != nil {
		return json.Marshal(r.Value)
	}
	return json.Marshal(idOnly{ID: r.ID})
}

func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Ref[T]{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref[T]{ID: id}
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var id string
	if raw, ok := fields["_id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return err
		}
	}
	if len(fields) <= 1 {
		*r = Ref[T]{ID: id}
		return nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*r = Ref[T]{ID: id, Value: &value}
	return nil
}

func (r Ref[T]) MarshalBSON() ([]byte, error) {
	if r.Value != nil {
		return bson.Marshal(r.Value)
	}
	return bson.Marshal(idOnly{ID: r.ID})
}

func (r *Ref[T]) UnmarshalBSON(data []byte) error {
	raw := bson.Raw(data)
	elems, err := raw.Elements()
	if err != nil {
		return err
	}

	var id string
	if v, err := raw.LookupErr("_id"); err == nil {
		if s, ok := v.StringValueOK(); ok {
			id = s
		} else if oid, ok := v.ObjectIDOK(); ok {
			id = oid.Hex()
		}
	}
	if len(elems) <= 1 {
		*r = Ref[T]{ID: id}
		return nil
	}

	var value T
	if err := bson.Unmarshal(data, &value); err != nil {
		return err
	}
	*r = Ref[T]{ID: id, Value: &value}
	return nil
}
