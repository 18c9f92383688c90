package domain

import "encoding/json"

// Clone returns a deep copy of v.
func Clone[T any](v *T) (*T, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloneDocument returns a deep copy of a document, keeping its concrete type.
func CloneDocument(doc Document) (Document, error) {
	out, err := NewDocument(doc.Collection())
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
