package domain

import "fmt"

// Collection names one of the document variants stored by the repository.
type Collection string

const (
	CollectionEntity         Collection = "entity"
	CollectionCompilation    Collection = "compilation"
	CollectionAnnotation     Collection = "annotation"
	CollectionPerson         Collection = "person"
	CollectionInstitution    Collection = "institution"
	CollectionDigitalEntity  Collection = "digitalentity"
	CollectionPhysicalEntity Collection = "physicalentity"
	CollectionContact        Collection = "contact"
	CollectionAddress        Collection = "address"
	CollectionTag            Collection = "tag"
	CollectionGroup          Collection = "group"
)

var collections = []Collection{
	CollectionEntity,
	CollectionCompilation,
	CollectionAnnotation,
	CollectionPerson,
	CollectionInstitution,
	CollectionDigitalEntity,
	CollectionPhysicalEntity,
	CollectionContact,
	CollectionAddress,
	CollectionTag,
	CollectionGroup,
}

// Collections returns every known collection.
func Collections() []Collection {
	out := make([]Collection, len(collections))
	copy(out, collections)
	return out
}

func (c Collection) Valid() bool {
	for _, known := range collections {
		if c == known {
			return true
		}
	}
	return false
}

// Owned reports whether documents of this collection are tracked in a user's possession list.
func (c Collection) Owned() bool {
	switch c {
	case CollectionAddress, CollectionContact, CollectionTag:
		return false
	default:
		return c.Valid()
	}
}

func ParseCollection(s string) (Collection, error) {
	c := Collection(s)
	if !c.Valid() {
		return "", ValidationError{Field: "collection", Reason: fmt.Sprintf("unknown collection %q", s)}
	}
	return c, nil
}

// NewDocument returns an empty document for the collection.
func NewDocument(c Collection) (Document, error) {
	switch c {
	case CollectionEntity:
		return &Entity{}, nil
	case CollectionCompilation:
		return &Compilation{}, nil
	case CollectionAnnotation:
		return &Annotation{}, nil
	case CollectionPerson:
		return &Person{}, nil
	case CollectionInstitution:
		return &Institution{}, nil
	case CollectionDigitalEntity:
		return &DigitalEntity{}, nil
	case CollectionPhysicalEntity:
		return &PhysicalEntity{}, nil
	case CollectionContact:
		return &Contact{}, nil
	case CollectionAddress:
		return &Address{}, nil
	case CollectionTag:
		return &Tag{}, nil
	case CollectionGroup:
		return &Group{}, nil
	}
	return nil, ValidationError{Field: "collection", Reason: fmt.Sprintf("unknown collection %q", c)}
}
