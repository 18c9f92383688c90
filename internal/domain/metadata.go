package domain

// Person is shared between every metadata entity that references it. Its
// relation maps are keyed by the id of the document that recorded the relation.
type Person struct {
	Base              `bson:",inline"`
	Prename           string                        `json:"prename" bson:"prename"`
	Name              string                        `json:"name" bson:"name"`
	Roles             map[string][]string           `json:"roles" bson:"roles"`
	Institutions      map[string][]Ref[Institution] `json:"institutions" bson:"institutions"`
	ContactReferences map[string]Ref[Contact]       `json:"contact_references" bson:"contact_references"`
}

func (*Person) Collection() Collection { return CollectionPerson }

// Institution is shared like Person.
type Institution struct {
	Base       `bson:",inline"`
	Name       string                  `json:"name" bson:"name"`
	University string                  `json:"university" bson:"university"`
	Roles      map[string][]string     `json:"roles" bson:"roles"`
	Notes      map[string]string       `json:"notes" bson:"notes"`
	Addresses  map[string]Ref[Address] `json:"addresses" bson:"addresses"`
}

func (*Institution) Collection() Collection { return CollectionInstitution }

type DescriptionValue struct {
	Description string `json:"description" bson:"description"`
	Value       string `json:"value" bson:"value"`
}

type Place struct {
	Name     string `json:"name" bson:"name"`
	Geopolar string `json:"geopolarArea" bson:"geopolarArea"`
}

// DigitalEntity describes the digital object behind an Entity.
type DigitalEntity struct {
	Base         `bson:",inline"`
	Title        string                `json:"title" bson:"title"`
	Description  string                `json:"description" bson:"description"`
	Type         string                `json:"type" bson:"type"`
	Licence      string                `json:"licence" bson:"licence"`
	Discipline   []string              `json:"discipline" bson:"discipline"`
	Statement    string                `json:"statement" bson:"statement"`
	ObjectType   string                `json:"objecttype" bson:"objecttype"`
	ExternalLink []DescriptionValue    `json:"externalLink" bson:"externalLink"`
	Persons      []Ref[Person]         `json:"persons" bson:"persons"`
	Institutions []Ref[Institution]    `json:"institutions" bson:"institutions"`
	Tags         []Ref[Tag]            `json:"tags" bson:"tags"`
	PhyObjs      []Ref[PhysicalEntity] `json:"phyObjs" bson:"phyObjs"`
}

func (*DigitalEntity) Collection() Collection { return CollectionDigitalEntity }

// PhysicalEntity describes a physical object digitised by a DigitalEntity.
type PhysicalEntity struct {
	Base           `bson:",inline"`
	Title          string             `json:"title" bson:"title"`
	Description    string             `json:"description" bson:"description"`
	CollectionName string             `json:"collection" bson:"collection"`
	Place          Place              `json:"place" bson:"place"`
	Persons        []Ref[Person]      `json:"persons" bson:"persons"`
	Institutions   []Ref[Institution] `json:"institutions" bson:"institutions"`
}

func (*PhysicalEntity) Collection() Collection { return CollectionPhysicalEntity }

// FilterByOwner strips every relation entry not recorded by owner.
func (p *Person) FilterByOwner(owner string) {
	p.Roles = keepKey(p.Roles, owner)
	p.Institutions = keepKey(p.Institutions, owner)
	p.ContactReferences = keepKey(p.ContactReferences, owner)
}

// FilterByOwner strips every relation entry not recorded by owner.
func (i *Institution) FilterByOwner(owner string) {
	i.Roles = keepKey(i.Roles, owner)
	i.Notes = keepKey(i.Notes, owner)
	i.Addresses = keepKey(i.Addresses, owner)
}

func keepKey[V any](m map[string]V, key string) map[string]V {
	out := make(map[string]V, 1)
	if v, ok := m[key]; ok {
		out[key] = v
	}
	return out
}
