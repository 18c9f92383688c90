package domain

// Document is implemented by every stored variant.
type Document interface {
	DocID() string
	SetDocID(id string)
	Collection() Collection
}

// Accessible is implemented by documents that carry an explicit access map.
type Accessible interface {
	Document
	AccessMap() map[string]AccessEntry
}

// Base carries the identifier shared by every variant.
type Base struct {
	ID string `json:"_id" bson:"_id"`
}

func (b *Base) DocID() string      { return b.ID }
func (b *Base) SetDocID(id string) { b.ID = id }

type AccessEntry struct {
	Role     Role   `json:"role" bson:"role"`
	Username string `json:"username,omitempty" bson:"username,omitempty"`
	Fullname string `json:"fullname,omitempty" bson:"fullname,omitempty"`
}

type UserRef struct {
	ID       string `json:"_id" bson:"_id"`
	Username string `json:"username" bson:"username"`
	Fullname string `json:"fullname" bson:"fullname"`
}

type Whitelist struct {
	Enabled bool      `json:"enabled" bson:"enabled"`
	Persons []UserRef `json:"persons" bson:"persons"`
	Groups  []string  `json:"groups" bson:"groups"`
}

type File struct {
	FileName   string `json:"file_name" bson:"file_name"`
	FileLink   string `json:"file_link" bson:"file_link"`
	FileSize   int64  `json:"file_size" bson:"file_size"`
	FileFormat string `json:"file_format" bson:"file_format"`
}

type DataSource struct {
	IsExternal bool   `json:"isExternal" bson:"isExternal"`
	Service    string `json:"service,omitempty" bson:"service,omitempty"`
}

type Processed struct {
	Low    string `json:"low" bson:"low"`
	Medium string `json:"medium" bson:"medium"`
	High   string `json:"high" bson:"high"`
	Raw    string `json:"raw" bson:"raw"`
}

type EntitySettings struct {
	Preview    string  `json:"preview" bson:"preview"`
	Background string  `json:"background,omitempty" bson:"background,omitempty"`
	Scale      float64 `json:"scale" bson:"scale"`
}

// Entity is an uploaded 3D/media object.
type Entity struct {
	Base                 `bson:",inline"`
	Name                 string                     `json:"name" bson:"name"`
	Files                []File                     `json:"files" bson:"files"`
	Annotations          map[string]Ref[Annotation] `json:"annotations" bson:"annotations"`
	RelatedDigitalEntity Ref[DigitalEntity]         `json:"relatedDigitalEntity" bson:"relatedDigitalEntity"`
	Creator              *UserRef                   `json:"creator,omitempty" bson:"creator,omitempty"`
	Whitelist            Whitelist                  `json:"whitelist" bson:"whitelist"`
	Finished             bool                       `json:"finished" bson:"finished"`
	Online               bool                       `json:"online" bson:"online"`
	MediaType            string                     `json:"mediaType" bson:"mediaType"`
	DataSource           DataSource                 `json:"dataSource" bson:"dataSource"`
	Processed            Processed                  `json:"processed" bson:"processed"`
	Settings             EntitySettings             `json:"settings" bson:"settings"`
	Access               map[string]AccessEntry     `json:"access,omitempty" bson:"access,omitempty"`

	NormalizedName  string   `json:"__normalizedName,omitempty" bson:"__normalizedName,omitempty"`
	AnnotationCount int      `json:"__annotationCount" bson:"__annotationCount"`
	MediaTypes      []string `json:"__mediaTypes,omitempty" bson:"__mediaTypes,omitempty"`
	Licenses        []string `json:"__licenses,omitempty" bson:"__licenses,omitempty"`
}

func (*Entity) Collection() Collection              { return CollectionEntity }
func (e *Entity) AccessMap() map[string]AccessEntry { return e.Access }

// Compilation groups entities.
type Compilation struct {
	Base           `bson:",inline"`
	Name           string                     `json:"name" bson:"name"`
	Description    string                     `json:"description" bson:"description"`
	Password       string                     `json:"password,omitempty" bson:"password,omitempty"`
	Creator        *UserRef                   `json:"creator,omitempty" bson:"creator,omitempty"`
	Whitelist      Whitelist                  `json:"whitelist" bson:"whitelist"`
	Entities       map[string]Ref[Entity]     `json:"entities" bson:"entities"`
	Annotations    map[string]Ref[Annotation] `json:"annotations" bson:"annotations"`
	Access         map[string]AccessEntry     `json:"access,omitempty" bson:"access,omitempty"`
	NormalizedName string                     `json:"__normalizedName,omitempty" bson:"__normalizedName,omitempty"`
}

func (*Compilation) Collection() Collection              { return CollectionCompilation }
func (c *Compilation) AccessMap() map[string]AccessEntry { return c.Access }

type Vector3 struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
	Z float64 `json:"z" bson:"z"`
}

type Agent struct {
	Type string `json:"type" bson:"type"`
	Name string `json:"name" bson:"name"`
	ID   string `json:"_id" bson:"_id"`
}

type Perspective struct {
	CameraType string  `json:"cameraType" bson:"cameraType"`
	Position   Vector3 `json:"position" bson:"position"`
	Target     Vector3 `json:"target" bson:"target"`
	Preview    string  `json:"preview" bson:"preview"`
}

type AnnotationContent struct {
	Type               string      `json:"type" bson:"type"`
	Title              string      `json:"title" bson:"title"`
	Description        string      `json:"description" bson:"description"`
	RelatedPerspective Perspective `json:"relatedPerspective" bson:"relatedPerspective"`
}

type AnnotationBody struct {
	Type    string            `json:"type" bson:"type"`
	Content AnnotationContent `json:"content" bson:"content"`
}

type AnnotationSource struct {
	RelatedEntity      string `json:"relatedEntity" bson:"relatedEntity"`
	RelatedCompilation string `json:"relatedCompilation,omitempty" bson:"relatedCompilation,omitempty"`
}

type AnnotationSelector struct {
	ReferencePoint  Vector3 `json:"referencePoint" bson:"referencePoint"`
	ReferenceNormal Vector3 `json:"referenceNormal" bson:"referenceNormal"`
}

type AnnotationTarget struct {
	Source   AnnotationSource   `json:"source" bson:"source"`
	Selector AnnotationSelector `json:"selector" bson:"selector"`
}

// Annotation is attached to an entity, optionally in the context of a compilation.
type Annotation struct {
	Base                 `bson:",inline"`
	Validated            bool             `json:"validated" bson:"validated"`
	Identifier           string           `json:"identifier" bson:"identifier"`
	Ranking              int              `json:"ranking" bson:"ranking"`
	Creator              Agent            `json:"creator" bson:"creator"`
	Created              string           `json:"created" bson:"created"`
	Generator            Agent            `json:"generator" bson:"generator"`
	Generated            string           `json:"generated,omitempty" bson:"generated,omitempty"`
	Motivation           string           `json:"motivation" bson:"motivation"`
	LastModificationDate string           `json:"lastModificationDate,omitempty" bson:"lastModificationDate,omitempty"`
	LastModifiedBy       Agent            `json:"lastModifiedBy" bson:"lastModifiedBy"`
	Body                 AnnotationBody   `json:"body" bson:"body"`
	Target               AnnotationTarget `json:"target" bson:"target"`
}

func (*Annotation) Collection() Collection { return CollectionAnnotation }

type Contact struct {
	Base        `bson:",inline"`
	Mail        string `json:"mail" bson:"mail"`
	PhoneNumber string `json:"phonenumber" bson:"phonenumber"`
	Note        string `json:"note" bson:"note"`
}

func (*Contact) Collection() Collection { return CollectionContact }

type Address struct {
	Base     `bson:",inline"`
	Building string `json:"building" bson:"building"`
	Number   string `json:"number" bson:"number"`
	Street   string `json:"street" bson:"street"`
	Postcode string `json:"postcode" bson:"postcode"`
	City     string `json:"city" bson:"city"`
	Country  string `json:"country" bson:"country"`
}

func (*Address) Collection() Collection { return CollectionAddress }

type Tag struct {
	Base  `bson:",inline"`
	Value string `json:"value" bson:"value"`
}

func (*Tag) Collection() Collection { return CollectionTag }

type Group struct {
	Base    `bson:",inline"`
	Name    string    `json:"name" bson:"name"`
	Creator UserRef   `json:"creator" bson:"creator"`
	Owners  []UserRef `json:"owners" bson:"owners"`
	Members []UserRef `json:"members" bson:"members"`
}

func (*Group) Collection() Collection { return CollectionGroup }
