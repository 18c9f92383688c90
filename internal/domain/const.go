package domain

type ctxKey string

const (
	RequesterIdCtxKey    ctxKey = "hr-requesterId"
	RequesterUserCtxKey  ctxKey = "hr-requesterUser"
	RequesterTokenCtxKey ctxKey = "hr-requesterToken"
)

const (
	AuthorizationHeader = "authorization"
)

// MaxDepth is the default resolve budget. The deepest chain in the schema is
// compilation -> entity -> digitalentity -> physicalentity -> person/institution.
const MaxDepth = 10

// Role is an access level on an entity or compilation.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)
