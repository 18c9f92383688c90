package domain

import "slices"

// User is the acting account. Data is the legacy possession list.
type User struct {
	ID       string                  `json:"_id" bson:"_id"`
	Username string                  `json:"username" bson:"username"`
	Fullname string                  `json:"fullname" bson:"fullname"`
	Prename  string                  `json:"prename" bson:"prename"`
	Surname  string                  `json:"surname" bson:"surname"`
	Mail     string                  `json:"mail" bson:"mail"`
	Role     string                  `json:"role" bson:"role"`
	Data     map[Collection][]string `json:"data" bson:"data"`

	// CanRank is computed by the caller; it is never persisted.
	CanRank bool `json:"-" bson:"-"`
}

func (u *User) Owns(c Collection, id string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Data[c], id)
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, Fullname: u.Fullname}
}

// IsOwner reports whether user owns doc through the possession list or the access map.
func IsOwner(user *User, doc Document) bool {
	if user == nil || doc == nil {
		return false
	}
	if user.Owns(doc.Collection(), doc.DocID()) {
		return true
	}
	if acc, ok := doc.(Accessible); ok {
		if entry, ok := acc.AccessMap()[user.ID]; ok && entry.Role == RoleOwner {
			return true
		}
	}
	return false
}
