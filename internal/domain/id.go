package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// NewID mints a fresh identifier. The first four bytes encode the creation time.
func NewID() string {
	return bson.NewObjectID().Hex()
}

// IDTimestamp extracts the creation time from an identifier minted by NewID.
// Opaque identifiers report false.
func IDTimestamp(id string) (time.Time, bool) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return time.Time{}, false
	}
	return oid.Timestamp(), true
}
