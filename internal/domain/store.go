package domain

// Filter is a document store query in mongo filter syntax. Keys may be dotted
// paths; values are either literals or operator maps ($in, $exists, $ne).
type Filter map[string]any

func ByID(id string) Filter {
	return Filter{"_id": id}
}

// Update describes an updateOne. Set is a document or field map; its _id is
// never written. Unset holds dotted paths to remove.
type Update struct {
	Set   any
	Unset []string
}

type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
}

// Succeeded reports whether the update touched or matched a document.
func (r UpdateResult) Succeeded() bool {
	return r.ModifiedCount+r.UpsertedCount > 0 || r.MatchedCount > 0
}
