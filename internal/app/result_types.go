package app

// DeleteResult confirms a soft delete. Deleted is true even when the
// document was already deleted, since delete is idempotent.
type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

// RecoverResult reports how many unsettled stock adjustments were replayed.
type RecoverResult struct {
	Recovered int `json:"recovered"`
}
