package domain

// Change is one record from the store's change-notification stream.
// Old == nil means insert, New == nil means delete, both set means update.
type Change struct {
	Old *Entry
	New *Entry
}
