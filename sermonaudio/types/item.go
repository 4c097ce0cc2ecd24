package types

// Metadata is what the sermon page tells about one item.
type Metadata struct {
	Title string
	// Group is the series title, nil when the sermon is not part of one.
	Group *string
}
