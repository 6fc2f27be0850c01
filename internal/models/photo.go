package models

// PhotoSource selects where a new profile photo comes from.
type PhotoSource string

const (
	PhotoFromCamera  PhotoSource = "camera"
	PhotoFromLibrary PhotoSource = "library"
)
