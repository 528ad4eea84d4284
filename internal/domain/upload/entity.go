package upload

// StoredFile is a document written to the upload directory.
type StoredFile struct {
	Name         string // file name inside the upload directory
	OriginalName string
	MimeType     string
	Size         int64
}
