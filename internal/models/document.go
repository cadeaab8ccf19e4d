package models

// Document is a file attachment tied to one animal. The binary payload
// lives on the remote store; the local row caches metadata only, which
// is why uploads require connectivity.
type Document struct {
	ID          int64  `db:"id" json:"id"`
	AnimalID    int64  `db:"animal_id" json:"animal"`
	Name        string `db:"name" json:"name"`
	FileURL     string `db:"file_url" json:"file_url"`
	ContentType string `db:"content_type" json:"content_type,omitempty"`
	UploadedAt  int64  `db:"uploaded_at" json:"uploaded_at"`
}

// TableName returns the table name for Document.
func (Document) TableName() string {
	return "documents"
}
