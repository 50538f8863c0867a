package documents

import "time"

// Status is a document's processing state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"

	// StatusNotFound is reported by status queries for unknown ids. It is
	// never stored.
	StatusNotFound Status = "not_found"
)

// StaleMessage is the error recorded on documents reclaimed by the sweep.
const StaleMessage = "Processing timed out. The document was stuck in processing state for too long."

// Document is an uploaded file and its processing state. Its location on
// disk is derived from the folder path and name.
type Document struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	FileType     string    `json:"file_type"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	FolderID     string    `json:"folder_id,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Folder is a node of the folder tree. ParentID is empty at the root.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusReport is one entry of a status query.
type StatusReport struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
