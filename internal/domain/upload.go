package domain

// UploadResult describes a stored narration file
type UploadResult struct {
	Path    string `json:"path"`
	FileURL string `json:"file_url"`
}
