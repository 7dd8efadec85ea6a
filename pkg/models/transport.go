package models

// ExtractRequest represents a request to extract a cohort from posted descriptors
type ExtractRequest struct {
	ProjectName string            `json:"project_name"`
	Images      []SlideDescriptor `json:"images" binding:"required,min=1,dive"`
}

// ErrorResponse represents an error response
// Moved from transport package for shared usage
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
