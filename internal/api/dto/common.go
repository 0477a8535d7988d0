package dto

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// ListResponse wraps an unpaginated collection.
type ListResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}
