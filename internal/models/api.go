package models

// LevelPage is the response of GET /api/levels.
type LevelPage struct {
	Levels      []Level `json:"levels"`
	TotalPages  int     `json:"totalPages"`
	CurrentPage int     `json:"currentPage"`
	TotalLevels int     `json:"totalLevels"`
}

// LevelEnvelope is the response of GET /api/levels/{levelNumber}.
type LevelEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    *struct {
		Level *Level `json:"level"`
	} `json:"data,omitempty"`
}

// CompleteResponse is the response of POST /api/levels/{levelNumber}/complete.
type CompleteResponse struct {
	Message  string       `json:"message"`
	Progress UserProgress `json:"progress"`
}

// ProgressResponse is the response of GET /api/user-progress.
type ProgressResponse struct {
	Progress UserProgress `json:"progress"`
}
