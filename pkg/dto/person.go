package dto

type PersonResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	FaceCount int    `json:"face_count"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
	Notes     string `json:"notes,omitempty"`
}

type PersonListResponse struct {
	Persons []PersonResponse `json:"persons"`
	Total   int              `json:"total"`
}

type FaceAddedResponse struct {
	PersonID    int64  `json:"person_id"`
	SourceImage string `json:"source_image"`
	FaceCount   int    `json:"face_count"`
}
