package model

import "time"

type ReportType string

const (
	ReportLost  ReportType = "Lost"
	ReportFound ReportType = "Found"
	ReportStray ReportType = "Stray"
)

// Valid сообщает, известен ли тип объявления.
func (t ReportType) Valid() bool {
	return t == ReportLost || t == ReportFound || t == ReportStray
}

type ReportStatus string

const (
	ReportOpen     ReportStatus = "Open"
	ReportResolved ReportStatus = "Resolved"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Report — объявление о пропавшем, найденном или бездомном животном (stray_reports).
type Report struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Type        ReportType   `json:"type"`
	Status      ReportStatus `json:"status"`
	PetName     string       `json:"petName,omitempty"`
	Description string       `json:"description,omitempty"`
	Location    Location     `json:"location"`
	Images      []string     `json:"images,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	ResolvedAt  *time.Time   `json:"resolvedAt,omitempty"`
}

// IsOpen: пустой статус у старых документов считается открытым.
func (r *Report) IsOpen() bool {
	return r.Status != ReportResolved
}

// Post — запись в ленте.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Images    []string  `json:"images,omitempty"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
}
