package api

import "time"

// Project is the authoritative graph for one workspace. The server returns
// summaries from the list endpoint and the full graph from the detail
// endpoint; the nested slices are empty in the summary form.
type Project struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	DataSources []DataSource `json:"data_sources"`
	Analyses    []Analysis   `json:"analyses"`
	Stories     []Story      `json:"stories"`
}

// DataPreview holds the row/column shape detected at connect time.
type DataPreview struct {
	RowCount    int `json:"row_count"`
	ColumnCount int `json:"column_count"`
}

// DataProfile holds profiling output for a connected source.
type DataProfile struct {
	QualityIssues []string `json:"quality_issues"`
}

// DataSource is a connected input. Type is immutable once created.
type DataSource struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Config      map[string]any `json:"connection_config"`
	DataPreview *DataPreview   `json:"data_preview,omitempty"`
	DataProfile *DataProfile   `json:"data_profile,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// InsightBody carries the finding text under one of two keys depending on
// which analysis produced it.
type InsightBody struct {
	Message  string `json:"message,omitempty"`
	Analysis string `json:"analysis,omitempty"`
}

// Insight is a single backend-produced finding.
type Insight struct {
	Type       string      `json:"type"`
	Confidence float64     `json:"confidence"`
	Insight    InsightBody `json:"insight"`
}

// Analysis is one execution of a named analysis kind.
type Analysis struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Summary   string    `json:"summary,omitempty"`
	Insights  []Insight `json:"insights"`
	CreatedAt time.Time `json:"created_at"`
}

// Component is one insight-wrapping building block inside a Story.
type Component struct {
	Type       string  `json:"type"`
	AnalysisID int64   `json:"analysisId"`
	Insight    Insight `json:"insight"`
	Title      string  `json:"title"`
}

// Story is a narrative assembled from a point-in-time snapshot of insights.
// Components never re-sync if the source analyses later change.
type Story struct {
	ID            int64                `json:"id"`
	Title         string               `json:"title"`
	Narrative     string               `json:"narrative"`
	Components    map[string]Component `json:"components"`
	ExportFormats []string             `json:"export_formats"`
	CreatedAt     time.Time            `json:"created_at"`
}

// User is the created-user payload from registration.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterRequest mirrors the server's user-creation schema.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// AnalyzeRequest triggers one analysis run.
type AnalyzeRequest struct {
	Name         string         `json:"name"`
	AnalysisType string         `json:"analysis_type"`
	Parameters   map[string]any `json:"parameters"`
}

// Answer is the assistant's reply to one question.
type Answer struct {
	Answer     string  `json:"answer"`
	Source     string  `json:"source,omitempty"`
	Confidence float64 `json:"confidence"`
}

// StoryRequest submits a new story. Export formats are fixed at creation.
type StoryRequest struct {
	Title         string      `json:"title"`
	Components    []Component `json:"components"`
	ExportFormats []string    `json:"export_formats"`
}

// Text returns the display text for an insight body, empty when neither key
// is set. Rendering fallback lives in the insight package.
func (b InsightBody) Text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Analysis
}
