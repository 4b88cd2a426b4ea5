// Package profile extracts structured resume data and job preferences from
// raw text via the generative model.
package profile

// Analysis is the structured record extracted from a resume. Any field may be
// empty; the model is instructed to use null or empty values when information
// is missing.
type Analysis struct {
	ContactInfo ContactInfo  `json:"contact_info"`
	Summary     string       `json:"summary"`
	Skills      []string     `json:"skills"`
	Experience  []Experience `json:"experience"`
	Education   []Education  `json:"education"`
}

type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Experience struct {
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	Duration         string   `json:"duration"`
	Responsibilities []string `json:"responsibilities"`
}

type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
}
