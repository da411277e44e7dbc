package dto

// SectionRequest creates or updates a section.
type SectionRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Parish     string `json:"parish" validate:"required,max=160"`
	TurnNumber int    `json:"turn_number" validate:"required,min=1"`
	Patron     string `json:"patron" validate:"max=160"`
	Active     *bool  `json:"active"`
}
