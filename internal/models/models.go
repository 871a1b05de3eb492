package models

import "time"

// Comic represents a generated story made of ordered panels
type Comic struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Panels      []Panel   `json:"panels"`
}

// Panel represents one illustrated unit of a comic
type Panel struct {
	ID         string `json:"id"`
	ComicID    string `json:"comic_id"`
	ImageURL   string `json:"image_url"` // data URI, not a remote URL
	Caption    string `json:"caption"`
	OrderIndex int    `json:"order_index"`
}

// Story is the structured outline returned by story generation
type Story struct {
	Title  string       `json:"title" validate:"required"`
	Panels []StoryPanel `json:"panels" validate:"dive"`
}

// StoryPanel describes what a single panel should show and say
type StoryPanel struct {
	VisualDescription string `json:"visual_description" validate:"required"`
	Caption           string `json:"caption" validate:"required"`
}
