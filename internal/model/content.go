package model

import "time"

// Known blog categories. Category is free text, these are the ones the
// frontend renders with dedicated styling.
const (
	CategoryMEL         = "MEL"
	CategoryProgramming = "Programming"
	CategoryCareer      = "Career"
	CategoryNetworking  = "Networking"
)

// BlogPost is an article. Slug is the public, URL-facing key and is unique.
//
// IsPublished controls visibility on public endpoints; IsPremium controls
// whether the entitlement policy may redact Content for the caller.
type BlogPost struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Excerpt         string    `json:"excerpt"`
	Content         string    `json:"content"`
	FeaturedImage   string    `json:"featuredImage"`
	Category        string    `json:"category"`
	Tags            []string  `json:"tags"`
	IsPremium       bool      `json:"isPremium"`
	IsPublished     bool      `json:"isPublished"`
	ReadTimeMinutes int       `json:"readTime"`
	PublishedAt     time.Time `json:"publishedAt"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PortfolioProject is a case study. Projects are never gated.
type PortfolioProject struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Challenge     string    `json:"challenge"`
	Solution      string    `json:"solution"`
	Outcome       string    `json:"outcome"`
	Category      string    `json:"category"`
	TechStack     []string  `json:"techStack"`
	FeaturedImage string    `json:"featuredImage"`
	Images        []string  `json:"images"`
	LiveURL       string    `json:"liveUrl"`
	SourceURL     string    `json:"githubUrl"`
	Featured      bool      `json:"featured"`
	SortOrder     int       `json:"order"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
