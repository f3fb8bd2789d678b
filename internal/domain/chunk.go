package domain

import "strings"

// Document is the raw fetched content of one URL belonging to one source.
// Documents only live long enough to be chunked.
type Document struct {
	SourceID string
	URL      string
	Title    string
	Text     string
	Digest   string
}

// Chunk is a bounded-length, heading-contextualized slice of a document.
// It is the unit of search and storage and is never mutated after creation.
type Chunk struct {
	// SourceID is the ID of the source the chunk was collected from.
	SourceID string `json:"source"`

	// URL is the document the chunk was cut from.
	URL string `json:"url"`

	// PageTitle is the link title of the page (seed sources) or the source name.
	PageTitle string `json:"page_title,omitempty"`

	// HeadingPath lists heading titles from H1 down to the chunk's own section.
	// Empty for text that precedes the first heading.
	HeadingPath []string `json:"heading_path,omitempty"`

	// Body is the chunk text, including the markdown heading line of the
	// section it opens.
	Body string `json:"body"`

	// Position is the 0-based order of the chunk within its document.
	Position int `json:"position"`
}

// Heading returns the innermost heading title, or "" for preamble chunks.
func (c Chunk) Heading() string {
	if len(c.HeadingPath) == 0 {
		return ""
	}
	return c.HeadingPath[len(c.HeadingPath)-1]
}

// Breadcrumb renders the heading path as "A > B > C".
func (c Chunk) Breadcrumb() string {
	return strings.Join(c.HeadingPath, " > ")
}
