// Package models defines the domain types shared across vowpost packages.
package models

import "time"

// Heading describes one h1–h6 element of a post's markup. ID is the element
// id links and the table of contents point at.
type Heading struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// DocumentMetadata is what storage knows about a post without parsing it.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
