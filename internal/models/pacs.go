package models

import (
	"encoding/json"
	"time"
)

// PACSConfig is a connection record for a PACS (Picture Archiving and
// Communication System) reachable over a DICOMweb base URL. The server
// assigns ID and CreatedAt.
type PACSConfig struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	BaseRS      string    `json:"base_rs"`
	Location    string    `json:"location,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`

	// JSON string form of Tags for DB storage
	TagsJSON string `json:"-"`
}

// PrepareForSave marshals Tags into TagsJSON for DB storage.
func (p *PACSConfig) PrepareForSave() {
	tagsBytes, _ := json.Marshal(p.Tags)
	p.TagsJSON = string(tagsBytes)
}

// PrepareForAPI unmarshals TagsJSON back into the Tags slice.
func (p *PACSConfig) PrepareForAPI() {
	if p.TagsJSON != "" {
		json.Unmarshal([]byte(p.TagsJSON), &p.Tags)
	}
}
