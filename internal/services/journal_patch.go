package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/AnshRaj112/tripjournal-backend/internal/models"
	"github.com/AnshRaj112/tripjournal-backend/internal/validation"
)

// FieldUpdate is one field overwrite in a patch request.
type FieldUpdate interface {
	apply(j *models.Journal)
	validate(verr *ValidationError)
}

// TitleUpdate replaces the title.
type TitleUpdate struct{ Title string }

// DescriptionUpdate replaces the description; nil clears it.
type DescriptionUpdate struct{ Description *string }

// TagsUpdate replaces the whole tag list.
type TagsUpdate struct{ Tags []string }

// MetadataUpdate replaces the whole metadata map, auto keys included.
type MetadataUpdate struct{ Metadata models.Metadata }

func (u TitleUpdate) apply(j *models.Journal) { j.Title = u.Title }
func (u TitleUpdate) validate(verr *ValidationError) {
	appendErrors(verr, validation.Var("title", u.Title, titleRules))
}

func (u DescriptionUpdate) apply(j *models.Journal) { j.Description = u.Description }
func (DescriptionUpdate) validate(*ValidationError) {}

func (u TagsUpdate) apply(j *models.Journal) { j.Tags = models.CopyStrings(u.Tags) }
func (u TagsUpdate) validate(verr *ValidationError) {
	appendErrors(verr, validation.Var("tags", u.Tags, "dive,"+tagRules))
}

func (u MetadataUpdate) apply(j *models.Journal) { j.Metadata = u.Metadata.Clone() }
func (MetadataUpdate) validate(*ValidationError) {}

// DecodePatch turns a JSON object into field updates, in a fixed order. Only
// keys present in the object produce an update; unknown keys are ignored.
func DecodePatch(data []byte) ([]FieldUpdate, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	if raw == nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "body", Tag: "object", Message: "body must be a JSON object"}}}
	}

	verr := &ValidationError{}
	var updates []FieldUpdate

	if msg, ok := raw["title"]; ok {
		var title *string
		if err := json.Unmarshal(msg, &title); err != nil {
			verr.Add("title", "type", "title must be a string")
		} else if title == nil {
			verr.Add("title", "required", "title may not be cleared")
		} else {
			updates = append(updates, TitleUpdate{Title: *title})
		}
	}
	if msg, ok := raw["description"]; ok {
		var desc *string
		if err := json.Unmarshal(msg, &desc); err != nil {
			verr.Add("description", "type", "description must be a string or null")
		} else {
			updates = append(updates, DescriptionUpdate{Description: desc})
		}
	}
	if msg, ok := raw["tags"]; ok {
		var tags []string
		if err := json.Unmarshal(msg, &tags); err != nil {
			verr.Add("tags", "type", "tags must be an array of strings")
		} else {
			updates = append(updates, TagsUpdate{Tags: tags})
		}
	}
	if msg, ok := raw["metadata"]; ok {
		var meta models.Metadata
		if err := decodeMetadata(msg, &meta); err != nil {
			verr.Add("metadata", "type", "metadata must be an object or null")
		} else {
			updates = append(updates, MetadataUpdate{Metadata: meta})
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return updates, nil
}

func decodeMetadata(msg json.RawMessage, dst *models.Metadata) error {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) > 0 && trimmed[0] != '{' && !bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("metadata is not an object")
	}
	return json.Unmarshal(msg, dst)
}
