package models

import (
	"time"
)

// Metadata keys owned by the enrichment pipeline.
const (
	MetadataKeyGPS     = "gps"
	MetadataKeyWeather = "weather"
)

// Metadata is free-form structured data attached to a journal. The "gps" and
// "weather" keys are populated from location lookups; everything else comes
// from the client.
type Metadata map[string]any

// Clone returns a shallow copy. Values are shared.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Journal is a single travel journal entry owned by one user.
type Journal struct {
	ID           string    `bson:"_id" json:"id"`
	OwnerID      string    `bson:"owner_id" json:"-"`
	ItineraryID  *string   `bson:"itinerary_id,omitempty" json:"itineraryId,omitempty"`
	Title        string    `bson:"title" json:"title"`
	Description  *string   `bson:"description,omitempty" json:"description,omitempty"`
	City         *string   `bson:"city,omitempty" json:"city,omitempty"`
	Country      *string   `bson:"country,omitempty" json:"country,omitempty"`
	Tags         []string  `bson:"tags" json:"tags"`
	MediaIDs     []string  `bson:"media_ids" json:"mediaIds"`
	CoverMediaID *string   `bson:"cover_media_id,omitempty" json:"coverMediaId,omitempty"`
	Metadata     Metadata  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	ModifiedAt   time.Time `bson:"modified_at" json:"modifiedAt"`
}

// Normalize restores the structural guarantees after decoding from a store:
// list fields are never nil and empty metadata is absent.
func (j *Journal) Normalize() {
	if j.Tags == nil {
		j.Tags = []string{}
	}
	if j.MediaIDs == nil {
		j.MediaIDs = []string{}
	}
	if len(j.Metadata) == 0 {
		j.Metadata = nil
	}
}

// CopyStrings returns a non-nil copy of src.
func CopyStrings(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// GPSView is the typed projection of metadata["gps"].
type GPSView struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// WeatherView is the typed projection of metadata["weather"].
type WeatherView struct {
	Temperature *float64 `json:"temperature"`
	Description *string  `json:"description"`
	Humidity    *int     `json:"humidity"`
	WindSpeed   *float64 `json:"windSpeed"`
	Icon        *string  `json:"icon"`
}

// MetadataView is nil when neither gps nor weather could be read.
type MetadataView struct {
	GPS     *GPSView     `json:"gps,omitempty"`
	Weather *WeatherView `json:"weather,omitempty"`
}

// JournalResponse is the API representation of a journal.
type JournalResponse struct {
	ID           string         `json:"id"`
	ItineraryID  *string        `json:"itineraryId"`
	Title        string         `json:"title"`
	Description  *string        `json:"description"`
	City         *string        `json:"city"`
	Country      *string        `json:"country"`
	Tags         []string       `json:"tags"`
	MediaIDs     []string       `json:"mediaIds"`
	CoverMediaID *string        `json:"coverMediaId"`
	Metadata     Metadata       `json:"metadata"`
	Enrichment   *MetadataView  `json:"enrichment,omitempty"`
	Media        []MediaSummary `json:"media,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	ModifiedAt   time.Time      `json:"modifiedAt"`
}
