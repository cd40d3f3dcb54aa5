package models

// MediaSummary describes one externally stored media asset.
type MediaSummary struct {
	ID         string  `json:"id"`
	FileName   string  `json:"fileName"`
	MimeType   string  `json:"mimeType"`
	Bytes      *int64  `json:"bytes"`
	Width      *int    `json:"width"`
	Height     *int    `json:"height"`
	CdnURL     *string `json:"cdnUrl"` // nil when the asset is not public
	StorageKey string  `json:"storageKey"`
}
