package services

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/AnshRaj112/tripjournal-backend/internal/metrics"
	"github.com/AnshRaj112/tripjournal-backend/internal/models"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const (
	cloudinaryFolderRoot = "journals"
	// thumbnailTransformation is the eager derivative built for the cover asset.
	thumbnailTransformation = "c_thumb,g_auto,w_400,h_300"
	cloudinaryMaxResults    = 100
)

// CloudinaryService keeps a journal's assets under journals/<journalId>/ in
// Cloudinary.
type CloudinaryService struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	return &CloudinaryService{
		cld: cld,
	}, nil
}

func journalFolder(journalID string) string {
	return cloudinaryFolderRoot + "/" + journalID + "/"
}

// GenerateThumbnail builds the thumbnail derivative of the first asset in the
// journal's folder. A journal without assets is a no-op.
func (s *CloudinaryService) GenerateThumbnail(ctx context.Context, journalID string) error {
	assets, err := s.listFolder(ctx, journalID)
	if err != nil {
		return s.fail("thumbnail", err)
	}
	if len(assets) == 0 {
		metrics.MediaRequests.WithLabelValues("thumbnail", "success").Inc()
		return nil
	}
	if err := s.explicit(ctx, assets[0].PublicID); err != nil {
		return s.fail("thumbnail", err)
	}
	metrics.MediaRequests.WithLabelValues("thumbnail", "success").Inc()
	return nil
}

// RefreshAssets re-derives every asset in the folder and invalidates the CDN
// copies.
func (s *CloudinaryService) RefreshAssets(ctx context.Context, journalID string) error {
	assets, err := s.listFolder(ctx, journalID)
	if err != nil {
		return s.fail("refresh", err)
	}
	var errs []error
	for _, a := range assets {
		if err := s.explicit(ctx, a.PublicID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return s.fail("refresh", err)
	}
	metrics.MediaRequests.WithLabelValues("refresh", "success").Inc()
	return nil
}

func (s *CloudinaryService) DeleteAssets(ctx context.Context, journalID string) error {
	res, err := s.cld.Admin.DeleteAssetsByPrefix(ctx, admin.DeleteAssetsByPrefixParams{
		Prefix: []string{journalFolder(journalID)},
	})
	if err == nil && res != nil && res.Error.Message != "" {
		err = errors.New(res.Error.Message)
	}
	if err != nil {
		return s.fail("delete", err)
	}
	metrics.MediaRequests.WithLabelValues("delete", "success").Inc()
	return nil
}

// BatchFetch looks the ids up as Cloudinary public ids. Unknown ids are
// omitted from the result.
func (s *CloudinaryService) BatchFetch(ctx context.Context, mediaIDs []string) ([]models.MediaSummary, error) {
	if len(mediaIDs) == 0 {
		return []models.MediaSummary{}, nil
	}
	res, err := s.cld.Admin.AssetsByIDs(ctx, admin.AssetsByIDsParams{PublicIDs: mediaIDs})
	if err == nil && res != nil && res.Error.Message != "" {
		err = errors.New(res.Error.Message)
	}
	if err != nil {
		return nil, s.fail("batch", err)
	}

	out := make([]models.MediaSummary, 0, len(res.Assets))
	for _, a := range res.Assets {
		out = append(out, summaryFromAsset(a))
	}
	metrics.MediaRequests.WithLabelValues("batch", "success").Inc()
	return out, nil
}

func (s *CloudinaryService) listFolder(ctx context.Context, journalID string) ([]api.BriefAssetResult, error) {
	res, err := s.cld.Admin.Assets(ctx, admin.AssetsParams{
		DeliveryType: "upload",
		Prefix:       journalFolder(journalID),
		MaxResults:   cloudinaryMaxResults,
	})
	if err != nil {
		return nil, err
	}
	if res.Error.Message != "" {
		return nil, errors.New(res.Error.Message)
	}
	return res.Assets, nil
}

func (s *CloudinaryService) explicit(ctx context.Context, publicID string) error {
	res, err := s.cld.Upload.Explicit(ctx, uploader.ExplicitParams{
		PublicID:   publicID,
		Type:       "upload",
		Eager:      thumbnailTransformation,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("explicit %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("explicit %s: %s", publicID, res.Error.Message)
	}
	return nil
}

func (s *CloudinaryService) fail(op string, err error) error {
	metrics.MediaRequests.WithLabelValues(op, "error").Inc()
	return fmt.Errorf("%w: cloudinary %s: %w", ErrNotificationFailed, op, err)
}

func summaryFromAsset(a api.BriefAssetResult) models.MediaSummary {
	bytes := int64(a.Bytes)
	width, height := a.Width, a.Height
	summary := models.MediaSummary{
		ID:         a.PublicID,
		FileName:   path.Base(a.PublicID),
		MimeType:   a.AssetType,
		Bytes:      &bytes,
		Width:      &width,
		Height:     &height,
		StorageKey: a.PublicID,
	}
	if a.Format != "" {
		summary.FileName += "." + a.Format
		summary.MimeType += "/" + a.Format
	}
	if a.SecureURL != "" {
		u := a.SecureURL
		summary.CdnURL = &u
	}
	return summary
}
