package server

import (
	"context"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/islandvows/islandvows/internal/apperror"
	"github.com/islandvows/islandvows/internal/gateway"
	"github.com/islandvows/islandvows/internal/models"
	"github.com/islandvows/islandvows/internal/resources"
)

const (
	maxPhotoSize   = 20 << 20
	maxUploadFiles = 50
)

// @Router /admin/uploads/photos [post]
// @Accept multipart/form-data
// @Param gallery_id formData string true "Gallery ID"
// @Param files formData file true "Images"
// @Success 201 {object} map[string]interface{}
func (s *Server) uploadPhoto(c *gin.Context) {
	session, ok := s.requireSession(c)
	if !ok {
		return
	}

	photos, ok := s.resources.Lookup("photos")
	if !ok {
		respondWithError(c, s.logger, errNotFound)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondWithError(c, s.logger, &apperror.ValidationError{Fields: map[string]string{"body": "must be a multipart form"}})
		return
	}
	files := append(form.File["files"], form.File["file"]...)
	galleryID := strings.TrimSpace(c.PostForm("gallery_id"))

	problems := map[string]string{}
	if galleryID == "" {
		problems["gallery_id"] = "is required"
	}
	switch {
	case len(files) == 0:
		problems["files"] = "is required"
	case len(files) > maxUploadFiles:
		problems["files"] = "too many files"
	}
	for _, fh := range files {
		if fh.Size > maxPhotoSize {
			problems[fh.Filename] = "is larger than 20 MB"
		} else if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
			problems[fh.Filename] = "must be an image"
		}
	}
	if len(problems) > 0 {
		respondWithError(c, s.logger, &apperror.ValidationError{Fields: problems})
		return
	}

	ctx := c.Request.Context()
	db := s.db(c)

	var gallery models.PhotoGallery
	if err := db.From(models.TablePhotoGalleries).Select("id,wedding_id").Eq("id", galleryID).Single(ctx, &gallery); err != nil {
		respondWithError(c, s.logger, err)
		return
	}

	bucket := db.Storage(s.config.Supabase.StorageBucket)
	created := make([]Row, 0, len(files))
	for _, fh := range files {
		row, err := s.storePhoto(ctx, db, bucket, photos, gallery, fh)
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}
		created = append(created, row)
	}

	s.logger.Info().
		Str("gallery_id", gallery.ID).
		Int("count", len(created)).
		Str("user_id", session.UserID).
		Msg("Photos uploaded")

	c.JSON(http.StatusCreated, gin.H{"data": created})
}

// storePhoto uploads one file and records it. The object is removed again
// when the row cannot be written.
func (s *Server) storePhoto(ctx context.Context, db *gateway.Client, bucket *gateway.Bucket, photos *resources.Resource, gallery models.PhotoGallery, fh *multipart.FileHeader) (Row, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	objectPath := models.PhotoObjectPath(gallery.WeddingID, gallery.ID, fh.Filename)
	if err := bucket.Upload(ctx, objectPath, file, fh.Header.Get("Content-Type")); err != nil {
		return nil, err
	}

	publicURL := bucket.PublicURL(objectPath)
	row, err := photos.Prepare(map[string]any{
		"gallery_id":    gallery.ID,
		"url":           publicURL,
		"thumbnail_url": publicURL,
		"title":         fh.Filename,
	}, resources.Create)
	if err == nil {
		var created []Row
		if err = db.From(models.TablePhotos).Insert(ctx, row, &created); err == nil && len(created) > 0 {
			return created[0], nil
		}
		if err == nil {
			err = errNotFound
		}
	}

	if rmErr := bucket.Remove(ctx, objectPath); rmErr != nil {
		s.logger.Warn().Err(rmErr).Str("path", objectPath).Msg("Failed to remove orphaned upload")
	}
	return nil, err
}

// deletePhoto removes the row, then its storage object
func (s *Server) deletePhoto(res *resources.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := s.requireSession(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		db := s.db(c)
		id := c.Param("id")

		var photo models.Photo
		if err := db.From(res.Table).Select("id,url,thumbnail_url").Eq(res.Key, id).Single(ctx, &photo); err != nil {
			respondWithError(c, s.logger, err)
			return
		}

		if err := db.From(res.Table).Eq(res.Key, id).Delete(ctx); err != nil {
			respondWithError(c, s.logger, err)
			return
		}

		bucket := db.Storage(s.config.Supabase.StorageBucket)
		var paths []string
		for _, u := range []string{photo.URL, photo.ThumbnailURL} {
			if p, ok := bucket.PathFromPublicURL(u); ok && !slices.Contains(paths, p) {
				paths = append(paths, p)
			}
		}
		if err := bucket.Remove(ctx, paths...); err != nil {
			s.logger.Warn().Err(err).Strs("paths", paths).Msg("Failed to remove photo object")
		}

		s.logger.Info().
			Str("photo_id", id).
			Str("user_id", session.UserID).
			Msg("Photo deleted")

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
