package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/islandvows/islandvows/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pagination reads ?limit and ?offset, clamping the page size
func pagination(c *gin.Context, def int) (limit, offset int) {
	limit = def
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// @Router /api/settings [get]
// @Success 200 {object} models.Settings
func (s *Server) getPublicSettings(c *gin.Context) {
	var rows []models.Settings
	if err := s.db(c).From(models.TableSettings).Limit(1).Execute(c.Request.Context(), &rows); err != nil {
		respondWithError(c, s.logger, err)
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusOK, models.Settings{})
		return
	}
	c.JSON(http.StatusOK, rows[0])
}

// @Router /api/blog [get]
// @Param limit query int false "Page size"
// @Param offset query int false "Rows to skip"
// @Success 200 {object} map[string]interface{}
func (s *Server) listPublishedPosts(c *gin.Context) {
	limit, offset := pagination(c, defaultPageSize)

	var posts []models.BlogPost
	err := s.db(c).From(models.TableBlogPosts).
		Select("id,title,slug,excerpt,cover_image,published,published_at,created_at").
		Eq("published", true).
		Order("published_at", false).
		Range(offset, offset+limit-1).
		Execute(c.Request.Context(), &posts)
	if err != nil {
		respondWithError(c, s.logger, err)
		return
	}
	if posts == nil {
		posts = []models.BlogPost{}
	}

	c.JSON(http.StatusOK, gin.H{"data": posts})
}

// @Router /api/blog/{slug} [get]
// @Param slug path string true "Post slug"
// @Success 200 {object} models.BlogPost
func (s *Server) getPublishedPost(c *gin.Context) {
	var post models.BlogPost
	err := s.db(c).From(models.TableBlogPosts).
		Eq("slug", c.Param("slug")).
		Eq("published", true).
		Single(c.Request.Context(), &post)
	if err != nil {
		respondWithError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// @Router /api/pages/{slug} [get]
// @Param slug path string true "Page slug"
// @Success 200 {object} models.Page
func (s *Server) getPublicPage(c *gin.Context) {
	var page models.Page
	err := s.db(c).From(models.TablePages).
		Eq("slug", c.Param("slug")).
		Single(c.Request.Context(), &page)
	if err != nil {
		respondWithError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// @Router /api/weddings/{id}/galleries [get]
// @Param id path string true "Wedding ID"
// @Success 200 {object} map[string]interface{}
func (s *Server) listPublicGalleries(c *gin.Context) {
	var galleries []models.PhotoGallery
	err := s.db(c).From(models.TablePhotoGalleries).
		Select("*,photos(*)").
		Eq("wedding_id", c.Param("id")).
		Eq("is_public", true).
		Order("created_at", false).
		Execute(c.Request.Context(), &galleries)
	if err != nil {
		respondWithError(c, s.logger, err)
		return
	}
	if galleries == nil {
		galleries = []models.PhotoGallery{}
	}

	c.JSON(http.StatusOK, gin.H{"data": galleries})
}
