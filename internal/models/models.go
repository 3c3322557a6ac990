package models

import (
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Table names in the hosted database
const (
	TableUsers            = "users"
	TableWeddings         = "weddings"
	TableClients          = "clients"
	TableVendors          = "vendors"
	TableBlogPosts        = "blog_posts"
	TablePages            = "pages"
	TableSettings         = "settings"
	TablePhotoGalleries   = "photo_galleries"
	TablePhotos           = "photos"
	TableWeddingTimelines = "wedding_timelines"
	TableGuests           = "guests"
	TableRSVPs            = "rsvps"
	TableTables           = "tables"
	TableAssignments      = "table_assignments"
	TableExpenses         = "expenses"
	TablePayments         = "payments"
	TableBudgetCategories = "budget_categories"
)

// Roles stored on user profiles
const (
	RoleAdmin  = "ADMIN"
	RoleEditor = "EDITOR"
)

// UserProfile is the application profile paired with an auth user
type UserProfile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Settings is the single site settings row
type Settings struct {
	ID              string `json:"id"`
	SiteName        string `json:"site_name"`
	SiteDescription string `json:"site_description"`
	ContactEmail    string `json:"contact_email"`
	ContactPhone    string `json:"contact_phone"`
	Address         string `json:"address"`
	FacebookURL     string `json:"facebook_url"`
	InstagramURL    string `json:"instagram_url"`
	TwitterURL      string `json:"twitter_url"`
}

// BlogPost is a public blog entry; Content holds editor blocks
type BlogPost struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	Excerpt     *string         `json:"excerpt,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	CoverImage  *string         `json:"cover_image,omitempty"`
	Published   bool            `json:"published"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
}

// Page is an editable marketing page addressed by slug
type Page struct {
	ID        string          `json:"id"`
	Slug      string          `json:"slug"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// RecentItem is the trimmed row listed on the dashboard
type RecentItem struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Name      string     `json:"name,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// PhotoGallery groups photos of one wedding
type PhotoGallery struct {
	ID          string  `json:"id"`
	WeddingID   string  `json:"wedding_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	IsPublic    bool    `json:"is_public"`
	Photos      []Photo `json:"photos,omitempty"`
}

// Photo is one uploaded image
type Photo struct {
	ID           string     `json:"id,omitempty"`
	GalleryID    string     `json:"gallery_id"`
	URL          string     `json:"url"`
	ThumbnailURL string     `json:"thumbnail_url"`
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	TakenAt      *time.Time `json:"taken_at,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// PhotoObjectPath names a new storage object for an upload:
// <wedding>/<gallery>/<ulid>.<ext>. The original file name only contributes
// its extension.
func PhotoObjectPath(weddingID, galleryID, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 10 || strings.ContainsAny(ext, " /?#%") {
		ext = ""
	}
	return weddingID + "/" + galleryID + "/" + strings.ToLower(ulid.Make().String()) + ext
}
