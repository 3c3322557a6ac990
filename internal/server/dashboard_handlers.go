package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/islandvows/islandvows/internal/gateway"
	"github.com/islandvows/islandvows/internal/models"
)

const recentLimit = 5

// LatestPost is the newest published post shown on the dashboard
type LatestPost struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	PublishedAt string `json:"published_at"`
}

// DashboardResponse summarizes the admin area
type DashboardResponse struct {
	Weddings       int64               `json:"weddings"`
	Clients        int64               `json:"clients"`
	Blog           int64               `json:"blog"`
	RecentWeddings []models.RecentItem `json:"recent_weddings"`
	RecentClients  []models.RecentItem `json:"recent_clients"`
	RecentBlog     []models.RecentItem `json:"recent_blog"`
	BlogStats      BlogStats           `json:"blog_stats"`
}

// BlogStats splits posts by publication state
type BlogStats struct {
	Total     int64       `json:"total"`
	Published int64       `json:"published"`
	Drafts    int64       `json:"drafts"`
	Latest    *LatestPost `json:"latest"`
}

// @Router /admin [get]
// @Success 200 {object} DashboardResponse
func (s *Server) dashboard(c *gin.Context) {
	if _, ok := s.requireSession(c); !ok {
		return
	}

	db := s.db(c)
	g, ctx := errgroup.WithContext(c.Request.Context())

	var resp DashboardResponse
	count := func(dest *int64, q *gateway.Query) {
		g.Go(func() error {
			n, err := q.Count(ctx, gateway.CountExact)
			*dest = n
			return err
		})
	}
	recent := func(dest *[]models.RecentItem, table, columns string) {
		g.Go(func() error {
			return db.From(table).Select(columns).
				Order("created_at", false).
				Limit(recentLimit).
				Execute(ctx, dest)
		})
	}

	count(&resp.Weddings, db.From(models.TableWeddings).Select("id"))
	count(&resp.Clients, db.From(models.TableClients).Select("id"))
	count(&resp.Blog, db.From(models.TableBlogPosts).Select("id"))
	count(&resp.BlogStats.Published, db.From(models.TableBlogPosts).Select("id").Eq("published", true))
	count(&resp.BlogStats.Drafts, db.From(models.TableBlogPosts).Select("id").Eq("published", false))

	recent(&resp.RecentWeddings, models.TableWeddings, "id,title,created_at")
	recent(&resp.RecentClients, models.TableClients, "id,name,created_at")
	recent(&resp.RecentBlog, models.TableBlogPosts, "id,title,created_at")

	var latest []LatestPost
	g.Go(func() error {
		return db.From(models.TableBlogPosts).
			Select("title,slug,published_at").
			Eq("published", true).
			Order("published_at", false).
			Limit(1).
			Execute(ctx, &latest)
	})

	if err := g.Wait(); err != nil {
		respondWithError(c, s.logger, err)
		return
	}

	// clients carry a name, shown where other rows show a title
	for i := range resp.RecentClients {
		if resp.RecentClients[i].Title == "" {
			resp.RecentClients[i].Title = resp.RecentClients[i].Name
		}
	}
	for _, list := range []*[]models.RecentItem{&resp.RecentWeddings, &resp.RecentClients, &resp.RecentBlog} {
		if *list == nil {
			*list = []models.RecentItem{}
		}
	}

	resp.BlogStats.Total = resp.Blog
	if len(latest) > 0 {
		resp.BlogStats.Latest = &latest[0]
	}

	c.JSON(http.StatusOK, resp)
}
