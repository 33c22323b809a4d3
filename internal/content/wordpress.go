package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bryan-buckman/talkshelf/internal/model"
)

const (
	// DefaultPerPage is the page size requested from the posts endpoint.
	DefaultPerPage = 99
	// MaxConcurrentPages bounds parallel page requests against one API host.
	MaxConcurrentPages = 4

	requestTimeout = 30 * time.Second
	userAgent      = "talkshelf/1.0"
)

// WordPressOptions configures a WordPress REST source.
type WordPressOptions struct {
	APIURL       string // e.g. https://example.org/wp-json
	CategoryID   int64
	PerPage      int
	MediaBaseURL string
	HTTP         *http.Client
}

// WordPress lists the posts of one category through the WordPress REST API.
type WordPress struct {
	api          string
	categoryID   int64
	perPage      int
	mediaBaseURL string
	http         *http.Client
}

// NewWordPress creates a WordPress source.
func NewWordPress(opts WordPressOptions) *WordPress {
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: requestTimeout}
	}
	return &WordPress{
		api:          strings.TrimRight(strings.TrimSpace(opts.APIURL), "/"),
		categoryID:   opts.CategoryID,
		perPage:      perPage,
		mediaBaseURL: opts.MediaBaseURL,
		http:         hc,
	}
}

// Name identifies the source in logs.
func (w *WordPress) Name() string {
	return "wordpress " + w.api
}

type wpRendered struct {
	Rendered string `json:"rendered"`
}

type wpPost struct {
	ID         int64      `json:"id"`
	Date       string     `json:"date"`
	Link       string     `json:"link"`
	Title      wpRendered `json:"title"`
	Excerpt    wpRendered `json:"excerpt"`
	Categories []int64    `json:"categories"`
	ImageURL   string     `json:"jetpack_featured_media_url"`
}

// Fetch returns every post of the category, newest first as the API orders them.
// Pages are requested in parallel and concatenated in page order.
func (w *WordPress) Fetch(ctx context.Context) ([]model.Episode, error) {
	total, err := w.count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []model.Episode{}, nil
	}

	cats := NewCategoryIndex(w.categories(ctx))

	numPages := (total + w.perPage - 1) / w.perPage
	pages := make([][]wpPost, numPages)

	// Any failed page fails the whole fetch so a partial list is never published.
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(MaxConcurrentPages)
	for i := 0; i < numPages; i++ {
		page := i
		group.Go(func() error {
			posts, err := w.posts(gctx, page*w.perPage)
			if err != nil {
				return fmt.Errorf("fetch page %d/%d: %w", page+1, numPages, err)
			}
			pages[page] = posts
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	episodes := make([]model.Episode, 0, total)
	for _, posts := range pages {
		for _, p := range posts {
			episodes = append(episodes, w.episode(p, cats))
		}
	}
	log.Debugf("fetched %d/%d posts in %d pages", len(episodes), total, numPages)
	return episodes, nil
}

func (w *WordPress) episode(p wpPost, cats *CategoryIndex) model.Episode {
	ep := model.Episode{
		ID:         p.ID,
		Title:      p.Title.Rendered,
		AudioURL:   ExtractAudio(p.Excerpt.Rendered, w.mediaBaseURL),
		Date:       p.Date,
		Link:       p.Link,
		ImageURL:   RelativeTo(p.ImageURL, w.mediaBaseURL),
		Categories: make([]model.Category, 0, len(p.Categories)),
	}
	for _, id := range p.Categories {
		ep.Categories = append(ep.Categories, cats.ByID(id))
	}
	return ep
}

func (w *WordPress) count(ctx context.Context) (int, error) {
	var payload struct {
		Count int `json:"count"`
	}
	path := "/wp/v2/categories/" + strconv.FormatInt(w.categoryID, 10)
	if err := w.get(ctx, path, nil, &payload); err != nil {
		return 0, fmt.Errorf("category count: %w", err)
	}
	return payload.Count, nil
}

func (w *WordPress) posts(ctx context.Context, offset int) ([]wpPost, error) {
	q := url.Values{}
	q.Set("categories", strconv.FormatInt(w.categoryID, 10))
	q.Set("per_page", strconv.Itoa(w.perPage))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("_fields", "id,date,link,title,excerpt,categories,jetpack_featured_media_url")

	var posts []wpPost
	if err := w.get(ctx, "/wp/v2/posts", q, &posts); err != nil {
		return nil, fmt.Errorf("posts offset %d: %w", offset, err)
	}
	return posts, nil
}

// categories returns the site's categories, or DefaultCategories on failure.
func (w *WordPress) categories(ctx context.Context) []model.Category {
	q := url.Values{}
	q.Set("per_page", "100")
	q.Set("_fields", "id,name,slug")

	var cats []model.Category
	if err := w.get(ctx, "/wp/v2/categories", q, &cats); err != nil || len(cats) == 0 {
		if err != nil {
			log.WithError(err).Warn("failed to fetch categories, using built-in table")
		}
		return DefaultCategories
	}
	return cats
}

func (w *WordPress) get(ctx context.Context, path string, query url.Values, out any) error {
	u := w.api + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
