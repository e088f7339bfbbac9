// Package preview reads the Open Graph tags of recipe pages so cards without
// a picture can still show one.
package preview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const defaultTimeout = 15 * time.Second

var ErrNoImage = errors.New("page has no preview image")

// Preview is what a recipe page says about itself.
type Preview struct {
	Title       string
	Description string
	Image       string
}

// Previewer fetches recipe pages.
type Previewer struct {
	httpClient *http.Client
}

// New creates a Previewer. A zero timeout uses 15 seconds.
func New(timeout time.Duration) *Previewer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Previewer{httpClient: &http.Client{Timeout: timeout}}
}

// Fetch downloads link and extracts its preview. Relative image URLs are
// resolved against the page URL.
func (p *Previewer) Fetch(ctx context.Context, link string) (Preview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return Preview{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Preview{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Preview{}, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Preview{}, err
	}

	pv := Preview{
		Title:       firstMeta(doc, "og:title", "twitter:title"),
		Description: firstMeta(doc, "og:description", "description"),
		Image:       firstMeta(doc, "og:image", "og:image:url", "twitter:image"),
	}
	if pv.Title == "" {
		pv.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if pv.Image == "" {
		if src, ok := doc.Find(`link[rel="image_src"]`).Attr("href"); ok {
			pv.Image = strings.TrimSpace(src)
		}
	}
	pv.Image = absolute(resp.Request.URL, pv.Image)
	return pv, nil
}

// ResolveImage returns the preview image of link.
func (p *Previewer) ResolveImage(ctx context.Context, link string) (string, error) {
	pv, err := p.Fetch(ctx, link)
	if err != nil {
		return "", err
	}
	if pv.Image == "" {
		return "", ErrNoImage
	}
	return pv.Image, nil
}

// firstMeta looks names up in both the property and the name attribute.
func firstMeta(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, name, name)).First()
		if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
	}
	return ""
}

func absolute(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
