package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Clark-Hu/videostore/internal/domain"
)

// DefaultListingURL is the product listing scraped when none is given.
const DefaultListingURL = "https://www.pccomponentes.com/juegos-ps5"

const (
	paginatorSelector = `div[id$="-list-paginator"]`
	gridLinkSelector  = `div[id$="-product-grid"] > a`
	imageSelector     = `#pdp-section-images ul > li > img`
	priceSelector     = `#pdp-price-current-integer`
	ratingSelector    = `#pdp-section-opinion-info > div > div > span`
)

// Seller markup differs between the store itself and marketplace sellers.
var sellerSelectors = []string{
	`#pdp-section-offered-by > div > span > span`,
	`#pdp-section-offered-by > div > div > span > a`,
}

var (
	// ErrNoProducts is returned when a listing yields no product links.
	ErrNoProducts = errors.New("scraper: no products found")

	platformWord = regexp.MustCompile(`(?i)ps5`)
	pageCount    = regexp.MustCompile(`de\s+(\d+)`)
)

// Product is one scraped listing entry, in the layout the seeder loads.
type Product struct {
	Name   string       `json:"name"`
	Img    string       `json:"img"`
	Price  domain.Price `json:"price"`
	Seller string       `json:"seller"`
	Rating *float64     `json:"rating"`
}

// Client fetches a paginated product listing and every product page it
// links to.
type Client struct {
	listing *url.URL
	client  *http.Client
	delay   time.Duration
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDelay waits d between page requests.
func WithDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New constructs a client for the listing at listingURL.
func New(listingURL string, timeout time.Duration, logger *log.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	parsed, err := url.Parse(strings.TrimSpace(listingURL))
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse listing url: %q is not absolute", listingURL)
	}
	c := &Client{
		listing: parsed,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Scrape walks every listing page and returns the products in listing order.
func (c *Client) Scrape(ctx context.Context) ([]Product, error) {
	c.logger.Printf("scraper: extracting data from %q", c.listing)
	first, err := c.fetch(ctx, c.listing)
	if err != nil {
		return nil, err
	}
	pages, err := parsePageCount(first)
	if err != nil {
		return nil, err
	}

	products := make([]Product, 0)
	for page := 1; page <= pages; page++ {
		pageURL := c.pageURL(page)
		doc, err := c.fetch(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		for _, link := range parseProductLinks(doc, pageURL) {
			if err := c.wait(ctx); err != nil {
				return nil, err
			}
			productDoc, err := c.fetch(ctx, link)
			if err != nil {
				return nil, fmt.Errorf("product %s: %w", link, err)
			}
			product, err := parseProduct(productDoc, link)
			if err != nil {
				return nil, fmt.Errorf("product %s: %w", link, err)
			}
			products = append(products, product)
		}
		c.logger.Printf("scraper: page %d/%d done, %d products so far", page, pages, len(products))
	}
	if len(products) == 0 {
		return nil, ErrNoProducts
	}
	return products, nil
}

func (c *Client) pageURL(page int) *url.URL {
	u := *c.listing
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return &u
}

func (c *Client) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) fetch(ctx context.Context, target *url.URL) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) videostore-scraper")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Printf("scraper: unexpected status %d for %s", resp.StatusCode, target)
		return nil, fmt.Errorf("scraper: upstream returned %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// parsePageCount reads "Página 1 de N" from the paginator.
func parsePageCount(doc *goquery.Document) (int, error) {
	sel := doc.Find(paginatorSelector).First()
	if sel.Length() == 0 {
		return 0, fmt.Errorf("scraper: paginator %q not found", paginatorSelector)
	}
	m := pageCount.FindStringSubmatch(sel.Text())
	if m == nil {
		return 0, fmt.Errorf("scraper: unreadable paginator %q", strings.TrimSpace(sel.Text()))
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("scraper: invalid page count %q", m[1])
	}
	return n, nil
}

func parseProductLinks(doc *goquery.Document, base *url.URL) []*url.URL {
	links := make([]*url.URL, 0)
	seen := make(map[string]struct{})
	doc.Find(gridLinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if _, dup := seen[abs.String()]; dup {
			return
		}
		seen[abs.String()] = struct{}{}
		links = append(links, abs)
	})
	return links
}

func parseProduct(doc *goquery.Document, base *url.URL) (Product, error) {
	var p Product

	p.Name = strings.Join(strings.Fields(platformWord.ReplaceAllString(doc.Find("h1").First().Text(), "")), " ")
	if p.Name == "" {
		return p, errors.New("scraper: product name not found")
	}

	if src, ok := doc.Find(imageSelector).First().Attr("src"); ok {
		if ref, err := url.Parse(strings.TrimSpace(src)); err == nil {
			p.Img = base.ResolveReference(ref).String()
		}
	}

	priceText := doc.Find(priceSelector).First().Text()
	price, err := parsePrice(priceText)
	if err != nil {
		return p, fmt.Errorf("scraper: price %q: %w", strings.TrimSpace(priceText), err)
	}
	p.Price = price

	for _, sel := range sellerSelectors {
		if seller := strings.TrimSpace(doc.Find(sel).First().Text()); seller != "" {
			p.Seller = seller
			break
		}
	}
	if p.Seller == "" {
		return p, errors.New("scraper: seller not found")
	}

	if rating, ok := parseRating(doc.Find(ratingSelector).First().Text()); ok {
		p.Rating = &rating
	}
	return p, nil
}

// parsePrice reads store formatted amounts such as "1.299,95€".
func parsePrice(text string) (domain.Price, error) {
	s := strings.ReplaceAll(text, "€", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return domain.ParsePrice(strings.TrimSpace(s))
}

// parseRating reads "4,5/5". Products without reviews have no rating.
func parseRating(text string) (float64, bool) {
	head, _, _ := strings.Cut(text, "/")
	head = strings.TrimSpace(strings.ReplaceAll(head, ",", "."))
	if head == "" {
		return 0, false
	}
	rating, err := strconv.ParseFloat(head, 64)
	if err != nil || math.IsNaN(rating) || rating < 0 || rating > domain.MaxProductRating {
		return 0, false
	}
	return rating, true
}

// WriteJSON stores products at path as indented JSON.
func WriteJSON(path string, products []Product) error {
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadJSON loads a file written by WriteJSON.
func ReadJSON(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return products, nil
}
