package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Clark-Hu/videostore/db"
	"github.com/Clark-Hu/videostore/internal/blob"
	"github.com/Clark-Hu/videostore/internal/catalog"
	"github.com/Clark-Hu/videostore/internal/config"
	"github.com/Clark-Hu/videostore/internal/repository"
	"github.com/Clark-Hu/videostore/internal/scraper"
	"github.com/Clark-Hu/videostore/internal/store"
)

type movieRecord struct {
	Title       string  `json:"title"`
	Poster      string  `json:"poster"`
	Genre       string  `json:"genre"`
	AgeRating   int     `json:"ageRating"`
	ReleaseYear string  `json:"releaseYear"`
	MinDuration *string `json:"minDuration"`
	NumCopies   int     `json:"numCopies"`
	Synopsis    *string `json:"synopsis"`
}

type directorRecord struct {
	Surnames string   `json:"surnames"`
	Name     string   `json:"name"`
	Photo    string   `json:"photo"`
	Movies   []string `json:"movies"`
}

func main() {
	var (
		dataDir  = flag.String("data", "data", "directory holding movies.json, directors.json and products.json plus image folders")
		products = flag.Bool("products", true, "reload products.json when present")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags)

	st, err := store.New(ctx, cfg.DBURL, store.Options{StatementCacheCapacity: cfg.DBStatementCache, Logger: logger})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx, db.Migrations, "migrations"); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	blobs, err := newBlobStore(cfg, logger)
	if err != nil {
		log.Fatalf("init blob store: %v", err)
	}
	cleaner := blob.NewAsyncCleaner(blobs, time.Duration(cfg.BlobCleanupTimeoutSecs)*time.Second, logger)
	svc := catalog.New(repository.New(st), blobs, cleaner, logger)

	s := seeder{svc: svc, blobs: blobs, dir: *dataDir, logger: logger}
	if err := s.catalog(ctx); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	if *products {
		if err := s.products(ctx); err != nil {
			log.Fatalf("seed products: %v", err)
		}
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := cleaner.Wait(waitCtx); err != nil {
		logger.Printf("pending image cleanups abandoned: %v", err)
	}
}

type seeder struct {
	svc    *catalog.Service
	blobs  blob.Store
	dir    string
	logger *log.Logger
}

// catalog replaces every movie and director with the data files.
func (s seeder) catalog(ctx context.Context) error {
	var movies []movieRecord
	if err := readJSON(filepath.Join(s.dir, "movies.json"), &movies); err != nil {
		return err
	}
	var directors []directorRecord
	if err := readJSON(filepath.Join(s.dir, "directors.json"), &directors); err != nil {
		return err
	}

	if err := s.svc.ResetCatalog(ctx); err != nil {
		return err
	}
	s.logger.Printf("removed old movies and directors")

	for _, m := range movies {
		in := catalog.MovieInput{
			Title:       &m.Title,
			Genre:       &m.Genre,
			AgeRating:   &m.AgeRating,
			ReleaseYear: &m.ReleaseYear,
			MinDuration: m.MinDuration,
			NumCopies:   &m.NumCopies,
			Synopsis:    m.Synopsis,
		}
		if err := s.withImage("movies", m.Poster, func(img *catalog.Upload) error {
			_, err := s.svc.CreateMovie(ctx, in, img)
			return err
		}); err != nil {
			return fmt.Errorf("movie %q: %w", m.Title, err)
		}
	}
	s.logger.Printf("created %d movies", len(movies))

	batch := make([]catalog.DirectorImport, 0, len(directors))
	uploaded := make([]string, 0, len(directors))
	for _, d := range directors {
		item := catalog.DirectorImport{Surnames: d.Surnames, Name: d.Name, Movies: d.Movies}
		if d.Photo != "" {
			url, err := s.blobs.UploadFile(ctx, blob.FolderDirectors, filepath.Join(s.dir, "directors", d.Photo))
			if err != nil {
				s.purge(ctx, uploaded, "carga de directores fallida")
				return fmt.Errorf("upload photo of %s: %w", d.Surnames, err)
			}
			uploaded = append(uploaded, url)
			item.Photo = &url
		}
		batch = append(batch, item)
	}
	created, err := s.svc.ImportDirectors(ctx, batch)
	if err != nil {
		s.purge(ctx, uploaded, "carga de directores fallida")
		return err
	}
	s.logger.Printf("created %d directors", len(created))
	return nil
}

// products replaces the product collection with a scraper output file.
func (s seeder) products(ctx context.Context) error {
	path := filepath.Join(s.dir, "products.json")
	scraped, err := scraper.ReadJSON(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Printf("%s not found; products left untouched", path)
		return nil
	}
	if err != nil {
		return err
	}

	old, err := s.svc.ProductImages(ctx)
	if err != nil {
		return err
	}

	batch := make([]catalog.ProductInput, 0, len(scraped))
	for i := range scraped {
		p := scraped[i]
		batch = append(batch, catalog.ProductInput{Name: &p.Name, Img: &p.Img, Price: &p.Price, Seller: &p.Seller, Rating: p.Rating})
	}
	created, err := s.svc.ReplaceProducts(ctx, batch)
	if err != nil {
		return err
	}
	s.logger.Printf("created %d products", len(created))

	// only images hosted in the products folder belong to us
	hosted := make([]string, 0, len(old))
	for _, url := range old {
		if strings.HasPrefix(blob.PublicID(url), blob.FolderProducts+"/") {
			hosted = append(hosted, url)
		}
	}
	s.purge(ctx, hosted, "regeneración de los datos de productos")
	return nil
}

// withImage opens folder/name under the data directory and hands it to fn.
// An empty name means no image.
func (s seeder) withImage(folder, name string, fn func(*catalog.Upload) error) error {
	if strings.TrimSpace(name) == "" {
		return fn(nil)
	}
	f, err := os.Open(filepath.Join(s.dir, folder, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(&catalog.Upload{Filename: name, Content: f})
}

func (s seeder) purge(ctx context.Context, urls []string, reason string) {
	for _, url := range urls {
		if err := blob.Purge(ctx, s.blobs, url, reason, s.logger); err != nil {
			s.logger.Printf("purge %s: %v", url, err)
		}
	}
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func newBlobStore(cfg config.Config, logger *log.Logger) (blob.Store, error) {
	if !cfg.HasCloudinary() {
		logger.Println("no cloudinary credentials; uploaded images will not outlive this run")
		return blob.NewMemoryStore(""), nil
	}
	return blob.NewCloudinary(blob.CloudinaryOptions{
		URL:       cfg.CloudinaryURL,
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Logger:    logger,
	})
}
