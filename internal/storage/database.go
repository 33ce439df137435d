package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/spider-crawler/sitecrawl/internal/model"
)

// ErrRunNotFound is returned when a run id is not stored.
var ErrRunNotFound = errors.New("run not found")

// Database handles all database operations.
type Database struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDatabase creates a new database connection.
func NewDatabase(path string) (*Database, error) {
	// SQLite connection with optimizations
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &Database{db: db}, nil
}

// Open opens the database at path and creates the schema.
func Open(path string) (*Database, error) {
	d, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := d.Initialize(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Initialize creates tables and views.
func (d *Database) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := d.db.Exec(ViewsSchema); err != nil {
		return fmt.Errorf("failed to create views: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// SaveResult stores a crawl result in a single transaction.
func (d *Database) SaveResult(result *model.CrawlResult) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.Exec(`
		INSERT INTO crawl_runs (run_id, seed_url, started_at, duration_ms, scraped_count, failed_count, remaining_queue, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, result.RunID, result.SeedURL, result.StartedAt, result.Duration.Milliseconds(),
		result.ScrapedCount, result.FailedCount, result.RemainingQueueLength, result.Success)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i := range result.Pages {
		if err = insertPage(tx, runID, i, &result.Pages[i]); err != nil {
			return err
		}
	}

	for i, u := range result.FailedURLs {
		if _, err = tx.Exec(`INSERT INTO failed_urls (run_id, position, url) VALUES (?, ?, ?)`, runID, i, u); err != nil {
			return fmt.Errorf("failed to insert failed url: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func insertPage(tx *sql.Tx, runID int64, position int, page *model.PageRecord) error {
	res, err := tx.Exec(`
		INSERT INTO pages (run_id, position, url, title, meta_description)
		VALUES (?, ?, ?, ?, ?)
	`, runID, position, page.URL, page.Title, page.MetaDescription)
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}
	pageID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, h := range page.Headings {
		if _, err := tx.Exec(`INSERT INTO headings (page_id, position, level, text) VALUES (?, ?, ?, ?)`, pageID, i, h.Level, h.Text); err != nil {
			return fmt.Errorf("failed to insert heading: %w", err)
		}
	}
	for i, p := range page.Paragraphs {
		if _, err := tx.Exec(`INSERT INTO paragraphs (page_id, position, text) VALUES (?, ?, ?)`, pageID, i, p); err != nil {
			return fmt.Errorf("failed to insert paragraph: %w", err)
		}
	}
	for i, l := range page.Links {
		if _, err := tx.Exec(`INSERT INTO links (page_id, position, text, href) VALUES (?, ?, ?, ?)`, pageID, i, l.Text, l.Href); err != nil {
			return fmt.Errorf("failed to insert link: %w", err)
		}
	}
	for i, img := range page.Images {
		if _, err := tx.Exec(`INSERT INTO images (page_id, position, src, alt) VALUES (?, ?, ?, ?)`, pageID, i, img.Src, img.Alt); err != nil {
			return fmt.Errorf("failed to insert image: %w", err)
		}
	}
	return nil
}

// GetRun retrieves a stored run by its run id.
func (d *Database) GetRun(runID string) (*Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	run, err := scanRun(d.db.QueryRow(`
		SELECT id, run_id, seed_url, started_at, duration_ms, scraped_count, failed_count, remaining_queue, success
		FROM crawl_runs WHERE run_id = ?
	`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns all stored runs, oldest first.
func (d *Database) ListRuns() ([]*Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT id, run_id, seed_url, started_at, duration_ms, scraped_count, failed_count, remaining_queue, success
		FROM crawl_runs ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var durationMS int64
	err := row.Scan(&run.ID, &run.RunID, &run.SeedURL, &run.StartedAt, &durationMS,
		&run.ScrapedCount, &run.FailedCount, &run.RemainingQueue, &run.Success)
	if err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}

// GetPageSummaries returns the pages of a run in crawl order.
func (d *Database) GetPageSummaries(runID string) ([]*PageSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT position, url, COALESCE(title, ''), heading_count, link_count, paragraph_count, image_count
		FROM page_summary WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*PageSummary
	for rows.Next() {
		var p PageSummary
		if err := rows.Scan(&p.Position, &p.URL, &p.Title, &p.HeadingCount, &p.LinkCount, &p.ParagraphCount, &p.ImageCount); err != nil {
			return nil, err
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// GetFailedURLs returns the failed URLs of a run in the order they failed.
func (d *Database) GetFailedURLs(runID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(`
		SELECT f.url FROM failed_urls f
		JOIN crawl_runs r ON r.id = f.run_id
		WHERE r.run_id = ? ORDER BY f.position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}
