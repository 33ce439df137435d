package storage

// Schema contains SQL statements to create database tables.
const Schema = `
-- Crawl runs: one row per exported result
CREATE TABLE IF NOT EXISTS crawl_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    seed_url TEXT NOT NULL,
    started_at DATETIME,
    duration_ms INTEGER DEFAULT 0,
    scraped_count INTEGER DEFAULT 0,
    failed_count INTEGER DEFAULT 0,
    remaining_queue INTEGER DEFAULT 0,
    success BOOLEAN DEFAULT 1
);

-- Pages: scraped pages in crawl order
CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    url TEXT NOT NULL,
    title TEXT,
    meta_description TEXT
);

CREATE INDEX IF NOT EXISTS idx_pages_run_id ON pages(run_id);
CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

-- Headings: h1-h3 per page in document order
CREATE TABLE IF NOT EXISTS headings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    level INTEGER NOT NULL,
    text TEXT
);

CREATE INDEX IF NOT EXISTS idx_headings_page_id ON headings(page_id);

-- Paragraphs: non-empty paragraph text per page
CREATE TABLE IF NOT EXISTS paragraphs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    text TEXT
);

CREATE INDEX IF NOT EXISTS idx_paragraphs_page_id ON paragraphs(page_id);

-- Links: anchors found on each page
CREATE TABLE IF NOT EXISTS links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    text TEXT,
    href TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_links_page_id ON links(page_id);
CREATE INDEX IF NOT EXISTS idx_links_href ON links(href);

-- Images: img elements per page
CREATE TABLE IF NOT EXISTS images (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    src TEXT,
    alt TEXT
);

CREATE INDEX IF NOT EXISTS idx_images_page_id ON images(page_id);

-- Failed URLs: URLs that failed after all retries
CREATE TABLE IF NOT EXISTS failed_urls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    url TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failed_urls_run_id ON failed_urls(run_id);
`

// ViewsSchema contains SQL statements to create views for reports.
const ViewsSchema = `
CREATE VIEW IF NOT EXISTS page_summary AS
SELECT
    r.run_id,
    p.position,
    p.url,
    p.title,
    (SELECT COUNT(*) FROM headings h WHERE h.page_id = p.id) AS heading_count,
    (SELECT COUNT(*) FROM links l WHERE l.page_id = p.id) AS link_count,
    (SELECT COUNT(*) FROM paragraphs g WHERE g.page_id = p.id) AS paragraph_count,
    (SELECT COUNT(*) FROM images i WHERE i.page_id = p.id) AS image_count
FROM pages p
JOIN crawl_runs r ON r.id = p.run_id;
`
