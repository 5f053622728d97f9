package listing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the listing id is unknown.
var ErrNotFound = errors.New("listing not found")

// Repository persists listings and the extraction cache.
type Repository interface {
	Create(ctx context.Context, l *Listing) (*Listing, error)
	Get(ctx context.Context, id string) (*Listing, error)
	List(ctx context.Context, limit int) ([]Listing, error)
	// ReplaceImages swaps the listing's whole image list and image_url in a
	// single update and returns the updated row.
	ReplaceImages(ctx context.Context, id string, urls []string) (*Listing, error)

	// Extraction cache, keyed by a hash of the source image bytes.
	GetExtractionCache(hash string) (json.RawMessage, error)
	SetExtractionCache(hash string, payload json.RawMessage) error

	Close() error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteRepository opens (or creates) the database at dbPath.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	// WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.init(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *SQLiteRepository) init() error {
	listingsQuery := `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		title TEXT,
		category TEXT,
		condition TEXT,
		description TEXT,
		price REAL,
		image_url TEXT,
		images TEXT NOT NULL DEFAULT '[]',
		confidence_score REAL,
		raw_extraction TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := r.db.Exec(listingsQuery); err != nil {
		return fmt.Errorf("failed to create listings table: %w", err)
	}

	cacheQuery := `
	CREATE TABLE IF NOT EXISTS extraction_cache (
		image_hash TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := r.db.Exec(cacheQuery); err != nil {
		return fmt.Errorf("failed to create extraction_cache table: %w", err)
	}

	return nil
}

const listingColumns = `id, title, category, condition, description, price,
	image_url, images, confidence_score, raw_extraction, created_at, updated_at`

// Create assigns an id and timestamps and inserts the listing. The returned
// value is the persisted row.
func (r *SQLiteRepository) Create(ctx context.Context, l *Listing) (*Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l.ID = uuid.New().String()
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	images, err := json.Marshal(l.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to encode images: %w", err)
	}

	var raw any
	if len(l.RawExtraction) > 0 {
		raw = string(l.RawExtraction)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Title, l.Category, l.Condition, l.Description, l.Price,
		l.ImageURL, string(images), l.ConfidenceScore, raw, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert listing: %w", err)
	}

	return r.get(ctx, l.ID)
}

// Get retrieves a listing by id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.get(ctx, id)
}

func (r *SQLiteRepository) get(ctx context.Context, id string) (*Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)

	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read listing: %w", err)
	}
	return l, nil
}

// List returns the most recently created listings, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *l)
	}

	return listings, rows.Err()
}

// ReplaceImages swaps the image list and image_url atomically in one update.
func (r *SQLiteRepository) ReplaceImages(ctx context.Context, id string, urls []string) (*Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	images, err := json.Marshal(urls)
	if err != nil {
		return nil, fmt.Errorf("failed to encode images: %w", err)
	}

	var imageURL *string
	if len(urls) > 0 {
		imageURL = &urls[0]
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET images = ?, image_url = ?, updated_at = ? WHERE id = ?`,
		string(images), imageURL, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update listing images: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return r.get(ctx, id)
}

// GetExtractionCache returns the cached raw extraction payload for an image
// hash, or nil when the hash is unknown.
func (r *SQLiteRepository) GetExtractionCache(hash string) (json.RawMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var payload string
	err := r.db.QueryRow(
		`SELECT payload FROM extraction_cache WHERE image_hash = ?`, hash,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction cache: %w", err)
	}

	return json.RawMessage(payload), nil
}

// SetExtractionCache stores the raw extraction payload for an image hash.
func (r *SQLiteRepository) SetExtractionCache(hash string, payload json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO extraction_cache (image_hash, payload) VALUES (?, ?)`,
		hash, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to write extraction cache: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var (
		l          Listing
		imagesJSON string
		raw        sql.NullString
	)

	err := row.Scan(
		&l.ID, &l.Title, &l.Category, &l.Condition, &l.Description, &l.Price,
		&l.ImageURL, &imagesJSON, &l.ConfidenceScore, &raw, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(imagesJSON), &l.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images column: %w", err)
	}
	if raw.Valid {
		l.RawExtraction = json.RawMessage(raw.String)
	}

	return &l, nil
}
