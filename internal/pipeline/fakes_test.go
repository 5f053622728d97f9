package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raine/listing-snap/internal/listing"
	"github.com/raine/listing-snap/internal/llm"
	"github.com/raine/listing-snap/internal/store"
)

// fakeStore is an in-memory Store. Individual operations can be overridden
// to inject failures.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
	gets    []string

	putErr func(path string) error
	getErr func(url string) error
}

const fakeBaseURL = "https://cdn.example.com/listing-images"

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		if err := f.putErr(path); err != nil {
			return "", err
		}
	}
	if _, exists := f.objects[path]; exists {
		return "", fmt.Errorf("%w: path collision: %s", store.ErrWrite, path)
	}
	f.objects[path] = data
	f.puts = append(f.puts, path)
	return path, nil
}

func (f *fakeStore) PublicURL(path string) string {
	return fakeBaseURL + "/" + path
}

func (f *fakeStore) PathFromURL(url string) (string, error) {
	if !strings.HasPrefix(url, fakeBaseURL+"/") {
		return "", fmt.Errorf("%w: foreign url: %s", store.ErrRead, url)
	}
	return strings.TrimPrefix(url, fakeBaseURL+"/"), nil
}

func (f *fakeStore) Get(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		if err := f.getErr(url); err != nil {
			return nil, err
		}
	}
	path, err := f.PathFromURL(url)
	if err != nil {
		return nil, err
	}
	data, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("%w: no such object: %s", store.ErrRead, path)
	}
	f.gets = append(f.gets, url)
	return data, nil
}

// fakeExtractor returns a canned extraction result.
type fakeExtractor struct {
	mu     sync.Mutex
	calls  [][]llm.Image
	result *llm.ExtractionResult
	err    error
}

func (f *fakeExtractor) ExtractListing(ctx context.Context, images []llm.Image) (*llm.ExtractionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, images)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeEditor prepends a marker to the image bytes so tests can tell edited
// objects apart from originals.
type fakeEditor struct {
	mu    sync.Mutex
	calls int
	err   func(image []byte) error
}

func (f *fakeEditor) RemoveBackground(ctx context.Context, image []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls += 1
	if f.err != nil {
		if err := f.err(image); err != nil {
			return nil, err
		}
	}
	return append([]byte("edited:"), image...), nil
}

// fakeRepo is an in-memory listing.Repository.
type fakeRepo struct {
	mu       sync.Mutex
	listings map[string]*listing.Listing
	cache    map[string]json.RawMessage
	nextID   int

	createErr  error
	replaceErr error
	replaces   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		listings: make(map[string]*listing.Listing),
		cache:    make(map[string]json.RawMessage),
	}
}

func (f *fakeRepo) Create(ctx context.Context, l *listing.Listing) (*listing.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	l.ID = fmt.Sprintf("listing-%d", f.nextID)
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	stored := *l
	f.listings[l.ID] = &stored
	return l, nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*listing.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", listing.ErrNotFound, id)
	}
	copied := *l
	return &copied, nil
}

func (f *fakeRepo) List(ctx context.Context, limit int) ([]listing.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []listing.Listing
	for _, l := range f.listings {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeRepo) ReplaceImages(ctx context.Context, id string, urls []string) (*listing.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces++
	if f.replaceErr != nil {
		return nil, f.replaceErr
	}
	l, ok := f.listings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", listing.ErrNotFound, id)
	}
	l.SetImages(urls)
	l.UpdatedAt = time.Now().UTC()
	copied := *l
	return &copied, nil
}

func (f *fakeRepo) GetExtractionCache(hash string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache[hash], nil
}

func (f *fakeRepo) SetExtractionCache(hash string, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[hash] = payload
	return nil
}

func (f *fakeRepo) Close() error { return nil }

var _ listing.Repository = (*fakeRepo)(nil)
var _ store.Store = (*fakeStore)(nil)

// steppingClock returns strictly increasing timestamps so derived storage
// paths never collide within a test.
func steppingClock() func() time.Time {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var n int64
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}
