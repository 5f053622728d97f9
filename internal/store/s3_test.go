package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, publicBaseURL string) *S3Store {
	t.Helper()

	s, err := NewS3Store(context.Background(), S3Config{
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Bucket:          "listing-images",
		PublicBaseURL:   publicBaseURL,
	})
	require.NoError(t, err)
	return s
}

func TestS3Store_PublicURLRoundTrip(t *testing.T) {
	s := newTestStore(t, "")

	url := s.PublicURL("listings/123-chair.jpg")
	assert.Equal(t, "http://localhost:9000/listing-images/listings/123-chair.jpg", url)

	path, err := s.PathFromURL(url)
	require.NoError(t, err)
	assert.Equal(t, "listings/123-chair.jpg", path)
}

func TestS3Store_PathFromURL_ForeignURL(t *testing.T) {
	s := newTestStore(t, "")

	_, err := s.PathFromURL("https://elsewhere.example.com/listings/123.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRead)
}

func TestS3Store_Get(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/listings/1-a.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	s := newTestStore(t, ts.URL)

	data, err := s.Get(context.Background(), ts.URL+"/listings/1-a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	_, err = s.Get(context.Background(), ts.URL+"/listings/missing.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRead)
}

func TestS3Store_Get_ForeignURL(t *testing.T) {
	s := newTestStore(t, "http://localhost:9000/listing-images")

	_, err := s.Get(context.Background(), "https://elsewhere.example.com/a.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRead)
}
