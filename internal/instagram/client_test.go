package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateContainer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/17841400000000000/media", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://files.test/img.jpg", r.FormValue("image_url"))
		assert.Equal(t, "hello", r.FormValue("caption"))
		assert.Equal(t, "tok", r.FormValue("access_token"))

		json.NewEncoder(w).Encode(map[string]string{"id": "container-1"})
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.URL, srv.Client())

	id, err := c.CreateContainer(context.Background(), "17841400000000000", "tok", "https://files.test/img.jpg", "hello")
	require.NoError(t, err)
	assert.Equal(t, "container-1", id)
}

func TestClient_ContainerStatus(t *testing.T) {
	t.Run("reports state", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/container-1", r.URL.Path)
			assert.Equal(t, "status_code", r.URL.Query().Get("fields"))
			json.NewEncoder(w).Encode(map[string]string{"status_code": ContainerInProgress})
		}))
		defer srv.Close()

		c := NewClientWithHTTP(srv.URL, srv.Client())

		status, err := c.ContainerStatus(context.Background(), "container-1", "tok")
		require.NoError(t, err)
		assert.Equal(t, ContainerInProgress, status)
	})

	t.Run("missing status_code reads as UNKNOWN", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"id": "container-1"})
		}))
		defer srv.Close()

		c := NewClientWithHTTP(srv.URL, srv.Client())

		status, err := c.ContainerStatus(context.Background(), "container-1", "tok")
		require.NoError(t, err)
		assert.Equal(t, "UNKNOWN", status)
	})
}

func TestClient_PublishContainer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/17841400000000000/media_publish", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "container-1", r.FormValue("creation_id"))
		json.NewEncoder(w).Encode(map[string]string{"id": "media-9"})
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.URL, srv.Client())

	mediaID, err := c.PublishContainer(context.Background(), "17841400000000000", "tok", "container-1")
	require.NoError(t, err)
	assert.Equal(t, "media-9", mediaID)
}

func TestClient_ErrorMapping(t *testing.T) {
	t.Run("4xx is a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "Invalid OAuth access token"},
			})
		}))
		defer srv.Close()

		c := NewClientWithHTTP(srv.URL, srv.Client())

		_, err := c.CreateContainer(context.Background(), "u", "bad", "https://x/img.jpg", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRemoteRejected)
		assert.NotErrorIs(t, err, ErrUnavailable)
		assert.Contains(t, err.Error(), "Invalid OAuth access token")
	})

	t.Run("5xx is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewClientWithHTTP(srv.URL, srv.Client())

		_, err := c.PublishContainer(context.Background(), "u", "tok", "c")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("connection failure is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		c := NewClient(srv.URL, 0)

		_, err := c.ContainerStatus(context.Background(), "c", "tok")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestClient_RecentMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/17841400000000000/media", r.URL.Path)
		assert.Equal(t, "12", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"id": "1", "media_type": "IMAGE", "media_url": "https://cdn/1.jpg", "permalink": "https://ig/p/1"},
				{"id": "2", "media_type": "IMAGE", "media_url": "https://cdn/2.jpg", "permalink": "https://ig/p/2"},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.URL, srv.Client())

	media, err := c.RecentMedia(context.Background(), "17841400000000000", "tok", 12)
	require.NoError(t, err)
	require.Len(t, media, 2)
	assert.Equal(t, "1", media[0].ID)
	assert.Equal(t, "https://cdn/2.jpg", media[1].MediaURL)
}
