package connector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/store"
)

func TestCatalogModes(t *testing.T) {
	t.Parallel()

	kinds := Catalog()
	require.Len(t, kinds, 8)

	modes := map[string]Mode{}
	for _, k := range kinds {
		modes[k.ID] = k.Mode
	}
	for _, id := range []string{"csv", "excel", "json"} {
		require.Equal(t, ModeFile, modes[id], id)
	}
	for _, id := range []string{"postgres", "mysql"} {
		require.Equal(t, ModeCredentials, modes[id], id)
	}
	for _, id := range []string{"bigquery", "s3", "api"} {
		require.Equal(t, ModeUnsupported, modes[id], id)
	}
}

func newTestConnector(t *testing.T, mux *http.ServeMux) (*Connector, *store.Store) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := api.New(srv.URL, 2*time.Second)
	st := store.New(client)
	return New(client, st), st
}

func TestUploadFileMultipart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o600))

	var fetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/7", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_ = json.NewEncoder(w).Encode(api.Project{ID: 7, DataSources: []api.DataSource{{ID: 1}}})
	})
	mux.HandleFunc("POST /projects/7/data-sources", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		require.Equal(t, "csv", r.FormValue("source_type"))

		var cfg map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("config")), &cfg))
		require.Equal(t, "sales.csv", cfg["name"])
		require.Equal(t, "csv", cfg["type"])

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		require.Equal(t, "sales.csv", hdr.Filename)
		body, err := io.ReadAll(f)
		require.NoError(t, err)
		require.Equal(t, "a,b\n1,2\n", string(body))

		_ = json.NewEncoder(w).Encode(api.DataSource{ID: 9, Type: "csv", Name: "sales.csv"})
	})

	c, st := newTestConnector(t, mux)
	gen := st.Activate(7)
	_, _, err := st.FetchProject(ctx, gen)
	require.NoError(t, err)

	ds, err := c.UploadFile(ctx, "csv", path)
	require.NoError(t, err)
	require.Equal(t, int64(9), ds.ID)
	require.Equal(t, int64(2), fetches.Load(), "exactly one refetch after connect")
}

func TestUploadFileRejectsWrongMode(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { requests.Add(1) })
	c, _ := newTestConnector(t, mux)

	_, err := c.UploadFile(context.Background(), "s3", "whatever.csv")
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = c.UploadFile(context.Background(), "postgres", "whatever.csv")
	require.Error(t, err)

	_, err = c.UploadFile(context.Background(), "parquet", "whatever.csv")
	require.Error(t, err)

	require.Zero(t, requests.Load())
}

func TestConnectDatabaseValidatesCredentials(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { requests.Add(1) })
	c, _ := newTestConnector(t, mux)

	_, err := c.ConnectDatabase(context.Background(), "postgres", Credentials{Host: "db.local"})
	require.ErrorIs(t, err, ErrMissingCredentials)

	_, err = c.ConnectDatabase(context.Background(), "bigquery", Credentials{})
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = c.ConnectDatabase(context.Background(), "csv", Credentials{})
	require.Error(t, err)

	require.Zero(t, requests.Load())
}

func TestConnectDatabaseSubmitsConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var fetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/7", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_ = json.NewEncoder(w).Encode(api.Project{ID: 7})
	})
	mux.HandleFunc("POST /projects/7/data-sources", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "postgres", r.FormValue("source_type"))

		var cfg map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("config")), &cfg))
		require.Equal(t, "db.local", cfg["host"])
		require.Equal(t, "5432", cfg["port"])
		require.Equal(t, "warehouse", cfg["database"])

		// no file part for credential kinds
		_, _, err := r.FormFile("file")
		require.Error(t, err)

		_ = json.NewEncoder(w).Encode(api.DataSource{ID: 4, Type: "postgres"})
	})

	c, st := newTestConnector(t, mux)
	gen := st.Activate(7)
	_, _, err := st.FetchProject(ctx, gen)
	require.NoError(t, err)

	ds, err := c.ConnectDatabase(ctx, "postgres", Credentials{
		Host: "db.local", Port: "5432", Database: "warehouse", Username: "app", Password: "secret",
	})
	require.NoError(t, err)
	require.Equal(t, int64(4), ds.ID)
	require.Equal(t, int64(2), fetches.Load())
}
