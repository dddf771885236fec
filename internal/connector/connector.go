// Package connector manages the data-source catalog and submission paths.
package connector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/logx"
	"github.com/dataquill/quill/internal/store"
)

// Mode says how a source kind is connected.
type Mode int

const (
	// ModeFile kinds upload a file.
	ModeFile Mode = iota
	// ModeCredentials kinds submit a credential form.
	ModeCredentials
	// ModeUnsupported kinds are in the catalog but have no wired submission
	// path yet; they must render an explicit unsupported state.
	ModeUnsupported
)

// Kind is one entry in the fixed source-kind catalog.
type Kind struct {
	ID          string
	Name        string
	Description string
	Mode        Mode
}

// ErrUnsupported marks a catalog kind with no wired submission path.
var ErrUnsupported = errors.New("connector: source kind not supported yet")

// ErrMissingCredentials is returned before any network call when a
// credential field is blank.
var ErrMissingCredentials = errors.New("connector: all credential fields are required")

var catalog = []Kind{
	{ID: "csv", Name: "CSV File", Description: "Upload a CSV file", Mode: ModeFile},
	{ID: "excel", Name: "Excel File", Description: "Upload an Excel spreadsheet", Mode: ModeFile},
	{ID: "json", Name: "JSON Data", Description: "Upload JSON data or file", Mode: ModeFile},
	{ID: "postgres", Name: "PostgreSQL", Description: "Connect to PostgreSQL database", Mode: ModeCredentials},
	{ID: "mysql", Name: "MySQL", Description: "Connect to MySQL database", Mode: ModeCredentials},
	{ID: "bigquery", Name: "BigQuery", Description: "Connect to Google BigQuery", Mode: ModeUnsupported},
	{ID: "s3", Name: "Amazon S3", Description: "Connect to S3 bucket", Mode: ModeUnsupported},
	{ID: "api", Name: "API Endpoint", Description: "Connect to REST API", Mode: ModeUnsupported},
}

// Catalog returns the eight source kinds in fixed order.
func Catalog() []Kind {
	out := make([]Kind, len(catalog))
	copy(out, catalog)
	return out
}

// KindByID looks up a catalog entry.
func KindByID(id string) (Kind, bool) {
	for _, k := range catalog {
		if k.ID == id {
			return k, true
		}
	}
	return Kind{}, false
}

// Credentials is the form contract for database-backed kinds.
type Credentials struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
}

func (c Credentials) complete() bool {
	return c.Host != "" && c.Port != "" && c.Database != "" && c.Username != "" && c.Password != ""
}

// Connector submits data sources and keeps the project graph consistent
// afterwards via a full refetch.
type Connector struct {
	client *api.Client
	store  *store.Store
}

// New builds a connector.
func New(client *api.Client, st *store.Store) *Connector {
	return &Connector{client: client, store: st}
}

// UploadFile connects a file-backed source: the file, the source-type tag,
// and a serialized config object go up as one multipart request. Previously
// connected sources are untouched on failure.
func (c *Connector) UploadFile(ctx context.Context, kindID, path string) (api.DataSource, error) {
	kind, ok := KindByID(kindID)
	if !ok {
		return api.DataSource{}, fmt.Errorf("connector: unknown source kind %q", kindID)
	}
	if kind.Mode == ModeUnsupported {
		return api.DataSource{}, ErrUnsupported
	}
	if kind.Mode != ModeFile {
		return api.DataSource{}, fmt.Errorf("connector: %s takes credentials, not a file", kind.ID)
	}

	f, err := os.Open(path)
	if err != nil {
		return api.DataSource{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	ds, err := c.client.ConnectDataSource(ctx, c.store.ActiveID(), api.Upload{
		SourceType: kind.ID,
		Filename:   name,
		File:       f,
		Config: map[string]any{
			"name": name,
			"type": kind.ID,
		},
	})
	if err != nil {
		return api.DataSource{}, err
	}
	logx.Info().Str("kind", kind.ID).Str("file", name).Msg("data source connected")

	if err := c.store.Refresh(ctx); err != nil {
		return ds, fmt.Errorf("refresh project: %w", err)
	}
	return ds, nil
}

// ConnectDatabase connects a credential-backed source. Blank fields are
// rejected before any network call.
func (c *Connector) ConnectDatabase(ctx context.Context, kindID string, creds Credentials) (api.DataSource, error) {
	kind, ok := KindByID(kindID)
	if !ok {
		return api.DataSource{}, fmt.Errorf("connector: unknown source kind %q", kindID)
	}
	if kind.Mode == ModeUnsupported {
		return api.DataSource{}, ErrUnsupported
	}
	if kind.Mode != ModeCredentials {
		return api.DataSource{}, fmt.Errorf("connector: %s takes a file, not credentials", kind.ID)
	}
	if !creds.complete() {
		return api.DataSource{}, ErrMissingCredentials
	}

	name := fmt.Sprintf("%s@%s/%s", kind.ID, creds.Host, creds.Database)
	ds, err := c.client.ConnectDataSource(ctx, c.store.ActiveID(), api.Upload{
		SourceType: kind.ID,
		Config: map[string]any{
			"name":     name,
			"type":     kind.ID,
			"host":     creds.Host,
			"port":     creds.Port,
			"database": creds.Database,
			"username": creds.Username,
			"password": creds.Password,
		},
	})
	if err != nil {
		return api.DataSource{}, err
	}
	logx.Info().Str("kind", kind.ID).Str("host", creds.Host).Msg("database source connected")

	if err := c.store.Refresh(ctx); err != nil {
		return ds, fmt.Errorf("refresh project: %w", err)
	}
	return ds, nil
}
