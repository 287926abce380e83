package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// TableSpec describes a sink table the analytics worker writes to. Schema
// and PartitionField are only used when the table has to be created.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

type Pinger interface {
	Ping(context.Context) error
}

// Client is the analytics sink for cafepos order history.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  []TableSpec
}

// NewClient connects to BigQuery and makes sure the dataset and every table
// in tables exist. With cfg.CreateMissing they are created; otherwise a
// missing one is an error.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, tables ...TableSpec) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	dataset := strings.TrimSpace(cfg.Dataset)
	switch {
	case project == "":
		return nil, errProjectIDRequired
	case dataset == "":
		return nil, errDatasetRequired
	}
	for i := range tables {
		tables[i].Name = strings.TrimSpace(tables[i].Name)
		if tables[i].Name == "" {
			return nil, errTableNameRequired
		}
	}

	bq, err := bigquery.NewClient(ctx, project, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{bq: bq, dataset: bq.Dataset(dataset), tables: tables}
	if err := c.ensure(ctx, cfg.CreateMissing); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": dataset, "tables": len(tables)}), "bigquery client initialized")
	}
	return c, nil
}

func credentials(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if file := strings.TrimSpace(gcp.ApplicationCredentials); file != "" {
		return []option.ClientOption{option.WithCredentialsFile(file)}
	}
	return nil
}

func (c *Client) ensure(ctx context.Context, create bool) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	_, err := c.dataset.Metadata(ctx)
	switch {
	case isNotFound(err) && create:
		if err := c.dataset.Create(ctx, &bigquery.DatasetMetadata{Name: c.dataset.DatasetID}); err != nil {
			return fmt.Errorf("creating dataset %q: %w", c.dataset.DatasetID, err)
		}
	case isNotFound(err):
		return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
	case err != nil:
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}

	for _, ts := range c.tables {
		t := c.dataset.Table(ts.Name)
		_, err := t.Metadata(ctx)
		switch {
		case isNotFound(err) && create:
			if err := t.Create(ctx, tableMetadata(ts)); err != nil {
				return fmt.Errorf("creating table %q: %w", ts.Name, err)
			}
		case isNotFound(err):
			return fmt.Errorf("table %q does not exist", ts.Name)
		case err != nil:
			return fmt.Errorf("checking table %q: %w", ts.Name, err)
		}
	}
	return nil
}

func tableMetadata(ts TableSpec) *bigquery.TableMetadata {
	md := &bigquery.TableMetadata{Name: ts.Name, Schema: ts.Schema}
	if ts.PartitionField != "" {
		md.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: ts.PartitionField}
	}
	return md
}

// Ping checks the dataset and tables are still reachable. It never creates.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	return c.ensure(ctx, false)
}

// InsertRows streams rows into table. A partially rejected batch reports how
// many rows failed and the first reason.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}

	err := c.dataset.Table(table).Inserter().Put(ctx, rows)
	var rejected bigquery.PutMultiError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &rejected) && len(rejected) > 0:
		return fmt.Errorf("insert into %s: %d of %d rows rejected, first at row %d: %w", table, len(rejected), len(rows), rejected[0].RowIndex, rejected)
	default:
		return fmt.Errorf("insert into %s: %w", table, err)
	}
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
