package record

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"serial-monitor/internal/telemetry"
)

// greptimeClient is the part of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// DefaultGreptimePort is the gRPC port used when the endpoint has none.
const DefaultGreptimePort = 4001

// GreptimeDBWriter writes samples to GreptimeDB. Each sample becomes one row
// per channel (session_id, channel tags; value field; ts time index).
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
	logger *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port").
func NewGreptimeDBWriter(endpoint, database, tableName string) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if database == "" {
		database = "public"
	}
	if tableName == "" {
		tableName = telemetry.SampleTableName
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	cli, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client %s: %w", endpoint, err)
	}
	return &GreptimeDBWriter{client: cli, table: tableName, logger: slog.Default()}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "grpc://")
	if endpoint == "" {
		return "", 0, fmt.Errorf("empty greptime endpoint")
	}
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, DefaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("greptime endpoint %q: bad port: %w", endpoint, err)
	}
	return host, port, nil
}

// Write inserts a single sample.
func (w *GreptimeDBWriter) Write(s telemetry.Sample) error {
	return w.WriteBatch([]telemetry.Sample{s})
}

// WriteBatch inserts multiple samples.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.Sample) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.buildTable(rows)
	if err != nil {
		return err
	}
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.logger.Error("greptime write failed", "table", w.table, "err", err)
		return err
	}
	w.logger.Debug("greptime write", "table", w.table, "samples", len(rows))
	return nil
}

func (w *GreptimeDBWriter) buildTable(rows []telemetry.Sample) (*table.Table, error) {
	tbl, err := table.New(w.table)
	if err != nil {
		return nil, err
	}
	if err := tbl.AddTagColumn("session_id", types.STRING); err != nil {
		return nil, err
	}
	if err := tbl.AddTagColumn("channel", types.INT64); err != nil {
		return nil, err
	}
	if err := tbl.AddFieldColumn("value", types.FLOAT64); err != nil {
		return nil, err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	for _, r := range rows {
		for ch, v := range r.Values {
			if err := tbl.AddRow(r.SessionID, int64(ch), v, r.Timestamp); err != nil {
				return nil, err
			}
		}
	}
	return tbl, nil
}
