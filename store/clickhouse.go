package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/rfd-conformance/rfd-test-harness/store/dbhelper"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

const defaultClickHouseTable = "rfd_transactions"

// transactionRow is the relational form of a wslog.Record. Headers and values are stored as JSON.
type transactionRow struct {
	ID              string    `db:"id"`
	Endpoint        string    `db:"endpoint"`
	Actor           string    `db:"actor"`
	Direction       string    `db:"direction"`
	TransactionCode string    `db:"transaction_code"`
	Action          string    `db:"action"`
	MessageID       string    `db:"message_id"`
	FormID          string    `db:"form_id"`
	TestName        string    `db:"test_name"`
	Method          string    `db:"method"`
	URL             string    `db:"url"`
	RemoteAddr      string    `db:"remote_addr"`
	RequestTime     time.Time `db:"request_time"`
	ResponseTime    time.Time `db:"response_time"`
	StatusCode      int32     `db:"status_code"`
	FaultCode       string    `db:"fault_code"`
	FaultStatus     string    `db:"fault_status"`
	FaultReason     string    `db:"fault_reason"`
	RequestHeaders  string    `db:"request_headers"`
	ResponseHeaders string    `db:"response_headers"`
	RequestBody     string    `db:"request_body"`
	ResponseBody    string    `db:"response_body"`
	ValuesJSON      string    `db:"extracted_values"`
}

func rowFromRecord(rec wslog.Record) (transactionRow, error) {
	row := transactionRow{
		ID:              rec.ID,
		Endpoint:        rec.Endpoint,
		Actor:           rec.Actor,
		Direction:       string(rec.Direction),
		TransactionCode: rec.Transaction,
		Action:          rec.Action,
		MessageID:       rec.MessageID,
		FormID:          rec.FormID,
		TestName:        rec.TestName,
		Method:          rec.Method,
		URL:             rec.URL,
		RemoteAddr:      rec.RemoteAddr,
		RequestTime:     rec.RequestTime,
		ResponseTime:    rec.ResponseTime,
		StatusCode:      int32(rec.StatusCode),
		RequestBody:     rec.RequestBody,
		ResponseBody:    rec.ResponseBody,
	}
	if rec.Fault != nil {
		row.FaultCode, row.FaultStatus, row.FaultReason = rec.Fault.Code, rec.Fault.Status, rec.Fault.Reason
	}
	for _, j := range []struct {
		target *string
		value  interface{}
	}{
		{&row.RequestHeaders, rec.RequestHeaders},
		{&row.ResponseHeaders, rec.ResponseHeaders},
		{&row.ValuesJSON, rec.Values},
	} {
		data, err := json.Marshal(j.value)
		if err != nil {
			return row, err
		}
		*j.target = string(data)
	}
	return row, nil
}

func (row transactionRow) record() (wslog.Record, error) {
	rec := wslog.Record{
		ID:           row.ID,
		Endpoint:     row.Endpoint,
		Actor:        row.Actor,
		Direction:    wslog.Direction(row.Direction),
		Transaction:  row.TransactionCode,
		Action:       row.Action,
		MessageID:    row.MessageID,
		FormID:       row.FormID,
		TestName:     row.TestName,
		Method:       row.Method,
		URL:          row.URL,
		RemoteAddr:   row.RemoteAddr,
		RequestTime:  row.RequestTime,
		ResponseTime: row.ResponseTime,
		StatusCode:   int(row.StatusCode),
		RequestBody:  row.RequestBody,
		ResponseBody: row.ResponseBody,
	}
	if row.FaultCode != "" {
		rec.Fault = &wslog.FaultInfo{Code: row.FaultCode, Status: row.FaultStatus, Reason: row.FaultReason}
	}
	var reqHeaders, respHeaders http.Header
	for _, j := range []struct {
		source string
		target interface{}
	}{
		{row.RequestHeaders, &reqHeaders},
		{row.ResponseHeaders, &respHeaders},
		{row.ValuesJSON, &rec.Values},
	} {
		if j.source == "" {
			continue
		}
		if err := json.Unmarshal([]byte(j.source), j.target); err != nil {
			return rec, fmt.Errorf("decoding row %s: %w", row.ID, err)
		}
	}
	rec.RequestHeaders, rec.ResponseHeaders = reqHeaders, respHeaders
	return rec, nil
}

// ClickHouseStore keeps records in a MergeTree table ordered by request time.
type ClickHouseStore struct {
	conn  driver.Conn
	table string
	log   *slog.Logger
}

func NewClickHouseStore(ctx context.Context, config ClickHouseConfig, logger *slog.Logger) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Addr},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		DialTimeout: 30 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	table := config.Table
	if table == "" {
		table = defaultClickHouseTable
	}
	s := &ClickHouseStore{conn: conn, table: table, log: logger}
	if err := s.createTable(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *ClickHouseStore) createTable(ctx context.Context) error {
	stmt, err := dbhelper.CreateTableStatement(s.table, transactionRow{}, dbhelper.ClickHouseTypes,
		"ENGINE = MergeTree() ORDER BY (request_time, id)")
	if err != nil {
		return err
	}
	if err := s.conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create %s table: %w", s.table, err)
	}
	return nil
}

func (s *ClickHouseStore) Save(ctx context.Context, rec wslog.Record) error {
	row, err := rowFromRecord(rec)
	if err != nil {
		return err
	}
	stmt, args, err := dbhelper.InsertStatement(s.table, row)
	if err != nil {
		return err
	}
	if err := s.conn.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", rec.ID, err)
	}
	return nil
}

func (s *ClickHouseStore) query(ctx context.Context, clause string, args ...interface{}) ([]wslog.Record, error) {
	stmt, err := dbhelper.SelectStatement(s.table, transactionRow{}, clause)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.log.Error(fmt.Sprintf("error while closing rows: %v", err))
		}
	}()

	var ret []wslog.Record
	for rows.Next() {
		var row transactionRow
		targets, err := dbhelper.ScanTargets(&row)
		if err != nil {
			return nil, err
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return ret, nil
}

func (s *ClickHouseStore) Get(ctx context.Context, id string) (wslog.Record, bool, error) {
	records, err := s.query(ctx, "WHERE id = ? LIMIT 1", id)
	if err != nil || len(records) == 0 {
		return wslog.Record{}, false, err
	}
	return records[0], true, nil
}

func (s *ClickHouseStore) List(ctx context.Context, q Query) ([]wslog.Record, error) {
	return s.query(ctx,
		"WHERE (? = '' OR endpoint = ?) AND (? = '' OR transaction_code = ?) ORDER BY request_time DESC, id DESC LIMIT ?",
		q.Endpoint, q.Endpoint, q.Transaction, q.Transaction, q.limit())
}

func (s *ClickHouseStore) Reset(ctx context.Context) error {
	return s.conn.Exec(ctx, "TRUNCATE TABLE IF EXISTS "+s.table)
}

func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}
