// Package forward exports received records to an OpenTelemetry collector
// over OTLP/gRPC.
package forward

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tinytelemetry/netlogger/internal/model"
)

const (
	DefaultServiceName   = "netlogger"
	DefaultBatchSize     = 512
	DefaultFlushInterval = 2 * time.Second
	DefaultQueueSize     = 8192
	DefaultExportTimeout = 5 * time.Second

	scopeName = "github.com/tinytelemetry/netlogger"
)

// Config holds the forwarder settings.
type Config struct {
	Endpoint      string
	ServiceName   string
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int
	ExportTimeout time.Duration

	// DialOptions are appended after the default insecure transport
	// credentials.
	DialOptions []grpc.DialOption
}

type item struct {
	record   model.LogRecord
	observed time.Time
	flush    bool
}

// Forwarder is a model.Sink that batches records and exports them with
// LogsService/Export. OnRecord never blocks; records that do not fit in the
// queue are dropped and counted.
type Forwarder struct {
	conn     *grpc.ClientConn
	client   collogspb.LogsServiceClient
	resource *resourcepb.Resource

	batchSize     int
	flushInterval time.Duration
	exportTimeout time.Duration

	queue chan item

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	exported atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

// New creates a forwarder for conf.Endpoint. The gRPC connection is
// established lazily on the first export.
func New(conf Config) (*Forwarder, error) {
	if conf.Endpoint == "" {
		return nil, errors.New("forward: endpoint is required")
	}
	if conf.ServiceName == "" {
		conf.ServiceName = DefaultServiceName
	}
	if conf.BatchSize <= 0 {
		conf.BatchSize = DefaultBatchSize
	}
	if conf.FlushInterval <= 0 {
		conf.FlushInterval = DefaultFlushInterval
	}
	if conf.QueueSize <= 0 {
		conf.QueueSize = DefaultQueueSize
	}
	if conf.ExportTimeout <= 0 {
		conf.ExportTimeout = DefaultExportTimeout
	}

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, conf.DialOptions...)
	conn, err := grpc.NewClient(conf.Endpoint, opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Forwarder{
		conn:   conn,
		client: collogspb.NewLogsServiceClient(conn),
		resource: &resourcepb.Resource{
			Attributes: []*commonpb.KeyValue{stringAttr("service.name", conf.ServiceName)},
		},
		batchSize:     conf.BatchSize,
		flushInterval: conf.FlushInterval,
		exportTimeout: conf.ExportTimeout,
		queue:         make(chan item, conf.QueueSize),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the batching goroutine.
func (f *Forwarder) Start() {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run()
	}()
}

// Stop flushes what is queued, then closes the gRPC connection.
func (f *Forwarder) Stop() error {
	var err error
	f.stopOnce.Do(func() {
		f.cancel()
		f.wg.Wait()
		err = f.conn.Close()
	})
	return err
}

func (f *Forwarder) OnRecord(record model.LogRecord) {
	select {
	case f.queue <- item{record: record, observed: time.Now()}:
	default:
		f.dropped.Add(1)
	}
}

// OnDisconnect flushes the pending batch so a finished session is visible on
// the collector without waiting for the interval.
func (f *Forwarder) OnDisconnect(bool) {
	select {
	case f.queue <- item{flush: true}:
	default:
	}
}

func (f *Forwarder) Exported() int64 { return f.exported.Load() }
func (f *Forwarder) Dropped() int64  { return f.dropped.Load() }
func (f *Forwarder) Failed() int64   { return f.failed.Load() }

func (f *Forwarder) run() {
	ticker := time.NewTicker(f.flushInterval)
	defer ticker.Stop()

	batch := make([]*logspb.LogRecord, 0, f.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		f.export(batch)
		batch = make([]*logspb.LogRecord, 0, f.batchSize)
	}

	for {
		select {
		case <-f.ctx.Done():
			for {
				select {
				case it := <-f.queue:
					if !it.flush {
						batch = append(batch, toLogRecord(it.record, it.observed))
					}
				default:
					flush()
					return
				}
			}
		case it := <-f.queue:
			if it.flush {
				flush()
				continue
			}
			batch = append(batch, toLogRecord(it.record, it.observed))
			if len(batch) >= f.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (f *Forwarder) export(batch []*logspb.LogRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), f.exportTimeout)
	defer cancel()

	req := &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource: f.resource,
			ScopeLogs: []*logspb.ScopeLogs{{
				Scope:      &commonpb.InstrumentationScope{Name: scopeName},
				LogRecords: batch,
			}},
		}},
	}

	resp, err := f.client.Export(ctx, req)
	if err != nil {
		f.failed.Add(int64(len(batch)))
		log.Printf("forward: export %d records: %v", len(batch), err)
		return
	}
	rejected := int64(0)
	if ps := resp.GetPartialSuccess(); ps != nil && ps.GetRejectedLogRecords() > 0 {
		rejected = ps.GetRejectedLogRecords()
		f.failed.Add(rejected)
		log.Printf("forward: collector rejected %d records: %s", rejected, ps.GetErrorMessage())
	}
	f.exported.Add(int64(len(batch)) - rejected)
}

func severityNumber(s model.Severity) logspb.SeverityNumber {
	switch s {
	case model.SeverityDebug:
		return logspb.SeverityNumber_SEVERITY_NUMBER_DEBUG
	case model.SeverityInfo:
		return logspb.SeverityNumber_SEVERITY_NUMBER_INFO
	case model.SeverityWarning:
		return logspb.SeverityNumber_SEVERITY_NUMBER_WARN
	case model.SeverityError:
		return logspb.SeverityNumber_SEVERITY_NUMBER_ERROR
	default:
		return logspb.SeverityNumber_SEVERITY_NUMBER_UNSPECIFIED
	}
}

func toLogRecord(r model.LogRecord, observed time.Time) *logspb.LogRecord {
	ts := uint64(observed.UnixNano())
	return &logspb.LogRecord{
		TimeUnixNano:         ts,
		ObservedTimeUnixNano: ts,
		SeverityNumber:       severityNumber(r.Severity),
		SeverityText:         r.Severity.String(),
		Body:                 &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: r.Message}},
		Attributes: []*commonpb.KeyValue{
			stringAttr("thread.name", r.Thread),
			stringAttr("code.filepath", r.File),
			{Key: "code.lineno", Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: int64(r.Line)}}},
		},
	}
}

func stringAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}
