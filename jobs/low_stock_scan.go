package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/supplyhub/supplyhub/internal/inventory"
	jobmetrics "github.com/supplyhub/supplyhub/internal/jobs"
)

const (
	// TaskLowStockScan reports items at or below their minimum level.
	TaskLowStockScan = "inventory:low_stock_scan"
)

const scanPageSize = 200

// LowStockScanPayload optionally narrows the scan to one supplier.
type LowStockScanPayload struct {
	SupplierID string `json:"supplier_id,omitempty"`
}

// NewLowStockScanTask builds a scan task.
func NewLowStockScanTask(supplierID string) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{SupplierID: supplierID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// ItemLister pages through inventory.
type ItemLister interface {
	ListItems(ctx context.Context, filter inventory.ListFilter) ([]inventory.Item, int, error)
}

// StaffDirectory resolves who receives the report.
type StaffDirectory interface {
	StaffEmails(ctx context.Context) ([]string, error)
}

// LowStockScanJob counts low and out of stock items, publishes the counts as
// gauges and mails a digest to staff when anything needs restocking.
type LowStockScanJob struct {
	Items   ItemLister
	Staff   StaffDirectory
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLowStockScanJob initialises the handler.
func NewLowStockScanJob(items ItemLister, staff StaffDirectory, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Items:   items,
		Staff:   staff,
		Mailer:  mailer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Items == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("low stock scan: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.Metrics.Track(TaskLowStockScan)
	_, err := j.Run(ctx, payload.SupplierID)
	return tracker.End(err)
}

// LowStockReport is the outcome of a scan.
type LowStockReport struct {
	Low        []inventory.Item
	OutOfStock []inventory.Item
	ScannedAt  time.Time
}

// Empty reports whether nothing needs attention.
func (r LowStockReport) Empty() bool {
	return len(r.Low) == 0 && len(r.OutOfStock) == 0
}

// Run performs the scan and returns the report.
func (j *LowStockScanJob) Run(ctx context.Context, supplierID string) (LowStockReport, error) {
	report := LowStockReport{ScannedAt: j.now()}
	var err error
	if report.Low, err = j.collect(ctx, supplierID, inventory.StatusLowStock); err != nil {
		return report, err
	}
	if report.OutOfStock, err = j.collect(ctx, supplierID, inventory.StatusOutOfStock); err != nil {
		return report, err
	}
	j.Metrics.SetStockLevel(string(inventory.StatusLowStock), len(report.Low))
	j.Metrics.SetStockLevel(string(inventory.StatusOutOfStock), len(report.OutOfStock))

	logger := j.logger().With(slog.Int("low", len(report.Low)), slog.Int("out_of_stock", len(report.OutOfStock)))
	if report.Empty() {
		logger.Info("low stock scan clean")
		return report, nil
	}
	logger.Warn("items need restocking")
	if j.Staff == nil || j.Mailer == nil {
		return report, nil
	}
	recipients, err := j.Staff.StaffEmails(ctx)
	if err != nil {
		return report, fmt.Errorf("low stock scan: staff lookup: %w", err)
	}
	if len(recipients) == 0 {
		return report, nil
	}
	msg := SendEmailPayload{
		To:      recipients,
		Subject: fmt.Sprintf("Stock alert: %d low, %d out of stock", len(report.Low), len(report.OutOfStock)),
		Body:    digest(report),
	}
	if err := j.Mailer.Send(ctx, msg); err != nil {
		return report, fmt.Errorf("low stock scan: send digest: %w", err)
	}
	return report, nil
}

func (j *LowStockScanJob) collect(ctx context.Context, supplierID string, status inventory.Status) ([]inventory.Item, error) {
	var out []inventory.Item
	for page := 1; ; page++ {
		items, total, err := j.Items.ListItems(ctx, inventory.ListFilter{
			SupplierID: supplierID,
			Status:     status,
			Page:       page,
			PerPage:    scanPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("low stock scan: list %s: %w", status, err)
		}
		out = append(out, items...)
		if len(items) == 0 || len(out) >= total {
			return out, nil
		}
	}
}

func digest(r LowStockReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inventory scan at %s\n", r.ScannedAt.Format(time.RFC1123))
	section := func(title string, items []inventory.Item) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", title)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s (%s) qty %d, min %d, supplier %s\n", it.Name, it.SKU, it.Quantity, it.MinStockLevel, it.SupplierName)
		}
	}
	section("Out of stock", r.OutOfStock)
	section("Low stock", r.Low)
	return b.String()
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
