package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/supplyhub/supplyhub/internal/inventory"
	jobmetrics "github.com/supplyhub/supplyhub/internal/jobs"
	"github.com/supplyhub/supplyhub/internal/store/memory"
	"github.com/supplyhub/supplyhub/jobs"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []jobs.SendEmailPayload
	err  error
}

func (m *captureMailer) Send(ctx context.Context, msg jobs.SendEmailPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type staticStaff []string

func (s staticStaff) StaffEmails(context.Context) ([]string, error) { return s, nil }

func TestSendEmailTaskValidation(t *testing.T) {
	_, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{Subject: "hi"})
	require.Error(t, err)
	_, err = jobs.NewSendEmailTask(jobs.SendEmailPayload{To: []string{"nobody"}, Subject: "hi"})
	require.Error(t, err)

	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{To: []string{"a@example.com"}, Subject: "hi", Body: "x"})
	require.NoError(t, err)
	require.Equal(t, jobs.TaskTypeSendEmail, task.Type())
}

func TestMailJobDeliversAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	mailer := &captureMailer{}
	job := jobs.NewMailJob(mailer, nil, metrics)

	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{To: []string{"a@example.com"}, Subject: "Order shipped"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)

	mailer.err = errors.New("relay down")
	require.Error(t, job.Handle(context.Background(), task))

	bad := asynq.NewTask(jobs.TaskTypeSendEmail, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	families, err := reg.Gather()
	require.NoError(t, err)
	outcomes := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "supplyhub_mail_deliveries_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			outcomes[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	require.Equal(t, map[string]float64{"sent": 1, "failed": 1}, outcomes)
}

func TestLowStockScan(t *testing.T) {
	store := memory.New()
	seed := func(id string, qty, min int) {
		err := store.Inventory().WithTx(context.Background(), func(ctx context.Context, tx inventory.TxRepository) error {
			return tx.InsertItem(ctx, inventory.Item{
				ID: id, Name: id, SKU: id, Quantity: qty, MinStockLevel: min,
				SupplierID: "sup-1", SupplierName: "Acme",
				Status: inventory.DeriveStatus(qty, min), CreatedAt: time.Now().UTC(),
			})
		})
		require.NoError(t, err)
	}
	seed("plenty", 50, 5)
	seed("thin", 3, 5)
	seed("gone", 0, 5)

	reg := prometheus.NewRegistry()
	mailer := &captureMailer{}
	job := jobs.NewLowStockScanJob(store.Inventory(), staticStaff{"ops@example.com"}, mailer, nil, jobmetrics.NewMetrics(reg))

	report, err := job.Run(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, report.Low, 1)
	require.Len(t, report.OutOfStock, 1)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, []string{"ops@example.com"}, mailer.sent[0].To)
	require.Contains(t, mailer.sent[0].Body, "gone")
	require.Contains(t, mailer.sent[0].Body, "thin")
	require.NotContains(t, mailer.sent[0].Body, "plenty")

	task, err := jobs.NewLowStockScanTask("sup-2")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1, "clean scan sends nothing")
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientEnqueuesMail(t *testing.T) {
	fake := &fakeEnqueuer{}
	client := jobs.NewClientWith(fake)
	_, err := client.EnqueueSendEmail(context.Background(), jobs.SendEmailPayload{To: []string{"a@example.com"}, Subject: "s"})
	require.NoError(t, err)
	require.Len(t, fake.tasks, 1)

	var payload jobs.SendEmailPayload
	require.NoError(t, json.Unmarshal(fake.tasks[0].Payload(), &payload))
	require.Equal(t, "s", payload.Subject)

	_, err = client.EnqueueSendEmail(context.Background(), jobs.SendEmailPayload{Subject: "no recipient"})
	require.Error(t, err)
	require.Len(t, fake.tasks, 1)
}

type fakeInspector struct{ err error }

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	if queue == jobs.QueueDefault {
		return nil, asynq.ErrQueueNotFound
	}
	return &asynq.QueueInfo{Queue: queue, Pending: 3}, nil
}

func TestHealthHandler(t *testing.T) {
	serve := func(insp jobs.QueueInspector) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		jobs.NewHandler(insp, nil).MountRoutes(r)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rr
	}
	rr := serve(fakeInspector{})
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Queues []struct {
			Queue   string `json:"queue"`
			Pending int    `json:"pending"`
		} `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Queues, 2)
	require.Equal(t, jobs.QueueCritical, body.Queues[0].Queue)
	require.Equal(t, 3, body.Queues[0].Pending)
	require.Equal(t, jobs.QueueDefault, body.Queues[1].Queue)
	require.Zero(t, body.Queues[1].Pending)

	rr = serve(fakeInspector{err: errors.New("redis gone")})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

type recordingCleaner struct {
	olderThan time.Duration
	err       error
}

func (c *recordingCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	c.olderThan = olderThan
	return 4, c.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &recordingCleaner{}
	job := &jobs.IdempotencyCleanupJob{Keys: cleaner}

	task, err := jobs.NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 48*time.Hour, cleaner.olderThan)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(jobs.TaskIdempotencyCleanup, []byte(`{}`))))
	require.Equal(t, 72*time.Hour, cleaner.olderThan)

	err = job.Handle(context.Background(), asynq.NewTask(jobs.TaskIdempotencyCleanup, []byte(`not json`)))
	require.ErrorIs(t, err, asynq.SkipRetry)

	cleaner.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), task))
}
