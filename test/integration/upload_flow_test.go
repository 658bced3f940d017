package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrisetia/merchant-ingest-be/internal/config"
	"github.com/andrisetia/merchant-ingest-be/internal/domain"
	"github.com/andrisetia/merchant-ingest-be/internal/handler"
	"github.com/andrisetia/merchant-ingest-be/internal/objectstore"
	"github.com/andrisetia/merchant-ingest-be/internal/replication"
	"github.com/andrisetia/merchant-ingest-be/internal/server"
	"github.com/andrisetia/merchant-ingest-be/internal/service"
	"github.com/andrisetia/merchant-ingest-be/internal/storage"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

const topicMerchantCreated = "merchant-created"

type testApp struct {
	server  *httptest.Server
	store   *storage.MemoryStore
	replica *replication.ReplicaConsumer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	log := logger.NewNop()
	store := storage.NewMemoryStore()

	files, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	broker := replication.NewChannelBroker(log, nil)
	replica := replication.NewReplicaConsumer(log, 2)
	require.NoError(t, broker.Subscribe(topicMerchantCreated, replica))
	require.NoError(t, broker.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = broker.Shutdown(ctx)
	})

	publisher := replication.NewChannelPublisher(broker, topicMerchantCreated, log)

	materializer := service.NewMaterializer(store, log)
	batchSvc := service.NewBatchService(store, store, files, materializer, log)
	merchantSvc := service.NewMerchantService(store, publisher, log)

	srv := server.New(
		&config.Config{},
		log,
		handler.NewBatchHandler(batchSvc, log),
		handler.NewIncomingHandler(batchSvc, log),
		handler.NewMerchantHandler(merchantSvc, log),
		handler.NewHealthHandler(),
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testApp{server: ts, store: store, replica: replica}
}

func (a *testApp) postJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(a.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func (a *testApp) uploadFile(t *testing.T, path, filename, content, merchantID string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", "text/csv")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader(content))
	require.NoError(t, err)

	require.NoError(t, w.WriteField("merchantId", merchantID))
	require.NoError(t, w.Close())

	resp, err := http.Post(a.server.URL+path, w.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (a *testApp) createMerchant(t *testing.T, merchantID string) {
	t.Helper()

	resp := a.postJSON(t, "/api/merchants", map[string]string{
		"merchantId":      merchantID,
		"merchantName":    "Toko " + merchantID,
		"merchantAccNum":  "1234567890",
		"merchantAccName": "Toko " + merchantID + " PT",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMerchantRegistrationFlow(t *testing.T) {
	app := newTestApp(t)

	var body map[string]string
	resp, err := http.Get(app.server.URL + "/api/merchants/next-id")
	require.NoError(t, err)
	decodeBody(t, resp, &body)
	assert.Equal(t, "M001", body["merchantId"])

	app.createMerchant(t, "M001")

	// The replication event reaches the downstream replica asynchronously.
	require.Eventually(t, func() bool {
		_, ok := app.replica.Replica("M001")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	event, _ := app.replica.Replica("M001")
	assert.Equal(t, "Toko M001", event.Name)
	assert.Equal(t, "1234567890", event.AccountNumber)

	resp, err = http.Get(app.server.URL + "/api/merchants/next-id")
	require.NoError(t, err)
	decodeBody(t, resp, &body)
	assert.Equal(t, "M002", body["merchantId"])

	// Same id again conflicts, and no second event is produced.
	dup := app.postJSON(t, "/api/merchants", map[string]string{
		"merchantId":      "M001",
		"merchantName":    "Imposter",
		"merchantAccNum":  "999",
		"merchantAccName": "Imposter PT",
	})
	defer dup.Body.Close()
	assert.Equal(t, http.StatusConflict, dup.StatusCode)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, app.replica.Count())
}

func TestStaffUploadMaterializesBatch(t *testing.T) {
	app := newTestApp(t)

	resp := app.uploadFile(t, "/api/batches/upload", "payments.csv",
		"ACC1,150.25,USD\nACC2,8000,IDR,salary\n", "M001")

	var accepted domain.Batch
	decodeBody(t, resp, &accepted)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The response snapshots the intake status; the terminal status is
	// visible through the read endpoints.
	assert.Equal(t, domain.BatchStatusUploaded, accepted.Status)
	require.NotEmpty(t, accepted.ID)

	batch, err := app.store.GetBatch(context.Background(), accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusReady, batch.Status)
	assert.Equal(t, 2, batch.TotalSuccessCount)

	var txs []domain.Transaction
	txResp, err := http.Get(app.server.URL + "/api/batches/" + accepted.ID + "/transactions")
	require.NoError(t, err)
	decodeBody(t, txResp, &txs)
	require.Len(t, txs, 2)
	assert.Equal(t, "150.25", txs[0].Amount.String())
	assert.Equal(t, domain.TransactionStatusPending, txs[0].Status)
	assert.Equal(t, "salary", txs[1].Remarks)
}

func TestStaffUploadWithBadAmountFailsBatch(t *testing.T) {
	app := newTestApp(t)

	resp := app.uploadFile(t, "/api/batches/upload", "payments.csv",
		"ACC1,100,USD\nACC2,not-a-number,USD\nACC3,300,USD\n", "M001")

	var accepted domain.Batch
	decodeBody(t, resp, &accepted)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	batch, err := app.store.GetBatch(context.Background(), accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusFailed, batch.Status)
	assert.Equal(t, 1, batch.TotalSuccessCount)

	txs, err := app.store.ListTransactionsByBatch(context.Background(), accepted.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "the row before the malformed one stays persisted")
}

func TestIncomingUploadFlow(t *testing.T) {
	app := newTestApp(t)
	app.createMerchant(t, "M001")

	resp := app.uploadFile(t, "/api/incoming/upload", "merchant-batch.csv",
		"ACC1,125.75,USD\n", "M001")

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "File received successfully", body["message"])
	assert.Equal(t, string(domain.BatchStatusReceived), body["status"])
	assert.Equal(t, "merchant-batch.csv", body["fileName"])

	batchID, _ := body["batchId"].(string)
	require.NotEmpty(t, batchID)

	batch, err := app.store.GetBatch(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusReady, batch.Status)

	var files []domain.IncomingFile
	listResp, err := http.Get(app.server.URL + "/api/incoming/files?merchantId=M001")
	require.NoError(t, err)
	decodeBody(t, listResp, &files)
	require.Len(t, files, 1)
	assert.Equal(t, batchID, files[0].BatchID)

	fileResp, err := http.Get(app.server.URL + "/api/incoming/files/" + files[0].ID)
	require.NoError(t, err)
	var file domain.IncomingFile
	decodeBody(t, fileResp, &file)
	assert.Equal(t, "merchant-batch.csv", file.OriginalFilename)
}

func TestIncomingUploadUnknownMerchant(t *testing.T) {
	app := newTestApp(t)

	resp := app.uploadFile(t, "/api/incoming/upload", "payments.csv",
		"ACC1,100,USD\n", "M404")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteBatchFlow(t *testing.T) {
	app := newTestApp(t)

	resp := app.uploadFile(t, "/api/batches/upload", "payments.csv",
		"ACC1,100,USD\n", "M001")
	var accepted domain.Batch
	decodeBody(t, resp, &accepted)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, app.server.URL+"/api/batches/"+accepted.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	var body map[string]interface{}
	decodeBody(t, delResp, &body)
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, result["dbDeleted"])
	assert.Equal(t, true, result["fileDeleted"])

	_, err = app.store.GetBatch(context.Background(), accepted.ID)
	assert.ErrorIs(t, err, domain.ErrBatchNotFound)

	delAgain, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delAgain.Body.Close()
	assert.Equal(t, http.StatusNotFound, delAgain.StatusCode)
}

func TestBatchUpdateAndActivityFeed(t *testing.T) {
	app := newTestApp(t)

	resp := app.uploadFile(t, "/api/batches/upload", "payments.csv",
		"ACC1,100,USD\n", "M001")
	var accepted domain.Batch
	decodeBody(t, resp, &accepted)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload, err := json.Marshal(map[string]string{"merchantId": "M777"})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, app.server.URL+"/api/batches/"+accepted.ID, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	updResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var updated domain.Batch
	decodeBody(t, updResp, &updated)
	require.Equal(t, http.StatusOK, updResp.StatusCode)
	assert.Equal(t, "M777", updated.MerchantID)

	var feed []string
	feedResp, err := http.Get(app.server.URL + "/api/batches/activity")
	require.NoError(t, err)
	decodeBody(t, feedResp, &feed)
	require.NotEmpty(t, feed)
	assert.Contains(t, feed[0], "Updated batch ID "+accepted.ID)
}

func TestStaffUploadRejectsWrongExtension(t *testing.T) {
	app := newTestApp(t)

	resp := app.uploadFile(t, "/api/batches/upload", "payments.pdf",
		"ACC1,100,USD\n", "M001")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
