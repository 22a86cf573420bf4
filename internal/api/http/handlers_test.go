package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/filesys"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/process"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/id"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeKernel struct {
	boot   id.BootID
	halted chan struct{}
	procs  []process.Info
	fs     *filesys.MemFS
}

func (k *fakeKernel) BootID() id.BootID         { return k.boot }
func (k *fakeKernel) Halted() <-chan struct{}    { return k.halted }
func (k *fakeKernel) Processes() []process.Info { return k.procs }
func (k *fakeKernel) FS() *filesys.MemFS        { return k.fs }

func setup(t *testing.T) (*fakeKernel, *monitoring.Metrics, *gin.Engine) {
	t.Helper()
	k := &fakeKernel{
		boot:   id.NewBootID(),
		halted: make(chan struct{}),
		fs:     filesys.NewMemFS(),
	}
	metrics := monitoring.NewMetrics()
	h := NewHandlers(k, metrics)

	router := gin.New()
	router.GET("/healthz", h.Health)
	router.GET("/api/processes", h.ListProcesses)
	router.GET("/api/files", h.ListFiles)
	router.GET("/api/files/:name", h.GetFile)
	router.GET("/api/metrics", h.Metrics)
	return k, metrics, router
}

func get(t *testing.T, router http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w
}

func TestHealth(t *testing.T) {
	k, _, router := setup(t)

	var body map[string]any
	w := get(t, router, "/healthz", &body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, k.boot.String(), body["boot_id"])

	close(k.halted)
	get(t, router, "/healthz", &body)
	assert.Equal(t, "halted", body["status"])
}

func TestListProcesses(t *testing.T) {
	k, _, router := setup(t)
	k.procs = []process.Info{{Pid: 3, Name: "echo", OpenFiles: 1, Pages: 2}}

	var body struct {
		Processes []process.Info `json:"processes"`
		Count     int            `json:"count"`
	}
	get(t, router, "/api/processes", &body)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, k.procs, body.Processes)
}

func TestListFiles(t *testing.T) {
	k, _, router := setup(t)
	require.NoError(t, k.fs.WriteFile("notes", []byte("plain words\n")))
	require.NoError(t, k.fs.WriteFile("pic", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")))

	var body struct {
		Files []FileEntry `json:"files"`
		Count int         `json:"count"`
	}
	get(t, router, "/api/files", &body)
	require.Equal(t, 2, body.Count)

	assert.Equal(t, "notes", body.Files[0].Name)
	assert.Equal(t, 12, body.Files[0].Size)
	assert.Contains(t, body.Files[0].ContentType, "text/plain")
	assert.Equal(t, "image/png", body.Files[1].ContentType)
}

func TestGetFile(t *testing.T) {
	k, _, router := setup(t)
	require.NoError(t, k.fs.WriteFile("hello", []byte("world")))

	w := get(t, router, "/api/files/hello", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "world", w.Body.String())

	w = get(t, router, "/api/files/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsSnapshot(t *testing.T) {
	_, metrics, router := setup(t)
	metrics.ProcessStarted()
	metrics.RecordKill("bad_address")

	var snap monitoring.MetricsSnapshot
	get(t, router, "/api/metrics", &snap)
	assert.Equal(t, int64(1), snap.ProcessesTotal)
	assert.Equal(t, int64(1), snap.Kills)
}
