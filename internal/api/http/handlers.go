package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/filesys"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/process"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/id"
)

// Kernel is the machine state the handlers expose.
type Kernel interface {
	BootID() id.BootID
	Halted() <-chan struct{}
	Processes() []process.Info
	FS() *filesys.MemFS
}

// FileEntry is one row of the file listing.
type FileEntry struct {
	filesys.FileInfo
	ContentType string `json:"content_type"`
}

// Handlers contains all admin HTTP handlers
type Handlers struct {
	kernel  Kernel
	metrics *monitoring.Metrics
	started time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(kernel Kernel, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{kernel: kernel, metrics: metrics, started: time.Now()}
}

// Health reports whether the machine is still powered on.
func (h *Handlers) Health(c *gin.Context) {
	status := "running"
	select {
	case <-h.kernel.Halted():
		status = "halted"
	default:
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"boot_id":        h.kernel.BootID().String(),
		"uptime_seconds": time.Since(h.started).Seconds(),
	})
}

// ListProcesses lists live user processes
func (h *Handlers) ListProcesses(c *gin.Context) {
	procs := h.kernel.Processes()
	c.JSON(http.StatusOK, gin.H{
		"processes": procs,
		"count":     len(procs),
	})
}

// ListFiles lists every file with its sniffed content type
func (h *Handlers) ListFiles(c *gin.Context) {
	fs := h.kernel.FS()
	infos := fs.List()

	files := make([]FileEntry, 0, len(infos))
	for _, info := range infos {
		entry := FileEntry{FileInfo: info, ContentType: "application/octet-stream"}
		if data, err := fs.ReadFile(info.Name); err == nil {
			entry.ContentType = mimetype.Detect(data).String()
		}
		files = append(files, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"files": files,
		"count": len(files),
	})
}

// GetFile returns a file's contents
func (h *Handlers) GetFile(c *gin.Context) {
	name := c.Param("name")
	data, err := h.kernel.FS().ReadFile(name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, filesys.ErrNotFound) || errors.Is(err, filesys.ErrInvalidName) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

// Metrics returns the JSON metrics snapshot
func (h *Handlers) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
