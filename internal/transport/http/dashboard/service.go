// Package dashboard implements the read-only view over the event log.
package dashboard

import (
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"sentrycam-go/internal/domain/eventlog"
	httpapi "sentrycam-go/internal/transport/http"
)

// EventReader is the read side of the event log. The in-process log and the
// persisted-file reader both satisfy it, so the dashboard can run with or
// without the pipeline in the same process.
type EventReader interface {
	Recent(limit int) []eventlog.Event
	Last() (eventlog.Event, bool)
}

// staleFactor is how many capture intervals may pass without an event
// before the pipeline is reported as not detected.
const staleFactor = 3

// Service answers the dashboard API queries.
type Service struct {
	events          EventReader
	captureInterval time.Duration
	clock           func() time.Time
}

// NewService creates the dashboard service. captureInterval feeds the
// staleness heuristic for the status endpoint.
func NewService(events EventReader, captureInterval time.Duration) *Service {
	if captureInterval <= 0 {
		captureInterval = 10 * time.Second
	}
	return &Service{
		events:          events,
		captureInterval: captureInterval,
		clock:           time.Now,
	}
}

// Register mounts the dashboard routes on the API group.
func (s *Service) Register(api *gin.RouterGroup) {
	api.GET("/events", s.HandleEvents)
	api.GET("/status", s.HandleStatus)
	api.GET("/system", s.HandleSystem)
}

// HandleEvents returns the recent event window, oldest first.
func (s *Service) HandleEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(nethttp.StatusBadRequest, httpapi.Fail(nethttp.StatusBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	events := s.events.Recent(limit)
	if events == nil {
		events = []eventlog.Event{}
	}
	c.JSON(nethttp.StatusOK, httpapi.OK(gin.H{"events": events, "count": len(events)}))
}

// statusReport is the derived pipeline state served by /api/status. The
// dashboard has no health RPC to the pipeline; it judges liveness from
// event recency alone.
type statusReport struct {
	Running       bool       `json:"running"`
	Status        string     `json:"status"`
	LastEventType string     `json:"last_event_type,omitempty"`
	LastEventTime *time.Time `json:"last_event_time,omitempty"`
}

// HandleStatus reports whether the background pipeline appears alive.
func (s *Service) HandleStatus(c *gin.Context) {
	last, ok := s.events.Last()
	if !ok {
		c.JSON(nethttp.StatusOK, httpapi.OK(statusReport{
			Running: false,
			Status:  "background service not detected",
		}))
		return
	}

	report := statusReport{
		LastEventType: last.Type,
		LastEventTime: &last.Timestamp,
	}

	age := s.clock().Sub(last.Timestamp)
	if age > time.Duration(staleFactor)*s.captureInterval {
		report.Running = false
		report.Status = "background service not detected"
	} else {
		report.Running = true
		report.Status = "running"
	}

	c.JSON(nethttp.StatusOK, httpapi.OK(report))
}

// HandleSystem reports host resource usage.
func (s *Service) HandleSystem(c *gin.Context) {
	report := gin.H{}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		report["cpu_percent"] = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		report["memory_percent"] = vm.UsedPercent
		report["memory_used_mb"] = vm.Used / 1024 / 1024
	}
	if usage, err := disk.Usage("/"); err == nil {
		report["disk_percent"] = usage.UsedPercent
	}

	c.JSON(nethttp.StatusOK, httpapi.OK(report))
}
