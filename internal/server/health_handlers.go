package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"dropcheck/internal/biomarker"
	"dropcheck/internal/health"
	"dropcheck/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// cpuSampleInterval is how long the CPU usage is measured for.
var cpuSampleInterval = time.Second

func (s *Server) healthHandler(c echo.Context) error {
	stats := s.store.Health()
	if s.breaker != nil {
		stats["circuit_breaker"] = s.breaker.State()
	}
	return c.JSON(http.StatusOK, stats)
}

// systemHealthHandler collects and returns host-level metrics
func (s *Server) systemHealthHandler(c echo.Context) error {
	ctx := c.Request().Context()
	logger := utility.GetLogger(c)

	resp := map[string]interface{}{
		"status": "online",
	}

	runtime := map[string]interface{}{
		"uptime":     time.Since(s.startTime).Round(time.Second).String(),
		"start_time": s.startTime.Format(time.RFC3339),
	}
	if hInfo, err := host.InfoWithContext(ctx); err == nil {
		runtime["os"] = hInfo.OS
		runtime["platform"] = hInfo.Platform
		runtime["arch"] = hInfo.KernelArch
	} else {
		logger.Warn().Err(err).Msg("host info unavailable")
	}
	resp["runtime"] = runtime

	cpuStats := map[string]interface{}{}
	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		cpuStats["cores"] = cores
	}
	if pct, err := cpu.PercentWithContext(ctx, cpuSampleInterval, false); err == nil && len(pct) > 0 {
		cpuStats["usage_percent"] = fmt.Sprintf("%.2f%%", pct[0])
	} else {
		logger.Warn().Err(err).Msg("cpu usage unavailable")
	}
	resp["cpu"] = cpuStats

	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp["memory"] = map[string]interface{}{
			"total_gb":     gigabytes(v.Total),
			"used_gb":      gigabytes(v.Used),
			"used_percent": fmt.Sprintf("%.2f%%", v.UsedPercent),
			"free_gb":      gigabytes(v.Free),
		}
	} else {
		logger.Warn().Err(err).Msg("memory stats unavailable")
	}

	if d, err := disk.UsageWithContext(ctx, "/"); err == nil {
		resp["disk"] = map[string]interface{}{
			"total_gb":     gigabytes(d.Total),
			"used_gb":      gigabytes(d.Used),
			"used_percent": fmt.Sprintf("%.2f%%", d.UsedPercent),
		}
	} else {
		logger.Warn().Err(err).Msg("disk stats unavailable")
	}

	return c.JSON(http.StatusOK, resp)
}

func gigabytes(b uint64) string {
	return fmt.Sprintf("%.2f GB", float64(b)/1024/1024/1024)
}

func (s *Server) referenceRangesHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ranges": biomarker.Ranges(),
	})
}

// evaluateHandler classifies a set of lab values without storing anything.
func (s *Server) evaluateHandler(c echo.Context) error {
	var in health.LabInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	labs, err := in.LabValues()
	if err != nil {
		return validationFailed(c, "Invalid lab values", err)
	}
	return c.JSON(http.StatusOK, labs.Evaluate())
}

// validationFailed writes a 400 with the field errors of a
// *health.ValidationError as details.
func validationFailed(c echo.Context, msg string, err error) error {
	var verr *health.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   msg,
			"details": verr.Fields,
		})
	}
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
