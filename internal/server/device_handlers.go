package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dropcheck/internal/device"
	"dropcheck/internal/health"
	"dropcheck/internal/utility"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type deviceRequest struct {
	Device string `json:"device" query:"device"`
}

// DeviceMessage is one frame sent over /device/ws.
type DeviceMessage struct {
	Type    string                  `json:"type"`
	Pairing *device.Pairing         `json:"pairing,omitempty"`
	Step    *device.StepEvent       `json:"step,omitempty"`
	Result  *health.EvaluatedResult `json:"result,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// Frame types sent over /device/ws.
const (
	MessagePaired = "paired"
	MessageStep   = "step"
	MessageResult = "result"
	MessageError  = "error"
)

func (s *Server) scanDevicesHandler(c echo.Context) error {
	devices, err := s.device.Scan(c.Request().Context())
	if err != nil {
		utility.GetLogger(c).Warn().Err(err).Msg("Device scan interrupted")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Device scan failed"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"devices": devices})
}

func (s *Server) pairDeviceHandler(c echo.Context) error {
	var req deviceRequest
	if err := c.Bind(&req); err != nil || req.Device == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "device is required"})
	}

	pairing, err := s.device.Pair(c.Request().Context(), req.Device)
	if errors.Is(err, device.ErrDeviceNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Device not found"})
	}
	if err != nil {
		utility.GetLogger(c).Warn().Err(err).Msg("Device pairing interrupted")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Device pairing failed"})
	}
	return c.JSON(http.StatusOK, pairing)
}

// runDeviceTestHandler pairs, runs the whole guided test and stores the
// result before responding.
func (s *Server) runDeviceTestHandler(c echo.Context) error {
	ctx := c.Request().Context()
	logger := utility.GetLogger(c)

	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req deviceRequest
	if err := c.Bind(&req); err != nil || req.Device == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "device is required"})
	}

	pairing, err := s.device.Pair(ctx, req.Device)
	if errors.Is(err, device.ErrDeviceNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Device not found"})
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Device pairing interrupted")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Device pairing failed"})
	}

	var steps []device.StepEvent
	labs, err := s.device.RunTest(ctx, pairing, func(ev device.StepEvent) error {
		steps = append(steps, ev)
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Device test failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Device test failed"})
	}

	result, err := s.state.AddTestResult(ctx, sessionID, labs, time.Time{})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to store device result")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not store test result"})
	}
	s.hub.TriggerDashboardUpdate(sessionID)

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"steps":  steps,
		"result": result.Evaluated(),
	})
}

// deviceSocketHandler streams a guided test: a paired frame, one step frame
// per instruction, then the stored result. Closing the socket aborts the
// test.
func (s *Server) deviceSocketHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	name := c.QueryParam("device")
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "device is required"})
	}

	ws, err := utility.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// We don't expect messages from the client; a read error means it left.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	fail := func(msg string, err error) error {
		logger.Warn().Err(err).Msg(msg)
		_ = ws.WriteJSON(DeviceMessage{Type: MessageError, Error: msg})
		return nil
	}

	pairing, err := s.device.Pair(ctx, name)
	if err != nil {
		return fail("Device pairing failed", err)
	}
	if err := ws.WriteJSON(DeviceMessage{Type: MessagePaired, Pairing: &pairing}); err != nil {
		return nil
	}

	labs, err := s.device.RunTest(ctx, pairing, func(ev device.StepEvent) error {
		return ws.WriteJSON(DeviceMessage{Type: MessageStep, Step: &ev})
	})
	if err != nil {
		return fail("Device test failed", err)
	}

	result, err := s.state.AddTestResult(ctx, sessionID, labs, time.Time{})
	if err != nil {
		return fail("Could not store test result", err)
	}
	s.hub.TriggerDashboardUpdate(sessionID)

	evaluated := result.Evaluated()
	if err := ws.WriteJSON(DeviceMessage{Type: MessageResult, Result: &evaluated}); err != nil {
		return nil
	}
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "test complete"))
	return nil
}

// dashboardSocketHandler keeps a connection open that receives REFRESH
// whenever the session's data changes.
func (s *Server) dashboardSocketHandler(c echo.Context) error {
	sessionID, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ws, err := utility.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	s.hub.RegisterClient(sessionID, ws)
	defer s.hub.UnregisterClient(sessionID, ws)

	// We don't expect messages FROM the client, but we must read to keep socket open
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	return nil
}
