package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-superbit/pkg/colors"
	"github.com/teslashibe/go-superbit/pkg/hub"
)

// ColorInfo describes one LED colour table entry
type ColorInfo struct {
	Index uint8  `json:"index"`
	Name  string `json:"name"`
	R     uint8  `json:"r"`
	G     uint8  `json:"g"`
	B     uint8  `json:"b"`
	Off   bool   `json:"off,omitempty"`
}

// handleStatus returns the controller's current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.status == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "status not available",
		})
	}
	return c.JSON(s.status())
}

// handleColors returns the LED colour table
func (s *Server) handleColors(c *fiber.Ctx) error {
	entries := colors.All()
	out := make([]ColorInfo, len(entries))
	for i, e := range entries {
		out[i] = ColorInfo{
			Index: uint8(i),
			Name:  e.Name,
			R:     e.RGB.R,
			G:     e.RGB.G,
			B:     e.RGB.B,
			Off:   e.Off,
		}
	}
	return c.JSON(out)
}

// handleHealth reports liveness and the number of dashboard viewers
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		"viewers": s.statusHub.Viewers(),
	})
}

// handleStatusWS streams status snapshots to a dashboard
func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.Serve(s.statusHub, c)
}
