package controller

import (
	"bufio"

	"davietech/broadcaster"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type EventController struct {
	Hub *broadcaster.Hub
}

func NewEventController(hub *broadcaster.Hub) *EventController {
	return &EventController{Hub: hub}
}

// Stream holds the response open as a server-sent event stream until the
// client goes away or the hub shuts down.
func (ec *EventController) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(ec.pump())
	return nil
}

func (ec *EventController) pump() fasthttp.StreamWriter {
	return func(w *bufio.Writer) {
		client := ec.Hub.Open(w)
		<-client.Done()
	}
}
