package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/callummance/betty/queue"
	"github.com/callummance/betty/telemetry"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

//EventSub delivery headers.
const (
	HeaderMessageID        = "Twitch-Eventsub-Message-Id"
	HeaderMessageTimestamp = "Twitch-Eventsub-Message-Timestamp"
	HeaderMessageSignature = "Twitch-Eventsub-Message-Signature"
	HeaderMessageType      = "Twitch-Eventsub-Message-Type"

	messageTypeVerification = "webhook_callback_verification"
	messageTypeNotification = "notification"
	messageTypeRevocation   = "revocation"
)

//CallbackPath is where the platform delivers notifications.
const CallbackPath = "/twitch/callback"

//Server receives webhook deliveries and hands them to the inbound queue.
type Server struct {
	app    *fiber.App
	queue  queue.Queue
	secret string
}

//NewServer builds the HTTP app. If secret is empty, signatures are not checked.
func NewServer(q queue.Queue, secret string) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "betty",
			DisableStartupMessage: true,
			ServerHeader:          "Hidden",
		}),
		queue:  q,
		secret: secret,
	}
	s.app.Use(requestid.New())
	s.app.Use(recover.New())

	s.app.Post(CallbackPath, s.handleCallback)
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	return s
}

//App exposes the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

//Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	logrus.Infof("Webhook server listening on %v", addr)
	return s.app.Listen(addr)
}

//Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

type challengeBody struct {
	Challenge    string `json:"challenge"`
	Subscription struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Status string `json:"status"`
	} `json:"subscription"`
}

func (s *Server) handleCallback(c *fiber.Ctx) error {
	body := c.Body()
	if s.secret != "" && !s.validSignature(c, body) {
		logrus.Warnf("Rejecting webhook delivery %v with a bad signature", c.Get(HeaderMessageID))
		return c.SendStatus(fiber.StatusForbidden)
	}

	msgType := c.Get(HeaderMessageType)
	var parsed challengeBody
	if msgType != messageTypeNotification {
		//Bodies that are not JSON are still queued and judged by the consumer
		_ = json.Unmarshal(body, &parsed)
	}

	switch {
	case msgType == messageTypeVerification || (msgType == "" && parsed.Challenge != ""):
		logrus.Infof("Answering verification challenge for %v subscription %v", parsed.Subscription.Type, parsed.Subscription.ID)
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(fiber.StatusOK).SendString(parsed.Challenge)
	case msgType == messageTypeRevocation:
		logrus.Warnf("Subscription %v for %v was revoked: %v", parsed.Subscription.ID, parsed.Subscription.Type, parsed.Subscription.Status)
		return c.SendStatus(fiber.StatusNoContent)
	}

	msg := queue.NewMessage(c.Queries(), string(body))
	if err := s.queue.Push(c.UserContext(), msg); err != nil {
		logrus.Errorf("Failed to enqueue webhook delivery: %v", err)
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}
	telemetry.CountQueueMessage("enqueued")
	logrus.Debugf("Enqueued webhook delivery as message %v", msg.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

//validSignature checks the sha256 HMAC of message id, timestamp and body against the signature header.
func (s *Server) validSignature(c *fiber.Ctx, body []byte) bool {
	sig, ok := strings.CutPrefix(c.Get(HeaderMessageSignature), "sha256=")
	if !ok {
		return false
	}
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, Sign(s.secret, c.Get(HeaderMessageID), c.Get(HeaderMessageTimestamp), body))
}

//Sign computes the raw signature of a delivery.
func Sign(secret, messageID, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(messageID))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return mac.Sum(nil)
}
