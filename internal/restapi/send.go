package restapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/whatsapp"
)

const sessionContextKey = "wa-session"

// authenticate resolves the X-API-Key header to a connected session. The
// send routes never see a request that failed this gate.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := s.gateway.Authenticate(c.Request().Header.Get("X-API-Key"))
		if err != nil {
			switch {
			case errors.Is(err, whatsapp.ErrMissingAPIKey):
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "API key not provided"})
			case errors.Is(err, whatsapp.ErrInvalidAPIKey):
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid API key"})
			}
			var nre *whatsapp.NotReadyError
			if errors.As(err, &nre) {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{
					"error":   "Instance not connected",
					"status":  nre.Status,
					"message": nre.Message(),
				})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
		c.Set(sessionContextKey, sess)
		return next(c)
	}
}

func session(c echo.Context) *whatsapp.Session {
	return c.Get(sessionContextKey).(*whatsapp.Session)
}

func validGroupID(id string) bool {
	return strings.HasSuffix(id, "@g.us")
}

func (s *Server) sendText(c echo.Context) error {
	var msg whatsapp.TextMessage
	if err := c.Bind(&msg); err != nil {
		return err
	}
	if msg.GroupID == "" || msg.Message == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "groupId and message are required"})
	}
	if !validGroupID(msg.GroupID) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid groupId. Must end with @g.us"})
	}

	result, err := s.dispatcher.SendText(c.Request().Context(), session(c), msg)
	if err != nil {
		return sendFailure(c, err)
	}
	return sendSuccess(c, result)
}

func (s *Server) sendMedia(c echo.Context) error {
	var msg whatsapp.MediaMessage
	if err := c.Bind(&msg); err != nil {
		return err
	}
	if msg.GroupID == "" || msg.MediaURL == "" || msg.MediaType == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "groupId, mediaUrl and mediaType are required"})
	}
	if !validGroupID(msg.GroupID) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid groupId. Must end with @g.us"})
	}
	switch msg.MediaType {
	case "image", "video", "audio":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid mediaType. Valid types: image, video, audio"})
	}

	result, err := s.dispatcher.SendMedia(c.Request().Context(), session(c), msg)
	if err != nil {
		return sendFailure(c, err)
	}
	return sendSuccess(c, result)
}

func (s *Server) sendDocument(c echo.Context) error {
	var msg whatsapp.DocumentMessage
	if err := c.Bind(&msg); err != nil {
		return err
	}
	if msg.GroupID == "" || msg.DocumentURL == "" || msg.FileName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "groupId, documentUrl and fileName are required"})
	}
	if !validGroupID(msg.GroupID) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid groupId. Must end with @g.us"})
	}

	result, err := s.dispatcher.SendDocument(c.Request().Context(), session(c), msg)
	if err != nil {
		return sendFailure(c, err)
	}
	return sendSuccess(c, result)
}

type sendAudioRequest struct {
	GroupID  string   `json:"groupId"`
	AudioURL string   `json:"audioUrl"`
	PTT      *bool    `json:"ptt"`
	Mentions []string `json:"mentions"`
}

func (s *Server) sendAudio(c echo.Context) error {
	var req sendAudioRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.GroupID == "" || req.AudioURL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "groupId and audioUrl are required"})
	}
	if !validGroupID(req.GroupID) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid groupId. Must end with @g.us"})
	}

	// Voice-note rendering is the default; ptt:false selects a plain audio
	// message.
	msg := whatsapp.AudioMessage{
		GroupID:  req.GroupID,
		AudioURL: req.AudioURL,
		PTT:      req.PTT == nil || *req.PTT,
		Mentions: req.Mentions,
	}

	result, err := s.dispatcher.SendAudio(c.Request().Context(), session(c), msg)
	if err != nil {
		return sendFailure(c, err)
	}
	return sendSuccess(c, result)
}

func sendSuccess(c echo.Context, result *whatsapp.SendResult) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"messageId": result.MessageID,
		"timestamp": result.Timestamp.Unix(),
	})
}

func sendFailure(c echo.Context, err error) error {
	var nre *whatsapp.NotReadyError
	if errors.As(err, &nre) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"error":   "Instance not connected",
			"status":  nre.Status,
			"message": nre.Message(),
		})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
}
