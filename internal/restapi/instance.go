package restapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/domain"
	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/whatsapp"
)

const serviceName = "Baileys Backend"

// getBanner serves the service banner on the root route.
func (s *Server) getBanner(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"service":   serviceName,
		"version":   "1.0.0",
		"status":    "online",
		"timestamp": time.Now().Format(time.RFC3339),
		"endpoints": echo.Map{
			"status":    "/api/status",
			"instances": "/api/instance/*",
			"send":      "/api/send/*",
		},
	})
}

// getStatus reports service health and aggregate instance counts.
func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "online",
		"service":   serviceName,
		"timestamp": time.Now().Format(time.RFC3339),
		"stats":     s.registry.Stats(),
	})
}

type createInstanceRequest struct {
	Name          string `json:"name"`
	ProxyEnabled  bool   `json:"proxyEnabled"`
	ProxyType     string `json:"proxyType"`
	ProxyHost     string `json:"proxyHost"`
	ProxyPort     int    `json:"proxyPort"`
	ProxyUsername string `json:"proxyUsername"`
	ProxyPassword string `json:"proxyPassword"`
}

// createInstance registers a new instance. The api key is returned once
// here and never exposed by the listing endpoints.
func (s *Server) createInstance(c echo.Context) error {
	var req createInstanceRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Name is required"})
	}

	var proxy *domain.ProxyConfig
	if req.ProxyEnabled {
		if req.ProxyType == "" || req.ProxyHost == "" || req.ProxyPort == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "When proxy is enabled, type, host and port are required",
			})
		}
		if !whatsapp.ValidProxyKind(req.ProxyType) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": fmt.Sprintf("Invalid proxy type. Valid types: %s, %s, %s, %s, %s",
					whatsapp.ProxySocks4, whatsapp.ProxySocks5, whatsapp.ProxySocks5TLS,
					whatsapp.ProxyHTTP, whatsapp.ProxyHTTPS),
			})
		}
		proxy = &domain.ProxyConfig{
			Enabled:  true,
			Type:     req.ProxyType,
			Host:     req.ProxyHost,
			Port:     req.ProxyPort,
			Username: req.ProxyUsername,
			Password: req.ProxyPassword,
		}
	}

	instanceID := fmt.Sprintf("instance-%d", s.idNode.Generate().Int64())
	apiKey := "baileys_" + uuid.NewString()

	if _, err := s.registry.Create(instanceID, apiKey, req.Name, proxy); err != nil {
		if errors.Is(err, whatsapp.ErrAlreadyExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "Instance already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	var proxyView *whatsapp.ProxySummary
	if proxy != nil {
		proxyView = &whatsapp.ProxySummary{
			Type:    proxy.Type,
			Host:    proxy.Host,
			Port:    proxy.Port,
			HasAuth: proxy.Username != "" && proxy.Password != "",
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"instanceId": instanceID,
		"name":       req.Name,
		"apiKey":     apiKey,
		"proxy":      proxyView,
		"status":     "created",
		"message":    "Instance created. Use /instance/:id/connect to generate a QR code",
	})
}

// listInstances merges persisted rows with live session state. Api keys are
// never included.
func (s *Server) listInstances(c echo.Context) error {
	instances, err := s.registry.List()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"instances": instances,
		"total":     len(instances),
	})
}

// connectInstance starts pairing and waits a bounded time for the session
// to produce a QR code or finish connecting.
func (s *Server) connectInstance(c echo.Context) error {
	sess := s.registry.Get(c.Param("id"))
	if sess == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Instance not found"})
	}

	if snap := sess.Snapshot(); snap.Status == whatsapp.StatusConnected {
		return c.JSON(http.StatusOK, echo.Map{
			"success": true,
			"message": "Instance already connected",
			"status":  snap.Status,
			"phone":   snap.Phone,
		})
	}

	if err := sess.Connect(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	wait := time.Duration(s.cfg.WhatsApp.ConnectWaitSec) * time.Second
	snap := sess.WaitPairing(wait)

	var message string
	switch snap.Status {
	case whatsapp.StatusQR:
		message = "QR code generated. Scan it with WhatsApp"
	case whatsapp.StatusConnected:
		message = "Connected successfully"
	default:
		message = "Awaiting connection..."
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"instanceId": snap.ID,
		"status":     snap.Status,
		"qrCode":     snap.QRCode,
		"phone":      snap.Phone,
		"message":    message,
	})
}

// disconnectInstance forces a terminal disconnect and cancels any pending
// reconnect.
func (s *Server) disconnectInstance(c echo.Context) error {
	sess := s.registry.Get(c.Param("id"))
	if sess == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Instance not found"})
	}
	sess.Disconnect()
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Instance disconnected",
	})
}

// getInstanceQR returns the current QR data URL, if one is pending.
func (s *Server) getInstanceQR(c echo.Context) error {
	sess := s.registry.Get(c.Param("id"))
	if sess == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Instance not found"})
	}

	snap := sess.Snapshot()
	if snap.QRCode == "" {
		message := "Use /instance/:id/connect to generate a QR code"
		if snap.Status == whatsapp.StatusConnected {
			message = "Instance already connected"
		}
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":   "QR code not available",
			"status":  snap.Status,
			"message": message,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"qrCode":  snap.QRCode,
		"status":  snap.Status,
	})
}

// getInstanceStatus reports the live status of one instance.
func (s *Server) getInstanceStatus(c echo.Context) error {
	sess := s.registry.Get(c.Param("id"))
	if sess == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Instance not found"})
	}
	snap := sess.Snapshot()
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"instanceId": snap.ID,
		"status":     snap.Status,
		"phone":      snap.Phone,
		"qrCode":     snap.QRCode,
	})
}

// getInstanceGroups lists the groups the instance participates in.
func (s *Server) getInstanceGroups(c echo.Context) error {
	sess := s.registry.Get(c.Param("id"))
	if sess == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Instance not found"})
	}

	groups, err := sess.Groups(c.Request().Context())
	if err != nil {
		var nre *whatsapp.NotReadyError
		if errors.As(err, &nre) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"error":  "Instance not connected",
				"status": nre.Status,
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"groups":  groups,
		"total":   len(groups),
	})
}

// deleteInstance removes the instance, its audit history and credentials.
func (s *Server) deleteInstance(c echo.Context) error {
	if err := s.registry.Delete(c.Param("id")); err != nil {
		if errors.Is(err, whatsapp.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Instance not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Instance deleted",
	})
}
