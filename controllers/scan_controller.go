package controllers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/scanner"
	"go.uber.org/zap"
)

const (
	wsReadLimit   = 4 << 10
	wsWriteWait   = 5 * time.Second
	scanQueueSize = 32
)

// Inbound websocket message types.
const (
	msgKey      = "key"
	msgMode     = "mode"
	msgSettings = "settings"
	msgManual   = "manual"
)

// Outbound websocket message types.
const (
	msgReady = "ready"
	msgScan  = "scan"
	msgError = "error"
)

type wsInbound struct {
	Type string `json:"type"`
	scanner.KeyEvent
	InputMode scanner.Mode    `json:"input_mode,omitempty"`
	ScanMode  models.ScanMode `json:"scan_mode,omitempty"`
	Role      string          `json:"role,omitempty"`
	Phase     models.Phase    `json:"phase,omitempty"`
	Status    string          `json:"status,omitempty"`
	Code      string          `json:"code,omitempty"`
}

type wsOutbound struct {
	Type      string             `json:"type"`
	InputMode scanner.Mode       `json:"input_mode,omitempty"`
	ScanMode  models.ScanMode    `json:"scan_mode,omitempty"`
	Result    *models.ScanResult `json:"result,omitempty"`
	Code      string             `json:"code,omitempty"`
	Error     string             `json:"error,omitempty"`
	Kind      apperrors.Kind     `json:"kind,omitempty"`
}

// ScanController serves single scans: typed codes over POST /scan and the
// raw keystroke feed of a hardware scanner over a websocket.
type ScanController struct {
	scans     ScanAPI
	validator *RequestValidator
	clock     scanner.Clock
	quiet     time.Duration
	upgrader  websocket.Upgrader
}

func NewScanController(scans ScanAPI, validator *RequestValidator, clock scanner.Clock, quiet time.Duration, allowedOrigins []string) *ScanController {
	if clock == nil {
		clock = scanner.RealClock{}
	}
	return &ScanController{
		scans:     scans,
		validator: validator,
		clock:     clock,
		quiet:     quiet,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = true
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Manual applies a code typed by the operator.
func (h *ScanController) Manual(c *gin.Context) {
	req, err := h.validator.ParseScanRequest(c)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	result, err := h.scans.Apply(c.Request.Context(), req)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// scanSettings is what a websocket session applies to every decoded scan.
type scanSettings struct {
	mu     sync.Mutex
	mode   models.ScanMode
	role   string
	phase  models.Phase
	status string
}

func (s *scanSettings) request(ev models.ScanEvent) models.ScanRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ScanRequest{
		Code:   ev.Code,
		Mode:   s.mode,
		Role:   s.role,
		Phase:  s.phase,
		Status: s.status,
		Source: ev.Source,
	}
}

func (s *scanSettings) update(msg wsInbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ScanMode != "" {
		s.mode = msg.ScanMode
	}
	if msg.Role != "" {
		s.role = msg.Role
	}
	s.phase = msg.Phase
	s.status = msg.Status
}

func (s *scanSettings) scanMode() models.ScanMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) send(v wsOutbound) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := w.conn.WriteJSON(v); err != nil {
		zap.L().Warn("Failed to write websocket message", zap.Error(err))
		return err
	}
	return nil
}

func (w *wsConn) sendError(code string, err error) {
	out := wsOutbound{Type: msgError, Code: code, Error: "Internal server error", Kind: apperrors.KindInternal}
	if appErr, ok := apperrors.As(err); ok {
		out.Error = appErr.Message
		out.Kind = appErr.Kind
	}
	_ = w.send(out)
}

// Stream decodes the keystroke feed of one scanner. Each connection owns
// its own decoder; closing the socket tears the decoder down.
func (h *ScanController) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Warn("Failed to upgrade scanner websocket", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	ws := &wsConn{conn: conn}
	settings := &scanSettings{mode: models.ScanView}

	events := make(chan models.ScanEvent, scanQueueSize)
	decoder := scanner.NewDecoder(h.clock, h.quiet, func(ev models.ScanEvent) {
		select {
		case events <- ev:
		default:
			zap.L().Warn("Dropping scan, queue full", zap.String("code", ev.Code))
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			result, err := h.scans.Apply(ctx, settings.request(ev))
			if err != nil {
				ws.sendError(ev.Code, err)
				continue
			}
			_ = ws.send(wsOutbound{Type: msgScan, Result: result})
		}
	}()

	defer func() {
		decoder.Close()
		close(events)
		cancel()
		<-done
		zap.L().Info("Scanner websocket closed")
	}()

	if err := ws.send(wsOutbound{Type: msgReady, InputMode: decoder.Mode(), ScanMode: settings.scanMode()}); err != nil {
		return
	}
	zap.L().Info("Scanner websocket connected", zap.String("remote", c.ClientIP()))

	for {
		var msg wsInbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Warn("Scanner websocket read failed", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case msgKey:
			decoder.HandleKey(msg.KeyEvent)
		case msgMode:
			if !msg.InputMode.Valid() {
				ws.sendError("", apperrors.Validation("Unknown input mode."))
				continue
			}
			decoder.SetMode(msg.InputMode)
			_ = ws.send(wsOutbound{Type: msgReady, InputMode: msg.InputMode, ScanMode: settings.scanMode()})
		case msgSettings:
			if msg.ScanMode != "" && msg.ScanMode != models.ScanView && msg.ScanMode != models.ScanUpdate {
				ws.sendError("", apperrors.Validation("Unknown scan mode."))
				continue
			}
			settings.update(msg)
			_ = ws.send(wsOutbound{Type: msgReady, InputMode: decoder.Mode(), ScanMode: settings.scanMode()})
		case msgManual:
			code := strings.TrimSpace(msg.Code)
			if code == "" {
				ws.sendError("", apperrors.Validation("Barcode is required."))
				continue
			}
			ev := models.ScanEvent{Code: code, ObservedAt: h.clock.Now(), Source: models.ScanSourceManual}
			select {
			case events <- ev:
			default:
				ws.sendError(code, apperrors.Unavailable("Too many scans queued."))
			}
		default:
			ws.sendError("", apperrors.Validation("Unknown message type."))
		}
	}
}
