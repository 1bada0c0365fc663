package controllers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-orders/kds"
	"github.com/yeremiapane/restaurant-orders/utils"
)

// KDSController upgrades /ws requests and hands each connection to the
// session handler. The role comes from the register handshake, not from
// this request.
type KDSController struct {
	Hub      *kds.Hub
	Options  kds.ConnOptions
	upgrader websocket.Upgrader
}

func NewKDSController(hub *kds.Hub, opts kds.ConnOptions, allowedOrigins []string) *KDSController {
	return &KDSController{
		Hub:     hub,
		Options: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(allowedOrigins),
		},
	}
}

// NewCheckOrigin allows requests without an Origin header (non-browser
// clients), same-host origins and the configured origins. "*" allows all.
func NewCheckOrigin(allowed []string) func(r *http.Request) bool {
	allowAll := false
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll || set[origin] {
			return true
		}
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return true
		}
		utils.InfoLogger.WithFields(logrus.Fields{
			"origin":      origin,
			"remote_addr": r.RemoteAddr,
		}).Warn("WebSocket origin rejected")
		return false
	}
}

// KDSHandler -> endpoint WebSocket
func (kc *KDSController) KDSHandler(c *gin.Context) {
	ws, err := kc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		utils.InfoLogger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	conn := kds.NewConn(ws, kc.Options)
	utils.InfoLogger.WithFields(logrus.Fields{
		"conn_id": conn.ID(),
		"ip":      c.ClientIP(),
	}).Info("websocket connected")

	kc.Hub.Sessions.Serve(conn, c.GetString("role"))
}
