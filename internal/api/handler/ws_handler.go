package handler

import (
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/hub"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/response"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/security"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsHandler struct {
	hub *hub.Hub
}

func NewWsHandler(h *hub.Hub) *WsHandler {
	return &WsHandler{hub: h}
}

// Connect 鉴权并升级连接，之后的事件收发全部交给调度器
func (s *WsHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, service.UnauthorizedError)
		return
	}
	claims, err := security.ValidateToken(token)
	if err != nil {
		log.Warn("WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}

	log.Info("用户 WS 连接已建立", "userID", claims.UserID)
	s.hub.ServeConn(conn)
}
