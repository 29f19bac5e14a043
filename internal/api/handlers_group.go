package api

import "github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	ChatHandler *handler.ChatHandler
	WSHandler   *handler.WsHandler
}
