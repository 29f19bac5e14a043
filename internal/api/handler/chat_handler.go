package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/config"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/api/dto"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/hub"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/pkg/response"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/service"
	"github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/store"
)

// ChatHandler 降级 REST 通道。WS 不可用时客户端走这里收发，
// 语义与 WS 通道完全一致，发送成功后仍会向在线接收方实时推送
type ChatHandler struct {
	chatSvc service.ChatService
	hub     *hub.Hub
}

func NewChatHandler(chatSvc service.ChatService, h *hub.Hub) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc, hub: h}
}

// SendMessage 发送消息接口
func (s *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.chatSvc.SendMessage(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	s.hub.NotifyNewMessage(c.Request.Context(), res)
	response.Success(c, res)
}

// MarkAsRead 标记已读接口
func (s *ChatHandler) MarkAsRead(c *gin.Context) {
	var req dto.MarkAsReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.chatSvc.MarkAsRead(c.Request.Context(), req.UserID, req.MessageIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetConversationList 获取会话列表
func (s *ChatHandler) GetConversationList(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	page, pageSize := pagination(c)

	res, err := s.chatSvc.GetConversationList(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetChatHistory 按会话拉取历史消息
func (s *ChatHandler) GetChatHistory(c *gin.Context) {
	convID, err := strconv.ParseUint(c.Param("conversation_id"), 10, 64)
	if err != nil || convID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	page, pageSize := pagination(c)

	res, err := s.chatSvc.GetChatHistory(c.Request.Context(), convID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetDirectHistory 拉取两个用户之间的全部单聊消息
func (s *ChatHandler) GetDirectHistory(c *gin.Context) {
	userA, errA := strconv.ParseUint(c.Param("user_a"), 10, 64)
	userB, errB := strconv.ParseUint(c.Param("user_b"), 10, 64)
	if errA != nil || errB != nil || userA == 0 || userB == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.chatSvc.GetDirectHistory(c.Request.Context(), userA, userB)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetUserMessages 拉取用户参与的消息流
func (s *ChatHandler) GetUserMessages(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	page, pageSize := pagination(c)

	res, err := s.chatSvc.GetUserMessages(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetUnreadCount 全局未读数
func (s *ChatHandler) GetUnreadCount(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || userID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	total, err := s.chatSvc.GetUnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.UnreadCountDTO{UnreadCount: total})
}

// DeleteMessage 软删除一条消息，仅限发送者本人
func (s *ChatHandler) DeleteMessage(c *gin.Context) {
	msgID, err := strconv.ParseUint(c.Param("message_id"), 10, 64)
	if err != nil || msgID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, err := strconv.ParseUint(c.Query("userId"), 10, 64)
	if err != nil || userID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	if err := s.chatSvc.DeleteMessage(c.Request.Context(), userID, msgID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// DeactivateConversation 停用会话，仅限成员操作
func (s *ChatHandler) DeactivateConversation(c *gin.Context) {
	convID, err := strconv.ParseUint(c.Param("conversation_id"), 10, 64)
	if err != nil || convID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	userID, err := strconv.ParseUint(c.Query("userId"), 10, 64)
	if err != nil || userID == 0 {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	if err := s.chatSvc.DeactivateConversation(c.Request.Context(), convID, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "0"))
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
		if config.Cfg != nil && config.Cfg.Chat.PageSize > 0 {
			pageSize = config.Cfg.Chat.PageSize
		}
	}
	return page, pageSize
}
