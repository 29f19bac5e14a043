package dto

import "github.com/LeeDev428/market-spaze-digital-marketplace-sub003/pkg/chatclient"

// 消息服务的 wire 类型定义在对外客户端包里，外部模块可直接构造；
// 服务端内部统一经由本包的别名引用
type (
	SendMessageReq  = chatclient.SendMessageReq
	MarkAsReadReq   = chatclient.MarkAsReadReq
	ReadReceiptDTO  = chatclient.ReadReceiptDTO
	MessageDTO      = chatclient.MessageDTO
	LastMessageDTO  = chatclient.LastMessageDTO
	ParticipantDTO  = chatclient.ParticipantDTO
	ConversationDTO = chatclient.ConversationDTO
	ReadResultDTO   = chatclient.ReadResultDTO
	UnreadCountDTO  = chatclient.UnreadCountDTO
)
