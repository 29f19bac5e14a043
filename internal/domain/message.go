package domain

import "time"

// MessageKind 消息类型
type MessageKind int

const (
	MsgText     MessageKind = 1
	MsgImage    MessageKind = 2
	MsgFile     MessageKind = 3
	MsgLocation MessageKind = 4
	MsgSystem   MessageKind = 5
)

// Valid 校验消息类型取值
func (k MessageKind) Valid() bool {
	return k >= MsgText && k <= MsgSystem
}

// MessageStatus 投递状态
type MessageStatus int8

const (
	StatusSent      MessageStatus = 1 // 已落库
	StatusDelivered MessageStatus = 2 // 已实时送达在线接收方
	StatusRead      MessageStatus = 3 // 已被接收方读取
)

// MaxContentLen 消息正文长度上限（按 rune 计）
const MaxContentLen = 1000

// ReadReceipt 已读回执
type ReadReceipt struct {
	ReaderID uint64    `json:"reader_id"`
	ReadAt   time.Time `json:"read_at"`
}

// Message 消息本体。正文一经写入不再修改，后续只追加回执或打软删标记
type Message struct {
	ID             uint64        `json:"id"`
	ConversationID uint64        `json:"conversation_id"`
	Sender         Participant   `json:"sender"`
	Recipient      *Participant  `json:"recipient,omitempty"` // 群聊为空，表示会话内可见
	Content        string        `json:"content"`
	Kind           MessageKind   `json:"kind"`
	Status         MessageStatus `json:"status"`
	ReadBy         []ReadReceipt `json:"read_by,omitempty"`
	ReplyToID      uint64        `json:"reply_to_id,omitempty"`
	Deleted        bool          `json:"deleted"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ReadBySomeone 判断某用户是否已读
func (m *Message) ReadBySomeone(userID uint64) bool {
	for _, r := range m.ReadBy {
		if r.ReaderID == userID {
			return true
		}
	}
	return false
}
