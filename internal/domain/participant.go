package domain

import "time"

// Role 参与者角色，取值固定为市场侧的四种身份
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleRider    Role = "rider"
	RoleAdmin    Role = "admin"
)

// Valid 校验角色取值
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleRider, RoleAdmin:
		return true
	}
	return false
}

// Participant 外部身份的快照，创建会话或消息时落库，之后不随外部资料变更
type Participant struct {
	UserID uint64 `json:"user_id"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"` // 对象存储中的头像 Key，展示时再换算为 URL
}

// Member 会话级参与者，附带可变的未读数与最后活跃时间
type Member struct {
	Participant
	UnreadCount uint64    `json:"unread_count"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}
