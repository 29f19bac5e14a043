package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid     = errors.New("参数错误")
	ErrContentEmpty     = errors.New("消息内容不能为空")
	ErrContentTooLong   = errors.New("消息内容超出长度限制")
	ErrRoleInvalid      = errors.New("参与者角色无效")
	ErrSelfMessage      = errors.New("不能给自己发送消息")
	ErrConversationGone = errors.New("会话不存在")
	ErrMessageGone      = errors.New("消息不存在")
	ErrNotMember        = errors.New("不是该会话的成员")
	ErrPersistence      = errors.New("消息保存失败，请重试")
	UnauthorizedError   = errors.New("权限不足")
	UnExpectedError     = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:     BadRequest,
	ErrContentEmpty:     BadRequest,
	ErrContentTooLong:   BadRequest,
	ErrRoleInvalid:      BadRequest,
	ErrSelfMessage:      BadRequest,
	ErrConversationGone: NotFound,
	ErrMessageGone:      NotFound,
	ErrNotMember:        Unauthorized,
	ErrPersistence:      InternalServerError,
	UnauthorizedError:   Unauthorized,
	UnExpectedError:     InternalServerError,
}
