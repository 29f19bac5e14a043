package consts

const (
	ChatUnreadCountKey = "chat:unread:count:"
)

const (
	BookingEventLock = "booking:event:lock:"
)
