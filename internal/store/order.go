package store

import "github.com/LeeDev428/market-spaze-digital-marketplace-sub003/internal/domain"

// OldestFirst 把按新到旧取出的一页消息原地翻转为旧到新。
// 页间仍从最新页往回取，页内展示顺序与时间线一致
func OldestFirst(msgs []*domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
