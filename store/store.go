// Package store 提供 core.Store 的实现：MemoryStore（测试/开发）、RedisStore（生产）与 BadgerStore（本地嵌入式）。
//
// 示例：
//
//	var s core.Store = store.NewMemoryStore()
//	r, err := store.NewRedisStore("localhost:6379", 0)
package store

import "github.com/rushteam/boostscore/core"

// ErrNotFound 是 core.ErrStoreNotFound 的别名，方便包内使用。
var ErrNotFound = core.ErrStoreNotFound
