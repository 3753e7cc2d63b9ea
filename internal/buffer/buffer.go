// Package buffer 测量会话的读数缓冲区（有界，超出容量时丢弃最旧的读数）
package buffer

import (
	"sync"

	"github.com/mzaki9/Atomus-Lumea/internal/models"
)

// DefaultCapacity 默认容量：约 60 秒 @ 30fps
const DefaultCapacity = 1800

// ReadingBuffer 读数缓冲区
//
// 写入（Append/Clear）由帧处理协程串行执行；Snapshot 可被任意协程并发调用，
// 返回的是独立副本，之后的写入不会影响它。
type ReadingBuffer struct {
	mu       sync.RWMutex
	readings []models.ColorReading // 环形存储，长度固定为容量
	head     int                   // 最旧读数的位置
	size     int
}

// New 创建缓冲区，capacity <= 0 时使用默认容量
func New(capacity int) *ReadingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ReadingBuffer{
		readings: make([]models.ColorReading, capacity),
	}
}

// Append 追加到尾部，超过容量时只保留最新的 capacity 条，返回追加后的长度
func (b *ReadingBuffer) Append(reading models.ColorReading) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.readings)
	if b.size == capacity {
		// 已满：覆盖最旧的一条
		b.readings[b.head] = reading
		b.head = (b.head + 1) % capacity
		return b.size
	}
	b.readings[(b.head+b.size)%capacity] = reading
	b.size++
	return b.size
}

// Clear 清空缓冲区（会话开始/重启时调用）
func (b *ReadingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// Snapshot 返回当前读数序列的副本
func (b *ReadingBuffer) Snapshot() []models.ColorReading {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.ColorReading, b.size)
	n := copy(out, b.readings[b.head:])
	copy(out[n:], b.readings)
	return out
}

// Len 当前读数数量
func (b *ReadingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity 缓冲区容量
func (b *ReadingBuffer) Capacity() int {
	return len(b.readings)
}
