package clock

import (
	"sync"
	"time"
)

// Clock 时钟抽象
// 退避调度、到期判断等涉及时间的逻辑统一从这里取时间，
// 测试时注入 FakeClock 即可精确控制时间推进
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// New 返回系统时钟
func New() Clock {
	return realClock{}
}

// FakeClock 测试用可拨动时钟
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 拨快时钟
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
