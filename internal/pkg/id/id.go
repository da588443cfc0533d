package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New 返回按时间单调递增的 ULID，用作交易记录主键。
func New() string {
	return NewAt(time.Now())
}

func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ClientOrderID 生成交易所 newClientOrderId（限 36 字符内，仅字母数字与 -_）。
func ClientOrderID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	out := prefix + "_" + raw
	if len(out) > 36 {
		out = out[:36]
	}
	return out
}
