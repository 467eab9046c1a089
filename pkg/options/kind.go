package options

import (
	"fmt"
	"strings"
)

// Kind 期权类型 (看涨 / 看跌)
// 零值不是合法类型，所有计算都会拒绝它，避免 "不是 call 就当 put" 的静默兜底
type Kind uint8

const (
	Call Kind = iota + 1 // 看涨期权
	Put                  // 看跌期权
)

// ParseKind 解析期权类型，接受 c/call/p/put (大小写不敏感)
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "call":
		return Call, nil
	case "p", "put":
		return Put, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Valid 是否为合法类型
func (k Kind) Valid() bool {
	return k == Call || k == Put
}

func (k Kind) String() string {
	switch k {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return "unknown"
	}
}

// MarshalText 序列化为 "call" / "put" (JSON、CSV 共用)
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText 反序列化
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
