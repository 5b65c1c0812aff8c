package types

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// MaxEventAttributes 单个事件允许的最大属性数
const MaxEventAttributes = 64

// EventAttribute 事件属性（键值对）
// 不使用map以保证编码与遍历的确定性
type EventAttribute struct {
	Key   string
	Value string
}

// Event 交易执行期间发出的事件
//
// 事件由交易代码经宿主函数发出，缓存在执行上下文中；
// 仅当交易最终提交时对外可见，拒绝时与写日志一并丢弃。
type Event struct {
	// Type 事件类型标识（如 "transfer"）
	Type string

	// Attributes 属性列表，按Key规范排序
	Attributes []EventAttribute
}

// NewEvent 构造事件并对属性排序
func NewEvent(eventType string, attrs ...EventAttribute) Event {
	ev := Event{Type: eventType, Attributes: attrs}
	ev.sortAttributes()
	return ev
}

// Validate 校验事件结构
func (e *Event) Validate() error {
	if e.Type == "" {
		return errors.New("event type must not be empty")
	}
	if len(e.Attributes) > MaxEventAttributes {
		return fmt.Errorf("事件属性数量超限: %d > %d", len(e.Attributes), MaxEventAttributes)
	}
	for _, attr := range e.Attributes {
		if attr.Key == "" {
			return errors.New("event attribute key must not be empty")
		}
	}
	return nil
}

// Get 按键查找属性值
func (e *Event) Get(key string) (string, bool) {
	for _, attr := range e.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Encode 编码为RLP字节
func (e *Event) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(e)
}

// DecodeEvent 从RLP字节解码事件
func DecodeEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := rlp.DecodeBytes(raw, &ev); err != nil {
		return nil, fmt.Errorf("事件RLP解码失败: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	ev.sortAttributes()
	return &ev, nil
}

func (e *Event) sortAttributes() {
	sort.SliceStable(e.Attributes, func(i, j int) bool {
		return e.Attributes[i].Key < e.Attributes[j].Key
	})
}
