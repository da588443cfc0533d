package notifier

// TextNotifier 是最小的文本推送接口。
type TextNotifier interface {
	SendText(text string) error
}

// Notifier 推送结构化消息，由各通道自行选择渲染格式。
type Notifier interface {
	Notify(msg StructuredMessage) error
}

// Nop 丢弃所有消息，未配置任何通道时使用。
type Nop struct{}

func (Nop) SendText(string) error { return nil }
func (Nop) Notify(StructuredMessage) error { return nil }
