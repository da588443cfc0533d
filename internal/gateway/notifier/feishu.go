package notifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Feishu 自定义机器人 webhook。
type Feishu struct {
	WebhookURL string
	client     *resty.Client
}

func NewFeishu(webhookURL string, timeout time.Duration) *Feishu {
	return &Feishu{WebhookURL: strings.TrimSpace(webhookURL), client: newRestClient(timeout)}
}

type feishuText struct {
	MsgType string `json:"msg_type"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
}

// 飞书在业务失败时仍返回 HTTP 200，需要检查 code 字段。
type feishuResp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (f *Feishu) SendText(text string) error {
	if f.WebhookURL == "" {
		return fmt.Errorf("Feishu webhook 未配置")
	}
	var payload feishuText
	payload.MsgType = "text"
	payload.Content.Text = text
	resp, err := postJSON(f.client, "feishu", f.WebhookURL, payload)
	if err != nil {
		return err
	}
	var out feishuResp
	if body := resp.Body(); len(body) > 0 && json.Unmarshal(body, &out) == nil && out.Code != 0 {
		return fmt.Errorf("feishu code=%d msg=%s", out.Code, out.Msg)
	}
	return nil
}

func (f *Feishu) Notify(msg StructuredMessage) error {
	return f.SendText(msg.RenderPlain())
}
