package notifier

import (
	"fmt"
	"time"

	"hooktrader/internal/pkg/text"

	"github.com/go-resty/resty/v2"
)

const defaultRetryCount = 2

func newRestClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(defaultRetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500 || r.StatusCode() == 429
		})
}

func postJSON(client *resty.Client, channel, url string, payload any) (*resty.Response, error) {
	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", channel, err)
	}
	if !resp.IsSuccess() {
		return resp, fmt.Errorf("%s status=%d body=%s", channel, resp.StatusCode(), text.Truncate(resp.String(), 200))
	}
	return resp, nil
}
