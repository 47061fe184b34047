// Package sms sends one-time codes through the MSGWAY HTTP gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Template selects the gateway template a code is rendered with.
type Template int

const (
	TemplateLogin Template = iota
	TemplateNewPhone
	TemplateChangePhone
	TemplateForgetPassword
)

func (t Template) String() string {
	switch t {
	case TemplateNewPhone:
		return "new_phone"
	case TemplateChangePhone:
		return "change_phone"
	case TemplateForgetPassword:
		return "forget_password"
	default:
		return "login"
	}
}

var ErrGatewayRejected = errors.New("sms gateway rejected the request")

// Config holds the gateway credentials and template ids.
type Config struct {
	APIURL                   string `env:"API_URL"                     envDefault:"https://api.msgway.com/send"`
	APIKey                   string `env:"API_KEY"`
	Provider                 int    `env:"PROVIDER"                    envDefault:"1"`
	LoginTemplateID          int    `env:"LOGIN_TEMPLATE_ID"`
	NewPhoneTemplateID       int    `env:"NEW_PHONE_TEMPLATE_ID"`
	ChangePhoneTemplateID    int    `env:"CHANGE_PHONE_TEMPLATE_ID"`
	ForgetPasswordTemplateID int    `env:"FORGET_PASSWORD_TEMPLATE_ID"`
}

// Enabled reports whether the gateway is configured.
func (c *Config) Enabled() bool {
	return c.APIURL != "" && c.APIKey != ""
}

func (c *Config) templateID(t Template) int {
	var id int
	switch t {
	case TemplateNewPhone:
		id = c.NewPhoneTemplateID
	case TemplateChangePhone:
		id = c.ChangePhoneTemplateID
	case TemplateForgetPassword:
		id = c.ForgetPasswordTemplateID
	}
	if id == 0 {
		id = c.LoginTemplateID
	}
	return id
}

// Message is a code delivered to a mobile number.
type Message struct {
	Mobile   string
	Code     string
	Template Template
	Params   []string
}

type sendRequest struct {
	Mobile     string   `json:"mobile"`
	Method     string   `json:"method"`
	Code       string   `json:"code"`
	Params     []string `json:"params,omitempty"`
	Provider   *int     `json:"provider,omitempty"`
	TemplateID int      `json:"templateID"`
}

// Client is a MSGWAY gateway client.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a gateway client. A nil httpClient uses http.DefaultClient.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("missing SMS_API_URL or SMS_API_KEY environment variable")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{config: cfg, httpClient: httpClient}, nil
}

// Send delivers msg. Non-2xx responses wrap ErrGatewayRejected.
func (c *Client) Send(ctx context.Context, msg Message) error {
	body := sendRequest{
		Mobile:     msg.Mobile,
		Method:     "sms",
		Code:       msg.Code,
		Params:     msg.Params,
		TemplateID: c.config.templateID(msg.Template),
	}
	if c.config.Provider != 0 {
		provider := c.config.Provider
		body.Provider = &provider
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("apiKey", c.config.APIKey)
	req.Header.Set("Accept-Language", "fa")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode, bytes.TrimSpace(detail))
	}

	return nil
}
