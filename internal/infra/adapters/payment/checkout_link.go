package payment

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/adapter"
)

var _ adapter.CheckoutLinkBuilder = (*CheckoutLinks)(nil)

// CheckoutLinks builds hosted-checkout URLs of the form
// {base}/{code}?custom_data={buyerId}:{code}.
type CheckoutLinks struct {
	base *url.URL
}

func NewCheckoutLinks(baseURL string) (*CheckoutLinks, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid checkout base url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, errors.New("checkout base url must be http(s)")
	}
	if u.Host == "" {
		return nil, errors.New("checkout base url has no host")
	}
	return &CheckoutLinks{base: u}, nil
}

func (c *CheckoutLinks) CheckoutURL(svc model.ServiceDescriptor, token model.CorrelationToken) (string, error) {
	if svc.Code == "" {
		return "", errors.New("service code empty")
	}
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(svc.Code)
	u.RawPath = ""
	q := u.Query()
	q.Set("custom_data", token.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
