package model

import (
	"fmt"
	"strconv"
	"strings"

	"oracle-bot/internal/domain"
)

// CorrelationToken links a payment notification back to a buyer and the
// service they paid for. Wire format: "{buyerId}:{serviceCode}".
type CorrelationToken struct {
	BuyerID     int64
	ServiceCode string
}

func (t CorrelationToken) String() string {
	return strconv.FormatInt(t.BuyerID, 10) + ":" + t.ServiceCode
}

// ParseCorrelationToken splits s on the first ':'.
func ParseCorrelationToken(s string) (CorrelationToken, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return CorrelationToken{}, fmt.Errorf("%w: correlation token %q has no separator", domain.ErrBadRequest, s)
	}
	id, err := strconv.ParseInt(left, 10, 64)
	if err != nil || id == 0 {
		return CorrelationToken{}, fmt.Errorf("%w: invalid buyer id %q", domain.ErrBadRequest, left)
	}
	if right == "" {
		return CorrelationToken{}, fmt.Errorf("%w: empty service code", domain.ErrBadRequest)
	}
	return CorrelationToken{BuyerID: id, ServiceCode: right}, nil
}
