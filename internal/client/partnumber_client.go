package client

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"wms-budget/internal/domain"
)

// PartnumberClient 料号主数据服务客户端
type PartnumberClient struct {
	httpClient *resty.Client
}

func NewPartnumberClient(baseURL string) *PartnumberClient {
	return &PartnumberClient{httpClient: newRestyClient(baseURL, 10*time.Second)}
}

// GetPartnumber 料号、单价、币种；part_no 为空时使用占位值
func (c *PartnumberClient) GetPartnumber(ctx context.Context, partnumberID string) (*domain.Partnumber, error) {
	pn, err := getResult[domain.Partnumber](
		c.httpClient.R().SetContext(ctx).SetPathParam("partnumberID", partnumberID),
		"partnumber", partnumberID, "/partnumber/api/v1/partnumbers/{partnumberID}",
	)
	if err != nil {
		return nil, err
	}
	if pn.PartnumberID == "" {
		pn.PartnumberID = partnumberID
	}
	if pn.PartNo == "" {
		pn.PartNo = domain.DefaultPartNo
	}
	return &pn, nil
}
