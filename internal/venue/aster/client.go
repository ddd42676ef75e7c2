package aster

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cross-arb-bot/internal/config"
	"cross-arb-bot/internal/venue"
	"cross-arb-bot/internal/venue/ws"

	"go.uber.org/zap"
)

// Client talks to Aster's fapi-compatible perpetuals API. Requests carry an
// HMAC-SHA256 signature over the query string.
type Client struct {
	name      string
	baseURL   string
	wsURL     string
	apiKey    string
	apiSecret string
	http      *http.Client
	log       *zap.Logger
}

func New(cfg config.VenueConfig, apiKey, apiSecret string, log *zap.Logger) *Client {
	return &Client{
		name:      cfg.Name,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		wsURL:     strings.TrimRight(cfg.WSURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: cfg.Timeout},
		log:       log,
	}
}

func (c *Client) Name() string { return c.name }

type orderResponse struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

func (c *Client) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(string(req.Side)))
	params.Set("quantity", formatFloat(req.Size))
	if req.LimitPrice > 0 {
		params.Set("type", "LIMIT")
		params.Set("price", formatFloat(req.LimitPrice))
		params.Set("timeInForce", "FOK")
	} else {
		params.Set("type", "MARKET")
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	var resp orderResponse
	if err := c.signedCall(ctx, http.MethodPost, "/fapi/v1/order", params, &resp); err != nil {
		return "", err
	}
	if resp.OrderID == 0 {
		return "", fmt.Errorf("%s: order response missing order id", c.name)
	}
	return strconv.FormatInt(resp.OrderID, 10), nil
}

func (c *Client) OrderStatus(ctx context.Context, symbol, orderID string) (venue.OrderStatus, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	var resp orderResponse
	if err := c.signedCall(ctx, http.MethodGet, "/fapi/v1/order", params, &resp); err != nil {
		return venue.StatusPending, err
	}
	switch resp.Status {
	case "FILLED":
		return venue.StatusFilled, nil
	case "CANCELED", "EXPIRED":
		return venue.StatusCanceled, nil
	case "REJECTED":
		return venue.StatusRejected, nil
	default:
		return venue.StatusPending, nil
	}
}

func (c *Client) StreamOrderBook(ctx context.Context, symbol string, fn func(venue.BookTop)) error {
	streamURL := c.wsURL + "/" + strings.ToLower(symbol) + "@bookTicker"
	conn, err := ws.Dial(ctx, streamURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var msg struct {
			BidPrice string `json:"b"`
			BidSize  string `json:"B"`
			AskPrice string `json:"a"`
			AskSize  string `json:"A"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("book ticker decode error", zap.Error(err))
			continue
		}
		top, ok := parseBookTop(c.name, msg.BidPrice, msg.BidSize, msg.AskPrice, msg.AskSize)
		if !ok {
			continue
		}
		fn(top)
	}
}

func parseBookTop(name, bid, bidSize, ask, askSize string) (venue.BookTop, bool) {
	bp, err1 := strconv.ParseFloat(bid, 64)
	bs, err2 := strconv.ParseFloat(bidSize, 64)
	ap, err3 := strconv.ParseFloat(ask, 64)
	as, err4 := strconv.ParseFloat(askSize, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return venue.BookTop{}, false
	}
	if bp <= 0 || ap <= 0 {
		return venue.BookTop{}, false
	}
	return venue.BookTop{
		Venue:    name,
		BidPrice: bp,
		BidSize:  bs,
		AskPrice: ap,
		AskSize:  as,
		Time:     time.Now().UTC(),
	}, true
}

func (c *Client) signedCall(ctx context.Context, method, path string, params url.Values, out interface{}) error {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	query += "&signature=" + hex.EncodeToString(mac.Sum(nil))

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("X-MBX-APIKEY", c.apiKey)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s: http %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
