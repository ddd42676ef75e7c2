package bitget

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
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

const (
	productType = "USDT-FUTURES"
	marginCoin  = "USDT"
	pingPeriod  = 25 * time.Second
)

// Client talks to Bitget's v2 mix (USDT futures) API. Requests are signed
// with HMAC-SHA256 over timestamp+method+path+body, base64 encoded.
type Client struct {
	name       string
	baseURL    string
	wsURL      string
	apiKey     string
	apiSecret  string
	passphrase string
	http       *http.Client
	log        *zap.Logger
}

func New(cfg config.VenueConfig, apiKey, apiSecret, passphrase string, log *zap.Logger) *Client {
	return &Client{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		wsURL:      cfg.WSURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		passphrase: passphrase,
		http:       &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

func (c *Client) Name() string { return c.name }

type apiResponse struct {
	Code    string          `json:"code"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) PlaceOrder(ctx context.Context, req venue.OrderRequest) (string, error) {
	payload := map[string]string{
		"symbol":      req.Symbol,
		"productType": productType,
		"marginMode":  "crossed",
		"marginCoin":  marginCoin,
		"side":        string(req.Side),
		"size":        formatFloat(req.Size),
	}
	if req.LimitPrice > 0 {
		payload["orderType"] = "limit"
		payload["price"] = formatFloat(req.LimitPrice)
		payload["force"] = "fok"
	} else {
		payload["orderType"] = "market"
		payload["force"] = "gtc"
	}
	if req.ReduceOnly {
		payload["reduceOnly"] = "YES"
	} else {
		payload["reduceOnly"] = "NO"
	}
	var data struct {
		OrderID string `json:"orderId"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v2/mix/order/place-order", nil, payload, &data); err != nil {
		return "", err
	}
	if data.OrderID == "" {
		return "", fmt.Errorf("%s: order response missing order id", c.name)
	}
	return data.OrderID, nil
}

func (c *Client) OrderStatus(ctx context.Context, symbol, orderID string) (venue.OrderStatus, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("productType", productType)
	query.Set("orderId", orderID)
	var data struct {
		State string `json:"state"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v2/mix/order/detail", query, nil, &data); err != nil {
		return venue.StatusPending, err
	}
	switch data.State {
	case "filled":
		return venue.StatusFilled, nil
	case "canceled", "cancelled":
		return venue.StatusCanceled, nil
	case "failed", "rejected":
		return venue.StatusRejected, nil
	default:
		return venue.StatusPending, nil
	}
}

func (c *Client) StreamOrderBook(ctx context.Context, symbol string, fn func(venue.BookTop)) error {
	conn, err := ws.Dial(ctx, c.wsURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	sub := map[string]interface{}{
		"op": "subscribe",
		"args": []map[string]string{{
			"instType": productType,
			"channel":  "books1",
			"instId":   symbol,
		}},
	}
	if err := conn.WriteJSON(ctx, sub); err != nil {
		return err
	}
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteText(pingCtx, "ping"); err != nil {
					return
				}
			}
		}
	}()
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if string(data) == "pong" {
			continue
		}
		var msg struct {
			Data []struct {
				Bids [][]string `json:"bids"`
				Asks [][]string `json:"asks"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("books decode error", zap.Error(err))
			continue
		}
		for _, book := range msg.Data {
			top, ok := parseBookTop(c.name, book.Bids, book.Asks)
			if !ok {
				continue
			}
			fn(top)
		}
	}
}

func parseBookTop(name string, bids, asks [][]string) (venue.BookTop, bool) {
	if len(bids) == 0 || len(asks) == 0 || len(bids[0]) < 2 || len(asks[0]) < 2 {
		return venue.BookTop{}, false
	}
	bp, err1 := strconv.ParseFloat(bids[0][0], 64)
	bs, err2 := strconv.ParseFloat(bids[0][1], 64)
	ap, err3 := strconv.ParseFloat(asks[0][0], 64)
	as, err4 := strconv.ParseFloat(asks[0][1], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || bp <= 0 || ap <= 0 {
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

func (c *Client) call(ctx context.Context, method, path string, query url.Values, payload interface{}, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}
	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(timestamp + method + requestPath + string(body)))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("ACCESS-KEY", c.apiKey)
	httpReq.Header.Set("ACCESS-SIGN", signature)
	httpReq.Header.Set("ACCESS-TIMESTAMP", timestamp)
	httpReq.Header.Set("ACCESS-PASSPHRASE", c.passphrase)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s: http %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if envelope.Code != "" && envelope.Code != "00000" {
		return fmt.Errorf("%s: api error %s: %s", c.name, envelope.Code, envelope.Message)
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
