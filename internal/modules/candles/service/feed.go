package service

import (
	"context"
	"time"

	"optionbot/internal/brokererr"
	"optionbot/internal/models"
	market "optionbot/internal/modules/market/service"
	proto "optionbot/internal/modules/protocol/service"
	subs "optionbot/internal/modules/subscriptions/service"
	"optionbot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type candleMsg struct {
	ActiveID int     `json:"active_id"`
	Size     int     `json:"size"`
	From     int64   `json:"from"`
	Open     float64 `json:"open"`
	Close    float64 `json:"close"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Volume   float64 `json:"volume"`
}

type getCandlesResp struct {
	Candles []candleMsg `json:"candles"`
}

// Feed ties the candle aggregator to the protocol: it subscribes to the
// live candle stream and backfills history on demand.
type Feed struct {
	client *proto.Client
	subs   *subs.Manager
	market *market.Cache
	agg    *Aggregator
}

func NewFeed(client *proto.Client, sm *subs.Manager, mc *market.Cache, agg *Aggregator) *Feed {
	f := &Feed{client: client, subs: sm, market: mc, agg: agg}
	client.On("candle-generated", f.onCandleGenerated)
	return f
}

// SubscribeToLiveCandles starts the candle-generated stream for the
// symbol. Idempotent per (symbol, timeframe).
func (f *Feed) SubscribeToLiveCandles(symbol string, timeframe int) error {
	activeID, ok := f.market.ActiveIDByName(symbol)
	if !ok {
		return errors.Wrapf(brokererr.ErrCacheMiss, "unknown asset %q", symbol)
	}
	f.subs.Subscribe("candle-generated", map[string]interface{}{
		"active_id": activeID,
		"size":      timeframe,
	})
	return nil
}

// RequestHistoricalCandles fetches the last count closed candles and
// feeds them into the aggregator.
func (f *Feed) RequestHistoricalCandles(ctx context.Context, symbol string, timeframe, count int) error {
	activeID, ok := f.market.ActiveIDByName(symbol)
	if !ok {
		return errors.Wrapf(brokererr.ErrCacheMiss, "unknown asset %q", symbol)
	}

	to := time.Now().Unix()
	body := map[string]interface{}{
		"active_id": activeID,
		"size":      timeframe,
		"from":      to - int64(count*timeframe),
		"to":        to,
	}
	frame, err := f.client.Send(ctx, "get-candles", "2.0", body, "")
	if err != nil {
		return errors.Wrapf(err, "get-candles %s/%ds", symbol, timeframe)
	}

	var resp getCandlesResp
	if err := sonic.Unmarshal(frame.Payload(), &resp); err != nil {
		return errors.Wrapf(brokererr.ErrPayloadFormat, "get-candles reply: %v", err)
	}

	for _, c := range resp.Candles {
		f.agg.Add(models.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			Timestamp: c.From,
			Open:      c.Open,
			High:      c.Max,
			Low:       c.Min,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}
	logger.Info("backfilled %d candles for %s/%ds", len(resp.Candles), symbol, timeframe)
	return nil
}

func (f *Feed) onCandleGenerated(frame proto.Frame) {
	var msg candleMsg
	if err := sonic.Unmarshal(frame.Payload(), &msg); err != nil {
		logger.Warn("candle-generated: bad payload: %v", err)
		return
	}

	symbol, ok := f.market.Name(msg.ActiveID)
	if !ok {
		logger.Debug("candle for unknown active %d dropped", msg.ActiveID)
		return
	}

	// the close of the latest live candle is the active's current quote
	f.market.SetValue(msg.ActiveID, msg.Close)

	f.agg.Add(models.Candle{
		Symbol:    symbol,
		Timeframe: msg.Size,
		Timestamp: msg.From,
		Open:      msg.Open,
		High:      msg.Max,
		Low:       msg.Min,
		Close:     msg.Close,
		Volume:    msg.Volume,
	})
}
