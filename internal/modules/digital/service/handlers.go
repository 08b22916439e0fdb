package service

import (
	"context"

	proto "optionbot/internal/modules/protocol/service"
	"optionbot/pkg/logger"

	"github.com/bytedance/sonic"
)

type instrumentsMsg struct {
	Type        string             `json:"type"`
	Instruments []InstrumentRecord `json:"instruments"`
}

// RegisterHandlers feeds the cache from the broker's instrument streams.
func (c *Cache) RegisterHandlers(client *proto.Client) {
	client.On("instruments", c.onInstruments)
	client.On("instruments-changed", c.onInstruments)
}

func (c *Cache) onInstruments(f proto.Frame) {
	var msg instrumentsMsg
	if err := sonic.Unmarshal(f.Payload(), &msg); err != nil {
		logger.Warn("instruments: bad payload: %v", err)
		return
	}
	if msg.Type != "" && msg.Type != "digital-option" {
		return
	}
	go c.BulkIngest(context.Background(), msg.Instruments)
}
