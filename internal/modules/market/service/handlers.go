package service

import (
	"strconv"
	"strings"

	proto "optionbot/internal/modules/protocol/service"
	"optionbot/pkg/logger"

	"github.com/bytedance/sonic"
)

type initActive struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	IsSuspended bool   `json:"is_suspended"`
	Option      struct {
		Profit struct {
			Commission int `json:"commission"`
		} `json:"profit"`
	} `json:"option"`
}

type initializationData struct {
	Binary struct {
		Actives map[string]initActive `json:"actives"`
	} `json:"binary"`
	Turbo struct {
		Actives map[string]initActive `json:"actives"`
	} `json:"turbo"`
}

type commissionChanged struct {
	ActiveID   int `json:"active_id"`
	Commission struct {
		OpenPercent int `json:"open_percent"`
	} `json:"commission"`
}

type underlyingListChanged struct {
	Type       string `json:"type"`
	Underlying []struct {
		ActiveID    int    `json:"active_id"`
		Underlying  string `json:"underlying"`
		IsSuspended bool   `json:"is_suspended"`
	} `json:"underlying"`
}

// RegisterHandlers wires the cache into the protocol client's
// uncorrelated message stream. Malformed payloads are logged and dropped.
func (c *Cache) RegisterHandlers(client *proto.Client) {
	client.On("initialization-data", c.onInitializationData)
	client.On("commission-changed", c.onCommissionChanged)
	client.On("underlying-list-changed", c.onUnderlyingListChanged)
}

func (c *Cache) onInitializationData(f proto.Frame) {
	var msg initializationData
	if err := sonic.Unmarshal(f.Payload(), &msg); err != nil {
		logger.Warn("initialization-data: bad payload: %v", err)
		return
	}
	c.applyActives("binary", msg.Binary.Actives)
	c.applyActives("turbo", msg.Turbo.Actives)
}

func (c *Cache) applyActives(subtype string, actives map[string]initActive) {
	for rawID, a := range actives {
		id, err := strconv.Atoi(rawID)
		if err != nil {
			logger.Warn("initialization-data: non-numeric active id %q", rawID)
			continue
		}
		c.SetName(id, cleanActiveName(a.Name))
		c.SetOpenState(id, subtype, a.Enabled && !a.IsSuspended)
		if a.Option.Profit.Commission > 0 {
			c.SetCommission(id, a.Option.Profit.Commission)
		}
	}
}

func (c *Cache) onCommissionChanged(f proto.Frame) {
	var msg commissionChanged
	if err := sonic.Unmarshal(f.Payload(), &msg); err != nil {
		logger.Warn("commission-changed: bad payload: %v", err)
		return
	}
	c.SetCommission(msg.ActiveID, msg.Commission.OpenPercent)
}

func (c *Cache) onUnderlyingListChanged(f proto.Frame) {
	var msg underlyingListChanged
	if err := sonic.Unmarshal(f.Payload(), &msg); err != nil {
		logger.Warn("underlying-list-changed: bad payload: %v", err)
		return
	}
	for _, u := range msg.Underlying {
		c.SetName(u.ActiveID, cleanActiveName(u.Underlying))
		if msg.Type != "" {
			c.SetOpenState(u.ActiveID, msg.Type, !u.IsSuspended)
		}
	}
}

// the broker prefixes display names with "front."
func cleanActiveName(name string) string {
	return strings.TrimPrefix(name, "front.")
}
