package xrpl

import (
	"context"
	"errors"
	"fmt"

	"tuition-escrow/internal/domain/ledger"

	"golang.org/x/net/websocket"
)

const wsOrigin = "http://localhost/"

type streamMessage struct {
	ID          int      `json:"id"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Error       string   `json:"error"`
	ErrorMsg    string   `json:"error_message"`
	Validated   bool     `json:"validated"`
	LedgerIndex uint64   `json:"ledger_index"`
	Transaction txJSON   `json:"transaction"`
	Meta        metaJSON `json:"meta"`
}

const subscribeID = 1

// SubscribeToPayments opens a WebSocket subscription for accounts. The
// returned channel carries validated transactions only and is closed when
// ctx ends or the connection drops.
func (g *Gateway) SubscribeToPayments(ctx context.Context, accounts []string) (<-chan ledger.PaymentEvent, error) {
	if g.cfg.WSURL == "" {
		return nil, errors.New("xrpl: WSURL is required for subscriptions")
	}
	cfg, err := websocket.NewConfig(g.cfg.WSURL, wsOrigin)
	if err != nil {
		return nil, fmt.Errorf("xrpl: websocket config: %w", err)
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("xrpl: dial %s: %w", g.cfg.WSURL, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	err = websocket.JSON.Send(conn, map[string]any{
		"id":          subscribeID,
		"command":     "subscribe",
		"accounts":    accounts,
		"api_version": 1,
	})
	if err == nil {
		err = awaitSubscribed(conn)
	}
	if err != nil {
		stop()
		_ = conn.Close()
		return nil, err
	}

	out := make(chan ledger.PaymentEvent, 64)
	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()
		for {
			var msg streamMessage
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				if ctx.Err() == nil {
					g.log.Warn("payment stream dropped", "err", err)
				}
				return
			}
			if msg.Type != "transaction" || !msg.Validated {
				continue
			}
			ev := toEvent(msg.Transaction, msg.Meta, msg.Transaction.Hash, msg.LedgerIndex)
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// awaitSubscribed reads until the reply to the subscribe command.
func awaitSubscribed(conn *websocket.Conn) error {
	for {
		var msg streamMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return fmt.Errorf("xrpl: subscribe: %w", err)
		}
		if msg.Type != "response" || msg.ID != subscribeID {
			continue
		}
		if msg.Status != "success" {
			return &RPCError{Method: "subscribe", Code: msg.Error, Message: msg.ErrorMsg}
		}
		return nil
	}
}
