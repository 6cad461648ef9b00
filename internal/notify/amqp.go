/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"bank-terminal-go/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPDispatcher publishes challenge deliveries to a topic exchange where an
// SMS gateway consumes them.
type AMQPDispatcher struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

func NewAMQPDispatcher(amqpURL, exchange, routingKey string) (*AMQPDispatcher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("unable to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("unable to declare exchange %s: %w", exchange, err)
	}

	zap.L().Info("Challenge delivery connected to broker",
		zap.String("exchange", exchange),
		zap.String("routing_key", routingKey))

	return &AMQPDispatcher{conn: conn, channel: ch, exchange: exchange, routingKey: routingKey}, nil
}

func (p *AMQPDispatcher) Dispatch(ctx context.Context, d models.ChallengeDelivery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("unable to marshal delivery: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publish(ctx, body)
	if err == nil {
		return nil
	}

	zap.L().Warn("Publish failed, reopening channel", zap.String("exchange", p.exchange), zap.Error(err))
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return fmt.Errorf("unable to reopen channel: %w", chErr)
	}
	p.channel = ch
	if err := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("unable to declare exchange %s: %w", p.exchange, err)
	}
	if err := p.publish(ctx, body); err != nil {
		return fmt.Errorf("unable to publish delivery: %w", err)
	}
	return nil
}

func (p *AMQPDispatcher) publish(ctx context.Context, body []byte) error {
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *AMQPDispatcher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("invalid AMQP url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
