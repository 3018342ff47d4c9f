package publisher

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/platform/logger"
	"fmt"
	"slices"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Client is the part of the paho client the publisher needs.
type Client interface {
	IsConnected() bool
	Disconnect(uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type MQTTConfig struct {
	Enabled        bool   `json:"enabled"`
	Broker         string `json:"broker"`
	ClientID       string `json:"client_id"`
	TopicPrefix    string `json:"topic_prefix"`
	QoS            int    `json:"qos"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c *MQTTConfig) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "fleet-dispatch"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "dispatch"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 5
	}
}

func (c MQTTConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return errors.New("publisher: broker is required when enabled")
	}
	if c.QoS < 0 || c.QoS > 2 {
		return fmt.Errorf("publisher: qos must be 0, 1 or 2, got %d", c.QoS)
	}
	if c.TimeoutSeconds <= 0 {
		return errors.New("publisher: timeout_seconds must be positive")
	}
	return nil
}

// AssignmentMessage is published once per courier that received new orders.
type AssignmentMessage struct {
	MessageID string          `json:"message_id"`
	RunID     string          `json:"run_id"`
	Now       int64           `json:"now"`
	CourierID string          `json:"courier_id"`
	Orders    []AssignedOrder `json:"orders"`
}

type AssignedOrder struct {
	OrderID           string  `json:"order_id"`
	CourierPos        *int    `json:"courier_pos"`
	ETF               *int64  `json:"etf"`
	ClusterFirstOrder *string `json:"cluster_first_order"`
}

// MQTTPublisher pushes new assignments to per-courier topics.
type MQTTPublisher struct {
	client  Client
	prefix  string
	qos     byte
	timeout time.Duration
	log     logger.Logger
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig, log logger.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("publisher: connect %s: %w", cfg.Broker, token.Error())
	}
	return newMQTTPublisher(client, cfg, log), nil
}

func newMQTTPublisher(client Client, cfg MQTTConfig, log logger.Logger) *MQTTPublisher {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &MQTTPublisher{
		client:  client,
		prefix:  cfg.TopicPrefix,
		qos:     byte(cfg.QoS),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		log:     log,
	}
}

// Topic returns the suggestion topic of one courier.
func (p *MQTTPublisher) Topic(courierID string) string {
	return p.prefix + "/couriers/" + courierID + "/suggestions"
}

// Publish sends every courier its newly assigned orders in queue order.
// Failures for one courier do not stop the others.
func (p *MQTTPublisher) Publish(ctx context.Context, s *domain.Suggestion) error {
	byCourier := map[string][]domain.OrderResult{}
	for _, res := range s.Results {
		if res.NewAssignment && res.CourierID != "" {
			byCourier[res.CourierID] = append(byCourier[res.CourierID], res)
		}
	}

	courierIDs := make([]string, 0, len(byCourier))
	for id := range byCourier {
		courierIDs = append(courierIDs, id)
	}
	slices.Sort(courierIDs)

	var errs []error
	for _, cid := range courierIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		list := byCourier[cid]
		slices.SortFunc(list, func(a, b domain.OrderResult) int {
			return cmp.Compare(posOf(a), posOf(b))
		})

		msg := AssignmentMessage{MessageID: uuid.NewString(), RunID: s.RunID, Now: s.Now, CourierID: cid}
		for _, res := range list {
			msg.Orders = append(msg.Orders, AssignedOrder{
				OrderID:           res.OrderID,
				CourierPos:        res.CourierPos,
				ETF:               res.ETF,
				ClusterFirstOrder: res.ClusterFirstOrder,
			})
		}

		if err := p.send(p.Topic(cid), msg); err != nil {
			p.log.Warnf("publish suggestion for courier %s: %v", cid, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *MQTTPublisher) send(topic string, msg AssignmentMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func posOf(r domain.OrderResult) int {
	if r.CourierPos == nil {
		return 0
	}
	return *r.CourierPos
}

// NopPublisher drops every suggestion.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *domain.Suggestion) error { return nil }
