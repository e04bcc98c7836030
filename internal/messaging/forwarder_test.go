package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/frahmantamala/merchant-settlement/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

func TestMessaging(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Messaging Suite")
}

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

var _ = Describe("Forwarder", func() {
	var (
		ch        *fakeChannel
		forwarder *Forwarder
		slogger   *slog.Logger
	)

	BeforeEach(func() {
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		ch = &fakeChannel{}
		forwarder = newForwarder(ch, "settlement.events", slogger)
	})

	It("should publish the event as JSON routed by its type", func() {
		event := events.NewPaymentReleasedEvent("p-1", "m-1", decimal.RequireFromString("30"))

		err := forwarder.Handle(context.Background(), event)

		Expect(err).NotTo(HaveOccurred())
		Expect(ch.sent).To(HaveLen(1))
		sent := ch.sent[0]
		Expect(sent.exchange).To(Equal("settlement.events"))
		Expect(sent.key).To(Equal(events.EventTypePaymentReleased))
		Expect(sent.msg.MessageId).To(Equal(event.EventID()))
		Expect(sent.msg.DeliveryMode).To(Equal(amqp.Persistent))

		var body map[string]interface{}
		Expect(json.Unmarshal(sent.msg.Body, &body)).To(Succeed())
		Expect(body["type"]).To(Equal(events.EventTypePaymentReleased))
		Expect(body["data"]).To(HaveKeyWithValue("payment_id", "p-1"))
	})

	It("should return publish failures", func() {
		ch.err = errors.New("channel closed")

		err := forwarder.Handle(context.Background(), events.NewMerchantApprovedEvent("m-1", "admin-1"))

		Expect(err).To(MatchError(ContainSubstring("channel closed")))
	})

	It("should receive every event published on the bus", func() {
		bus := events.NewEventBus(slogger)
		forwarder.Attach(bus)

		Expect(bus.Publish(context.Background(), events.NewMerchantApprovedEvent("m-1", "admin-1"))).To(Succeed())
		Expect(bus.Publish(context.Background(), events.NewPaymentReleasedEvent("p-1", "m-1", decimal.RequireFromString("30")))).To(Succeed())

		Eventually(ch.count).Should(Equal(2))
	})
})
