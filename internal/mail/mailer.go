package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/seamline/api/internal/services"
)

// ErrReminderDelivery indicates the mail topic rejected or lost the message.
var ErrReminderDelivery = errors.New("mail: reminder delivery failed")

// Message is the envelope handed to the downstream mail worker. The worker
// owns SMTP; this service only publishes rendered variables.
type Message struct {
	To        string            `json:"to"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
}

// PubSubMailer dispatches reminder emails as confirmed Pub/Sub publishes.
type PubSubMailer struct {
	topic   *pubsub.Topic
	printer *message.Printer
	marshal func(any) ([]byte, error)
}

// NewPubSubMailer constructs a mailer bound to the mail topic.
func NewPubSubMailer(topic *pubsub.Topic) (*PubSubMailer, error) {
	if topic == nil {
		return nil, errors.New("mailer requires mail topic")
	}
	return &PubSubMailer{
		topic:   topic,
		printer: message.NewPrinter(language.BritishEnglish),
		marshal: json.Marshal,
	}, nil
}

// SendReminder renders the reminder variables and publishes them to the mail
// topic. The publish is confirmed before returning: the sweep records its
// ledger row only after this succeeds.
func (m *PubSubMailer) SendReminder(ctx context.Context, msg services.ReminderMessage) error {
	if m == nil || m.topic == nil {
		return fmt.Errorf("%w: mailer not initialised", ErrReminderDelivery)
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return fmt.Errorf("%w: recipient is required", ErrReminderDelivery)
	}

	variables := map[string]string{
		"amount":      m.FormatAmount(msg.Amount, msg.Currency),
		"recoveryUrl": msg.RecoveryURL,
		"sequence":    strconv.Itoa(msg.Sequence),
	}
	if msg.OrderNumber != "" {
		variables["orderNumber"] = msg.OrderNumber
	}
	if msg.ItemCount > 0 {
		variables["itemCount"] = strconv.Itoa(msg.ItemCount)
	}

	payload := Message{
		To:        to,
		Template:  templateName(msg.Family, msg.Sequence),
		Variables: variables,
	}
	data, err := m.marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal message: %v", ErrReminderDelivery, err)
	}

	result := m.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"template":   payload.Template,
			"customerId": msg.CustomerID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrReminderDelivery, err)
	}
	return nil
}

// FormatAmount renders pence as a localised currency string, e.g. "£19.00".
// The minor units stay integral end to end so no pence value can mis-round.
func (m *PubSubMailer) FormatAmount(pence int64, code string) string {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		unit = currency.GBP
	}
	sign := ""
	if pence < 0 {
		sign = "-"
		pence = -pence
	}
	return m.printer.Sprintf("%s%v%d.%02d", sign, currency.Symbol(unit), pence/100, pence%100)
}

func templateName(family services.ReminderFamily, sequence int) string {
	return fmt.Sprintf("%s_reminder_%d", family, sequence)
}

var _ services.ReminderMailer = (*PubSubMailer)(nil)
