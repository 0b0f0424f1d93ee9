package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/niksmo/pmp-sync/internal/core/domain"
	"github.com/niksmo/pmp-sync/internal/core/port"
)

// ParamTopicARN names the parameter holding the notification topic.
const ParamTopicARN = "SNSarn"

var _ port.Notifier = (*Notifier)(nil)

type Client interface {
	Publish(
		ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options),
	) (*sns.PublishOutput, error)
}

type message struct {
	Action string `json:"Action"`
}

// A Notifier publishes product updates to the topic resolved from the
// parameter store on first use.
type Notifier struct {
	cl     Client
	params port.ParameterStore
	topic  string
}

func NewNotifier(cl Client, params port.ParameterStore) *Notifier {
	return &Notifier{cl: cl, params: params}
}

func (n *Notifier) NotifyProductsUpdated(ctx context.Context, evt domain.ProductsUpdated) error {
	const op = "Notifier.NotifyProductsUpdated"
	log := slog.With("op", op)

	topic, err := n.topicARN(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(message{Action: domain.ActionProductsUpdated})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	out, err := n.cl.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topic),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info(
		"notification published",
		"topic", topic, "messageID", aws.ToString(out.MessageId),
		"added", evt.Added, "removed", evt.Removed,
	)
	return nil
}

func (n *Notifier) topicARN(ctx context.Context) (string, error) {
	if n.topic != "" {
		return n.topic, nil
	}

	topic, err := n.params.Get(ctx, ParamTopicARN)
	if err != nil {
		return "", err
	}
	n.topic = topic
	return n.topic, nil
}
