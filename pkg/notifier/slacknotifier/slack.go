package slacknotifier

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

var limiter = rate.NewLimiter(rate.Every(1*time.Second), 3)

type notifyTask struct {
	Channel string
	Opts    []slack.MsgOption
}

// Notifier pushes trade events to a slack channel. Sends go through a small
// buffered queue so a slow slack api never blocks order placement; when the
// queue is full the message is dropped.
type Notifier struct {
	client  *slack.Client
	channel string

	taskC chan notifyTask
}

func New(client *slack.Client, channel string) *Notifier {
	notifier := &Notifier{
		channel: channel,
		client:  client,
		taskC:   make(chan notifyTask, 100),
	}

	go notifier.worker()

	return notifier
}

func (n *Notifier) worker() {
	ctx := context.Background()
	for task := range n.taskC {
		// ignore the wait error
		_ = limiter.Wait(ctx)

		_, _, err := n.client.PostMessageContext(ctx, task.Channel, task.Opts...)
		if err != nil {
			log.WithError(err).
				WithField("channel", task.Channel).
				Errorf("slack api error: %s", err.Error())
		}
	}
}

func (n *Notifier) Notify(format string, args ...interface{}) {
	task := notifyTask{
		Channel: n.channel,
		Opts: []slack.MsgOption{
			slack.MsgOptionText(fmt.Sprintf(format, args...), false),
		},
	}

	select {
	case n.taskC <- task:
	default:
		log.Warn("slack notify queue is full, message dropped")
	}
}
