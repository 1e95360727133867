// Package telegram listens to the monitored channel and feeds its raw text
// into the engine.
package telegram

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/tucnak/telebot.v2"
)

var log = logrus.WithField("service", "telegram")

// Dispatcher is the engine surface the listener forwards to.
type Dispatcher interface {
	DispatchText(ctx context.Context, text string) error
}

// Listener watches one chat or channel via long polling. Everything posted
// there is handed to the dispatcher; the parser decides what is a signal.
type Listener struct {
	bot        *telebot.Bot
	dispatcher Dispatcher

	// chatID restricts the listener to one chat. Zero accepts everything,
	// which is only reasonable for a bot that joined nothing else.
	chatID int64
}

func NewListener(token string, chatID int64, dispatcher Dispatcher) (*Listener, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	return &Listener{
		bot:        bot,
		dispatcher: dispatcher,
		chatID:     chatID,
	}, nil
}

func (l *Listener) handleMessage(m *telebot.Message) {
	if l.chatID != 0 && m.Chat.ID != l.chatID {
		return
	}

	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := l.dispatcher.DispatchText(ctx, text); err != nil {
		log.WithError(err).Error("signal dispatch failed")
	}
}

// Run blocks on the long poller until the context is canceled.
func (l *Listener) Run(ctx context.Context) {
	l.bot.Handle(telebot.OnText, l.handleMessage)
	l.bot.Handle(telebot.OnChannelPost, l.handleMessage)

	go func() {
		<-ctx.Done()
		l.bot.Stop()
	}()

	log.Infof("watching chat %d", l.chatID)
	l.bot.Start()
}
