package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalops/revbot/pkg/config"
	"github.com/signalops/revbot/pkg/engine"
	"github.com/signalops/revbot/pkg/exchange/okex"
	"github.com/signalops/revbot/pkg/notifier/slacknotifier"
	"github.com/signalops/revbot/pkg/server"
	"github.com/signalops/revbot/pkg/service"
	"github.com/signalops/revbot/pkg/strategy/simplereverse"
	"github.com/signalops/revbot/pkg/strategy/turtlereverse"
	"github.com/signalops/revbot/pkg/telegram"
	"github.com/signalops/revbot/pkg/types"

	_ "github.com/signalops/revbot/pkg/migrations/mysql"
)

var RunCmd = &cobra.Command{
	Use:          "run",
	Short:        "run the signal reversal engine",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	RunCmd.Flags().String("config", "config/revbot.yaml", "config file")
	RootCmd.AddCommand(RunCmd)
}

func run(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			return err
		}
	}

	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	userConfig, err := config.Load(configFile)
	if err != nil {
		return err
	}

	// secrets from the environment win over the config file
	if v := viper.GetString("okex-api-key"); v != "" {
		userConfig.Exchange.Key = v
	}
	if v := viper.GetString("okex-api-secret"); v != "" {
		userConfig.Exchange.Secret = v
	}
	if v := viper.GetString("okex-api-passphrase"); v != "" {
		userConfig.Exchange.Passphrase = v
	}
	if v := viper.GetString("telegram-bot-token"); v != "" {
		userConfig.Telegram.Token = v
	}
	if v := viper.GetString("slack-token"); v != "" {
		userConfig.Slack.Token = v
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := service.NewDatabaseService(userConfig.Database.Driver, userConfig.Database.DSN)
	if err := db.Connect(); err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("database close failed")
		}
	}()

	if err := db.Upgrade(ctx); err != nil {
		return err
	}

	instanceService := service.NewStrategyInstanceService(db.DB)
	positionService := service.NewSimplePositionService(db.DB)
	turtleService := service.NewTurtleService(db.DB)

	session := okex.New(
		userConfig.Exchange.Key,
		userConfig.Exchange.Secret,
		userConfig.Exchange.Passphrase,
		userConfig.Exchange.Simulated)

	var notifier types.Notifier
	if userConfig.Slack.Token != "" && userConfig.Slack.Channel != "" {
		client := slack.New(userConfig.Slack.Token, slack.OptionDebug(viper.GetBool("debug")))
		notifier = slacknotifier.New(client, userConfig.Slack.Channel)
	}

	simple := simplereverse.New(session, positionService)
	simple.Notifier = notifier

	turtle := turtlereverse.New(session, turtleService)
	turtle.Notifier = notifier

	dispatcher := engine.NewDispatcher(instanceService, map[types.StrategyKind]engine.Strategy{
		types.StrategyKindSimple: simple,
		types.StrategyKindTurtle: turtle,
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(userConfig.Reconcile.Schedule, func() {
		if err := dispatcher.ReconcileAll(ctx); err != nil {
			log.WithError(err).Error("reconciliation tick failed")
		}
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if userConfig.Telegram.Token != "" {
		listener, err := telegram.NewListener(userConfig.Telegram.Token, userConfig.Telegram.ChatID, dispatcher)
		if err != nil {
			return err
		}
		go listener.Run(ctx)
	}

	srv := server.New(dispatcher, userConfig.Server.Bind)
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.WithError(err).Error("http server stopped")
			cancel()
		}
	}()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigC:
		log.Infof("received signal %v, shutting down", sig)
		cancel()
	case <-ctx.Done():
	}

	return nil
}
