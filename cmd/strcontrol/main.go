// v0
// cmd/strcontrol/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"nrgchamp/strcontrol/internal/app"
	"nrgchamp/strcontrol/internal/breaker"
	"nrgchamp/strcontrol/internal/command"
	"nrgchamp/strcontrol/internal/config"
	"nrgchamp/strcontrol/internal/flood"
	"nrgchamp/strcontrol/internal/httpapi"
	"nrgchamp/strcontrol/internal/logging"
	"nrgchamp/strcontrol/internal/metrics"
	"nrgchamp/strcontrol/internal/traffic"
)

func main() {
	level := new(slog.LevelVar)
	lg, lf := logging.Init(os.Getenv("LOG_DIR"), level)
	defer func() {
		if err := lf.Close(); err != nil {
			lg.Error("log file close", "error", err)
		}
	}()
	lg.Info("strcontrol starting")

	cfg, err := config.Load(lg)
	if err != nil {
		lg.Error("config", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)
	lg.Info("config loaded", "zone", cfg.ZoneID, "queue", cfg.QueueCapacity, "brokers", cfg.KafkaBrokers, "mqtt", cfg.MQTTBroker, "http", cfg.HTTPBind)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	keys, err := command.OpenTerminal(os.Stdin)
	if err != nil {
		lg.Error("terminal", "error", err)
		os.Exit(1)
	}
	defer keys.Close()
	httpCmds := command.NewChanSource(8)
	defer httpCmds.Close()

	sources := []command.Source{keys, httpCmds}
	alerts := flood.MultiAlertSink{m}
	trafficSinks := traffic.MultiSink{m}
	var closers []func() error

	if len(cfg.KafkaBrokers) > 0 {
		alertSink, cmdSource := setupKafka(cfg, m, lg)
		alerts = append(alerts, alertSink)
		sources = append(sources, cmdSource)
		closers = append(closers, alertSink.Close, cmdSource.Close)
	}
	if cfg.MQTTBroker != "" {
		if client, ok := connectMQTT(cfg, lg); ok {
			mq := flood.NewAsyncAlertSink(flood.NewMQTTAlertSink(client, cfg.MQTTTopicPrefix), cfg.AlertQueue, cfg.AlertTimeout, lg)
			alerts = append(alerts, mq)
			trafficSinks = append(trafficSinks, traffic.NewMQTTSink(client, cfg.MQTTTopicPrefix, cfg.Intersection, lg))
			closers = append(closers, mq.Close, func() error { client.Disconnect(250); return nil })
		}
	}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				lg.Warn("close", "error", err)
			}
		}
	}()

	a := app.New(cfg, lg, app.Options{
		Out:       os.Stdout,
		Keys:      command.Merge(ctx, sources...),
		Deadlines: m,
		Alerts:    alerts,
		Traffic:   trafficSinks,
		Observer:  m,
	})

	if cfg.HTTPBind != "" {
		srv := httpapi.NewServer(cfg.HTTPBind, httpapi.NewRouter(a.Status, httpCmds, m, lg), os.Stdout, lg)
		go func() {
			if err := srv.Start(); err != nil {
				lg.Error("http", "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Stop(sctx)
		}()
	}

	if err := a.Run(ctx); err != nil {
		lg.Error("run", "error", err)
	}
	lg.Info("strcontrol stopped")
}

// setupKafka publishes alerts through the circuit breaker, off the pipeline's
// critical path, and consumes operator commands from the command topic.
func setupKafka(cfg *config.Config, m *metrics.Metrics, lg *slog.Logger) (*flood.AsyncAlertSink, *command.KafkaSource) {
	probe := func(ctx context.Context) error {
		conn, err := kafka.DialContext(ctx, "tcp", cfg.KafkaBrokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
	kb := breaker.NewKafkaBreaker("kafka-alerts", cfg.Breaker, probe, lg)
	if kb.Enabled() {
		kb.Breaker().OnStateChange(m.BreakerHook)
		m.BreakerHook("kafka-alerts", breaker.Closed)
	}
	w := breaker.NewCBKafkaWriter(flood.NewKafkaWriter(cfg.KafkaBrokers), kb)
	sink := flood.NewAsyncAlertSink(flood.NewKafkaAlertSink(w, cfg.AlertTopicPrefix, lg), cfg.AlertQueue, cfg.AlertTimeout, lg)
	lg.Info("kafka alerts ready", "prefix", cfg.AlertTopicPrefix, "breaker", kb.Enabled())

	src := command.NewKafkaSource(command.NewKafkaReader(cfg.KafkaBrokers, cfg.CommandTopic, cfg.CommandGroup), lg)
	lg.Info("kafka commands ready", "topic", cfg.CommandTopic, "group", cfg.CommandGroup)
	return sink, src
}

func connectMQTT(cfg *config.Config, lg *slog.Logger) (mqtt.Client, bool) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		lg.Warn("mqtt connect failed, continuing without mqtt", "broker", cfg.MQTTBroker, "err", token.Error())
		return nil, false
	}
	lg.Info("mqtt connected", "broker", cfg.MQTTBroker)
	return client, true
}
