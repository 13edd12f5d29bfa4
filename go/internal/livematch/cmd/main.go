package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/clients/fm_api_client"
	"github.com/mcdev12/matchday/go/internal/config"
	"github.com/mcdev12/matchday/go/internal/dispatch"
	"github.com/mcdev12/matchday/go/internal/livematch"
	"github.com/mcdev12/matchday/go/internal/metrics"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/notify"
	"github.com/mcdev12/matchday/go/internal/stream"
	"github.com/mcdev12/matchday/go/internal/viewapi"
)

func main() {
	matchID := flag.String("match", "", "id of the live match to watch")
	configPath := flag.String("config", "", "optional YAML config file")
	serve := flag.Bool("serve", true, "serve the local view API")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := config.LoadEnvFiles(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if *matchID == "" {
		log.Fatal().Msg("-match is required")
	}

	log.Info().
		Str("match_id", *matchID).
		Str("api", cfg.API.BaseURL).
		Str("transport", cfg.Stream.Transport).
		Msg("starting live match client")

	clock := clockwork.NewRealClock()
	collector := metrics.NewPrometheusMetrics()

	api := fm_api_client.NewFMApiClient(cfg.API.BaseURL, cfg.API.AccessToken)
	api.SetTimeout(cfg.API.Timeout)

	tasks := dispatch.New(dispatch.Config{
		Workers:     cfg.Dispatch.Workers,
		QueueSize:   dispatch.DefaultConfig().QueueSize,
		TaskTimeout: cfg.Dispatch.TaskTimeout,
	}, collector)

	channelConfig := stream.DefaultChannelConfig()
	channelConfig.ReconnectDelay = cfg.Stream.ReconnectDelay
	channelConfig.MaxReconnects = cfg.Stream.MaxReconnects
	channel := stream.NewChannel(newDialer(cfg), channelConfig, clock, collector)

	multiplexer := notify.NewMultiplexer(api, tasks, notify.NewToaster(clock, cfg.Notify.ToastDuration), clock)
	if err := multiplexer.Start(channel); err != nil {
		log.Error().Err(err).Msg("notifications unavailable")
	}
	multiplexer.Refresh()

	viewer := livematch.NewViewer(models.ID(*matchID), api, channel, tasks, collector, livematch.ViewerConfig{
		MaxRetainedEvents: cfg.View.MaxRetainedEvents,
	})
	viewer.OnChange(logChange(viewer))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	if *serve {
		server = viewapi.NewServer(cfg.View.APIAddr, viewapi.NewHandler(viewer, multiplexer, collector.Handler()))
		go func() {
			log.Info().Str("addr", server.Addr).Msg("view API starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("view API failed")
			}
		}()
	}

	exitCode := 0
	if err := viewer.Open(ctx); err != nil {
		log.Error().Err(err).Msg("could not open live match")
		exitCode = 1
	} else {
		<-ctx.Done()
		log.Info().Msg("received shutdown signal")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("view API shutdown failed")
		}
	}

	viewer.Close()
	multiplexer.Stop()

	// let the spectator leave go out before the process exits
	if err := tasks.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("background tasks did not finish")
	}
	if err := channel.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("stream shutdown failed")
	}

	log.Info().Msg("live match client shutdown complete")
	os.Exit(exitCode)
}

func newDialer(cfg *config.Config) stream.Dialer {
	switch cfg.Stream.Transport {
	case config.TransportNATS:
		natsConfig := stream.DefaultNATSConfig()
		natsConfig.URL = cfg.Stream.NATSURL
		natsConfig.Token = cfg.API.AccessToken
		natsConfig.UserID = cfg.API.UserID
		natsConfig.MaxReconnects = cfg.Stream.MaxReconnects
		natsConfig.ReconnectWait = cfg.Stream.ReconnectDelay
		return stream.NewNATSDialer(natsConfig)

	case config.TransportAMQP:
		amqpConfig := stream.DefaultAMQPConfig()
		amqpConfig.URL = cfg.Stream.AMQPURL
		amqpConfig.Exchange = cfg.Stream.AMQPExchange
		amqpConfig.UserID = cfg.API.UserID
		amqpConfig.Heartbeat = cfg.Stream.HeartbeatInterval
		return stream.NewAMQPDialer(amqpConfig)

	default:
		stompConfig := stream.DefaultStompConfig(cfg.Stream.URL)
		stompConfig.AccessToken = cfg.API.AccessToken
		stompConfig.PingInterval = cfg.Stream.HeartbeatInterval
		return stream.NewStompDialer(stompConfig)
	}
}

func logChange(viewer *livematch.Viewer) func(livematch.Change) {
	return func(c livematch.Change) {
		if c.Kind == livematch.ChangeEvent {
			log.Info().Str("match_id", viewer.MatchID().String()).Msg(livematch.EventLine(*c.Event))
			return
		}
		log.Info().Str("match_id", viewer.MatchID().String()).Msg(livematch.Headline(viewer.State()))
	}
}
