package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/band"
	"github.com/lorawan-ns/network-server/internal/adr"
	"github.com/lorawan-ns/network-server/internal/config"
	"github.com/lorawan-ns/network-server/internal/dedup"
	"github.com/lorawan-ns/network-server/internal/downlink"
	"github.com/lorawan-ns/network-server/internal/gwbridge"
	"github.com/lorawan-ns/network-server/internal/join"
	"github.com/lorawan-ns/network-server/internal/maccommand"
	"github.com/lorawan-ns/network-server/internal/relay"
	"github.com/lorawan-ns/network-server/internal/scheduler"
	"github.com/lorawan-ns/network-server/internal/storage"
	"github.com/lorawan-ns/network-server/internal/uplink"
)

func run(cfgPath string) error {
	c, err := config.LoadConfig(cfgPath)
	if err != nil {
		return errors.Wrap(err, "load config error")
	}

	level, err := log.ParseLevel(c.General.LogLevel)
	if err != nil {
		return errors.Wrap(err, "parse log-level error")
	}
	log.SetLevel(level)

	var netID lorawan.NetID
	if err := netID.UnmarshalText([]byte(c.NetworkServer.NetID)); err != nil {
		return errors.Wrap(err, "parse net-id error")
	}

	var joinEUI lorawan.EUI64
	if err := joinEUI.UnmarshalText([]byte(c.NetworkServer.JoinEUI)); err != nil {
		return errors.Wrap(err, "parse join-eui error")
	}

	b, err := band.GetConfig(band.Name(c.NetworkServer.Band), false, lorawan.DwellTimeNoLimit)
	if err != nil {
		return errors.Wrap(err, "get band config error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgPool, err := pgxpool.New(ctx, c.PostgreSQL.DSN)
	if err != nil {
		return errors.Wrap(err, "connect to postgresql error")
	}
	defer pgPool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Redis.Servers[0],
		Password: c.Redis.Password,
		DB:       c.Redis.Database,
	})
	defer rdb.Close()

	store := storage.New(rdb, pgPool)

	macRegistry := maccommand.NewRegistry()
	macRegistry.RequiredSNRForDR = func(dr int) float64 { return requiredSNRForDR(b, dr) }
	adrRegistry := adr.NewRegistry()
	dd := dedup.New(rdb, c.NetworkServer.DeduplicationDelay)
	planner := downlink.NewPlanner(b, store, store)
	activator := join.NewActivator(netID, joinEUI, b, join.StorageKeyStore{Store: store}, store)
	relayAdapter := relay.NewAdapter(store)

	mqttOpts := mqtt.NewClientOptions().
		AddBroker(c.GatewayBridge.MQTT.Server).
		SetUsername(c.GatewayBridge.MQTT.Username).
		SetPassword(c.GatewayBridge.MQTT.Password).
		SetClientID("network-server").
		SetAutoReconnect(true)
	mqttClient := mqtt.NewClient(mqttOpts)
	if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "connect to mqtt broker error")
	}
	defer mqttClient.Disconnect(250)

	pipeline := &uplink.Pipeline{
		Band:               b,
		Sessions:           store,
		MAC:                macRegistry,
		ADR:                adrRegistry,
		Planner:            planner,
		Join:               activator,
		Relay:              relayAdapter,
		ProtocolVersion:    "1.0.3",
		RegParamsRevision:  "A",
		InstallationMargin: 10,
		RequiredSNRForDR:   func(dr int) float64 { return requiredSNRForDR(b, dr) },
	}

	bridge := gwbridge.New(mqttClient, c.GatewayBridge.EventTopicTemplate, "", c.GatewayBridge.CommandTopicTemplate,
		dd, classifyAndDispatch(pipeline), nil)
	pipeline.Submitter = bridge

	if err := bridge.Start(); err != nil {
		return errors.Wrap(err, "start gateway bridge error")
	}

	dispatcher := downlink.NewDispatcher(store, planner, bridge)
	sched := scheduler.New(dispatcher, dispatcher, c.NetworkServer.SchedulerDeviceInterval, c.NetworkServer.SchedulerMulticastInterval)
	go sched.Run(ctx)
	defer sched.Stop()

	metricsServer := &http.Server{Addr: c.Metrics.Prometheus.Bind, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("network-server: metrics server stopped")
		}
	}()
	defer metricsServer.Close()

	log.WithFields(log.Fields{"net_id": netID, "band": c.NetworkServer.Band}).Info("network-server: started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("network-server: shutting down")
	return nil
}

// requiredSNRForDR returns the demodulation floor for the spreading factor
// backing dr: the standard LoRaWAN per-SF required-SNR table ADR
// implementations compare a device's observed SNR against (the same
// constants chirpstack's required-SNR lookup drives its link-margin and
// rate-adaptation decisions from).
func requiredSNRForDR(b band.Band, dr int) float64 {
	dataRate, err := b.GetDataRate(dr)
	if err != nil {
		return 0
	}
	switch dataRate.SpreadFactor {
	case 12:
		return -20
	case 11:
		return -17.5
	case 10:
		return -15
	case 9:
		return -12.5
	case 8:
		return -10
	default:
		return -7.5
	}
}

// classifyAndDispatch hands every deduplicated frame to the pipeline's own
// HandleFrame entrypoint, which classifies it by MHDR.MType and also
// unwraps any FPort-226 relay traffic recursively.
func classifyAndDispatch(p *uplink.Pipeline) dedup.Callback {
	return func(ctx context.Context, frame dedup.Frame) error {
		return p.HandleFrame(ctx, frame, join.Options{RXDelay: 5, RX1DROffset: 0})
	}
}
