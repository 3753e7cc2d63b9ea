package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mzaki9/Atomus-Lumea/common/config"
	loggercommon "github.com/mzaki9/Atomus-Lumea/common/logger"
	mqttcommon "github.com/mzaki9/Atomus-Lumea/common/mqtt"
	"github.com/mzaki9/Atomus-Lumea/internal/camera"

	"go.uber.org/zap"
)

func main() {
	var (
		broker       = flag.String("broker", config.EnvString("MQTT_BROKER", "tcp://127.0.0.1:1883"), "MQTT broker")
		deviceID     = flag.String("device", config.EnvString("PPG_DEVICE_ID", "lumea-dev"), "device id")
		frameTopic   = flag.String("frame-topic", config.EnvString("PPG_TOPIC_FRAME", "ppg/{device_id}/frame"), "frame topic")
		commandTopic = flag.String("command-topic", config.EnvString("PPG_TOPIC_COMMAND", "ppg/{device_id}/command"), "command topic")
		fps          = flag.Int("fps", 30, "frames per second")
		width        = flag.Int("width", 160, "frame width")
		height       = flag.Int("height", 120, "frame height")
		bpm          = flag.Float64("bpm", 72, "simulated heart rate")
		noise        = flag.Float64("noise", 0.01, "signal noise")
		logLevel     = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger, err := loggercommon.NewLogger(*logLevel, "console", "ppg-sim")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	mqttCfg := config.MQTTConfig{Broker: *broker, ClientID: "ppg-sim-" + *deviceID}
	client, err := mqttcommon.NewClient(&mqttCfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MQTT", zap.Error(err))
	}
	defer client.Disconnect()

	dev := camera.NewSimDevice(client, camera.MQTTConfig{
		DeviceID:     *deviceID,
		FrameTopic:   *frameTopic,
		CommandTopic: *commandTopic,
	}, camera.SyntheticConfig{
		Width:  *width,
		Height: *height,
		FPS:    *fps,
		BPM:    *bpm,
		Noise:  *noise,
	}, logger)
	if err := dev.Start(); err != nil {
		logger.Fatal("Failed to start simulated device", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dev.Stop(ctx); err != nil {
		logger.Error("Failed to stop simulated device", zap.Error(err))
	}
	logger.Info("ppg-sim stopped", zap.Int64("published", dev.Published()))
}
