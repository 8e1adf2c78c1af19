package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/agent"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/config"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/logger"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/mqtt"

	"go.uber.org/zap"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "print-agent")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	baseURL := getEnv("MES_BASE_URL", "http://localhost:8080")
	agentID := getEnv("AGENT_ID", "print-agent-1")

	a := agent.NewAgent(baseURL, cfg.PrintAgentToken, agentID, agent.StdoutPrinter{}, log)

	// Optional MQTT wakeup: polling still drives the loop, the broker just
	// shortens idle latency.
	if cfg.MQTT.Enabled {
		mqttCfg := cfg.MQTT
		mqttCfg.ClientID = agentID
		client, err := mqtt.NewClient(&mqttCfg, log)
		if err != nil {
			log.Warn("MQTT connect failed, continuing on polling only", zap.Error(err))
		} else {
			defer client.Disconnect()
			if err := client.Subscribe(cfg.MQTT.Topic, 0, func(topic string, payload []byte) error {
				jobID, jobType := agent.DecodeWakeMessage(payload)
				log.Debug("queue notification",
					zap.String("print_job_id", jobID),
					zap.String("job_type", jobType),
				)
				a.Wake()
				return nil
			}); err != nil {
				log.Warn("MQTT subscribe failed, continuing on polling only", zap.Error(err))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Run(ctx)
}
