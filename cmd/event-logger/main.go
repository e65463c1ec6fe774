// Command event-logger consumes supply events from RabbitMQ and appends
// one line per event to EVENT_LOG_DIR/supply.log.
package main

import (
	"log"

	"github.com/iliyamo/supply-share/internal/config"
	"github.com/iliyamo/supply-share/internal/queue"
)

func main() {
	cfg := config.LoadEventLogger()
	log.Printf("event-logger: consuming %s into %s", queue.LogQueue, cfg.EventLogDir)
	if err := queue.NewConsumer(cfg.RabbitMQURL, cfg.EventLogDir).Run(); err != nil {
		log.Fatal(err)
	}
}
