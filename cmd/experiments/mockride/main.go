package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridetrace/pkg/config"
	"ridetrace/pkg/sensor"
	"ridetrace/pkg/sensor/mockride"
	"ridetrace/pkg/tracker"
)

// Headless harness for eyeballing mock scenario tuning: samples the
// simulated sensor, runs the readings through a tracker and prints the
// smoothed motion one line per tick.
func main() {
	profile := flag.String("profile", "drop", "Mock profile (drop or zip)")
	interval := flag.Duration("interval", 250*time.Millisecond, "Print interval")
	flag.Parse()

	cfg := config.DefaultConfig()
	provider, err := mockride.New(*profile, cfg.Sensor.Mock)
	if err != nil {
		log.Fatal(err)
	}
	defer provider.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("Mock ride started (profile %s). Press Ctrl+C to exit.\n", *profile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	trk := tracker.New()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reading, err := provider.Read(ctx)
			if err != nil {
				if errors.Is(err, sensor.ErrNotReady) {
					continue
				}
				log.Printf("Error reading sensor: %v", err)
				continue
			}
			mo := trk.Update(reading)

			line := fmt.Sprintf("[%s] Alt: %7.1f ft | Rate: %8.1f ft/min",
				mo.Time.Format("15:04:05.000"), mo.Altitude, mo.Rate)
			if mo.HasFix {
				line += fmt.Sprintf(" | Pos: %.5f, %.5f | Hdg: %3.0f", mo.Lat, mo.Lon, mo.Heading)
			}
			if mo.Speed != nil {
				line += fmt.Sprintf(" | Spd: %.1f mph", *mo.Speed)
			}
			fmt.Println(line)
		}
	}
}
