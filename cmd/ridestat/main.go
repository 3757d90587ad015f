// Package main provides an offline CLI over the recordings directory:
// list flushed recordings, show the stats of one, export a zipline
// track as GeoJSON. It reads the files directly and never touches the
// daemon's database, so it is safe to run while the daemon is up.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"ridetrace/pkg/geo"
	"ridetrace/pkg/model"
	"ridetrace/pkg/recording"
)

const usage = `Usage: ridestat [-dir <recordings dir>] <command>

Commands:
  list             List recordings, newest first
  show <file>      Print the stats of one recording
  export <file>    Write a zipline recording as GeoJSON to stdout
`

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dir := flag.String("dir", "data/recordings", "Recordings directory")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	switch flag.Arg(0) {
	case "list":
		return list(*dir)
	case "show":
		if flag.Arg(1) == "" {
			return errors.New("show needs a file name")
		}
		return show(*dir, flag.Arg(1))
	case "export":
		if flag.Arg(1) == "" {
			return errors.New("export needs a file name")
		}
		return export(*dir, flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(2)
		return nil
	}
}

type row struct {
	name      string
	rideType  model.RideType
	startedAt time.Time
	stats     model.Stats
	size      int64
}

func list(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	var rows []row
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		rideType, startedAt, err := recording.ParseFileName(name)
		if err != nil {
			// Foreign file, not one of ours.
			continue
		}
		samples, err := loadSamples(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARN: skipping %s: %v\n", name, err)
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			return err
		}
		rows = append(rows, row{name, rideType, startedAt, model.ComputeStats(samples), fi.Size()})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].startedAt.After(rows[j].startedAt) })

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSTARTED\tSAMPLES\tDURATION\tMAX ALT\tSIZE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1fs\t%.0f ft\t%s\n",
			r.name, r.rideType, r.startedAt.Format("2006-01-02 15:04:05"),
			r.stats.Samples, r.stats.Duration, r.stats.MaxAltitude, humanize.Bytes(uint64(r.size)))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d recording(s)\n", len(rows))
	return nil
}

func show(dir, name string) error {
	rideType, startedAt, err := recording.ParseFileName(name)
	if err != nil {
		return err
	}
	samples, err := loadSamples(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	stats := model.ComputeStats(samples)

	fmt.Printf("Recording: %s\n", name)
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("  Type:          %s\n", rideType.DisplayName())
	fmt.Printf("  Started:       %s\n", startedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Samples:       %d\n", stats.Samples)
	fmt.Printf("  Duration:      %.1f s\n", stats.Duration)
	fmt.Printf("  Max altitude:  %.1f ft\n", stats.MaxAltitude)
	fmt.Printf("  Avg rate:      %.1f ft/min\n", stats.AvgDescentRate)
	fmt.Printf("  Peak descent:  %.1f ft/min\n", stats.PeakDescentRate)
	if stats.ClimbDuration != nil {
		fmt.Printf("  Climb:         %.1f s\n", *stats.ClimbDuration)
	}
	if stats.MaxSpeed != nil {
		fmt.Printf("  Max speed:     %.1f mph\n", *stats.MaxSpeed)
	}
	return nil
}

func export(dir, name string) error {
	rideType, startedAt, err := recording.ParseFileName(name)
	if err != nil {
		return err
	}
	samples, err := loadSamples(filepath.Join(dir, name))
	if err != nil {
		return err
	}

	fc, err := geo.Track(&model.Recording{
		RideType:  rideType,
		StartedAt: startedAt,
		Samples:   samples,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

func loadSamples(path string) ([]model.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return recording.Unmarshal(data)
}
