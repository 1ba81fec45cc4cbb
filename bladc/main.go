package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/itohio/bladc/pkg/config"
	"github.com/itohio/bladc/pkg/device"
)

func main() {
	var (
		portFlag    = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		simFlag     = flag.Bool("sim", false, "Use the simulated ADC instead of a serial port")
		pollFlag    = flag.Bool("poll", false, "Run init_adc, wait for one reading and exit")
		monitorFlag = flag.Bool("monitor", false, "Run init_adc and print readings until interrupted")
		listFlag    = flag.Bool("list", false, "List serial ports and exit")
	)
	flag.Parse()

	if *listFlag {
		ports, err := device.Ports()
		if err != nil {
			log.Fatalf("Failed to list ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p.Name)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	var d device.Device
	if *simFlag {
		d = device.NewLocal(cfg, nil)
		fmt.Println("Using simulated ADC")
	} else {
		d = device.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, device.DefaultBufferSize)
	}

	if err := d.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *pollFlag:
		err = pollOnce(ctx, d, cfg)
	case *monitorFlag:
		err = monitor(ctx, d, cfg, os.Stdout)
	default:
		err = repl(ctx, d, os.Stdin, os.Stdout)
	}
	if err != nil {
		log.Printf("%v", err)
		d.Close()
		os.Exit(1)
	}
}

// initADC runs init_adc and prints whatever the device reported.
func initADC(ctx context.Context, d device.Device) error {
	lines, err := d.Exec(ctx, "init_adc")
	for _, l := range lines {
		fmt.Println(l)
	}
	if err != nil {
		return fmt.Errorf("init_adc failed: %w", err)
	}
	return nil
}

func pollOnce(ctx context.Context, d device.Device, cfg *config.Config) error {
	if err := initADC(ctx, d); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Poll.Timeout)
	defer cancel()

	avg, err := device.Poll(ctx, d, cfg.Poll.Interval)
	if err != nil {
		return fmt.Errorf("no reading: %w", err)
	}
	fmt.Printf("Average: %d\n", avg)
	return nil
}
