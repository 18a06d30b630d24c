// Command truck runs one truck through the dock handshake against a running
// controller's shared state in Redis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"warehouse/config"
	"warehouse/docking"
	"warehouse/sharedstate"
)

var (
	configPath string
	redisAddr  string
	prefix     string
	items      []string
)

var rootCmd = &cobra.Command{
	Use:   "truck",
	Short: "Dock a delivery or restock truck at the warehouse.",
	Long: `truck attaches to the warehouse's shared dock bay, waits for a free ` +
		`dock and leaves once its load is complete.`,
	SilenceUsage: true,
}

var deliveryCmd = &cobra.Command{
	Use:   "delivery",
	Short: "Dock, take on picked orders and leave.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), sharedstate.KindDelivery, nil)
	},
}

var restockCmd = &cobra.Command{
	Use:   "restock",
	Short: "Dock and unload a cargo manifest into inventory.",
	Example: `  truck restock --item 7:Widget:40:1.5 --item 9:Sprocket:100`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cargo, err := parseItems(items)
		if err != nil {
			return err
		}
		return run(cmd.Context(), sharedstate.KindRestock, cargo)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "warehouse.yaml", "controller config file for Redis settings")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "", "shared state key prefix (overrides config)")
	restockCmd.Flags().StringArrayVar(&items, "item", nil, "cargo line id:name:qty[:weight], repeatable")
	restockCmd.MarkFlagRequired("item")
	rootCmd.AddCommand(deliveryCmd, restockCmd)
}

// parseItems reads id:name:qty[:weight] cargo lines. Weight is per unit and
// defaults to 1.
func parseItems(specs []string) ([]sharedstate.CargoItem, error) {
	cargo := make([]sharedstate.CargoItem, 0, len(specs))
	for _, s := range specs {
		parts := strings.Split(s, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("item %q: want id:name:qty[:weight]", s)
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("item %q: bad id: %w", s, err)
		}
		qty, err := strconv.Atoi(parts[2])
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("item %q: quantity must be a positive integer", s)
		}
		weight := 1.0
		if len(parts) == 4 {
			if weight, err = strconv.ParseFloat(parts[3], 64); err != nil || weight < 0 {
				return nil, fmt.Errorf("item %q: bad weight", s)
			}
		}
		cargo = append(cargo, sharedstate.CargoItem{ItemID: id, Name: parts[1], Quantity: qty, Weight: weight})
	}
	return cargo, nil
}

func run(ctx context.Context, kind sharedstate.Kind, cargo []sharedstate.CargoItem) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rcfg := cfg.Shared.Redis
	if redisAddr != "" {
		rcfg.Address = redisAddr
	}
	if prefix != "" {
		rcfg.Prefix = prefix
	}

	rc := redis.NewClient(&redis.Options{Addr: rcfg.Address, Password: rcfg.Password, DB: rcfg.DB})
	defer rc.Close()

	truck, err := docking.NewTruck(docking.TruckConfig{
		State: sharedstate.NewRedis(rc, rcfg.Prefix),
		Kind:  kind,
		Cargo: cargo,
	})
	if err != nil {
		return err
	}
	trip, err := truck.Run(ctx)
	if err != nil {
		return fmt.Errorf("truck %s: %w", truck.ID(), err)
	}

	fmt.Printf("truck %s (%s) used dock %d: waited %s, docked %s\n",
		trip.TruckID, trip.Kind, trip.Dock, trip.Waited.Round(time.Millisecond), trip.Docked.Round(time.Millisecond))
	for _, c := range trip.Cargo {
		fmt.Printf("  %4d x %-20s (item %d)\n", c.Quantity, c.Name, c.ItemID)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
