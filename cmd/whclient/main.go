// Command whclient searches the warehouse catalogue, places orders and
// cancels them over the controller's TCP protocol.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"warehouse/client"
	"warehouse/inventory"
	"warehouse/protocol"
)

var (
	addr     string
	searchID int
)

var rootCmd = &cobra.Command{
	Use:          "whclient",
	Short:        "Talk to a running warehouse controller.",
	SilenceUsage: true,
}

var searchCmd = &cobra.Command{
	Use:   "search [PATTERN]",
	Short: "List items whose name matches PATTERN (a regular expression).",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.Search(pattern, searchID)
		if err != nil {
			return err
		}
		if resp.Status != protocol.StatusOK {
			return fmt.Errorf("search: %s", resp.Info)
		}
		printItems(resp.Results)
		return nil
	},
}

var orderCmd = &cobra.Command{
	Use:     "order ID:QTY...",
	Short:   "Hold each item and confirm them as one order.",
	Example: "  whclient order 7:2 12:1",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := parseLines(args)
		if err != nil {
			return err
		}
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		// closing without confirming hands the holds back
		defer c.Close()

		for _, l := range lines {
			resp, err := c.Add("", l.ItemID, l.Quantity)
			if err != nil {
				return err
			}
			if resp.Status != protocol.StatusOK {
				return fmt.Errorf("item %d: %s", l.ItemID, resp.Info)
			}
			fmt.Printf("held %d x %s\n", l.Quantity, resp.Results[0].Name)
		}
		conf, err := c.Confirm()
		if err != nil {
			return err
		}
		if conf.Status != protocol.StatusOK {
			return fmt.Errorf("confirm: %s", conf.Info)
		}
		fmt.Printf("order #%d confirmed\n", conf.OrderNum)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel NUMBER",
	Short: "Cancel an order that has not started loading.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		num, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("order number %q: %w", args[0], err)
		}
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		resp, err := c.Cancel(num)
		if err != nil {
			return err
		}
		if resp.Status != protocol.StatusOK {
			return fmt.Errorf("order #%d: %s", num, resp.Info)
		}
		fmt.Printf("order #%d: %s\n", num, resp.Info)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "localhost:52134", "controller address")
	searchCmd.Flags().IntVar(&searchID, "id", inventory.NoID, "match this item id as well")
	rootCmd.AddCommand(searchCmd, orderCmd, cancelCmd)
}

func dial(ctx context.Context) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return client.Dial(ctx, addr)
}

func parseLines(args []string) ([]protocol.CartLine, error) {
	lines := make([]protocol.CartLine, 0, len(args))
	for _, a := range args {
		id, qty, ok := strings.Cut(a, ":")
		if !ok {
			return nil, fmt.Errorf("%q: want ID:QTY", a)
		}
		l := protocol.CartLine{}
		var err error
		if l.ItemID, err = strconv.Atoi(id); err != nil {
			return nil, fmt.Errorf("%q: bad item id", a)
		}
		if l.Quantity, err = strconv.Atoi(qty); err != nil || l.Quantity <= 0 {
			return nil, fmt.Errorf("%q: quantity must be a positive integer", a)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func printItems(items []protocol.Item) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAVAILABLE\tON HOLD\tPRICE")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", it.ID, it.Name, it.Available, it.OnHold, it.Price)
	}
	tw.Flush()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
