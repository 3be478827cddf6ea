package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/jpalmerr/smartmeter/internal/framer"
	"github.com/jpalmerr/smartmeter/internal/telegram"
	"github.com/spf13/cobra"
)

// decodeCmd prints the telegrams contained in a raw capture.
var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Print the readings in a raw meter capture",
	Long: `Decode a raw byte capture of the meter's D0 interface.

The capture is framed and parsed exactly as the serve command would, and
every completed telegram is printed as a table. Malformed lines are listed
below their telegram. Use "-" or omit the file to read from stdin.

Example:
  smartmeter decode capture.bin
  cat /dev/ttyUSB0 | smartmeter decode`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().Int("max-frame-size", framer.DefaultMaxSize, "telegram reassembly limit in bytes")
}

func runDecode(cmd *cobra.Command, args []string) error {
	maxSize, _ := cmd.Flags().GetInt("max-frame-size")

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := cmd.OutOrStdout()
	fr := framer.New(maxSize)
	count := 0

	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		for _, frame := range fr.Feed(buf[:n]) {
			count++
			printFrame(out, count, frame)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read capture: %w", err)
		}
	}

	pending, _ := fr.Pending()
	st := fr.Stats()
	fmt.Fprintf(out, "%d telegrams, %d discarded, %d bytes incomplete\n", count, st.Discarded, pending)
	return nil
}

func printFrame(out io.Writer, n int, frame framer.Frame) {
	text := frame.Text()
	res := telegram.ParseFrame(text)

	id := telegram.Identification(text)
	if frame.Headless {
		id = "headless"
	}
	fmt.Fprintf(out, "telegram %d (%s)\n", n, id)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ADDRESS\tVALUE\tUNIT")
	for _, m := range res.Measurements {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.Address, strconv.FormatFloat(m.Value, 'f', -1, 64), m.Unit)
	}
	_ = tw.Flush()

	for _, err := range res.Malformed {
		fmt.Fprintf(out, "  ! %v\n", err)
	}
	fmt.Fprintln(out)
}
