package cmd

import (
	"fmt"
	"os"

	"github.com/jtagtools/xvc-ftdi-gateway/pkg/jtag"
	"github.com/spf13/cobra"
)

var flags struct {
	bindAddr   string
	port       int
	device     string
	gpioInit   string
	lockedFreq string
	quiet      bool
	loopback   bool
	runt       bool
	stats      bool
	traceUSB   bool
	traceXVC   bool
	secondIntf bool
}

var rootCmd = &cobra.Command{
	Use:   "xvcd",
	Short: "Xilinx Virtual Cable server for FTDI MPSSE JTAG adapters",
	Long: `xvcd bridges the Xilinx Virtual Cable (XVC) protocol to a JTAG
physical layer driven by an FTDI MPSSE USB chip.

It listens on one TCP socket, serves one client at a time, and translates
XVC shift/settck/getinfo commands into MPSSE command buffers over USB bulk
transfers.`,
	Version:      "1.0.0",
	SilenceUsage: true,
	RunE:         runServer,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.bindAddr, "bind", "a", "127.0.0.1", "TCP bind address")
	f.IntVarP(&flags.port, "port", "p", 2542, "TCP port")
	f.StringVarP(&flags.device, "device", "d", "", "vendor:product[:serial] hex USB filter")
	f.StringVarP(&flags.gpioInit, "gpio", "g", "", "GPIO init sequence, colon-separated hex bytes, 100ms apart")
	f.StringVarP(&flags.lockedFreq, "clock", "c", "", "lock TCK frequency (e.g. 10M, 500k), ignoring client settck:")
	f.BoolVarP(&flags.quiet, "quiet", "q", false, "suppress connect/disconnect logging")
	f.BoolVarP(&flags.loopback, "loopback", "L", false, "enable FTDI internal loopback")
	f.BoolVarP(&flags.runt, "runt", "R", false, "log runt (status-only) USB read packets")
	f.BoolVarP(&flags.stats, "stats", "S", false, "print shift/chunk/bit statistics at disconnect")
	f.BoolVarP(&flags.traceUSB, "trace-usb", "U", false, "USB traffic trace flag (parsed; no USB traffic is logged)")
	f.BoolVar(&flags.traceUSB, "trace-usb-lower", false, "USB traffic trace flag, -u alias (parsed; no USB traffic is logged)")
	f.BoolVarP(&flags.traceXVC, "trace-xvc", "X", false, "log parsed XVC commands")
	f.BoolVar(&flags.traceXVC, "trace-xvc-lower", false, "log parsed XVC commands (-x alias)")
	f.BoolVarP(&flags.secondIntf, "second-interface", "B", false, "select the second MPSSE interface on a multi-interface FTDI chip")
	f.Lookup("trace-usb-lower").Shorthand = "u"
	f.Lookup("trace-xvc-lower").Shorthand = "x"
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg := jtag.DefaultConfig()
	cfg.BindAddr = flags.bindAddr
	cfg.Port = flags.port
	cfg.GPIOInit = flags.gpioInit
	cfg.Quiet = flags.quiet
	cfg.Loopback = flags.loopback
	cfg.Runt = flags.runt
	cfg.Stats = flags.stats
	cfg.TraceUSB = flags.traceUSB
	cfg.TraceXVC = flags.traceXVC
	cfg.SecondIntf = flags.secondIntf

	match, err := jtag.ParseDeviceFilter(flags.device)
	if err != nil {
		return err
	}
	cfg.Match = match

	locked, err := jtag.ParseLockedFrequency(flags.lockedFreq)
	if err != nil {
		return err
	}
	cfg.LockedSpeed = locked

	if _, err := jtag.ParseGPIOInit(cfg.GPIOInit); err != nil {
		return err
	}

	diag := jtag.NewDiagnostics()
	srv := jtag.NewServer(cfg, diag)
	return srv.ListenAndServe()
}
