// Command xvcd bridges the Xilinx Virtual Cable protocol to an FTDI MPSSE
// JTAG adapter over USB.
package main

import "github.com/jtagtools/xvc-ftdi-gateway/cmd/xvcd/cmd"

func main() {
	cmd.Execute()
}
