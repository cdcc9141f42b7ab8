// The main package for the manghomagnet executable.
package main

import "github.com/refracta/PEAK-MangHoMagnet/cmd"

func main() {
	cmd.Execute()
}
