package display

import (
	"fmt"
	"os"

	"github.com/backmassage/textmill/internal/term"
)

// PrintBanner prints the ASCII art banner; colored when colors are enabled.
func PrintBanner() {
	if term.Enabled() {
		fmt.Fprint(os.Stdout, term.Cyan)
	}
	fmt.Fprint(os.Stdout, ` _____         _   __  __ _ _ _
|_   _|____  _| |_|  \/  (_) | |
  | |/ _ \ \/ / __| |\/| | | | |
  | |  __/>  <| |_| |  | | | | |
  |_|\___/_/\_\\__|_|  |_|_|_|_|
`)
	if term.Enabled() {
		fmt.Fprintln(os.Stdout, term.NC)
	}
}
