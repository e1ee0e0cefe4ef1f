// Command fixture-target is a tiny helper process for scan-engine
// integration tests. It prints the hex address of a known u32 variable
// and of a second package-level u32 (readonlyValue, an ordinary Go var
// that lives in the binary's writable data), then loops on stdin commands so a test can
// observe and mutate its state externally.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

var readonlyValue uint32 = 12345

func main() {
	value := uint32(31337)

	fmt.Printf("0x%x\n", addrOf(&value))
	fmt.Printf("0x%x\n", addrOf(&readonlyValue))

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "read":
			fmt.Println(value)
		case "addr":
			fmt.Printf("0x%x\n", addrOf(&value))
		case "readonly":
			fmt.Println(readonlyValue)
		case "readonly_addr":
			fmt.Printf("0x%x\n", addrOf(&readonlyValue))
		}
	}
}
