// staff-token issues a cashier token for the register API, signed with
// API_SECRET.
//
// Usage:
//
//	API_SECRET=... go run ./cmd/staff-token --id=5 --name="Rina" --role=kasir
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/pos_backend/utils"
)

func main() {
	id := flag.String("id", "", "Required: staff id")
	name := flag.String("name", "", "Required: staff name printed on receipts")
	role := flag.String("role", "kasir", "Staff role (kasir, supervisor, admin)")
	flag.Parse()

	if strings.TrimSpace(*id) == "" || strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "--id and --name are required")
		os.Exit(1)
	}
	if _, err := utils.JwtSecret(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(strings.TrimSpace(*id), strings.TrimSpace(*name), strings.TrimSpace(*role))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
