// Package banner prints the startup banner a human sees when running
// the broker interactively, summarizing the effective configuration so
// a misconfigured deploy is obvious at a glance.
package banner

import (
	"fmt"

	"github.com/agentation/broker/internal/config"
)

const art = `
 █████╗  ██████╗ ███████╗███╗   ██╗████████╗ █████╗ ████████╗██╗ ██████╗ ███╗   ██╗
██╔══██╗██╔════╝ ██╔════╝████╗  ██║╚══██╔══╝██╔══██╗╚══██╔══╝██║██╔═══██╗████╗  ██║
███████║██║  ███╗█████╗  ██╔██╗ ██║   ██║   ███████║   ██║   ██║██║   ██║██╔██╗ ██║
██╔══██║██║   ██║██╔══╝  ██║╚██╗██║   ██║   ██╔══██║   ██║   ██║██║   ██║██║╚██╗██║
██║  ██║╚██████╔╝███████╗██║ ╚████║   ██║   ██║  ██║   ██║   ██║╚██████╔╝██║ ╚███║
╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚═╝  ╚═══╝   ╚═╝   ╚═╝  ╚═╝   ╚═╝   ╚═╝ ╚═════╝ ╚═╝  ╚══╝
`

// Print writes a startup summary of eff to stdout.
func Print(eff config.Effective, version string) {
	fmt.Print(art)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Mode:     %s\n", eff.Mode)
	fmt.Printf("Version:  %s\n", version)
	if eff.Mode != config.ModeACPOnly {
		fmt.Printf("Listen:   :%d\n", eff.Port)
	}
	fmt.Printf("Store:    %s", eff.Store)
	if eff.Store == config.StoreSQLite {
		fmt.Printf(" (%s)", eff.DBPath)
	}
	fmt.Println()
	fmt.Printf("Event retention: %d days\n", eff.EventRetentionDays)

	fmt.Println("\n== Security ===================================================")
	if eff.APIKey != "" {
		fmt.Println("- Bearer auth: enabled")
	} else {
		fmt.Println("- Bearer auth: disabled (any client may connect)")
	}
	if eff.RateLimitRPS > 0 {
		fmt.Printf("- Rate limit: %.1f req/s per credential\n", eff.RateLimitRPS)
	} else {
		fmt.Println("- Rate limit: disabled")
	}

	fmt.Println("\n== Webhooks ===================================================")
	if len(eff.WebhookURLs) == 0 {
		fmt.Println("- none configured")
	} else {
		for _, url := range eff.WebhookURLs {
			fmt.Printf("- %s\n", url)
		}
	}
	fmt.Println()
}
