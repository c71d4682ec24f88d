package banner

import (
	"fmt"
	"net"

	"chatsink/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗███████╗██╗███╗   ██╗██╗  ██╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝██║████╗  ██║██║ ██╔╝
██║     ███████║███████║   ██║   ███████╗██║██╔██╗ ██║█████╔╝
██║     ██╔══██║██╔══██║   ██║   ╚════██║██║██║╚██╗██║██╔═██╗
╚██████╗██║  ██║██║  ██║   ██║   ███████║██║██║ ╚████║██║  ██╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝
`

// PrintWithEff prints the startup banner using the effective config.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /webhook - Ingest a provider payload (message or status)")
	fmt.Println("GET  /api/conversations - List conversations, latest first")
	fmt.Println("GET  /api/conversations/{wa_id}/messages?limit=<n> - List messages")
	fmt.Println("POST /api/conversations/{wa_id}/messages - Compose an outgoing message")
	fmt.Println("GET  /ws?wa_id=<id> - Realtime event feed")

	port := addr
	if _, p, err := net.SplitHostPort(addr); err == nil {
		port = ":" + p
	}
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/webhook' -d '{\"id\":\"m1\",\"from\":\"111\",\"text\":{\"body\":\"hi\"}}'\n", port)
	fmt.Printf("curl 'http://localhost%s/api/conversations'\n", port)

	if eff.Config != nil {
		be := len(eff.Config.Security.APIKeys.Backend)
		fe := len(eff.Config.Security.APIKeys.Frontend)
		if be == 0 && fe == 0 {
			fmt.Println("\n== Production? ================================================")
			fmt.Println("No API keys configured; the read API will reject all callers")
		}
	}
}
