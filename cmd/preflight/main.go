// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/watchdog/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()
	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (mute window routes would be open).")
	}
	if pub == "" {
		warn("PUBLIC_API_KEYS is empty; only admin keys can read the dashboard.")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}
	ok("API_ADDR=" + cfg.Addr)

	switch {
	case cfg.DatabaseURL != "":
		ok("DATABASE_URL present (postgres store)")
	case cfg.SQLitePath != "":
		ok("SQLITE_PATH=" + cfg.SQLitePath)
	default:
		warn("DATABASE_URL and SQLITE_PATH empty; state is kept in memory and lost on restart.")
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; the API will accept any origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	f, err := config.Load(cfg.ConfigPath)
	if err != nil {
		fail(err.Error())
	}
	ok(fmt.Sprintf("%s: %d checks, %d channels", cfg.ConfigPath, len(f.Checks), len(f.Digest.Channels)))
	for _, name := range f.UnknownChannels() {
		warn(fmt.Sprintf("channel %q is referenced but not configured; a config error alert will be raised", name))
	}

	ok("preflight passed")
}
