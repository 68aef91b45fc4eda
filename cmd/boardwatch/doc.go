// Package main hosts the boardwatch entrypoint.
//
// Architecture overview:
//   - Scheduler: internal/pipeline.Scheduler runs one cycle at start and then every poll interval on a robfig/cron
//     runner. A trigger that arrives while a cycle is still running is skipped and counted, never queued.
//   - Cycle: the renderer (chromedp, or colly for static pages) produces a document snapshot, the extraction engine
//     applies its strategy chain, the keyword matcher filters titles, the seen set drops items already alerted, and
//     the notifier sends the rest. Items are recorded as seen after the send attempt, even when it failed.
//   - State: the seen set is loaded once and persisted as a sorted JSON array to a local file, SQLite, Postgres or
//     GCS, but only when a cycle found something new.
//   - Delivery: Telegram Bot API, optionally mirrored to Pub/Sub. Dry runs log alerts and never touch state.
//   - Configuration & plumbing: Viper populates config from env (BOARDWATCH_*, TELEGRAM_BOT_TOKEN,
//     TELEGRAM_CHAT_ID) and an optional YAML file; zap provides structured logging; Prometheus metrics are exported on
//     /metrics when the HTTP surface is enabled.
//
// Commands:
//   - run: scheduler plus the optional HTTP surface; notifies systemd when ready and when stopping.
//   - once: a single cycle, printing the report; --dry-run logs alerts and leaves state untouched.
//   - serve: the HTTP surface only, for on-demand /fetch rendering.
//
// Shutdown: SIGINT/SIGTERM stop new triggers, wait for the in-flight cycle, close the browser and drain the HTTP
// server. Only a renderer start-up failure exits non-zero.
package main
