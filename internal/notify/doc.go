// Package notify formats alerts and delivers them to Telegram and optional
// mirrors. Delivery is best effort: one attempt per alert, no retry.
package notify
