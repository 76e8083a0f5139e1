// Package notifier reports finished runs to operators.
//
// Delivery goes through a Sender; the Telegram sender uses telebot in
// offline mode (no getMe on startup, no polling), so it only ever calls
// sendMessage.
package notifier
