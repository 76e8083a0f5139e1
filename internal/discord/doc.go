// Package discord is a small REST client for the guild endpoints the mirror
// needs: roles, channels, messages and webhooks.
//
// All requests share one rate limiter. Failed responses become *APIError;
// nothing is retried, 429s included (the caller paces itself).
package discord
