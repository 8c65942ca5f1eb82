// Package tgui builds text for Telegram's HTML parse mode: escaping,
// inline formatting and rune-safe truncation.
package tgui
